package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chis/stackcheck/internal/docker"
	"github.com/chis/stackcheck/internal/events"
	"github.com/chis/stackcheck/internal/history"
	"github.com/chis/stackcheck/internal/logging"
	"github.com/chis/stackcheck/internal/storage"
	"github.com/chis/stackcheck/internal/workspace"
)

// ProjectLister lists compose projects known to a Docker daemon.
type ProjectLister interface {
	ComposeProjects(ctx context.Context) ([]docker.ComposeProject, error)
}

// Server represents the HTTP API server
type Server struct {
	storage     storage.Storage
	recorder    *history.Recorder
	docker      ProjectLister
	eventBus    *events.Bus
	maxProjects int
	handler     http.Handler
	httpServer  *http.Server
	rateLimiter *PathRateLimiter
	log         *logging.Logger
}

// Config holds configuration for the API server
type Config struct {
	Port int

	// Storage is optional. Without it the report endpoints answer 503.
	Storage storage.Storage

	// RecordHistory stores validate and compare runs when Storage is set
	RecordHistory bool

	// Docker is optional. Without it GET /api/projects answers 503.
	Docker ProjectLister

	// Events is optional. Without it GET /api/events answers 503.
	Events *events.Bus

	// MaxProjects bounds a single compare request (default 3)
	MaxProjects int

	DisableRateLimit bool
}

// NewServer creates a new API server with the given configuration
func NewServer(cfg Config) *Server {
	maxProjects := cfg.MaxProjects
	if maxProjects <= 0 {
		maxProjects = workspace.DefaultMaxProjects
	}

	var recorder *history.Recorder
	if cfg.RecordHistory {
		recorder = history.NewRecorder(cfg.Storage)
	} else {
		recorder = history.NewRecorder(nil)
	}
	recorder.SetEventBus(cfg.Events)

	s := &Server{
		storage:     cfg.Storage,
		recorder:    recorder,
		docker:      cfg.Docker,
		eventBus:    cfg.Events,
		maxProjects: maxProjects,
		log:         logging.Component("api"),
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	// CORS -> Correlation ID -> Rate Limit (optional) -> Request Logging -> Handler
	middlewares := []func(http.Handler) http.Handler{
		corsMiddleware,
		CorrelationIDMiddleware,
	}
	if !cfg.DisableRateLimit {
		s.rateLimiter = NewPathRateLimiter(DefaultRateLimitConfig())
		// Health checks are polled
		s.rateLimiter.SetPathLimit("/api/health", RateLimitConfig{
			RequestsPerMinute: 120,
			BurstSize:         20,
			CleanupInterval:   5 * time.Minute,
		})
		// Compare parses several documents per request
		s.rateLimiter.SetPathLimit("/api/compare", RateLimitConfig{
			RequestsPerMinute: 30,
			BurstSize:         5,
			CleanupInterval:   5 * time.Minute,
		})
		middlewares = append(middlewares, RateLimitMiddleware(s.rateLimiter))
	} else {
		s.log.Debug("Rate limiting disabled")
	}
	middlewares = append(middlewares, RequestLoggingMiddleware)
	s.handler = ChainMiddleware(mux, middlewares...)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}

	return s
}

// registerRoutes sets up all API routes
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)

	// Engine
	mux.HandleFunc("POST /api/validate", s.handleValidate)
	mux.HandleFunc("POST /api/compare", s.handleCompare)
	mux.HandleFunc("POST /api/graph", s.handleGraph)

	// Report history
	mux.HandleFunc("GET /api/reports", s.handleReports)
	mux.HandleFunc("GET /api/reports/{id}", s.handleReportByID)

	// Running compose projects
	mux.HandleFunc("GET /api/projects", s.handleProjects)

	// Server-Sent Events for validate and compare runs
	mux.HandleFunc("GET /api/events", s.handleEvents)
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// Start starts the HTTP server. It blocks until the server stops and
// returns http.ErrServerClosed after Shutdown.
func (s *Server) Start() error {
	s.log.Info("Starting API server on %s", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("Shutting down API server...")

	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

// corsMiddleware adds permissive CORS headers so browser tools can call the API.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}

		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Correlation-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
