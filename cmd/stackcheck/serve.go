package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chis/stackcheck/internal/api"
	"github.com/chis/stackcheck/internal/bootstrap"
	"github.com/chis/stackcheck/internal/docker"
	"github.com/chis/stackcheck/internal/logging"
)

// ServeCommand implements the API server command
type ServeCommand struct {
	port             int
	disableRateLimit bool
}

// NewServeCommand creates a new serve command
func NewServeCommand() *ServeCommand {
	return &ServeCommand{}
}

// ParseFlags parses command-line flags for the serve command.
// A zero port means the configured api_port.
func (c *ServeCommand) ParseFlags(args []string) error {
	var jsonFlag bool
	fs := newFlagSet("serve", &jsonFlag)
	fs.IntVar(&c.port, "port", 0, "Port to listen on (default from config)")
	fs.IntVar(&c.port, "p", 0, "Shorthand for --port")
	fs.BoolVar(&c.disableRateLimit, "no-rate-limit", false, "Disable per-client rate limiting")

	rest, err := parseArgs(fs, args)
	if err != nil {
		return err
	}
	if len(rest) > 0 {
		return usagef("unexpected argument %q", rest[0])
	}
	if c.port < 0 || c.port > 65535 {
		return usagef("invalid port %d", c.port)
	}
	return nil
}

// Run starts the API server and blocks until SIGINT/SIGTERM
func (c *ServeCommand) Run(ctx context.Context) error {
	log := logging.Component("serve")

	// Docker is optional: without it /api/projects answers 503
	deps, cleanup, err := initServices(bootstrap.InitOptions{UseDocker: true})
	if err != nil {
		return err
	}
	defer cleanup()

	port := c.port
	if port == 0 {
		port = deps.Config.APIPort
	}

	cfg := api.Config{
		Port:             port,
		Storage:          deps.Storage,
		RecordHistory:    deps.Config.HistoryEnabled(),
		Events:           deps.EventBus,
		MaxProjects:      deps.Config.MaxProjects,
		DisableRateLimit: c.disableRateLimit,
	}
	if deps.Docker != nil {
		cfg.Docker = docker.NewGuardedLister(deps.Docker, docker.GuardOptions{})
	}
	server := api.NewServer(cfg)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 1)
	go func() {
		errChan <- server.Start()
	}()

	log.Info("API server running on http://localhost:%d", port)
	log.Info("History: %v, Docker: %v", deps.Storage != nil, deps.Docker != nil)

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		log.Info("Received shutdown signal")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), api.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	log.Info("API server stopped")
	return nil
}
