package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chis/stackcheck/internal/logging"
)

// contextKey is used for storing values in request context.
type contextKey string

const correlationIDKey contextKey = "correlation_id"

// CorrelationIDHeader carries the request correlation ID in both directions.
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationIDMiddleware adds a correlation ID to each request.
// The ID is generated if not present in the X-Correlation-ID header.
func CorrelationIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get(CorrelationIDHeader)
		if correlationID == "" {
			correlationID = uuid.NewString()
		}

		w.Header().Set(CorrelationIDHeader, correlationID)

		ctx := context.WithValue(r.Context(), correlationIDKey, correlationID)
		ctx = logging.WithCorrelationID(ctx, correlationID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestLoggingMiddleware logs each request once it completes.
func RequestLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		duration := time.Since(start)
		logger := logging.Component("http").WithFields(map[string]interface{}{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"bytes":       wrapped.written,
			"duration_ms": duration.Milliseconds(),
			"client_ip":   getClientIP(r),
		})

		ctx := r.Context()
		switch {
		case wrapped.statusCode >= 500:
			logger.ErrorContext(ctx, "Request failed: %s %s - %d", r.Method, r.URL.Path, wrapped.statusCode)
		case wrapped.statusCode >= 400:
			logger.WarnContext(ctx, "Request error: %s %s - %d", r.Method, r.URL.Path, wrapped.statusCode)
		case isHighFrequencyEndpoint(r.URL.Path):
			logger.DebugContext(ctx, "Request completed: %s %s - %d", r.Method, r.URL.Path, wrapped.statusCode)
		default:
			logger.InfoContext(ctx, "Request completed: %s %s - %d", r.Method, r.URL.Path, wrapped.statusCode)
		}
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code and size.
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	written     int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.written += n
	return n, err
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		rw.wroteHeader = true
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// isHighFrequencyEndpoint returns true for polled or long-lived endpoints that log at debug level.
func isHighFrequencyEndpoint(path string) bool {
	return path == "/api/health" || path == "/api/events"
}

// GetCorrelationID retrieves the correlation ID from a request context.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationIDKey).(string); ok {
		return id
	}
	return ""
}

// ChainMiddleware chains multiple middleware functions together.
// Middleware is applied in the order provided (first middleware wraps outermost).
func ChainMiddleware(h http.Handler, middleware ...func(http.Handler) http.Handler) http.Handler {
	for i := len(middleware) - 1; i >= 0; i-- {
		h = middleware[i](h)
	}
	return h
}
