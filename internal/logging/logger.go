// Package logging provides leveled, structured logging with correlation IDs.
// Output is human-readable by default and JSON when LOG_FORMAT=json.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents a log level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = [...]string{"DEBUG", "INFO", "WARN", "ERROR"}

func (l Level) String() string {
	if l < LevelDebug || l > LevelError {
		return "UNKNOWN"
	}
	return levelNames[l]
}

// ParseLevel parses a log level string. Unknown values map to INFO.
func ParseLevel(s string) Level {
	name := strings.ToUpper(strings.TrimSpace(s))
	if name == "WARNING" {
		return LevelWarn
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i)
		}
	}
	return LevelInfo
}

// Fields are key/value pairs attached to log entries.
type Fields map[string]interface{}

func (f Fields) merge(other Fields) Fields {
	out := make(Fields, len(f)+len(other))
	for k, v := range f {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Options configures a logger. Empty values keep the current setting.
type Options struct {
	Level  string
	Format string // "json" or "text"
	Output io.Writer
}

// sink is the destination shared by a logger and everything derived from it.
type sink struct {
	mu     sync.Mutex
	out    io.Writer
	level  Level
	format formatter
}

// Logger is a structured logger with level support. Loggers derived with
// WithField or WithComponent share their parent's sink, so Apply on the
// parent also reconfigures them.
type Logger struct {
	sink   *sink
	fields Fields
}

type contextKey string

const (
	correlationIDKey contextKey = "correlation_id"
	fieldsKey        contextKey = "log_fields"
)

var (
	defaultMu     sync.RWMutex
	defaultLogger = New()
)

// New creates a logger configured from LOG_LEVEL and LOG_FORMAT.
func New() *Logger {
	return &Logger{
		sink: &sink{
			out:    os.Stderr,
			level:  ParseLevel(os.Getenv("LOG_LEVEL")),
			format: formatterFor(os.Getenv("LOG_FORMAT")),
		},
	}
}

// Apply updates the logger from opts.
func (l *Logger) Apply(opts Options) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if opts.Level != "" {
		l.sink.level = ParseLevel(opts.Level)
	}
	if opts.Format != "" {
		l.sink.format = formatterFor(opts.Format)
	}
	if opts.Output != nil {
		l.sink.out = opts.Output
	}
}

// SetOutput sets the output destination for the logger.
func (l *Logger) SetOutput(w io.Writer) {
	l.Apply(Options{Output: w})
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.sink.mu.Lock()
	l.sink.level = level
	l.sink.mu.Unlock()
}

// SetJSON switches between JSON and text output.
func (l *Logger) SetJSON(enabled bool) {
	format := "text"
	if enabled {
		format = "json"
	}
	l.Apply(Options{Format: format})
}

// Enabled reports whether messages at level would be written.
func (l *Logger) Enabled(level Level) bool {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	return level >= l.sink.level
}

// WithField returns a new logger with the given field added.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithComponent tags every entry with component=name.
func (l *Logger) WithComponent(name string) *Logger {
	return l.WithField("component", name)
}

// WithFields returns a new logger with the given fields added.
func (l *Logger) WithFields(fields Fields) *Logger {
	return &Logger{sink: l.sink, fields: l.fields.merge(fields)}
}

func (l *Logger) log(ctx context.Context, level Level, format string, args ...interface{}) {
	if !l.Enabled(level) {
		return
	}

	rec := record{
		time:   time.Now(),
		level:  level,
		msg:    message(format, args),
		fields: l.fields,
	}
	if ctx != nil {
		rec.correlationID = GetCorrelationID(ctx)
		// Context fields override logger fields
		if ctxFields, ok := ctx.Value(fieldsKey).(Fields); ok {
			rec.fields = rec.fields.merge(ctxFields)
		}
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.format.write(l.sink.out, rec)
}

// Debug logs a debug message.
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(context.Background(), LevelDebug, format, args...)
}

// Info logs an info message.
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(context.Background(), LevelInfo, format, args...)
}

// Warn logs a warning message.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(context.Background(), LevelWarn, format, args...)
}

// Error logs an error message.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(context.Background(), LevelError, format, args...)
}

func (l *Logger) DebugContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelDebug, format, args...)
}

func (l *Logger) InfoContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelInfo, format, args...)
}

func (l *Logger) WarnContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelWarn, format, args...)
}

func (l *Logger) ErrorContext(ctx context.Context, format string, args ...interface{}) {
	l.log(ctx, LevelError, format, args...)
}

// WithCorrelationID returns a new context with the correlation ID set.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// GetCorrelationID retrieves the correlation ID from context.
func GetCorrelationID(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDKey).(string)
	return id
}

// WithLogFields returns a context carrying fields for every *Context log call.
func WithLogFields(ctx context.Context, fields Fields) context.Context {
	existing, _ := ctx.Value(fieldsKey).(Fields)
	return context.WithValue(ctx, fieldsKey, existing.merge(fields))
}

// Default returns the default logger.
func Default() *Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// SetDefault replaces the default logger.
func SetDefault(l *Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// Configure applies opts to the default logger.
func Configure(opts Options) {
	Default().Apply(opts)
}

// Component returns the default logger tagged with component=name.
func Component(name string) *Logger {
	return Default().WithComponent(name)
}

func Debug(format string, args ...interface{}) { Default().Debug(format, args...) }
func Info(format string, args ...interface{})  { Default().Info(format, args...) }
func Warn(format string, args ...interface{})  { Default().Warn(format, args...) }
func Error(format string, args ...interface{}) { Default().Error(format, args...) }

func InfoContext(ctx context.Context, format string, args ...interface{}) {
	Default().InfoContext(ctx, format, args...)
}

func WarnContext(ctx context.Context, format string, args ...interface{}) {
	Default().WarnContext(ctx, format, args...)
}

func ErrorContext(ctx context.Context, format string, args ...interface{}) {
	Default().ErrorContext(ctx, format, args...)
}
