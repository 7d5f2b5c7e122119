// Package observability provides logging, metrics, and tracing.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// Logger wraps slog.Logger to provide specialized logging methods.
type Logger struct {
	*slog.Logger
}

// GlobalLogger is the default logger instance for the application.
var GlobalLogger *Logger

// LogContextKey is a type for context keys used by the logging package.
type LogContextKey string

// Context keys for logging
const (
	CorrelationID LogContextKey = "correlation_id"
	UserID        LogContextKey = "user_id"
	TraceID       LogContextKey = "trace_id"
)

// ctxHandler is a slog.Handler that adds context values to the log record.
type ctxHandler struct {
	slog.Handler
}

// Handle adds context values to the record before passing it to the underlying handler.
func (h *ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if id, ok := ctx.Value(CorrelationID).(string); ok && id != "" {
		r.AddAttrs(slog.String("correlation_id", id))
	}
	if uid, ok := ctx.Value(UserID).(string); ok && uid != "" {
		r.AddAttrs(slog.String("user_id", uid))
	}
	if tid, ok := ctx.Value(TraceID).(string); ok && tid != "" {
		r.AddAttrs(slog.String("trace_id", tid))
	}
	return h.Handler.Handle(ctx, r)
}

func (h *ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ctxHandler{h.Handler.WithAttrs(attrs)}
}

func (h *ctxHandler) WithGroup(name string) slog.Handler {
	return &ctxHandler{h.Handler.WithGroup(name)}
}

func init() {
	GlobalLogger = NewLogger(os.Getenv("APP_ENV"), slog.LevelInfo)
}

// NewLogger builds a context-aware logger: JSON in production, text elsewhere.
func NewLogger(env string, level slog.Level) *Logger {
	return NewLoggerTo(os.Stdout, env, level)
}

// NewLoggerTo is NewLogger writing to w.
func NewLoggerTo(w io.Writer, env string, level slog.Level) *Logger {
	var handler slog.Handler
	if env == "production" || env == "prod" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return &Logger{Logger: slog.New(&ctxHandler{handler})}
}

// SetGlobalLogger replaces GlobalLogger. Loggers created afterwards pick it up.
func SetGlobalLogger(l *Logger) {
	if l != nil {
		GlobalLogger = l
	}
}

// GenerateCorrelationID creates a new unique correlation ID.
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// WithCorrelationID returns a new context with the given correlation ID.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationID, id)
}

// WithUserID returns a new context carrying the viewer's id for log records.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserID, userID)
}

// ExtractCorrelationID retrieves the correlation ID from the context.
func ExtractCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(CorrelationID).(string); ok {
		return id
	}
	return ""
}

// ClientLogger provides structured logging for one client component
// (transport, normalizer, feed, mutations, achievements).
type ClientLogger struct {
	component string
}

// NewClientLogger creates a new ClientLogger for the given component.
func NewClientLogger(component string) *ClientLogger {
	return &ClientLogger{component: component}
}

func (l *ClientLogger) attrs(extra map[string]interface{}) []any {
	attrs := []any{slog.String("component", l.component)}
	for k, v := range extra {
		attrs = append(attrs, slog.Any(k, v))
	}
	return attrs
}

// Debug logs a debug-level component event.
func (l *ClientLogger) Debug(ctx context.Context, msg string, fields map[string]interface{}) {
	GlobalLogger.DebugContext(ctx, msg, l.attrs(fields)...)
}

// Info logs an info-level component event.
func (l *ClientLogger) Info(ctx context.Context, msg string, fields map[string]interface{}) {
	GlobalLogger.InfoContext(ctx, msg, l.attrs(fields)...)
}

// Warn logs a warning-level component event.
func (l *ClientLogger) Warn(ctx context.Context, msg string, fields map[string]interface{}) {
	GlobalLogger.WarnContext(ctx, msg, l.attrs(fields)...)
}

// LogRequest logs a completed HTTP request.
func (l *ClientLogger) LogRequest(ctx context.Context, method, path string, status int, fields map[string]interface{}) {
	attrs := l.attrs(fields)
	attrs = append(attrs,
		slog.String("method", method),
		slog.String("path", path),
		slog.Int("status", status),
	)
	GlobalLogger.DebugContext(ctx, "http request", attrs...)
}

// LogError logs a failed operation.
func (l *ClientLogger) LogError(ctx context.Context, err error, operation string, fields map[string]interface{}) {
	attrs := l.attrs(fields)
	attrs = append(attrs,
		slog.String("operation", operation),
		slog.String("error", err.Error()),
	)
	GlobalLogger.ErrorContext(ctx, "operation failed", attrs...)
}

// LogAsyncOperationStart logs the start of an asynchronous operation.
func LogAsyncOperationStart(ctx context.Context, operation string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "async_start"),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.DebugContext(ctx, "async operation started", attrs...)
}

// LogAsyncOperationEnd logs the completion of an asynchronous operation.
func LogAsyncOperationEnd(ctx context.Context, operation string, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "async_end"),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.DebugContext(ctx, "async operation completed", attrs...)
}

// LogAsyncOperationError logs an error in an asynchronous operation.
func LogAsyncOperationError(ctx context.Context, operation string, err error, fields map[string]interface{}) {
	attrs := []any{
		slog.String("operation", operation),
		slog.String("type", "async_error"),
		slog.String("error", err.Error()),
	}
	for k, v := range fields {
		attrs = append(attrs, slog.Any(k, v))
	}
	GlobalLogger.WarnContext(ctx, "async operation failed", attrs...)
}
