// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context and carries the
// scan tick ID through context.Context.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
)

type ctxKey string

const tickIDKey ctxKey = "tick_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	return InitWriter(os.Stdout, service, level)
}

// InitWriter is Init with an explicit destination.
func InitWriter(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	logger := slog.New(handler).With(
		slog.String("service", service),
	)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// ParseLevel maps LOG_LEVEL to a slog level. debug forces LevelDebug.
func ParseLevel(s string, debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewTickID returns a fresh correlation ID for one scan tick.
func NewTickID() string {
	return uuid.NewString()
}

// WithTickID stores a tick ID in the context for downstream propagation.
func WithTickID(ctx context.Context, tickID string) context.Context {
	return context.WithValue(ctx, tickIDKey, tickID)
}

// TickID extracts the tick ID from context. Returns "" if not set.
func TickID(ctx context.Context) string {
	if v, ok := ctx.Value(tickIDKey).(string); ok {
		return v
	}
	return ""
}

// Attrs returns slog attributes including the tick ID from context.
// Usage: slog.Info("msg", logger.Attrs(ctx)...)
func Attrs(ctx context.Context, args ...any) []any {
	tid := TickID(ctx)
	if tid == "" {
		return args
	}
	return append([]any{slog.String("tick_id", tid)}, args...)
}
