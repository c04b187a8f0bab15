// Package ports declares the small set of interfaces the orchestrator core
// depends on but does not implement itself, chiefly structured logging.
// The concrete adapter lives under internal/logging.
package ports

import (
	"context"

	"github.com/google/uuid"
)

// Logger is the orchestrator's structured logging contract. All log calls
// take key/value pairs, must be safe for concurrent use, and should
// automatically enrich entries with a correlation ID when present in
// context. Common fields: correlation_id, component (registry, graph,
// engine, config), step, duration_ms.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...interface{})
	Info(ctx context.Context, msg string, fields ...interface{})
	Warn(ctx context.Context, msg string, fields ...interface{})
	Error(ctx context.Context, msg string, fields ...interface{})
	With(fields ...interface{}) Logger
}

type correlationIDKey struct{}

// WithCorrelationID attaches a correlation ID to the context so every layer
// below the CLI entry point can emit correlated logs.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, id)
}

// GetCorrelationID extracts a correlation ID from context, returning "" when
// none has been set.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if id, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return id
	}
	return ""
}

// GenerateCorrelationID produces a new UUIDv4 string. The CLI entry point
// calls this once per command invocation.
func GenerateCorrelationID() string {
	return uuid.NewString()
}
