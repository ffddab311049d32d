package logger

import (
	"context"

	"go.uber.org/zap"
)

// loggerKey is the context key for request-scoped loggers.
type loggerKey struct{}

// ContextWithLogger returns a child context carrying the logger,
// typically one annotated with the request id.
func ContextWithLogger(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger attached to ctx. When none was
// attached it returns a no-op logger, so call sites never nil-check.
func FromContext(ctx context.Context) *zap.Logger {
	l, ok := ctx.Value(loggerKey{}).(*zap.Logger)
	if !ok || l == nil {
		return zap.NewNop()
	}
	return l
}
