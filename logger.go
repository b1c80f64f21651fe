package plumb

import "context"

// Logger provides structured logging for evaluators and middleware.
type Logger interface {
	Debug(ctx context.Context, msg string, keysAndValues ...any)
	Info(ctx context.Context, msg string, keysAndValues ...any)
	Error(ctx context.Context, msg string, keysAndValues ...any)
}

// NopLogger discards all log output. It is the default logger for all
// evaluators.
type NopLogger struct{}

func (NopLogger) Debug(ctx context.Context, msg string, keysAndValues ...any) {}
func (NopLogger) Info(ctx context.Context, msg string, keysAndValues ...any)  {}
func (NopLogger) Error(ctx context.Context, msg string, keysAndValues ...any) {}
