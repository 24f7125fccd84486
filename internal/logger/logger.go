package logger

import (
	"context"
	"log/slog"
	"os"
)

// Logger is the logging surface handlers and clients depend on.
type Logger interface {
	Info(ctx context.Context, msg string, attrs ...any)
	Warn(ctx context.Context, msg string, attrs ...any)
	Error(ctx context.Context, msg string, err error, attrs ...any)
	WithRequestID(requestID string) Logger
}

type structuredLogger struct {
	*slog.Logger
}

// New returns a JSON slog logger writing to stdout.
func New() Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	return &structuredLogger{Logger: slog.New(handler)}
}

func (l *structuredLogger) WithRequestID(requestID string) Logger {
	return &structuredLogger{Logger: l.Logger.With("request_id", requestID)}
}

func (l *structuredLogger) Info(ctx context.Context, msg string, attrs ...any) {
	l.Logger.InfoContext(ctx, msg, attrs...)
}

func (l *structuredLogger) Warn(ctx context.Context, msg string, attrs ...any) {
	l.Logger.WarnContext(ctx, msg, attrs...)
}

func (l *structuredLogger) Error(ctx context.Context, msg string, err error, attrs ...any) {
	all := append([]any{"error", err.Error()}, attrs...)
	l.Logger.ErrorContext(ctx, msg, all...)
}
