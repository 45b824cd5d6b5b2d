package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// New returns the process logger. JSON on stdout, debug level outside staging/production.
func New(appEnv string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(appEnv) {
	case "local", "dev":
		level = slog.LevelDebug
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", "agent-console")
}

// Component tags a logger for a subsystem (upstream, cache, scheduler, ...).
func Component(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = slog.Default()
	}
	return l.With("component", name)
}

type ctxKey struct{}

// With stores a logger in context.
func With(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From gets a logger from context, falling back to slog.Default().
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}
	return slog.Default()
}
