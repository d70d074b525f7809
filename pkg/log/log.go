// Package log carries a *slog.Logger through contexts so cycle-scoped
// attributes stay attached to every line logged downstream.
package log

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

var (
	fallbackLevel slog.LevelVar
	fallback      = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     &fallbackLevel,
	}))
)

// Ctx returns the logger carried by ctx, or the package fallback when none
// was attached.
func Ctx(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}

// With attaches logger to the returned context.
func With(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// SetDefaultLogLevel adjusts the fallback logger's level.
func SetDefaultLogLevel(level slog.Level) {
	fallbackLevel.Set(level)
}
