// Package logctx carries the request- or event-scoped logger through a context.
package logctx

import (
	"context"

	"github.com/ThierryFotabong/feeya/internal/observability"
)

type loggerKey struct{}

func With(ctx context.Context, logger observability.Logger) context.Context {
	if ctx == nil || logger == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, logger)
}

// From returns nil when no logger was attached.
func From(ctx context.Context) observability.Logger {
	if ctx == nil {
		return nil
	}
	logger, _ := ctx.Value(loggerKey{}).(observability.Logger)
	return logger
}

func FromOr(ctx context.Context, fallback observability.Logger) observability.Logger {
	if logger := From(ctx); logger != nil {
		return logger
	}
	return fallback
}

// Enrich attaches fields to the scoped logger so every later entry in the request
// or event carries them. Without a scoped logger, fallback is enriched instead.
func Enrich(ctx context.Context, fallback observability.Logger, fields ...observability.Field) context.Context {
	if len(fields) == 0 {
		return ctx
	}
	base := FromOr(ctx, fallback)
	if base == nil {
		return ctx
	}
	return With(ctx, base.With(fields...))
}
