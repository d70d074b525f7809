package pricesource

import (
	"context"
	"log/slog"

	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/metrics"
	"github.com/cheapcharge/cheapcharge/pkg/types"
)

// Fallback wraps a primary and an optional secondary provider. The secondary
// only serves the cycle on which the primary failed; it never replaces the
// primary, the next cycle tries the primary again.
type Fallback struct {
	Primary   Provider
	Secondary Provider
}

// Validate ensures the configuration is valid.
func (f *Fallback) Validate() error {
	if v, ok := f.Primary.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	if f.Secondary != nil {
		if v, ok := f.Secondary.(interface{ Validate() error }); ok {
			if err := v.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Name implements Provider.
func (f *Fallback) Name() string { return f.Primary.Name() }

// Fetch implements Provider.
func (f *Fallback) Fetch(ctx context.Context) ([]types.PriceEntry, error) {
	metrics.PriceFetchesTotal.WithLabelValues(f.Primary.Name()).Inc()
	entries, err := f.Primary.Fetch(ctx)
	if err == nil {
		return entries, nil
	}
	metrics.PriceFetchErrors.WithLabelValues(f.Primary.Name()).Inc()

	if f.Secondary == nil {
		return nil, err
	}

	log.Ctx(ctx).WarnContext(ctx, "primary price provider failed, trying fallback",
		slog.String("primary", f.Primary.Name()),
		slog.String("fallback", f.Secondary.Name()),
		slog.Any("error", err),
	)
	metrics.PriceFallbacksTotal.Inc()
	metrics.PriceFetchesTotal.WithLabelValues(f.Secondary.Name()).Inc()

	entries, err = f.Secondary.Fetch(ctx)
	if err != nil {
		metrics.PriceFetchErrors.WithLabelValues(f.Secondary.Name()).Inc()
		return nil, err
	}
	return entries, nil
}
