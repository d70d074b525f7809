package pricesource

import (
	"context"

	"github.com/cheapcharge/cheapcharge/pkg/types"
)

// Provider defines the interface for fetching electricity market prices.
type Provider interface {
	// Fetch returns normalized price entries, one per 15-minute interval,
	// covering at least the remainder of today. Providers publish tomorrow's
	// prices around 13:00 UTC; entries for tomorrow are included when
	// available.
	Fetch(ctx context.Context) ([]types.PriceEntry, error)

	// Name returns the provider name used in logs and metrics.
	Name() string
}
