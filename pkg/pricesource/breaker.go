package pricesource

import (
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/sony/gobreaker/v2"
)

// newBreaker returns the circuit breaker wrapping a provider's HTTP calls.
// After 3 consecutive failures the breaker opens and the provider fails fast
// for 5 minutes, which stops hammering a broken API every cycle while the
// fallback provider takes over.
func newBreaker(name string) *gobreaker.CircuitBreaker[[]types.PriceEntry] {
	return gobreaker.NewCircuitBreaker[[]types.PriceEntry](gobreaker.Settings{
		Name:    name,
		Timeout: 5 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
	})
}
