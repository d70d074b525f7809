// Command seed fills storage with settings and a synthetic day of price
// blocks so the status API can be exercised without a real price provider.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/pricecache"
	"github.com/cheapcharge/cheapcharge/pkg/storage"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/levenlabs/go-lflag"
)

func main() {
	s := storage.Configured()
	lflag.Configure()

	ctx := context.Background()

	log.Ctx(ctx).InfoContext(ctx, "seeding mock data")

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	settings := types.Settings{
		LowBatteryThreshold:    20,
		EnableLowPriceCharging: true,
		LowPriceBlocksCount:    8,
		Timezone:               "UTC",
	}
	if err := s.SetSettings(ctx, settings, types.CurrentSettingsVersion); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to seed settings", "error", err)
		os.Exit(1)
	}

	// one block per 15 minutes from midnight today through tomorrow,
	// shaped like a typical spot price day
	now := time.Now().UTC()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 2)

	cache := pricecache.Cache{}
	var entries []types.PriceEntry
	for t := start; t.Before(end); t = t.Add(types.BlockDuration) {
		hour := t.Hour()

		basePrice := 0.08
		if hour >= 6 && hour < 9 {
			basePrice = 0.22 // morning peak
		} else if hour >= 10 && hour < 15 {
			basePrice = 0.05 // mid-day lull
		} else if hour >= 17 && hour < 21 {
			basePrice = 0.35 // evening peak
		} else if hour >= 21 {
			basePrice = 0.10 // night
		}
		// jitter
		basePrice += (rng.Float64() * 0.02) - 0.01

		entries = append(entries, types.PriceEntry{
			Date:  t.Format(time.RFC3339),
			Price: basePrice,
		})
	}

	stats := cache.Merge(ctx, entries)
	pricecache.Save(ctx, s, cache)

	// a couple of past decisions so the history endpoint has content
	price := 0.05
	decisions := []types.Decision{
		{
			Timestamp:   now.Add(-3 * time.Hour),
			Verdict:     types.VerdictTurnOn,
			Reason:      types.ReasonInCheapBlock,
			Description: "Mock: entered cheap block",
			BlockPrice:  &price,
		},
		{
			Timestamp:   now.Add(-1 * time.Hour),
			Verdict:     types.VerdictTurnOff,
			Reason:      types.ReasonLeftCheapBlock,
			Description: "Mock: left cheap block",
		},
	}
	for _, d := range decisions {
		if err := s.InsertDecision(ctx, d); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed decision", "error", err)
			os.Exit(1)
		}
	}

	fmt.Printf("Seeded %d price blocks from %s and %d decisions\n",
		stats.New, start.Format(time.RFC3339), len(decisions))

	log.Ctx(ctx).InfoContext(ctx, "seeded mock data successfully")
}
