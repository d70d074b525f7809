// Package pricecache holds the persisted mapping from 15-minute interval
// start to price block. The cache is upsert-only: providers overwrite prices
// on key collision because the most recent fetch is authoritative.
package pricecache

import (
	"context"
	"log/slog"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/log"
	"github.com/cheapcharge/cheapcharge/pkg/storage"
	"github.com/cheapcharge/cheapcharge/pkg/types"
)

// Cache maps a block's start timestamp (ms since epoch) to the block.
// Iteration order is irrelevant; consumers re-sort by start.
type Cache map[int64]types.PriceBlock

// MergeStats reports what one merge did, for logging and metrics.
type MergeStats struct {
	New          int
	Updated      int
	PriceChanged int
	Skipped      int
}

// Load reads the persisted cache. It fails open: on any read error it logs
// and returns an empty cache so startup never blocks on storage.
func Load(ctx context.Context, db storage.Database) Cache {
	blocks, err := db.GetPriceBlocks(ctx)
	if err != nil {
		log.Ctx(ctx).WarnContext(ctx, "failed to load price cache, starting empty", slog.Any("error", err))
		return Cache{}
	}
	if blocks == nil {
		return Cache{}
	}
	return Cache(blocks)
}

// Merge upserts one normalized price entry per 15-minute interval. The block
// end is always derived as start plus the block duration. Entries whose date
// does not parse are skipped and counted, never fatal: one malformed entry
// must not discard the rest of a payload.
func (c Cache) Merge(ctx context.Context, entries []types.PriceEntry) MergeStats {
	var stats MergeStats
	for _, e := range entries {
		t, err := time.Parse(time.RFC3339, e.Date)
		if err != nil {
			log.Ctx(ctx).WarnContext(ctx, "skipping price entry with unparseable date",
				slog.String("date", e.Date), slog.Any("error", err))
			stats.Skipped++
			continue
		}
		start := t.UnixMilli()
		block := types.PriceBlock{
			Start: start,
			End:   start + types.BlockDuration.Milliseconds(),
			Price: e.Price,
		}
		if old, ok := c[start]; ok {
			stats.Updated++
			if old.Price != block.Price {
				stats.PriceChanged++
			}
		} else {
			stats.New++
		}
		c[start] = block
	}
	return stats
}

// Save persists the full cache. A persistence failure is logged and
// swallowed: it must not abort the decision cycle, the in-memory cache stays
// valid and the next cycle retries the write.
func Save(ctx context.Context, db storage.Database, c Cache) {
	if err := db.SetPriceBlocks(ctx, c); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to persist price cache", slog.Any("error", err))
	}
}
