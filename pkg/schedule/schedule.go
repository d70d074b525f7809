// Package schedule selects the cheapest price blocks out of the cache.
//
// Two independent policies exist and are deliberately kept separate:
//
//   - CheapestWindow finds the contiguous run of blocks with the minimal
//     total price across today and tomorrow. It produces the stable,
//     non-flapping schedule shown to the user.
//   - CheapestUpcoming picks the individually cheapest upcoming blocks from
//     today, falling back to tomorrow only once today is exhausted. This is
//     the policy the on/off verdict is checked against.
package schedule

import (
	"math"
	"sort"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/pricecache"
	"github.com/cheapcharge/cheapcharge/pkg/timeutil"
	"github.com/cheapcharge/cheapcharge/pkg/types"
)

// CheapestWindow returns the count contiguous blocks with the smallest price
// sum among the cache's blocks for today and tomorrow (UTC calendar dates
// relative to now). If fewer than count blocks exist, all of them are
// returned. The result is sorted by start. Ties keep the earliest window.
func CheapestWindow(cache pricecache.Cache, count int, now time.Time) []types.PriceBlock {
	if count <= 0 || len(cache) == 0 {
		return nil
	}

	today := now.UTC()
	tomorrow := today.AddDate(0, 0, 1)
	blocks := collect(cache, func(start time.Time) bool {
		return timeutil.SameUTCDate(start, today) || timeutil.SameUTCDate(start, tomorrow)
	})
	if len(blocks) == 0 {
		return nil
	}
	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Start < blocks[j].Start
	})

	if count >= len(blocks) {
		return blocks
	}

	// Incremental sliding sum over windows of length count. The sum only
	// updates on strict improvement, so the earliest minimal window wins.
	// Infinite prices break incremental subtraction (Inf - Inf is NaN), so
	// the sum is recomputed whenever a non-finite value enters or leaves the
	// window; with finite data this stays a single pass.
	sum := 0.0
	for _, b := range blocks[:count] {
		sum += b.Price
	}
	bestSum := sum
	bestIdx := 0
	for i := count; i < len(blocks); i++ {
		in, out := blocks[i].Price, blocks[i-count].Price
		if isFinite(in) && isFinite(out) && isFinite(sum) {
			sum += in - out
		} else {
			sum = 0
			for _, b := range blocks[i-count+1 : i+1] {
				sum += b.Price
			}
		}
		if sum < bestSum {
			bestSum = sum
			bestIdx = i - count + 1
		}
	}

	return blocks[bestIdx : bestIdx+count]
}

// CheapestUpcoming returns the count individually cheapest blocks from today
// that have not yet ended. If and only if none remain, it falls back to the
// cheapest upcoming blocks from tomorrow. The result is sorted by start.
func CheapestUpcoming(cache pricecache.Cache, count int, now time.Time) []types.PriceBlock {
	if count <= 0 || len(cache) == 0 {
		return nil
	}

	nowMS := now.UnixMilli()
	today := now.UTC()

	blocks := cheapestUpcomingOn(cache, count, today, nowMS)
	if len(blocks) == 0 {
		blocks = cheapestUpcomingOn(cache, count, today.AddDate(0, 0, 1), nowMS)
	}

	sort.Slice(blocks, func(i, j int) bool {
		return blocks[i].Start < blocks[j].Start
	})
	return blocks
}

// cheapestUpcomingOn picks the cheapest count blocks on the given UTC date
// whose interval has not yet ended. A block in progress still counts: it
// only stops matching once now reaches its end.
func cheapestUpcomingOn(cache pricecache.Cache, count int, day time.Time, nowMS int64) []types.PriceBlock {
	blocks := collect(cache, func(start time.Time) bool {
		return timeutil.SameUTCDate(start, day)
	})

	// cheapest first; more negative prices are cheaper and sort first
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].Price != blocks[j].Price {
			return blocks[i].Price < blocks[j].Price
		}
		return blocks[i].Start < blocks[j].Start
	})
	if count < len(blocks) {
		blocks = blocks[:count]
	}

	upcoming := blocks[:0]
	for _, b := range blocks {
		if b.End > nowMS {
			upcoming = append(upcoming, b)
		}
	}
	return upcoming
}

// collect filters the cache down to well-formed blocks matching the date
// predicate. Blocks with NaN prices or nonsense timestamps are dropped so a
// corrupt cache entry can never poison the selection.
func collect(cache pricecache.Cache, match func(start time.Time) bool) []types.PriceBlock {
	blocks := make([]types.PriceBlock, 0, len(cache))
	for _, b := range cache {
		if math.IsNaN(b.Price) {
			continue
		}
		if b.Start <= 0 || b.End <= b.Start {
			continue
		}
		if !match(b.StartTime()) {
			continue
		}
		blocks = append(blocks, b)
	}
	return blocks
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
