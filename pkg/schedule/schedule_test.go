package schedule

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/pricecache"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildCache creates consecutive 15-minute blocks starting at start with the
// given prices.
func buildCache(start time.Time, prices ...float64) pricecache.Cache {
	c := pricecache.Cache{}
	step := types.BlockDuration.Milliseconds()
	ms := start.UnixMilli()
	for _, p := range prices {
		c[ms] = types.PriceBlock{Start: ms, End: ms + step, Price: p}
		ms += step
	}
	return c
}

func TestCheapestWindow(t *testing.T) {
	midnight := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := midnight.Add(5 * time.Minute)

	t.Run("minimal contiguous pair", func(t *testing.T) {
		// blocks priced 0.30, 0.10, 0.20, 0.40 at 15-min steps from 00:00
		cache := buildCache(midnight, 0.30, 0.10, 0.20, 0.40)

		got := CheapestWindow(cache, 2, now)
		require.Len(t, got, 2)
		// indices 1 and 2: 0.10+0.20 is the minimal contiguous sum
		assert.Equal(t, midnight.Add(15*time.Minute).UnixMilli(), got[0].Start)
		assert.Equal(t, midnight.Add(30*time.Minute).UnixMilli(), got[1].Start)
		assert.Equal(t, 0.10, got[0].Price)
		assert.Equal(t, 0.20, got[1].Price)
	})

	t.Run("count at least block count returns everything sorted", func(t *testing.T) {
		cache := buildCache(midnight, 0.4, 0.1, 0.3)
		got := CheapestWindow(cache, 10, now)
		require.Len(t, got, 3)
		for i := 1; i < len(got); i++ {
			assert.Less(t, got[i-1].Start, got[i].Start)
		}
	})

	t.Run("empty cache", func(t *testing.T) {
		assert.Empty(t, CheapestWindow(pricecache.Cache{}, 4, now))
	})

	t.Run("non-positive count", func(t *testing.T) {
		cache := buildCache(midnight, 0.1, 0.2)
		assert.Empty(t, CheapestWindow(cache, 0, now))
		assert.Empty(t, CheapestWindow(cache, -3, now))
	})

	t.Run("ignores blocks outside today and tomorrow", func(t *testing.T) {
		cache := buildCache(midnight, 0.3, 0.2)
		// a dirt-cheap block two days out must not be selected
		farStart := midnight.AddDate(0, 0, 2).UnixMilli()
		cache[farStart] = types.PriceBlock{Start: farStart, End: farStart + types.BlockDuration.Milliseconds(), Price: -1}

		got := CheapestWindow(cache, 1, now)
		require.Len(t, got, 1)
		assert.Equal(t, 0.2, got[0].Price)
	})

	t.Run("month boundary does not alias day numbers", func(t *testing.T) {
		// Dec 31 and Jan 31 share a day-of-month; only Dec 31 is "today"
		dec31 := time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)
		jan31 := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
		cache := buildCache(dec31, 0.5)
		janStart := jan31.UnixMilli()
		cache[janStart] = types.PriceBlock{Start: janStart, End: janStart + types.BlockDuration.Milliseconds(), Price: 0.01}

		got := CheapestWindow(cache, 1, dec31.Add(time.Hour))
		require.Len(t, got, 1)
		assert.Equal(t, dec31.UnixMilli(), got[0].Start)
	})

	t.Run("NaN prices and invalid timestamps are filtered", func(t *testing.T) {
		cache := buildCache(midnight, 0.3, 0.2)
		nanStart := midnight.Add(30 * time.Minute).UnixMilli()
		cache[nanStart] = types.PriceBlock{Start: nanStart, End: nanStart + types.BlockDuration.Milliseconds(), Price: math.NaN()}
		cache[-5] = types.PriceBlock{Start: -5, End: -5, Price: 0.01}

		got := CheapestWindow(cache, 2, now)
		require.Len(t, got, 2)
		assert.Equal(t, 0.3, got[0].Price)
		assert.Equal(t, 0.2, got[1].Price)
	})

	t.Run("negative and infinite prices sort correctly", func(t *testing.T) {
		cache := buildCache(midnight, math.Inf(1), -0.05, -0.02, math.MaxFloat64)
		got := CheapestWindow(cache, 2, now)
		require.Len(t, got, 2)
		assert.Equal(t, -0.05, got[0].Price)
		assert.Equal(t, -0.02, got[1].Price)
	})

	t.Run("matches brute force on random caches", func(t *testing.T) {
		rng := rand.New(rand.NewSource(42))
		step := types.BlockDuration.Milliseconds()
		for trial := 0; trial < 50; trial++ {
			n := 2 + rng.Intn(30)
			prices := make([]float64, n)
			for i := range prices {
				prices[i] = math.Round(rng.Float64()*100) / 100
			}
			cache := buildCache(midnight, prices...)
			count := 1 + rng.Intn(n)

			got := CheapestWindow(cache, count, now)
			require.Len(t, got, count)

			gotSum := 0.0
			for _, b := range got {
				gotSum += b.Price
			}
			for i := 0; i+count <= n; i++ {
				sum := 0.0
				for j := i; j < i+count; j++ {
					sum += prices[j]
				}
				assert.LessOrEqual(t, gotSum, sum, "window starting at %d beats the selection", i)
			}
			// windows are contiguous
			for i := 1; i < len(got); i++ {
				assert.Equal(t, got[i-1].Start+step, got[i].Start)
			}
		}
	})
}

func TestCheapestUpcoming(t *testing.T) {
	midnight := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("cheapest upcoming from today", func(t *testing.T) {
		cache := buildCache(midnight, 0.30, 0.10, 0.20, 0.40)
		now := midnight.Add(5 * time.Minute)

		got := CheapestUpcoming(cache, 2, now)
		require.Len(t, got, 2)
		// the two cheapest individual blocks, time-sorted
		assert.Equal(t, 0.10, got[0].Price)
		assert.Equal(t, 0.20, got[1].Price)
	})

	t.Run("a block in progress still counts", func(t *testing.T) {
		cache := buildCache(midnight, 0.10, 0.50)
		// one minute into the cheap block
		now := midnight.Add(time.Minute)

		got := CheapestUpcoming(cache, 1, now)
		require.Len(t, got, 1)
		assert.Equal(t, midnight.UnixMilli(), got[0].Start)
		assert.True(t, got[0].Contains(now.UnixMilli()))
	})

	t.Run("a block that just ended no longer counts", func(t *testing.T) {
		cache := buildCache(midnight, 0.10)
		now := midnight.Add(15 * time.Minute)

		got := CheapestUpcoming(cache, 1, now)
		assert.Empty(t, got)
	})

	t.Run("falls back to tomorrow only when today is exhausted", func(t *testing.T) {
		cache := buildCache(midnight, 0.10, 0.20)
		tomorrow := midnight.AddDate(0, 0, 1)
		tomorrowStart := tomorrow.UnixMilli()
		cache[tomorrowStart] = types.PriceBlock{Start: tomorrowStart, End: tomorrowStart + types.BlockDuration.Milliseconds(), Price: 0.01}

		// today still has upcoming blocks: no fallback even though tomorrow
		// is cheaper
		now := midnight.Add(5 * time.Minute)
		got := CheapestUpcoming(cache, 2, now)
		require.Len(t, got, 2)
		assert.Equal(t, 0.10, got[0].Price)

		// today exhausted: tomorrow's blocks are used
		now = midnight.Add(23 * time.Hour)
		got = CheapestUpcoming(cache, 2, now)
		require.Len(t, got, 1)
		assert.Equal(t, tomorrowStart, got[0].Start)
	})

	t.Run("empty cache and non-positive count", func(t *testing.T) {
		assert.Empty(t, CheapestUpcoming(pricecache.Cache{}, 5, midnight))
		cache := buildCache(midnight, 0.1)
		assert.Empty(t, CheapestUpcoming(cache, 0, midnight))
	})
}
