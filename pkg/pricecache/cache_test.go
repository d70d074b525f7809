package pricecache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/storage/storagemock"
	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func entryAt(t time.Time, price float64) types.PriceEntry {
	return types.PriceEntry{Date: t.UTC().Format(time.RFC3339), Price: price}
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("new blocks", func(t *testing.T) {
		c := Cache{}
		stats := c.Merge(ctx, []types.PriceEntry{
			entryAt(base, 0.30),
			entryAt(base.Add(15*time.Minute), 0.10),
		})
		assert.Equal(t, MergeStats{New: 2}, stats)
		require.Len(t, c, 2)

		block := c[base.UnixMilli()]
		assert.Equal(t, base.UnixMilli(), block.Start)
		assert.Equal(t, base.UnixMilli()+types.BlockDuration.Milliseconds(), block.End)
		assert.Equal(t, 0.30, block.Price)
	})

	t.Run("merge is idempotent", func(t *testing.T) {
		c := Cache{}
		entries := []types.PriceEntry{
			entryAt(base, 0.30),
			entryAt(base.Add(15*time.Minute), 0.10),
		}
		c.Merge(ctx, entries)
		before := make(Cache, len(c))
		for k, v := range c {
			before[k] = v
		}

		stats := c.Merge(ctx, entries)
		assert.Equal(t, MergeStats{Updated: 2}, stats)
		assert.Equal(t, before, c)
	})

	t.Run("last write wins on price change", func(t *testing.T) {
		c := Cache{}
		c.Merge(ctx, []types.PriceEntry{entryAt(base, 0.30)})
		stats := c.Merge(ctx, []types.PriceEntry{entryAt(base, 0.25)})
		assert.Equal(t, MergeStats{Updated: 1, PriceChanged: 1}, stats)
		assert.Equal(t, 0.25, c[base.UnixMilli()].Price)
	})

	t.Run("unparseable dates are skipped", func(t *testing.T) {
		c := Cache{}
		stats := c.Merge(ctx, []types.PriceEntry{
			{Date: "not a date", Price: 0.1},
			entryAt(base, 0.30),
		})
		assert.Equal(t, MergeStats{New: 1, Skipped: 1}, stats)
		assert.Len(t, c, 1)
	})
}

func TestLoadFailsOpen(t *testing.T) {
	ctx := context.Background()

	db := &storagemock.MockDatabase{}
	db.On("GetPriceBlocks", mock.Anything).Return(nil, errors.New("disk error"))

	c := Load(ctx, db)
	assert.NotNil(t, c)
	assert.Empty(t, c)
	db.AssertExpectations(t)
}

func TestLoadExisting(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	db := &storagemock.MockDatabase{}
	db.On("GetPriceBlocks", mock.Anything).Return(map[int64]types.PriceBlock{
		base: {Start: base, End: base + types.BlockDuration.Milliseconds(), Price: 0.2},
	}, nil)

	c := Load(ctx, db)
	require.Len(t, c, 1)
	assert.Equal(t, 0.2, c[base].Price)
}

func TestSaveSwallowsErrors(t *testing.T) {
	ctx := context.Background()

	db := &storagemock.MockDatabase{}
	db.On("SetPriceBlocks", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	// must not panic or propagate
	Save(ctx, db, Cache{})
	db.AssertExpectations(t)
}
