package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cheapcharge/cheapcharge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileProviderEmptyState(t *testing.T) {
	f := NewFileProvider(t.TempDir())
	ctx := context.Background()

	settings, version, err := f.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.Settings{}, settings)
	assert.Equal(t, 0, version)

	blocks, err := f.GetPriceBlocks(ctx)
	require.NoError(t, err)
	assert.Empty(t, blocks)

	state, err := f.GetControlState(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.ChargingControlState{}, state)

	history, err := f.GetDecisionHistory(ctx, time.Time{}, time.Now())
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFileProviderSettingsRoundTrip(t *testing.T) {
	f := NewFileProvider(t.TempDir())
	ctx := context.Background()

	in := types.Settings{
		LowBatteryThreshold:    20,
		EnableLowPriceCharging: true,
		LowPriceBlocksCount:    8,
		Timezone:               "Europe/Berlin",
	}
	require.NoError(t, f.SetSettings(ctx, in, types.CurrentSettingsVersion))

	out, version, err := f.GetSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
	assert.Equal(t, types.CurrentSettingsVersion, version)
}

func TestFileProviderPriceBlocksRoundTrip(t *testing.T) {
	dir := t.TempDir()
	f := NewFileProvider(dir)
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).UnixMilli()
	in := map[int64]types.PriceBlock{
		start: {Start: start, End: start + types.BlockDuration.Milliseconds(), Price: 0.21},
	}
	require.NoError(t, f.SetPriceBlocks(ctx, in))

	out, err := f.GetPriceBlocks(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	// persisted format keys the map by the start timestamp as a string
	raw, err := os.ReadFile(filepath.Join(dir, blocksFile))
	require.NoError(t, err)
	var onDisk map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Contains(t, onDisk, "1748736000000")
}

func TestFileProviderIgnoresUnknownFields(t *testing.T) {
	dir := t.TempDir()
	f := NewFileProvider(dir)
	ctx := context.Background()

	// a newer writer may add fields; loading must not fail
	raw := `{"1748736000000":{"start":1748736000000,"end":1748736900000,"price":0.2,"currency":"EUR"}}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, blocksFile), []byte(raw), 0o644))

	blocks, err := f.GetPriceBlocks(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 1)
	assert.Equal(t, 0.2, blocks[1748736000000].Price)
}

func TestFileProviderControlStateRoundTrip(t *testing.T) {
	f := NewFileProvider(t.TempDir())
	ctx := context.Background()

	in := types.ChargingControlState{
		LowPriceEnabled:         true,
		ManualOverrideTimestamp: 1234567890,
	}
	require.NoError(t, f.SetControlState(ctx, in))

	out, err := f.GetControlState(ctx)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestFileProviderDecisionHistory(t *testing.T) {
	f := NewFileProvider(t.TempDir())
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.InsertDecision(ctx, types.Decision{
			Timestamp: base.Add(time.Duration(i) * time.Hour),
			Verdict:   types.VerdictTurnOn,
			Reason:    types.ReasonInCheapBlock,
		}))
	}

	// half-open range [base+1h, base+3h)
	history, err := f.GetDecisionHistory(ctx, base.Add(time.Hour), base.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, base.Add(time.Hour), history[0].Timestamp)
	assert.Equal(t, types.ReasonInCheapBlock, history[0].Reason)
}
