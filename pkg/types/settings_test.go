package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateSettings(t *testing.T) {
	t.Run("current version is untouched", func(t *testing.T) {
		s := Settings{LowBatteryThreshold: 30, LowPriceBlocksCount: 4, Timezone: "Europe/Berlin"}
		got, changed, err := MigrateSettings(s, CurrentSettingsVersion)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, s, got)
	})

	t.Run("version 0 fills every default", func(t *testing.T) {
		got, changed, err := MigrateSettings(Settings{}, 0)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 8, got.LowPriceBlocksCount)
		assert.Equal(t, "UTC", got.Timezone)
		// low-price charging stays opt-in
		assert.False(t, got.EnableLowPriceCharging)
	})

	t.Run("version 1 only gains the timezone", func(t *testing.T) {
		s := Settings{LowBatteryThreshold: 30, LowPriceBlocksCount: 12}
		got, changed, err := MigrateSettings(s, 1)
		require.NoError(t, err)
		assert.True(t, changed)
		assert.Equal(t, 12, got.LowPriceBlocksCount)
		assert.Equal(t, "UTC", got.Timezone)
		assert.Equal(t, 30.0, got.LowBatteryThreshold)
	})

	t.Run("user values survive migration", func(t *testing.T) {
		s := Settings{LowPriceBlocksCount: 4, Timezone: "Europe/Helsinki"}
		got, changed, err := MigrateSettings(s, 1)
		require.NoError(t, err)
		assert.False(t, changed)
		assert.Equal(t, "Europe/Helsinki", got.Timezone)
	})
}

func TestPriceBlockContains(t *testing.T) {
	b := PriceBlock{Start: 1000, End: 2000, Price: 0.1}
	assert.True(t, b.Contains(1000))
	assert.True(t, b.Contains(1999))
	assert.False(t, b.Contains(2000))
	assert.False(t, b.Contains(999))
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "turnOn", VerdictTurnOn.String())
	assert.Equal(t, "turnOff", VerdictTurnOff.String())
	assert.Equal(t, "noChange", VerdictNoChange.String())
}
