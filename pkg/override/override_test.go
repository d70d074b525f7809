package override

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsActive(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	dur := Duration.Milliseconds()

	t.Run("unset timestamp is never active", func(t *testing.T) {
		assert.False(t, IsActive(0, ts))
	})

	t.Run("active right after the action", func(t *testing.T) {
		assert.True(t, IsActive(ts, ts))
		assert.True(t, IsActive(ts, ts+1))
	})

	t.Run("strict boundary", func(t *testing.T) {
		assert.True(t, IsActive(ts, ts+dur-1))
		assert.False(t, IsActive(ts, ts+dur))
	})
}

func TestRemainingMinutes(t *testing.T) {
	ts := int64(1_000_000)
	dur := Duration.Milliseconds()

	assert.Equal(t, 0, RemainingMinutes(0, ts))
	assert.Equal(t, 15, RemainingMinutes(ts, ts))
	// one ms elapsed still rounds up to 15 minutes
	assert.Equal(t, 15, RemainingMinutes(ts, ts+1))
	assert.Equal(t, 1, RemainingMinutes(ts, ts+dur-1))
	assert.Equal(t, 0, RemainingMinutes(ts, ts+dur))
	assert.Equal(t, 0, RemainingMinutes(ts, ts+2*dur))
	// half way
	assert.Equal(t, 8, RemainingMinutes(ts, ts+dur/2))
}

func TestExpirationTime(t *testing.T) {
	assert.Equal(t, int64(0), ExpirationTime(0))
	assert.Equal(t, int64(1000)+Duration.Milliseconds(), ExpirationTime(1000))
}

func TestShouldLogRemaining(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	interval := LogInterval.Milliseconds()

	assert.True(t, ShouldLogRemaining(0, now))
	assert.False(t, ShouldLogRemaining(now, now))
	assert.False(t, ShouldLogRemaining(now-interval+1, now))
	assert.True(t, ShouldLogRemaining(now-interval, now))
}

func TestShouldLogExpiration(t *testing.T) {
	exp := time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC).UnixMilli()

	t.Run("no override recorded", func(t *testing.T) {
		assert.False(t, ShouldLogExpiration(0, 0))
	})

	t.Run("logs exactly once per expiration", func(t *testing.T) {
		assert.True(t, ShouldLogExpiration(0, exp))
		// after logging at or past the expiration, it stays quiet
		assert.False(t, ShouldLogExpiration(exp, exp))
		assert.False(t, ShouldLogExpiration(exp+1000, exp))
	})

	t.Run("a newer override expiring later logs again", func(t *testing.T) {
		assert.True(t, ShouldLogExpiration(exp, exp+Duration.Milliseconds()))
	})
}
