// Package override implements the manual-override timer: a time-boxed
// suppression of automated control following a direct user action.
//
// All functions are pure over (timestamp, now) pairs in milliseconds since
// the Unix epoch. A zero timestamp means "never set".
package override

import "time"

const (
	// Duration is how long a manual action suppresses automation.
	Duration = 15 * time.Minute

	// LogInterval throttles the repeated "override still active" log line.
	LogInterval = 5 * time.Minute
)

// IsActive reports whether a manual override recorded at ts still suppresses
// automation at now. The comparison is strict: at exactly ts+Duration the
// override has expired.
func IsActive(ts, now int64) bool {
	if ts == 0 {
		return false
	}
	return now-ts < Duration.Milliseconds()
}

// RemainingMinutes returns how many minutes of override remain, rounded up.
// It returns 0 once the override has expired or when ts is unset.
func RemainingMinutes(ts, now int64) int {
	if ts == 0 {
		return 0
	}
	remaining := Duration.Milliseconds() - (now - ts)
	if remaining <= 0 {
		return 0
	}
	const msPerMinute = 60_000
	return int((remaining + msPerMinute - 1) / msPerMinute)
}

// ExpirationTime returns the instant (ms) the override recorded at ts
// expires, or 0 when ts is unset.
func ExpirationTime(ts int64) int64 {
	if ts == 0 {
		return 0
	}
	return ts + Duration.Milliseconds()
}

// ShouldLogRemaining reports whether the periodic "override still active"
// line should be emitted: true when it was never logged or at least
// LogInterval has passed since the last one.
func ShouldLogRemaining(lastLogTime, now int64) bool {
	if lastLogTime == 0 {
		return true
	}
	return now-lastLogTime >= LogInterval.Milliseconds()
}

// ShouldLogExpiration reports whether the "override expired" line should be
// emitted. It is true exactly once per expiration event: when no expiration
// was ever logged, or the last one was logged strictly before this
// override's expiration instant.
func ShouldLogExpiration(lastExpirationLog, expirationTime int64) bool {
	if expirationTime == 0 {
		return false
	}
	return lastExpirationLog == 0 || lastExpirationLog < expirationTime
}
