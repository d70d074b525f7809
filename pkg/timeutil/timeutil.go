// Package timeutil holds the timestamp arithmetic shared by the price cache
// and the scheduling loops.
package timeutil

import "time"

// UTCDayNumber returns the UTC calendar day-of-month (1..31) for a
// millisecond timestamp.
//
// Known limitation: the day-of-month alone collides across month boundaries
// (Dec 31 and Jan 31 both yield 31), so it must not be used on its own to
// separate "today" from "tomorrow". The selectors in pkg/schedule compare
// full calendar dates instead; this function remains for display and API
// compatibility.
func UTCDayNumber(ms int64) int {
	return time.UnixMilli(ms).UTC().Day()
}

// SameUTCDate reports whether two instants fall on the same UTC calendar
// date, comparing year, month and day.
func SameUTCDate(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}

// Next15MinuteBoundary returns the duration until the next wall-clock
// quarter-hour mark (:00, :15, :30, :45). The result is always strictly
// positive: when now is exactly on a boundary it rolls to the next one, so a
// timer armed with this value never fires twice in the same interval.
func Next15MinuteBoundary(now time.Time) time.Duration {
	next := now.Truncate(15 * time.Minute).Add(15 * time.Minute)
	return next.Sub(now)
}
