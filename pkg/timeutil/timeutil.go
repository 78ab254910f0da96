// Package timeutil holds the millisecond/epoch conversions used on the
// hot path (lastUpdateMillis, sourceReceivedMillis, debounce timestamps).
// Adapted from the teacher's pkg/utils/time.go, trimmed to the epoch
// helpers this core actually needs — the calendar-period helpers
// (GetWeekStart, GetMonthRange, ...) existed to bucket CEX trade PNL by
// day/week/month, a concern this core has no use for.
package timeutil

import "time"

// NowMillis returns the current time in Unix milliseconds.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}

// FromMillis converts Unix milliseconds to a UTC time.Time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// SinceMillis returns how many milliseconds have elapsed since the given
// Unix-millis timestamp.
func SinceMillis(ms int64) time.Duration {
	return time.Since(FromMillis(ms))
}

// Monotonic returns true if next >= prev, the invariant required of
// Pair.lastUpdateMillis across successive reserve updates.
func Monotonic(prev, next int64) bool {
	return next >= prev
}
