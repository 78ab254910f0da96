package coordinator

import (
	"sync"
	"time"

	"dexarb/internal/metrics"
)

// DuplicateWindow is C11's bounded hash set with TTL (spec.md §5
// "Opportunity active set in C11: a bounded hash set with TTL; inserts
// and lookups under one lock"). CheckAndMark(key) returns false (and
// records the key) the first time it is called for key; every call
// within the window afterward returns true without re-recording, so
// the caller can tell "already seen" from "newly seen".
type DuplicateWindow struct {
	mu     sync.Mutex
	window time.Duration
	seenAt map[string]time.Time
}

// NewDuplicateWindow constructs a DuplicateWindow with the given
// duplicate-suppression window (spec.md §4.9 step 3 default: 5s).
func NewDuplicateWindow(window time.Duration) *DuplicateWindow {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &DuplicateWindow{window: window, seenAt: make(map[string]time.Time)}
}

// CheckAndMark returns true if key was already seen within the window
// (a duplicate, counted via duplicatesSuppressedTotal), or false and
// records key as newly seen.
func (d *DuplicateWindow) CheckAndMark(key string, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if seenAt, ok := d.seenAt[key]; ok && now.Sub(seenAt) < d.window {
		metrics.DuplicatesSuppressedTotal.Inc()
		return true
	}
	d.seenAt[key] = now
	return false
}

// Sweep evicts every entry older than the duplicate window, bounding
// memory growth; intended to run on a periodic background tick.
func (d *DuplicateWindow) Sweep(now time.Time) int {
	d.mu.Lock()
	defer d.mu.Unlock()

	removed := 0
	cutoff := now.Add(-d.window)
	for k, t := range d.seenAt {
		if t.Before(cutoff) {
			delete(d.seenAt, k)
			removed++
		}
	}
	return removed
}

// Len reports the number of currently tracked keys.
func (d *DuplicateWindow) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seenAt)
}
