package correlation

import (
	"fmt"
	"sync"
	"testing"
)

func TestTracker_RecordPriceUpdate_CoOccurrenceWithinWindow(t *testing.T) {
	tr := New(DefaultConfig())

	tr.RecordPriceUpdate("A", 1000)
	tr.RecordPriceUpdate("B", 1100) // within the 1000ms window of A

	got := tr.GetPairsToWarm("A", 1100, 10, 0)
	if len(got) != 1 {
		t.Fatalf("expected 1 correlated pair, got %d", len(got))
	}
	if got[0].CorrelatedPair != "B" {
		t.Errorf("expected correlated pair B, got %s", got[0].CorrelatedPair)
	}
	if got[0].SourcePair == got[0].CorrelatedPair {
		t.Error("source and correlated pair must never be equal")
	}
}

func TestTracker_GetPairsToWarm_RespectsMinScore(t *testing.T) {
	tr := New(DefaultConfig())
	tr.RecordPriceUpdate("A", 1000)
	tr.RecordPriceUpdate("B", 1000)

	got := tr.GetPairsToWarm("A", 1000, 10, 2.0) // impossibly high threshold
	if len(got) != 0 {
		t.Errorf("expected no results above an unreachable minScore, got %d", len(got))
	}
}

func TestTracker_GetPairsToWarm_ScoreInUnitRange(t *testing.T) {
	tr := New(DefaultConfig())
	for i := int64(0); i < 20; i++ {
		ts := 1000 + i*10
		tr.RecordPriceUpdate("A", ts)
		tr.RecordPriceUpdate("B", ts+1)
	}

	got := tr.GetPairsToWarm("A", 2000, 10, 0)
	for _, r := range got {
		if r.Score < 0 || r.Score > 1 {
			t.Errorf("score %v out of [0,1]", r.Score)
		}
		if r.CoOccurrences < 0 {
			t.Errorf("co-occurrences must be >= 0, got %d", r.CoOccurrences)
		}
	}
}

func TestTracker_MaxTrackedPairsEvictsLRU(t *testing.T) {
	tr := New(Config{CoOccurrenceWindowMillis: 1000, HalfLifeMillis: 300000, MaxTrackedPairs: 2})

	tr.RecordPriceUpdate("A", 1)
	tr.RecordPriceUpdate("B", 2)
	tr.RecordPriceUpdate("C", 3) // should evict A, the LRU

	tracked := tr.GetTrackedPairs()
	if len(tracked) != 2 {
		t.Fatalf("expected tracker bounded to 2 pairs, got %d", len(tracked))
	}
	for _, id := range tracked {
		if id == "A" {
			t.Error("expected A to be evicted as least-recently-used")
		}
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := New(DefaultConfig())
	tr.RecordPriceUpdate("A", 1)
	tr.RecordPriceUpdate("B", 2)

	tr.Reset()

	stats := tr.GetStats()
	if stats.TotalPairs != 0 || stats.TotalUpdates != 0 {
		t.Errorf("expected empty stats after Reset, got %+v", stats)
	}
}

func TestTracker_GetPairsToWarm_UnknownSourceReturnsNil(t *testing.T) {
	tr := New(DefaultConfig())
	got := tr.GetPairsToWarm("nonexistent", 1000, 10, 0)
	if len(got) != 0 {
		t.Errorf("expected no results for an untracked source pair, got %d", len(got))
	}
}

// TestTracker_RecordPriceUpdate_ConcurrentDifferentPairsDoNotRace exercises
// the "concurrent updates on different pairs never contend" invariant
// (spec.md §4.5). Each goroutine records a distinct pair far outside
// every other goroutine's co-occurrence window, so the only way this can
// fail to converge to the expected totals is lock contention/interleaving
// bugs in the shared recent-activity tracking.
func TestTracker_RecordPriceUpdate_ConcurrentDifferentPairsDoNotRace(t *testing.T) {
	tr := New(Config{CoOccurrenceWindowMillis: 10, HalfLifeMillis: 300000, MaxTrackedPairs: 10000})

	const n = 500
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			pair := fmt.Sprintf("pair-%d", i)
			tr.RecordPriceUpdate(pair, int64(i)*1_000_000) // spaced far beyond the window
		}()
	}
	wg.Wait()

	stats := tr.GetStats()
	if stats.TotalPairs != n {
		t.Fatalf("expected %d distinct tracked pairs, got %d", n, stats.TotalPairs)
	}
	if stats.TotalUpdates != n {
		t.Fatalf("expected %d total updates, got %d", n, stats.TotalUpdates)
	}
}

// TestTracker_RecentWithin_BoundedByWindowNotTotalTracked checks that a
// large number of previously-tracked (but now stale) source pairs never
// leak into an unrelated pair's co-occurrence set: the recent-activity
// window is what bounds the lookup, not the total number of pairs the
// tracker has ever seen.
func TestTracker_RecentWithin_BoundedByWindowNotTotalTracked(t *testing.T) {
	tr := New(Config{CoOccurrenceWindowMillis: 1000, HalfLifeMillis: 300000, MaxTrackedPairs: 10000})

	for i := 0; i < 5000; i++ {
		tr.RecordPriceUpdate(fmt.Sprintf("stale-%d", i), int64(i))
	}

	tr.RecordPriceUpdate("X", 10_000_000)
	tr.RecordPriceUpdate("Y", 10_000_500) // within window of X

	got := tr.GetPairsToWarm("X", 10_000_500, 10, 0)
	if len(got) != 1 || got[0].CorrelatedPair != "Y" {
		t.Fatalf("expected only Y correlated with X, got %+v", got)
	}
}
