package coordinator

import (
	"testing"
	"time"
)

func TestDuplicateWindow_SecondCallWithinWindowIsDuplicate(t *testing.T) {
	d := NewDuplicateWindow(5 * time.Second)
	now := time.Now()

	if d.CheckAndMark("k1", now) {
		t.Fatal("first call must not be a duplicate")
	}
	if !d.CheckAndMark("k1", now.Add(time.Second)) {
		t.Fatal("second call within window must be a duplicate")
	}
}

func TestDuplicateWindow_AfterWindowElapsesNoLongerDuplicate(t *testing.T) {
	d := NewDuplicateWindow(5 * time.Second)
	now := time.Now()

	d.CheckAndMark("k1", now)
	if d.CheckAndMark("k1", now.Add(6*time.Second)) {
		t.Fatal("expected not a duplicate once the window has elapsed")
	}
}

func TestDuplicateWindow_Sweep_RemovesExpiredEntries(t *testing.T) {
	d := NewDuplicateWindow(5 * time.Second)
	now := time.Now()
	d.CheckAndMark("old", now.Add(-time.Minute))
	d.CheckAndMark("fresh", now)

	removed := d.Sweep(now)
	if removed != 1 {
		t.Fatalf("expected 1 entry swept, got %d", removed)
	}
	if d.Len() != 1 {
		t.Fatalf("expected 1 entry remaining, got %d", d.Len())
	}
}
