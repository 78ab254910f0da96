package coordinator

import (
	"testing"
	"time"
)

func TestBreaker_OpensAfterThresholdFailures(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 3, Window: time.Minute, Cooldown: time.Millisecond})

	for i := 0; i < 2; i++ {
		b.RecordFailure()
	}
	if b.State() != BreakerClosed {
		t.Fatalf("expected still closed before threshold, got %v", b.State())
	}
	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("expected open after threshold failures, got %v", b.State())
	}
}

func TestBreaker_OpenRejectsUntilCooldownThenHalfOpen(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: 20 * time.Millisecond})
	b.RecordFailure()
	if b.Allow() {
		t.Fatal("expected Allow() false immediately after opening")
	}
	time.Sleep(30 * time.Millisecond)
	if !b.Allow() {
		t.Fatal("expected Allow() true after cooldown elapses (half-open)")
	}
	if b.State() != BreakerHalfOpen {
		t.Fatalf("expected half-open after cooldown, got %v", b.State())
	}
}

func TestBreaker_HalfOpenClosesOnSuccess(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Millisecond})
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	b.Allow() // transitions to half-open
	b.RecordSuccess()
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed after half-open success, got %v", b.State())
	}
}

func TestBreaker_HalfOpenReopensOnFailure(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 1, Window: time.Minute, Cooldown: time.Millisecond})
	b.RecordFailure()
	time.Sleep(5 * time.Millisecond)
	b.Allow()
	b.RecordFailure()
	if b.State() != BreakerOpen {
		t.Fatalf("expected re-opened after half-open failure, got %v", b.State())
	}
}

func TestBreaker_OldFailuresOutsideWindowDoNotAccumulate(t *testing.T) {
	b := NewBreaker(BreakerConfig{FailureThreshold: 2, Window: 10 * time.Millisecond, Cooldown: time.Second})
	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	b.RecordFailure()
	if b.State() != BreakerClosed {
		t.Fatalf("expected closed since failures fell outside the window, got %v", b.State())
	}
}
