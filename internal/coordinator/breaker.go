// Package coordinator implements the Coordinator Router (C11): the
// single process that holds a distributed leader lease and forwards
// validated, deduplicated opportunities toward execution (spec.md
// §4.9). Grounded on the teacher's internal/bot/state_machine.go
// table-driven transition idiom (ValidTransitions / CanTransition),
// generalized here from trade-pair states to circuit breaker states.
package coordinator

import (
	"sync"
	"time"

	"dexarb/internal/metrics"
)

// BreakerState mirrors the teacher's string-keyed state constants
// (internal/models state strings), but as a small closed enum since the
// breaker has exactly three states (spec.md §4.9).
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) metricValue() float64 {
	switch s {
	case BreakerOpen:
		return 1
	case BreakerHalfOpen:
		return 2
	default:
		return 0
	}
}

// validTransitions is the breaker's transition table, in the same
// spirit as the teacher's ValidTransitions map: Closed -> Open after N
// consecutive failures within W; Open -> HalfOpen after cooldown C;
// HalfOpen -> Closed on success, else back to Open (spec.md §4.9).
var validTransitions = map[BreakerState][]BreakerState{
	BreakerClosed:   {BreakerOpen},
	BreakerOpen:     {BreakerHalfOpen},
	BreakerHalfOpen: {BreakerClosed, BreakerOpen},
}

func canTransition(from, to BreakerState) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// BreakerConfig configures a Breaker's thresholds (spec.md §4.9
// defaults: N=5, W=60s, C=30s).
type BreakerConfig struct {
	FailureThreshold int
	Window           time.Duration
	Cooldown         time.Duration
}

// DefaultBreakerConfig returns spec.md's stated defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Window: 60 * time.Second, Cooldown: 30 * time.Second}
}

// Breaker is the execution-forwarding circuit breaker guarding C11's
// forward step.
type Breaker struct {
	mu sync.Mutex

	cfg BreakerConfig

	state          BreakerState
	failureTimes   []time.Time
	openedAt       time.Time
}

// NewBreaker constructs a Breaker in the Closed state.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 60 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	b := &Breaker{cfg: cfg, state: BreakerClosed}
	metrics.BreakerState.Set(b.state.metricValue())
	return b
}

// Allow reports whether a forward attempt should proceed right now,
// transitioning Open -> HalfOpen once the cooldown has elapsed (spec.md
// §4.9 "Open -> HalfOpen after cooldown C").
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed, BreakerHalfOpen:
		return true
	case BreakerOpen:
		if time.Since(b.openedAt) >= b.cfg.Cooldown {
			b.transitionLocked(BreakerHalfOpen)
			return true
		}
		return false
	default:
		return false
	}
}

// RecordSuccess reports a successful forward. In HalfOpen this closes
// the breaker; in Closed it clears the recorded failures.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.transitionLocked(BreakerClosed)
	}
	b.failureTimes = nil
}

// RecordFailure reports a failed forward, opening the breaker if
// FailureThreshold consecutive failures land within Window, or
// immediately re-opening from HalfOpen (spec.md §4.9 "else -> Open").
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == BreakerHalfOpen {
		b.transitionLocked(BreakerOpen)
		return
	}

	now := time.Now()
	b.failureTimes = append(b.failureTimes, now)
	cutoff := now.Add(-b.cfg.Window)
	kept := b.failureTimes[:0]
	for _, t := range b.failureTimes {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failureTimes = kept

	if len(b.failureTimes) >= b.cfg.FailureThreshold {
		b.transitionLocked(BreakerOpen)
	}
}

// State reports the breaker's current state.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) transitionLocked(to BreakerState) {
	if !canTransition(b.state, to) {
		return
	}
	b.state = to
	if to == BreakerOpen {
		b.openedAt = time.Now()
		b.failureTimes = nil
	}
	metrics.BreakerState.Set(to.metricValue())
}
