// Package warmer implements the Predictive Warmer (C7): on every
// PriceUpdate it asks the Correlation Tracker for candidates, hands them
// to a pluggable Warming Strategy, and promotes the selected candidates
// L2->L1 asynchronously, debounced per source pair (spec.md §4.6).
//
// Grounded on the teacher's internal/bot/risk.go in-flight-operation
// tracking idiom (one pending operation per key, cleared on every exit
// path including failure) and the explicit "finally"-style cleanup
// comments in arbitrage.go's ReleaseEntryConditions.
package warmer

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"dexarb/internal/cache"
	"dexarb/internal/correlation"
	"dexarb/internal/metrics"
)

// WarmingResult summarizes one warmForPair/warmPairs cycle (spec.md
// §4.6 operations).
type WarmingResult struct {
	PairsWarmed      int
	PairsAlreadyInL1 int
	PairsNotFound    int
	TimedOut         bool
}

// Config configures the Warmer (spec.md §6 "Warming").
type Config struct {
	Enabled         bool
	MaxPairsPerWarm int
	MinScore        float64
	TimeoutMillis   int64
	MaxPendingAgeMs int64
}

// Warmer is the Predictive Warmer (C7).
type Warmer struct {
	chainID    string
	tracker    *correlation.Tracker
	cache      *cache.Cache
	strategy   Strategy
	cfg        Config
	logger     *zap.SugaredLogger

	pendingMu sync.Mutex
	pending   map[string]time.Time // sourcePair -> warming start time
}

// New constructs a Warmer for one chain.
func New(chainID string, tracker *correlation.Tracker, c *cache.Cache, strategy Strategy, cfg Config, logger *zap.SugaredLogger) *Warmer {
	return &Warmer{
		chainID:  chainID,
		tracker:  tracker,
		cache:    c,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger,
		pending:  make(map[string]time.Time),
	}
}

// OnPriceUpdate is the hot-path entry point (spec.md §4.6: "must add
// <60us total overhead"). It records the correlation update, checks
// in-flight debounce for sourcePair, and — if clear — spawns the
// background warming cycle. It never blocks on the warming itself.
func (w *Warmer) OnPriceUpdate(sourcePair string, timestampMillis int64) {
	start := time.Now()
	defer func() {
		metrics.WarmingLatency.WithLabelValues(w.chainID).Observe(float64(time.Since(start).Microseconds()))
	}()

	w.tracker.RecordPriceUpdate(sourcePair, timestampMillis)

	if !w.cfg.Enabled {
		return
	}

	if !w.tryBeginWarming(sourcePair) {
		metrics.WarmingDebouncedTotal.WithLabelValues(w.chainID).Inc()
		return
	}

	go func() {
		defer w.endWarming(sourcePair)
		w.runWarmingCycle(sourcePair, timestampMillis)
	}()
}

// tryBeginWarming atomically checks-and-sets the debounce entry for
// sourcePair; returns false if a warming is already in flight (spec.md
// §4.6 step 2).
func (w *Warmer) tryBeginWarming(sourcePair string) bool {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()
	if _, inFlight := w.pending[sourcePair]; inFlight {
		return false
	}
	w.pending[sourcePair] = time.Now()
	return true
}

// endWarming clears the debounce entry; called from every exit path
// (success, failure, timeout) so a dropped future can never leave a
// sourcePair permanently debounced (spec.md §4.6 step 2 "finally").
func (w *Warmer) endWarming(sourcePair string) {
	w.pendingMu.Lock()
	delete(w.pending, sourcePair)
	w.pendingMu.Unlock()
}

// runWarmingCycle executes steps 3-7 of spec.md §4.6 under a total
// timeout race.
func (w *Warmer) runWarmingCycle(sourcePair string, timestampMillis int64) WarmingResult {
	timeout := time.Duration(w.cfg.TimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	resultCh := make(chan WarmingResult, 1)
	go func() {
		resultCh <- w.warmOnce(ctx, sourcePair, timestampMillis)
	}()

	select {
	case result := <-resultCh:
		metrics.WarmingOperationsTotal.WithLabelValues(w.chainID).Inc()
		w.recordResult(result)
		return result
	case <-ctx.Done():
		metrics.WarmingTimeoutsTotal.WithLabelValues(w.chainID).Inc()
		return WarmingResult{TimedOut: true}
	}
}

func (w *Warmer) recordResult(r WarmingResult) {
	if r.PairsWarmed > 0 {
		metrics.WarmingPairsWarmedTotal.WithLabelValues(w.chainID).Add(float64(r.PairsWarmed))
	}
	if r.PairsAlreadyInL1 > 0 {
		metrics.WarmingPairsAlreadyInL1Total.WithLabelValues(w.chainID).Add(float64(r.PairsAlreadyInL1))
	}
	if r.PairsNotFound > 0 {
		metrics.WarmingPairsNotFoundTotal.WithLabelValues(w.chainID).Add(float64(r.PairsNotFound))
	}
	if adaptive, ok := w.strategy.(*AdaptiveStrategy); ok {
		metrics.WarmingAdaptiveCurrentN.WithLabelValues(w.chainID).Set(float64(adaptive.CurrentN()))
	}
}

// warmOnce is the core candidate-selection-and-promotion cycle (spec.md
// §4.6 steps 3-5). It never initiates an L2 write, and fetches each
// selected candidate from the backing store exactly once.
func (w *Warmer) warmOnce(ctx context.Context, sourcePair string, timestampMillis int64) WarmingResult {
	candidates := w.tracker.GetPairsToWarm(sourcePair, timestampMillis, w.cfg.MaxPairsPerWarm, w.cfg.MinScore)

	selection := w.strategy.Select(WarmingContext{
		SourcePair:       sourcePair,
		Candidates:       candidates,
		CurrentL1HitRate: w.currentL1HitRate(),
		TimestampMillis:  timestampMillis,
	})

	var result WarmingResult
	for _, candidate := range selection.SelectedPairs {
		inL1, value, found := w.cache.FetchForWarming(ctx, candidate.CorrelatedPair)
		switch {
		case inL1:
			result.PairsAlreadyInL1++
		case !found:
			result.PairsNotFound++
		default:
			w.cache.SetInL1(candidate.CorrelatedPair, value)
			result.PairsWarmed++
		}
	}
	return result
}

// currentL1HitRate supplies the Adaptive strategy's observed hit-rate
// input. It always returns 0: no hit-rate feed is connected, so the
// Adaptive strategy always sees "below target" and grows currentN up to
// MaxPairs.
func (w *Warmer) currentL1HitRate() float64 {
	return 0
}

// WarmForPair runs one warming cycle for sourcePair synchronously,
// outside the debounce machinery (spec.md §4.6 "warmForPair ->
// WarmingResult — background").
func (w *Warmer) WarmForPair(ctx context.Context, sourcePair string) WarmingResult {
	return w.runWarmingCycle(sourcePair, time.Now().UnixMilli())
}

// WarmPairs manually pre-populates L1 for an explicit list of cache keys,
// used at startup before any PriceUpdate has been observed (spec.md
// §4.6 "warmPairs(pairs) -> WarmingResult — manual pre-population").
func (w *Warmer) WarmPairs(ctx context.Context, pairs []string) WarmingResult {
	var result WarmingResult
	for _, key := range pairs {
		inL1, value, found := w.cache.FetchForWarming(ctx, key)
		switch {
		case inL1:
			result.PairsAlreadyInL1++
		case !found:
			result.PairsNotFound++
		default:
			w.cache.SetInL1(key, value)
			result.PairsWarmed++
		}
	}
	return result
}

// CleanupStalePendingWarmings removes debounce entries older than
// maxAgeMs, recovering from any dropped-goroutine path (spec.md §4.6
// "Periodic cleanupStalePendingWarmings").
func (w *Warmer) CleanupStalePendingWarmings(maxAgeMs int64) int {
	cutoff := time.Now().Add(-time.Duration(maxAgeMs) * time.Millisecond)

	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	removed := 0
	for pair, startedAt := range w.pending {
		if startedAt.Before(cutoff) {
			delete(w.pending, pair)
			removed++
		}
	}
	return removed
}

// RunCleanupLoop periodically invokes CleanupStalePendingWarmings until
// ctx is cancelled; intended to run as one of the bounded-pool background
// tasks (spec.md §5).
func (w *Warmer) RunCleanupLoop(ctx context.Context, interval time.Duration, maxAgeMs int64) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := w.CleanupStalePendingWarmings(maxAgeMs); n > 0 && w.logger != nil {
				w.logger.Infow("cleaned up stale pending warmings", "count", n)
			}
		}
	}
}
