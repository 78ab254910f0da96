// Package correlation implements the Correlation Tracker (C6): a
// sharded, bounded co-occurrence counter of pair-update activity with
// exponential recency decay (spec.md §4.5). Sharding is grounded on the
// teacher's internal/bot/risk.go sync.Map-keyed caches and
// internal/bot/arbitrage.go's lock-free-read discipline, generalized
// here into striped sync.Mutex shards keyed by pkg/bigmath.FNV1a32(
// sourcePair) so concurrent updates on different pairs never contend
// (spec.md §4.5 "internal state is protected by sharded locking").
package correlation

import (
	"math"
	"sort"
	"sync"
	"time"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
	"dexarb/pkg/bigmath"
)

const defaultShardCount = 64

// Tracker records price-update co-occurrences within a sliding window and
// scores candidates for warming.
type Tracker struct {
	shards    []*shard
	shardMask uint32

	windowMillis    int64
	halfLifeMillis  int64
	maxTrackedPairs int

	// lru tracks global insertion/access order across all source pairs so
	// the bound on maxTrackedPairs can evict the least-recently-used
	// source pair (spec.md §4.5 "the LRU source pair is evicted").
	lruMu   sync.Mutex
	lruList []string // front = most recently touched

	// recentMu/recentActivity is a single time-bucketed ring of "which
	// pair updated when", independent of the shard map, so finding
	// "pairs seen together in the last window" costs O(pairs currently
	// inside the window) under one lock instead of a full shard scan.
	// Unrelated source pairs' shard locks are never touched by this path
	// (spec.md §4.5 "sharded locking ... so concurrent updates on
	// different pairs never contend").
	recentMu       sync.Mutex
	recentActivity []recentEvent
}

type recentEvent struct {
	pairID          string
	timestampMillis int64
}

type shard struct {
	mu sync.Mutex
	// sources maps a source pair id to its co-occurrence tracking state.
	sources map[string]*sourceState
}

type sourceState struct {
	updateCount int64
	// coOccurs maps a correlated pair id to its running co-occurrence
	// count and the timestamp it was last seen together with source.
	coOccurs map[string]*coOccurEntry
}

type coOccurEntry struct {
	count        int64
	lastSeenMs   int64
}

// Config configures a Tracker (spec.md §4.5 defaults).
type Config struct {
	CoOccurrenceWindowMillis int64
	HalfLifeMillis           int64
	MaxTrackedPairs          int
}

// DefaultConfig returns spec.md's stated defaults.
func DefaultConfig() Config {
	return Config{
		CoOccurrenceWindowMillis: 1000,
		HalfLifeMillis:           5 * 60 * 1000,
		MaxTrackedPairs:          5000,
	}
}

// New constructs a Tracker. Each test (or process) gets its own instance;
// there is no hidden package-level singleton (spec.md §4.5: "one
// well-known analyzer instance per process is the default; per-test
// isolated instances must be available for testing").
func New(cfg Config) *Tracker {
	if cfg.CoOccurrenceWindowMillis <= 0 {
		cfg.CoOccurrenceWindowMillis = 1000
	}
	if cfg.HalfLifeMillis <= 0 {
		cfg.HalfLifeMillis = 5 * 60 * 1000
	}
	if cfg.MaxTrackedPairs <= 0 {
		cfg.MaxTrackedPairs = 5000
	}

	shards := make([]*shard, defaultShardCount)
	for i := range shards {
		shards[i] = &shard{sources: make(map[string]*sourceState)}
	}

	return &Tracker{
		shards:          shards,
		shardMask:       uint32(defaultShardCount - 1),
		windowMillis:    cfg.CoOccurrenceWindowMillis,
		halfLifeMillis:  cfg.HalfLifeMillis,
		maxTrackedPairs: cfg.MaxTrackedPairs,
	}
}

func (t *Tracker) shardFor(pairID string) *shard {
	return t.shards[bigmath.FNV1a32(pairID)&t.shardMask]
}

// RecordPriceUpdate records that pair updated at timestampMillis, and
// increments co-occurrence counters against every other pair seen
// updating within the last windowMillis (spec.md §4.5: "Must complete
// in < 50us p95"). Finding those co-occurring pairs costs O(pairs
// currently inside the window), via recentWithin's own lock, not a scan
// of every shard; it then touches only pairID's own shard plus, for
// each co-occurring partner, that partner's shard — so concurrent calls
// on unrelated pairs never contend on shard locks.
func (t *Tracker) RecordPriceUpdate(pairID string, timestampMillis int64) {
	recent := t.recentWithin(pairID, timestampMillis)

	t.touchSource(pairID, timestampMillis)
	t.evictIfOverBoundLocked()

	for _, other := range recent {
		t.recordCoOccurrence(pairID, other, timestampMillis)
		t.recordCoOccurrence(other, pairID, timestampMillis)
	}
}

// recentWithin returns every pair id (other than pairID) recorded within
// the last windowMillis, then records pairID's own activity at now —
// one append plus a front-trim of expired entries, all under a single
// dedicated lock (spec.md §9 "a single time-bucketed ring/list
// maintained under its own lock, updated once per call").
func (t *Tracker) recentWithin(pairID string, now int64) []string {
	cutoff := now - t.windowMillis

	t.recentMu.Lock()
	defer t.recentMu.Unlock()

	start := 0
	for start < len(t.recentActivity) && t.recentActivity[start].timestampMillis < cutoff {
		start++
	}
	if start > 0 {
		t.recentActivity = append(t.recentActivity[:0], t.recentActivity[start:]...)
	}

	found := make([]string, 0, len(t.recentActivity))
	for _, e := range t.recentActivity {
		if e.pairID != pairID {
			found = append(found, e.pairID)
		}
	}

	t.recentActivity = append(t.recentActivity, recentEvent{pairID: pairID, timestampMillis: now})
	return found
}

func (t *Tracker) touchSource(pairID string, now int64) {
	s := t.shardFor(pairID)
	s.mu.Lock()
	st, ok := s.sources[pairID]
	if !ok {
		st = &sourceState{coOccurs: make(map[string]*coOccurEntry)}
		s.sources[pairID] = st
	}
	st.updateCount++
	s.mu.Unlock()

	t.touchLRU(pairID)
}

func (t *Tracker) recordCoOccurrence(sourceID, correlatedID string, now int64) {
	s := t.shardFor(sourceID)
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sources[sourceID]
	if !ok {
		st = &sourceState{coOccurs: make(map[string]*coOccurEntry)}
		s.sources[sourceID] = st
	}
	entry, ok := st.coOccurs[correlatedID]
	if !ok {
		entry = &coOccurEntry{}
		st.coOccurs[correlatedID] = entry
	}
	entry.count++
	entry.lastSeenMs = now
}

// touchLRU moves pairID to the front of the global LRU order.
func (t *Tracker) touchLRU(pairID string) {
	t.lruMu.Lock()
	defer t.lruMu.Unlock()
	for i, id := range t.lruList {
		if id == pairID {
			t.lruList = append(t.lruList[:i], t.lruList[i+1:]...)
			break
		}
	}
	t.lruList = append([]string{pairID}, t.lruList...)
}

// evictIfOverBoundLocked evicts the globally least-recently-touched
// source pair once the bound is exceeded (spec.md §4.5).
func (t *Tracker) evictIfOverBoundLocked() {
	t.lruMu.Lock()
	if len(t.lruList) <= t.maxTrackedPairs {
		t.lruMu.Unlock()
		return
	}
	victim := t.lruList[len(t.lruList)-1]
	t.lruList = t.lruList[:len(t.lruList)-1]
	t.lruMu.Unlock()

	s := t.shardFor(victim)
	s.mu.Lock()
	delete(s.sources, victim)
	s.mu.Unlock()
}

// GetPairsToWarm returns up to maxPairs correlated pairs of sourcePair
// with score >= minScore, sorted by score descending, ties broken by
// lastSeenMillis descending then pair id ascending (spec.md §4.5).
func (t *Tracker) GetPairsToWarm(sourcePair string, now int64, maxPairs int, minScore float64) []models.CorrelationRecord {
	s := t.shardFor(sourcePair)
	s.mu.Lock()
	st, ok := s.sources[sourcePair]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	updates := st.updateCount
	entries := make([]models.CorrelationRecord, 0, len(st.coOccurs))
	for correlated, e := range st.coOccurs {
		score := scoreOf(e.count, updates, now, e.lastSeenMs, t.halfLifeMillis)
		entries = append(entries, models.CorrelationRecord{
			SourcePair:     sourcePair,
			CorrelatedPair: correlated,
			CoOccurrences:  e.count,
			LastSeenMillis: e.lastSeenMs,
			Score:          score,
		})
	}
	s.mu.Unlock()

	filtered := entries[:0]
	for _, e := range entries {
		if e.Score >= minScore {
			filtered = append(filtered, e)
		}
	}

	sort.Slice(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		if filtered[i].LastSeenMillis != filtered[j].LastSeenMillis {
			return filtered[i].LastSeenMillis > filtered[j].LastSeenMillis
		}
		return filtered[i].CorrelatedPair < filtered[j].CorrelatedPair
	})

	if len(filtered) > maxPairs {
		filtered = filtered[:maxPairs]
	}
	return filtered
}

func scoreOf(coOccurrences, sourceUpdates int64, now, lastSeenMs, halfLifeMillis int64) float64 {
	if sourceUpdates <= 0 {
		sourceUpdates = 1
	}
	base := float64(coOccurrences) / float64(sourceUpdates)
	age := float64(now - lastSeenMs)
	if age < 0 {
		age = 0
	}
	decay := math.Exp(-age / float64(halfLifeMillis))
	score := base * decay
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}
	return score
}

// GetTrackedPairs returns every source pair id currently tracked.
func (t *Tracker) GetTrackedPairs() []string {
	t.lruMu.Lock()
	defer t.lruMu.Unlock()
	out := make([]string, len(t.lruList))
	copy(out, t.lruList)
	return out
}

// Stats summarizes tracker size for ops surfaces.
type Stats struct {
	TotalPairs   int
	TotalUpdates int64
}

// GetStats aggregates total tracked pairs and total updates observed.
func (t *Tracker) GetStats() Stats {
	var stats Stats
	for _, s := range t.shards {
		s.mu.Lock()
		for _, st := range s.sources {
			stats.TotalPairs++
			stats.TotalUpdates += st.updateCount
		}
		s.mu.Unlock()
	}
	metrics.CorrelationTrackedPairs.Set(float64(stats.TotalPairs))
	return stats
}

// Reset clears all tracker state.
func (t *Tracker) Reset() {
	for _, s := range t.shards {
		s.mu.Lock()
		s.sources = make(map[string]*sourceState)
		s.mu.Unlock()
	}
	t.lruMu.Lock()
	t.lruList = nil
	t.lruMu.Unlock()

	t.recentMu.Lock()
	t.recentActivity = nil
	t.recentMu.Unlock()
}

// RecordPriceUpdateTimed wraps RecordPriceUpdate with a latency sample
// recorded to the correlation.record_latency_us histogram (spec.md §4.5
// "<50us p95" SLA). It is the metric-instrumented entry point; nothing in
// this repository calls it, the warmer calls RecordPriceUpdate.
func (t *Tracker) RecordPriceUpdateTimed(pairID string, timestampMillis int64) {
	start := time.Now()
	t.RecordPriceUpdate(pairID, timestampMillis)
	metrics.CorrelationRecordLatency.Observe(float64(time.Since(start).Microseconds()))
}
