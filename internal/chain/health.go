package chain

import (
	"math"
	"sync"
	"time"
)

// HealthScorer tracks per-endpoint latency/reliability/freshness samples
// and computes the composite score used to pick a reconnect target
// (spec.md §4.1: "weights: 30% latency / 40% reliability / 30%
// block-freshness"). Adapted from the teacher's health-check accumulators
// in internal/exchange (per-exchange latency sampling), generalized to
// per-endpoint and widened with the block-freshness term this domain
// needs and CEX balance checks did not.
type HealthScorer struct {
	mu        sync.Mutex
	endpoints map[string]*endpointStats
}

type endpointStats struct {
	latencies     []float64 // rolling window, milliseconds
	successes     int64
	failures      int64
	blocksBehind  uint64
	excluded      bool
	excludedUntil time.Time
}

const latencyWindowSize = 50

// NewHealthScorer constructs an empty scorer.
func NewHealthScorer() *HealthScorer {
	return &HealthScorer{endpoints: make(map[string]*endpointStats)}
}

func (h *HealthScorer) statsFor(url string) *endpointStats {
	s, ok := h.endpoints[url]
	if !ok {
		s = &endpointStats{}
		h.endpoints[url] = s
	}
	return s
}

// RecordLatency appends a latency sample in milliseconds.
func (h *HealthScorer) RecordLatency(url string, ms float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.statsFor(url)
	s.latencies = append(s.latencies, ms)
	if len(s.latencies) > latencyWindowSize {
		s.latencies = s.latencies[len(s.latencies)-latencyWindowSize:]
	}
}

// RecordSuccess/RecordFailure feed the reliability term.
func (h *HealthScorer) RecordSuccess(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statsFor(url).successes++
}

func (h *HealthScorer) RecordFailure(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statsFor(url).failures++
}

// RecordBlocksBehind updates the freshness term.
func (h *HealthScorer) RecordBlocksBehind(url string, behind uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.statsFor(url).blocksBehind = behind
}

// Exclude marks an endpoint excluded until the given deadline (rate-limit
// cooldown, spec.md §4.1).
func (h *HealthScorer) Exclude(url string, until time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.statsFor(url)
	s.excluded = true
	s.excludedUntil = until
}

// clearExpiredLocked lifts an exclusion whose cooldown has elapsed.
func clearExpiredLocked(s *endpointStats, now time.Time) {
	if s.excluded && now.After(s.excludedUntil) {
		s.excluded = false
	}
}

// Score computes the composite [0,100] health score for one endpoint.
func (h *HealthScorer) Score(url string, now time.Time) Health {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.statsFor(url)
	clearExpiredLocked(s, now)

	p95 := percentile(s.latencies, 0.95)
	latencyScore := latencyToScore(p95)

	total := s.successes + s.failures
	successRate := 1.0
	if total > 0 {
		successRate = float64(s.successes) / float64(total)
	}

	freshnessScore := freshnessToScore(s.blocksBehind)

	overall := 0.3*latencyScore + 0.4*successRate*100 + 0.3*freshnessScore

	return Health{
		URL:           url,
		LatencyP95Ms:  p95,
		SuccessRate:   successRate,
		BlocksBehind:  s.blocksBehind,
		OverallScore:  overall,
		Excluded:      s.excluded,
		ExcludedUntil: s.excludedUntil,
	}
}

// Best returns the highest-scoring non-excluded endpoint among
// candidates, or the least-bad excluded one if all are excluded
// (spec.md §4.1: "exhaustion of all non-excluded endpoints causes the
// supervisor to continue retrying the least-bad one").
func (h *HealthScorer) Best(candidates []string, now time.Time) string {
	if len(candidates) == 0 {
		return ""
	}

	var bestURL string
	var bestScore float64 = -1
	var bestExcludedURL string
	var bestExcludedScore float64 = -1

	for _, url := range candidates {
		health := h.Score(url, now)
		if health.Excluded {
			if health.OverallScore > bestExcludedScore {
				bestExcludedScore = health.OverallScore
				bestExcludedURL = url
			}
			continue
		}
		if health.OverallScore > bestScore {
			bestScore = health.OverallScore
			bestURL = url
		}
	}

	if bestURL != "" {
		return bestURL
	}
	return bestExcludedURL
}

func latencyToScore(p95Ms float64) float64 {
	if p95Ms <= 0 {
		return 100
	}
	// 0ms -> 100, 1000ms -> ~0, monotonically decreasing.
	score := 100 - (p95Ms / 10)
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func freshnessToScore(blocksBehind uint64) float64 {
	if blocksBehind == 0 {
		return 100
	}
	score := 100 - float64(blocksBehind)*20
	if score < 0 {
		return 0
	}
	return score
}

func percentile(samples []float64, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j-1] > sorted[j]; j-- {
			sorted[j-1], sorted[j] = sorted[j], sorted[j-1]
		}
	}
	idx := int(math.Ceil(p*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
