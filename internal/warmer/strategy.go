package warmer

import (
	"sort"

	"dexarb/internal/models"
)

// WarmingContext is the explicit context handed to a Strategy, built
// fresh per warming cycle (spec.md §9: "an explicit CacheContext /
// WarmingContext constructed at process init and passed by reference" —
// here constructed per-cycle since the inputs, unlike a cache handle,
// are cycle-specific).
type WarmingContext struct {
	SourcePair      string
	Candidates      []models.CorrelationRecord
	CurrentL1HitRate float64
	TimestampMillis int64
}

// Selection is a Strategy's output: the candidates chosen to warm, plus
// a short human-readable reason for observability.
type Selection struct {
	SelectedPairs []models.CorrelationRecord
	Reason        string
}

// Strategy selects which correlated candidates to promote L2->L1 on a
// given warming cycle (spec.md §4.6.1). Strategies are stateless except
// Adaptive, which tracks one integer across calls.
type Strategy interface {
	Select(ctx WarmingContext) Selection
}

// topNOf returns up to n candidates with score >= minScore, assuming
// candidates arrive already sorted by score descending (as
// correlation.Tracker.GetPairsToWarm guarantees).
func topNOf(candidates []models.CorrelationRecord, n int, minScore float64) []models.CorrelationRecord {
	out := make([]models.CorrelationRecord, 0, n)
	for _, c := range candidates {
		if c.Score < minScore {
			continue
		}
		out = append(out, c)
		if len(out) >= n {
			break
		}
	}
	return out
}

// TopNStrategy returns the top N candidates with score >= MinScore
// (spec.md §4.6.1 "TopN").
type TopNStrategy struct {
	TopN     int
	MinScore float64
}

func (s TopNStrategy) Select(ctx WarmingContext) Selection {
	return Selection{
		SelectedPairs: topNOf(ctx.Candidates, s.TopN, s.MinScore),
		Reason:        "topN",
	}
}

// ThresholdStrategy returns every candidate with score >= MinScore,
// capped at MaxPairs (spec.md §4.6.1 "Threshold").
type ThresholdStrategy struct {
	MinScore float64
	MaxPairs int
}

func (s ThresholdStrategy) Select(ctx WarmingContext) Selection {
	return Selection{
		SelectedPairs: topNOf(ctx.Candidates, s.MaxPairs, s.MinScore),
		Reason:        "threshold",
	}
}

// TimeBasedStrategy ranks candidates by w_corr*score + w_recency*recency,
// then applies TopN over the re-ranked list (spec.md §4.6.1 "TimeBased").
type TimeBasedStrategy struct {
	TopN          int
	MinScore      float64
	WindowMillis  int64
	WeightCorr    float64
	WeightRecency float64
}

func (s TimeBasedStrategy) Select(ctx WarmingContext) Selection {
	ranked := make([]models.CorrelationRecord, len(ctx.Candidates))
	copy(ranked, ctx.Candidates)

	recencyOf := func(lastSeen int64) float64 {
		age := ctx.TimestampMillis - lastSeen
		if age < 0 {
			age = 0
		}
		if s.WindowMillis <= 0 {
			return 0
		}
		r := 1 - float64(age)/float64(s.WindowMillis)
		if r < 0 {
			return 0
		}
		return r
	}

	composite := make(map[string]float64, len(ranked))
	for _, c := range ranked {
		composite[c.CorrelatedPair] = s.WeightCorr*c.Score + s.WeightRecency*recencyOf(c.LastSeenMillis)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return composite[ranked[i].CorrelatedPair] > composite[ranked[j].CorrelatedPair]
	})

	return Selection{
		SelectedPairs: topNOf(ranked, s.TopN, s.MinScore),
		Reason:        "timeBased",
	}
}

// AdaptiveStrategy maintains a single integer currentN in
// [MinPairs, MaxPairs], adjusted after each warming cycle by the
// observed L1 hit rate vs TargetHitRate (spec.md §4.6.1 "Adaptive").
// Selection itself is TopN over the current currentN.
type AdaptiveStrategy struct {
	MinPairs         int
	MaxPairs         int
	MinScore         float64
	TargetHitRate    float64
	AdjustmentFactor float64

	currentN int // guarded by caller; Warmer serializes calls per chain
}

// NewAdaptiveStrategy constructs an AdaptiveStrategy starting at the
// midpoint of [minPairs, maxPairs].
func NewAdaptiveStrategy(minPairs, maxPairs int, minScore, targetHitRate, adjustmentFactor float64) *AdaptiveStrategy {
	start := (minPairs + maxPairs) / 2
	if start < minPairs {
		start = minPairs
	}
	return &AdaptiveStrategy{
		MinPairs:         minPairs,
		MaxPairs:         maxPairs,
		MinScore:         minScore,
		TargetHitRate:    targetHitRate,
		AdjustmentFactor: adjustmentFactor,
		currentN:         start,
	}
}

func (s *AdaptiveStrategy) Select(ctx WarmingContext) Selection {
	if ctx.CurrentL1HitRate < s.TargetHitRate {
		grown := ceilInt(float64(s.currentN) * (1 + s.AdjustmentFactor))
		if grown > s.MaxPairs {
			grown = s.MaxPairs
		}
		s.currentN = grown
	} else if ctx.CurrentL1HitRate > s.TargetHitRate {
		shrunk := int(float64(s.currentN) * (1 - s.AdjustmentFactor))
		if shrunk < s.MinPairs {
			shrunk = s.MinPairs
		}
		s.currentN = shrunk
	}

	return Selection{
		SelectedPairs: topNOf(ctx.Candidates, s.currentN, s.MinScore),
		Reason:        "adaptive",
	}
}

// CurrentN reports the strategy's current candidate count, for the
// warmer.adaptive_current_n gauge.
func (s *AdaptiveStrategy) CurrentN() int { return s.currentN }

func ceilInt(f float64) int {
	i := int(f)
	if float64(i) < f {
		i++
	}
	return i
}
