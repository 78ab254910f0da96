// Package detector implements the Detector (C4): an always-on O(1)
// 2-pair scan run inline on the same task that decoded the triggering
// PriceUpdate, plus throttled triangular and multi-leg cyclic scans run
// off-path on a bounded worker pool (spec.md §4.3).
//
// Grounded on the teacher's internal/bot/arbitrage.go ArbitrageDetector
// (O(1) DetectOpportunity off PriceTracker's precomputed best prices,
// sync.Pool reuse for the hot path) and internal/bot/engine.go's
// shard-worker-pool idiom (bounded channel + drop-on-full, not
// block-on-full), generalized from CEX order-book spreads to on-chain
// pool reserves compared via math/big.
package detector

import (
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
	"dexarb/internal/pair"
)

// Config bounds one chain's Detector (spec.md §4.3, §6 per-chain config).
type Config struct {
	ChainID string

	MinProfitBps    int64
	GasEstimate     int64 // gas cost in input-token units
	ExpiryMillis    int64
	MaxStalenessMillis int64

	TriangularIntervalMillis int64 // default 500
	MultiLegIntervalMillis   int64 // default 2000
	MaxCycleLength           int   // default 7 (multi-leg)

	// HotPairUpdateRateThreshold is updates/sec above which a pair
	// bypasses the triangular/multi-leg throttle (spec.md §4.3
	// "bypassed for hot pairs").
	HotPairUpdateRateThreshold float64

	WorkerPoolSize int // bounded off-path worker budget

	WhaleThresholdUsd float64

	Source string // producer id, e.g. "detector:eth:1"
}

// DefaultConfig fills in spec.md's stated defaults for the fields a
// caller typically leaves at their default.
func DefaultConfig(chainID string) Config {
	return Config{
		ChainID:                    chainID,
		MinProfitBps:               10,
		ExpiryMillis:               3000,
		MaxStalenessMillis:         15_000,
		TriangularIntervalMillis:   500,
		MultiLegIntervalMillis:     2000,
		MaxCycleLength:             7,
		HotPairUpdateRateThreshold: 5,
		WorkerPoolSize:             4,
		Source:                     "detector:" + chainID,
	}
}

// Stats summarizes the Detector's running counters (spec.md §4.3
// "getStats").
type Stats struct {
	OpportunitiesFound int64
	EventsProcessed    int64
	LastTwoPairLatencyUs    int64
	LastTriangularLatencyUs int64
	LastMultiLegLatencyUs   int64
}

// Detector is the Detector (C4) for one chain.
type Detector struct {
	cfg    Config
	repo   *pair.Repository
	logger *zap.SugaredLogger

	pool *workerPool

	hotTracker *hotPairTracker

	lastTriangularScan int64 // unix millis, atomic
	lastMultiLegScan   int64 // unix millis, atomic

	opportunitiesFound atomic.Int64
	eventsProcessed    atomic.Int64
	lastTwoPairLatencyUs    atomic.Int64
	lastTriangularLatencyUs atomic.Int64
	lastMultiLegLatencyUs   atomic.Int64

	onOpportunity func(models.Opportunity)
}

// New constructs a Detector bound to one chain's Pair Repository.
// onOpportunity is invoked for every emitted Opportunity (the caller,
// typically cmd/detector's wiring, hands it to the Publisher C10);
// it may be called concurrently from worker-pool goroutines as well as
// the caller's own hot-path goroutine, so it must be safe for
// concurrent use.
func New(cfg Config, repo *pair.Repository, logger *zap.SugaredLogger, onOpportunity func(models.Opportunity)) *Detector {
	if cfg.MaxCycleLength <= 0 {
		cfg.MaxCycleLength = 7
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 4
	}
	if cfg.TriangularIntervalMillis <= 0 {
		cfg.TriangularIntervalMillis = 500
	}
	if cfg.MultiLegIntervalMillis <= 0 {
		cfg.MultiLegIntervalMillis = 2000
	}
	d := &Detector{
		cfg:           cfg,
		repo:          repo,
		logger:        logger,
		pool:          newWorkerPool(cfg.WorkerPoolSize, cfg.ChainID, logger),
		hotTracker:    newHotPairTracker(cfg.HotPairUpdateRateThreshold),
		onOpportunity: onOpportunity,
	}
	return d
}

// Close stops the bounded worker pool, allowing in-flight off-path scans
// to finish.
func (d *Detector) Close() { d.pool.close() }

// OnPriceUpdate runs the always-on inline 2-pair scan, then — subject to
// throttling — submits triangular and multi-leg scans to the bounded
// worker pool (spec.md §4.3). It never blocks on the off-path scans: a
// saturated pool simply drops the job, counted via
// detector_worker_pool_saturated_total.
func (d *Detector) OnPriceUpdate(update models.PriceUpdate) []models.Opportunity {
	d.eventsProcessed.Add(1)
	now := time.Now().UnixMilli()

	pairID := update.ChainID + ":" + update.Address
	rate := d.hotTracker.recordAndRate(pairID, now)
	isHot := rate >= d.cfg.HotPairUpdateRateThreshold

	var found []models.Opportunity

	start := time.Now()
	if opp := d.scanTwoPair(update, now); opp != nil {
		found = append(found, *opp)
	}
	d.lastTwoPairLatencyUs.Store(time.Since(start).Microseconds())
	metrics.ScanLatency.WithLabelValues(d.cfg.ChainID, "two_pair").Observe(float64(time.Since(start).Milliseconds()))

	if isHot || d.dueTriangular(now) {
		d.submitTriangular(update.ChainID, update.Address)
	}
	if isHot || d.dueMultiLeg(now) {
		d.submitMultiLeg(update.ChainID, update.Address)
	}

	if len(found) > 0 {
		d.opportunitiesFound.Add(int64(len(found)))
		for _, opp := range found {
			metrics.OpportunitiesDetectedTotal.WithLabelValues(d.cfg.ChainID, string(opp.Kind)).Inc()
			if d.onOpportunity != nil {
				d.onOpportunity(opp)
			}
		}
	}
	return found
}

func (d *Detector) dueTriangular(now int64) bool {
	last := atomic.LoadInt64(&d.lastTriangularScan)
	if now-last < d.cfg.TriangularIntervalMillis {
		return false
	}
	return atomic.CompareAndSwapInt64(&d.lastTriangularScan, last, now)
}

func (d *Detector) dueMultiLeg(now int64) bool {
	last := atomic.LoadInt64(&d.lastMultiLegScan)
	if now-last < d.cfg.MultiLegIntervalMillis {
		return false
	}
	return atomic.CompareAndSwapInt64(&d.lastMultiLegScan, last, now)
}

func (d *Detector) submitTriangular(chainID, fromAddress string) {
	submitted := d.pool.submit(func() {
		start := time.Now()
		opps := d.scanCycles(chainID, fromAddress, 3, 3, models.KindTriangular)
		d.lastTriangularLatencyUs.Store(time.Since(start).Microseconds())
		metrics.ScanLatency.WithLabelValues(d.cfg.ChainID, "triangular").Observe(float64(time.Since(start).Milliseconds()))
		d.publishCycleResults(opps)
	})
	if !submitted {
		metrics.WorkerPoolSaturatedTotal.WithLabelValues(d.cfg.ChainID, "triangular").Inc()
	}
}

func (d *Detector) submitMultiLeg(chainID, fromAddress string) {
	submitted := d.pool.submit(func() {
		start := time.Now()
		opps := d.scanCycles(chainID, fromAddress, 4, d.cfg.MaxCycleLength, models.KindMultiLeg)
		d.lastMultiLegLatencyUs.Store(time.Since(start).Microseconds())
		metrics.ScanLatency.WithLabelValues(d.cfg.ChainID, "multi_leg").Observe(float64(time.Since(start).Milliseconds()))
		d.publishCycleResults(opps)
	})
	if !submitted {
		metrics.WorkerPoolSaturatedTotal.WithLabelValues(d.cfg.ChainID, "multi_leg").Inc()
	}
}

func (d *Detector) publishCycleResults(opps []models.Opportunity) {
	if len(opps) == 0 {
		return
	}
	d.opportunitiesFound.Add(int64(len(opps)))
	for _, opp := range opps {
		metrics.OpportunitiesDetectedTotal.WithLabelValues(d.cfg.ChainID, string(opp.Kind)).Inc()
		if d.onOpportunity != nil {
			d.onOpportunity(opp)
		}
	}
}

// GetStats returns a point-in-time snapshot of the Detector's counters
// (spec.md §4.3 "getStats").
func (d *Detector) GetStats() Stats {
	return Stats{
		OpportunitiesFound:      d.opportunitiesFound.Load(),
		EventsProcessed:         d.eventsProcessed.Load(),
		LastTwoPairLatencyUs:    d.lastTwoPairLatencyUs.Load(),
		LastTriangularLatencyUs: d.lastTriangularLatencyUs.Load(),
		LastMultiLegLatencyUs:   d.lastMultiLegLatencyUs.Load(),
	}
}

// dropOpportunity records an out-of-bounds or otherwise invalid
// candidate as a logged warning + counter instead of publishing it
// (spec.md §4.3 "Numeric bounds": anything outside [-100%,+10000%] is a
// decoder bug).
func (d *Detector) dropOpportunity(reason string) {
	metrics.OpportunitiesDroppedTotal.WithLabelValues(d.cfg.ChainID, reason).Inc()
	if d.logger != nil {
		d.logger.Warnw("dropped opportunity candidate", "reason", reason, "chain", d.cfg.ChainID)
	}
}
