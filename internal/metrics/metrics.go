// Package metrics holds every Prometheus metric named throughout spec.md,
// kept under the teacher's Namespace/Subsystem/promauto convention
// (internal/bot/metrics.go), relabeled for the DEX domain: per-chain
// connection health, detector throughput, cache/warming counters, stream
// transport, and coordinator routing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============ Connection Supervisor (C1) ============

var ConnectionStatus = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "chain",
		Name:      "connection_status",
		Help:      "Chain endpoint connection status (1=connected, 0=disconnected)",
	},
	[]string{"chain", "endpoint"},
)

var ReconnectsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "chain",
		Name:      "reconnects_total",
		Help:      "Total number of reconnect attempts",
	},
	[]string{"chain", "reason"}, // reason: disconnect, rate_limit, stale, rotate_requested
)

var StaleConnectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "chain",
		Name:      "stale_connections_total",
		Help:      "Total number of StaleConnection events emitted",
	},
	[]string{"chain"},
)

var DataGapsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "chain",
		Name:      "data_gaps_total",
		Help:      "Total number of DataGap events emitted",
	},
	[]string{"chain"},
)

var EndpointHealthScore = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "chain",
		Name:      "endpoint_health_score",
		Help:      "Composite health score of a chain endpoint in [0,100]",
	},
	[]string{"chain", "endpoint"},
)

// ============ Decoder (C3) ============

var DecodeErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "decode",
		Name:      "errors_total",
		Help:      "Total number of reserve-update decode failures",
	},
	[]string{"chain"},
)

var PriceUpdatesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "decode",
		Name:      "price_updates_total",
		Help:      "Total number of PriceUpdate records emitted",
	},
	[]string{"chain"},
)

// ============ Detector (C4) ============

var OpportunitiesDetectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "detector",
		Name:      "opportunities_detected_total",
		Help:      "Total number of opportunities detected",
	},
	[]string{"chain", "kind"},
)

var OpportunitiesDroppedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "detector",
		Name:      "opportunities_dropped_total",
		Help:      "Total number of opportunities dropped (out-of-range bps, etc)",
	},
	[]string{"chain", "reason"},
)

var ScanLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dexarb",
		Subsystem: "detector",
		Name:      "scan_latency_ms",
		Help:      "Latency of a detection scan in milliseconds",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 25},
	},
	[]string{"chain", "kind"}, // kind: two_pair, triangular, multi_leg
)

var WorkerPoolSaturatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "detector",
		Name:      "worker_pool_saturated_total",
		Help:      "Total number of off-path scan jobs dropped due to pool saturation",
	},
	[]string{"chain", "kind"},
)

// ============ Hierarchical Cache (C5) ============

var L1HitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "cache",
		Name:      "l1_hits_total",
		Help:      "Total number of L1 cache hits",
	},
	[]string{"chain"},
)

var L1MissesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "cache",
		Name:      "l1_misses_total",
		Help:      "Total number of L1 cache misses",
	},
	[]string{"chain"},
)

var L1Size = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "cache",
		Name:      "l1_size",
		Help:      "Current number of entries held in the L1 LRU",
	},
)

var L2ErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "cache",
		Name:      "l2_errors_total",
		Help:      "Total number of L2 (distributed KV) errors, absorbed",
	},
	[]string{"op"}, // get, set
)

// ============ Correlation Tracker (C6) ============

var CorrelationTrackedPairs = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "correlation",
		Name:      "tracked_pairs",
		Help:      "Current number of source pairs tracked by the correlation tracker",
	},
)

var CorrelationRecordLatency = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: "dexarb",
		Subsystem: "correlation",
		Name:      "record_latency_us",
		Help:      "Latency of recordPriceUpdate in microseconds",
		Buckets:   []float64{5, 10, 25, 50, 75, 100, 200},
	},
)

// ============ Predictive Warmer (C7) ============

var WarmingDebouncedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "warming_debounced_total",
		Help:      "Total number of onPriceUpdate calls that found a warming already in flight",
	},
	[]string{"chain"},
)

var WarmingOperationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "warming_operations_total",
		Help:      "Total number of warming cycles actually executed",
	},
	[]string{"chain"},
)

var WarmingPairsWarmedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "pairs_warmed_total",
		Help:      "Total number of candidate pairs promoted L2 to L1",
	},
	[]string{"chain"},
)

var WarmingPairsAlreadyInL1Total = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "pairs_already_in_l1_total",
		Help:      "Total number of candidates skipped because already in L1",
	},
	[]string{"chain"},
)

var WarmingPairsNotFoundTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "pairs_not_found_total",
		Help:      "Total number of candidates with no value in L2",
	},
	[]string{"chain"},
)

var WarmingTimeoutsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "timeouts_total",
		Help:      "Total number of warming cycles that exceeded timeoutMillis",
	},
	[]string{"chain"},
)

var WarmingLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "on_price_update_latency_us",
		Help:      "Hot-path latency added by the warmer's onPriceUpdate in microseconds",
		Buckets:   []float64{5, 10, 20, 40, 60, 100, 200},
	},
	[]string{"chain"},
)

var WarmingAdaptiveCurrentN = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "warmer",
		Name:      "adaptive_current_n",
		Help:      "Adaptive warming strategy's current candidate count",
	},
	[]string{"chain"},
)

// ============ Stream Client / Consumer (C8/C9) ============

var PublishFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "stream",
		Name:      "publish_failed_total",
		Help:      "Total number of failed stream append calls",
	},
	[]string{"stream"},
)

var MessagesReadTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "stream",
		Name:      "messages_read_total",
		Help:      "Total number of messages read via blockingReadGroup",
	},
	[]string{"stream", "group"},
)

var MessagesAckedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "stream",
		Name:      "messages_acked_total",
		Help:      "Total number of acked messages",
	},
	[]string{"stream", "group"},
)

var MessagesRedeliveredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "stream",
		Name:      "messages_redelivered_total",
		Help:      "Total number of messages with deliveryCount > 1",
	},
	[]string{"stream", "group"},
)

var DlqMovesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "stream",
		Name:      "dlq_moves_total",
		Help:      "Total number of messages moved to the dead-letter queue",
	},
	[]string{"stream", "reason"},
)

var DlqArchiveFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "dlqstore",
		Name:      "archive_failed_total",
		Help:      "Total number of DLQ entries that failed to archive to Postgres",
	},
	[]string{"stream"},
)

var ConsumerPaused = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "stream",
		Name:      "consumer_paused",
		Help:      "Whether a consumer is currently paused (1=paused, 0=running)",
	},
	[]string{"stream", "group"},
)

// ============ Coordinator Router (C11) ============

var LeaderStatus = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "coordinator",
		Name:      "is_leader",
		Help:      "Whether this process currently holds the leader lease (1=leader, 0=follower)",
	},
)

var DuplicatesSuppressedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "coordinator",
		Name:      "duplicates_suppressed_total",
		Help:      "Total number of opportunities dropped by the duplicate window",
	},
)

var ValidationFailedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "coordinator",
		Name:      "validation_failed_total",
		Help:      "Total number of opportunities rejected by structural/business validation",
	},
	[]string{"reason"},
)

var BreakerState = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "dexarb",
		Subsystem: "coordinator",
		Name:      "breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half_open)",
	},
)

var OpportunitiesForwardedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "coordinator",
		Name:      "opportunities_forwarded_total",
		Help:      "Total number of opportunities forwarded to execution-requests",
	},
)

var OpportunitiesBreakerDroppedTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: "dexarb",
		Subsystem: "coordinator",
		Name:      "opportunities_breaker_dropped_total",
		Help:      "Total number of opportunities dropped because the breaker was open",
	},
)
