package models

// OpportunityKind classifies how an Opportunity's legs form a cycle
// (spec.md §3 "Opportunity").
type OpportunityKind string

const (
	KindTwoPair    OpportunityKind = "TwoPair"
	KindTriangular OpportunityKind = "Triangular"
	KindMultiLeg   OpportunityKind = "MultiLeg"
	KindCrossChain OpportunityKind = "CrossChain"
)

// Leg is one hop of an Opportunity's cycle: buy or sell on {dexId, token0,
// token1}. AmountIn/AmountOut are filled in once a concrete trade size has
// been simulated; they stay nil for a purely price-derived opportunity.
type Leg struct {
	DexID     string
	Token0    string
	Token1    string
	AmountIn  *string
	AmountOut *string
}

// PipelineTimestamps tracks an opportunity's progress end to end so
// latency can be attributed per stage (spec.md §3).
type PipelineTimestamps struct {
	WSReceivedMillis       int64
	PublishedMillis        int64
	CoordinatorSeenMillis  int64 // 0 until the coordinator processes it
	ExecutionReceivedMillis int64 // 0 until the executor receives it
}

// Opportunity is a candidate profitable trade path (spec.md §3). Invariant
// enforced by the Detector before it is ever handed to the Publisher:
// netBps > 0 and expiryMillis > publishedMillis.
type Opportunity struct {
	ID          string
	Kind        OpportunityKind
	ChainID     string
	BlockNumber uint64
	Legs        []Leg

	GrossBps   int64
	NetBps     int64
	Confidence float64 // in [0,1]

	ExpiryMillis int64

	PipelineTimestamps PipelineTimestamps
	Source             string // producer id, e.g. "detector:eth:1"
}
