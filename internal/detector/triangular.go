package detector

import (
	"math/big"
	"strings"
	"time"

	"dexarb/internal/models"
	"dexarb/pkg/bigmath"
	"dexarb/pkg/idhash"
)

// maxCyclesExplored bounds the DFS so a dense token graph can never turn
// one off-path scan into an unbounded amount of work (spec.md §4.3
// "aggressive pruning").
const maxCyclesExplored = 2000

// cycleEdge is one hop of a candidate cycle: the pair providing
// liquidity and the direction it is traversed in. pool is a snapshot,
// not a live *models.Pair, so the off-path DFS never races the hot
// path's in-place reserve mutation (spec.md §3 "PairSnapshot").
type cycleEdge struct {
	pool      models.PairSnapshot
	fromToken string
	toToken   string
}

// scanCycles searches for profitable token cycles of length in
// [minLen, maxLen] starting from the tokens of the pair at fromAddress
// (spec.md §4.3 "Triangular (3-token)" and "Multi-leg (up to 7-token
// cyclic)"). The search is depth-first; a branch is cut only when it
// would reuse a pool or revisit a token, reaches maxLen, or the
// maxCyclesExplored budget is spent. Profitability is evaluated only
// once a cycle closes; partial paths are not pruned by their
// fee-discounted product. Cycles are canonicalized by rotating to start
// at the lexicographically smallest token so the same cycle found from
// either endpoint is only reported once.
func (d *Detector) scanCycles(chainID, fromAddress string, minLen, maxLen int, kind models.OpportunityKind) []models.Opportunity {
	startPair := d.repo.LookupByAddress(fromAddress)
	if startPair == nil {
		return nil
	}

	graph := d.buildTokenGraph(chainID)
	if len(graph) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	explored := 0
	var results []models.Opportunity

	var dfs func(startToken string, path []cycleEdge, visitedPools map[string]bool)
	dfs = func(startToken string, path []cycleEdge, visitedPools map[string]bool) {
		if explored >= maxCyclesExplored {
			return
		}
		explored++

		current := startToken
		if len(path) > 0 {
			current = path[len(path)-1].toToken
		}

		if len(path) >= minLen && current == startToken && len(path) > 0 {
			if opp := d.evaluateCycle(chainID, path, kind); opp != nil {
				sig := canonicalCycleSignature(path)
				if !seen[sig] {
					seen[sig] = true
					results = append(results, *opp)
				}
			}
			return
		}
		if len(path) >= maxLen {
			return
		}

		for _, edge := range graph[current] {
			if visitedPools[edge.pool.Address] {
				continue
			}
			next := edge.toToken
			if next != startToken && tokenVisited(path, next) {
				continue
			}
			visitedPools[edge.pool.Address] = true
			dfs(startToken, append(path, edge), visitedPools)
			delete(visitedPools, edge.pool.Address)
		}
	}

	for _, startToken := range []string{startPair.Token0, startPair.Token1} {
		dfs(startToken, nil, make(map[string]bool))
	}

	return results
}

func tokenVisited(path []cycleEdge, token string) bool {
	for _, e := range path {
		if e.fromToken == token {
			return true
		}
	}
	return false
}

// buildTokenGraph adapts the Pair Repository's flat pair list into an
// adjacency list keyed by token, with one edge per traversal direction
// (spec.md §4.3's cycle search needs both directions of each pool). Each
// pair is read through Repository.Snapshot rather than its live fields,
// since this runs off-path on a worker-pool goroutine while the owning
// chain task may be mutating the same Pair's reserves concurrently.
func (d *Detector) buildTokenGraph(chainID string) map[string][]cycleEdge {
	graph := make(map[string][]cycleEdge)
	for _, p := range d.repo.AllPairs() {
		if p.ChainID != chainID {
			continue
		}
		snap, ok := d.repo.Snapshot(p.Address)
		if !ok {
			continue
		}
		graph[snap.Token0] = append(graph[snap.Token0], cycleEdge{pool: snap, fromToken: snap.Token0, toToken: snap.Token1})
		graph[snap.Token1] = append(graph[snap.Token1], cycleEdge{pool: snap, fromToken: snap.Token1, toToken: snap.Token0})
	}
	return graph
}

// canonicalCycleSignature rotates the cycle's edges to start at the
// lexicographically smallest token, so the same physical cycle
// discovered from either of its endpoints collapses to one signature
// (spec.md §4.3 "canonicalized by starting at the lexicographically
// smallest token to de-duplicate").
func canonicalCycleSignature(path []cycleEdge) string {
	smallestIdx := 0
	for i, e := range path {
		if e.fromToken < path[smallestIdx].fromToken {
			smallestIdx = i
		}
	}
	parts := make([]string, 0, len(path))
	for i := 0; i < len(path); i++ {
		e := path[(smallestIdx+i)%len(path)]
		parts = append(parts, e.pool.Address+":"+e.fromToken+">"+e.toToken)
	}
	return strings.Join(parts, "|")
}

// evaluateCycle simulates the swap chain around one closed cycle using
// big-integer constant-product math throughout, returning nil if any hop
// yields zero output or the cycle is not profitable after fees and an
// estimated gas cost. Intermediate hops are not checked for profitability.
func (d *Detector) evaluateCycle(chainID string, path []cycleEdge, kind models.OpportunityKind) *models.Opportunity {
	minDepth := minPoolDepthAlong(path)
	if minDepth.Sign() <= 0 {
		return nil
	}
	amountIn := new(big.Int).Div(minDepth, big.NewInt(tradeSizeFraction))
	if amountIn.Sign() <= 0 {
		return nil
	}

	amount := new(big.Int).Set(amountIn)
	var blockNumber uint64
	for _, e := range path {
		reserveIn, reserveOut := reservesFor(e)
		amount = bigmath.SwapOut(amount, reserveIn, reserveOut, e.pool.FeeBps)
		if amount.Sign() <= 0 {
			return nil
		}
		if e.pool.BlockNumber > blockNumber {
			blockNumber = e.pool.BlockNumber
		}
	}

	diff := new(big.Int).Sub(amount, amountIn)
	grossNumerator := new(big.Int).Mul(diff, big.NewInt(bigmath.BpsDenominator))
	grossBps := bigmath.ClampBps(new(big.Int).Quo(grossNumerator, amountIn).Int64())

	gasCostBps := bigmath.GasCostBps(big.NewInt(d.cfg.GasEstimate*int64(len(path))), amountIn)
	netBps := bigmath.ClampBps(grossBps - gasCostBps)

	if netBps <= d.cfg.MinProfitBps {
		return nil
	}

	legs := make([]models.Leg, len(path))
	idLegs := make([]idhash.Leg, len(path))
	for i, e := range path {
		legs[i] = models.Leg{DexID: e.pool.DexID, Token0: e.fromToken, Token1: e.toToken}
		idLegs[i] = idhash.Leg{DexID: e.pool.DexID, Token0: e.fromToken, Token1: e.toToken}
	}

	now := time.Now().UnixMilli()
	depthFactor := 1.0
	if minDepth.Cmp(big.NewInt(1_000)) < 0 {
		depthFactor = 0.5
	}
	confidence := (float64(netBps) / float64(netBps+200)) * depthFactor / float64(len(path))
	if confidence <= 0 {
		confidence = 0.01
	}
	if confidence > 1 {
		confidence = 1
	}

	return &models.Opportunity{
		ID:           idhash.OpportunityID(chainID, blockNumber, idLegs),
		Kind:         kind,
		ChainID:      chainID,
		BlockNumber:  blockNumber,
		Legs:         legs,
		GrossBps:     grossBps,
		NetBps:       netBps,
		Confidence:   confidence,
		ExpiryMillis: now + d.cfg.ExpiryMillis,
		PipelineTimestamps: models.PipelineTimestamps{
			WSReceivedMillis: now,
		},
		Source: d.cfg.Source,
	}
}

func reservesFor(e cycleEdge) (*big.Int, *big.Int) {
	if e.fromToken == e.pool.Token0 {
		return e.pool.Reserve0, e.pool.Reserve1
	}
	return e.pool.Reserve1, e.pool.Reserve0
}

func minPoolDepthAlong(path []cycleEdge) *big.Int {
	var min *big.Int
	for _, e := range path {
		depth := bigmath.PoolDepth(e.pool.Reserve0, e.pool.Reserve1)
		if min == nil || depth.Cmp(min) < 0 {
			min = depth
		}
	}
	if min == nil {
		return big.NewInt(0)
	}
	return min
}
