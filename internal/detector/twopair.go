package detector

import (
	"math/big"
	"time"

	"dexarb/internal/models"
	"dexarb/pkg/bigmath"
	"dexarb/pkg/idhash"
)

// tradeSizeFraction sizes the simulated probe trade as a fraction of the
// smaller pool's depth, bounding slippage on both legs (spec.md §4.3
// step 4 "respects slippage bound").
const tradeSizeFraction = 100 // 1% of the shallower pool

type twoPairCandidate struct {
	other            *models.Pair
	otherSnap        models.PairSnapshot
	netBps           int64
	grossBps         int64
	cheapIsUpdated   bool
	poolDepthMin     *big.Int
	ageMillis        int64
}

// scanTwoPair is the always-on inline 2-pair check (spec.md §4.3
// "2-pair intra-chain scan"): O(1) fan-out to every other pair sharing
// the updated pair's canonical token key, picking the single most
// profitable counterpart.
func (d *Detector) scanTwoPair(update models.PriceUpdate, now int64) *models.Opportunity {
	updatedPair := d.repo.LookupByAddress(update.Address)
	if updatedPair == nil {
		return nil
	}

	others := d.repo.LookupByTokenPair(updatedPair.ChainPairKey)
	if len(others) == 0 {
		return nil
	}

	var best *twoPairCandidate
	for _, other := range others {
		if other.Address == updatedPair.Address || other.DexID == updatedPair.DexID {
			continue
		}
		age := now - other.LastUpdateMillis
		if age > d.cfg.MaxStalenessMillis {
			continue
		}

		snap, ok := d.repo.Snapshot(other.Address)
		if !ok {
			continue
		}

		cand := d.evaluatePair(update, updatedPair, other, snap, age)
		if cand == nil {
			continue
		}
		if !isBetterCandidate(cand, best) {
			continue
		}
		best = cand
	}

	if best == nil {
		return nil
	}
	return d.buildTwoPairOpportunity(update, updatedPair, best)
}

// evaluatePair simulates buying on the cheaper of {updated, other} and
// selling on the richer one, returning nil if the pair is not
// profitable or reserves make the comparison degenerate (spec.md §4.3
// "Zero reserves / division by zero: treated as non-profitable and
// skipped").
func (d *Detector) evaluatePair(update models.PriceUpdate, updatedPair *models.Pair, other *models.Pair, otherSnap models.PairSnapshot, age int64) *twoPairCandidate {
	if update.Reserve0.Sign() == 0 || update.Reserve1.Sign() == 0 {
		return nil
	}
	if otherSnap.Reserve0.Sign() == 0 || otherSnap.Reserve1.Sign() == 0 {
		return nil
	}

	cmp := bigmath.ComparePrices(update.Reserve0, update.Reserve1, otherSnap.Reserve0, otherSnap.Reserve1)
	if cmp == 0 {
		return nil
	}
	// A pool's mid price (reserve1/reserve0) is also its marginal
	// exchange rate for token0->token1, so the pool with the higher mid
	// price yields more token1 per token0 spent: that is the "cheap"
	// side to buy on, with the other pool the "rich" side to sell back
	// into token0 on.
	cheapIsUpdated := cmp > 0

	var cheapReserveIn, cheapReserveOut, richReserveIn, richReserveOut *big.Int
	var cheapFeeBps, richFeeBps int64
	if cheapIsUpdated {
		cheapReserveIn, cheapReserveOut = update.Reserve0, update.Reserve1
		cheapFeeBps = updatedPair.FeeBps
		richReserveIn, richReserveOut = otherSnap.Reserve1, otherSnap.Reserve0
		richFeeBps = other.FeeBps
	} else {
		cheapReserveIn, cheapReserveOut = otherSnap.Reserve0, otherSnap.Reserve1
		cheapFeeBps = other.FeeBps
		richReserveIn, richReserveOut = update.Reserve1, update.Reserve0
		richFeeBps = updatedPair.FeeBps
	}

	depthUpdated := bigmath.PoolDepth(update.Reserve0, update.Reserve1)
	depthOther := bigmath.PoolDepth(otherSnap.Reserve0, otherSnap.Reserve1)
	poolDepthMin := depthUpdated
	if depthOther.Cmp(poolDepthMin) < 0 {
		poolDepthMin = depthOther
	}

	amountIn := new(big.Int).Div(poolDepthMin, big.NewInt(tradeSizeFraction))
	if amountIn.Sign() <= 0 {
		return nil
	}

	gasCostBps := bigmath.GasCostBps(big.NewInt(d.cfg.GasEstimate), amountIn)
	netBps := bigmath.NetBps(amountIn, cheapReserveIn, cheapReserveOut, cheapFeeBps, richReserveIn, richReserveOut, richFeeBps, gasCostBps)
	grossBps := bigmath.GrossBps(amountIn, cheapReserveIn, cheapReserveOut, cheapFeeBps, richReserveIn, richReserveOut, richFeeBps)

	if netBps <= d.cfg.MinProfitBps {
		return nil
	}

	return &twoPairCandidate{
		other:          other,
		otherSnap:      otherSnap,
		netBps:         netBps,
		grossBps:       grossBps,
		cheapIsUpdated: cheapIsUpdated,
		poolDepthMin:   poolDepthMin,
		ageMillis:      age,
	}
}

// isBetterCandidate applies spec.md §4.3's tie-break: higher netBps
// wins; on a tie the fresher pair (shorter lastUpdateMillis age) wins;
// on a further tie the lexicographically smaller pool address wins
// (determinism).
func isBetterCandidate(cand, incumbent *twoPairCandidate) bool {
	if incumbent == nil {
		return true
	}
	if cand.netBps != incumbent.netBps {
		return cand.netBps > incumbent.netBps
	}
	if cand.ageMillis != incumbent.ageMillis {
		return cand.ageMillis < incumbent.ageMillis
	}
	return cand.other.Address < incumbent.other.Address
}

func (d *Detector) buildTwoPairOpportunity(update models.PriceUpdate, updatedPair *models.Pair, best *twoPairCandidate) *models.Opportunity {
	if best.netBps < bigmath.MinProfitBps || best.netBps > bigmath.MaxProfitBps {
		d.dropOpportunity("bps_out_of_range")
		return nil
	}

	token0, token1 := updatedPair.ChainPairKey.TokenA, updatedPair.ChainPairKey.TokenB

	var legs []models.Leg
	if best.cheapIsUpdated {
		legs = []models.Leg{
			{DexID: updatedPair.DexID, Token0: token0, Token1: token1},
			{DexID: best.other.DexID, Token0: token0, Token1: token1},
		}
	} else {
		legs = []models.Leg{
			{DexID: best.other.DexID, Token0: token0, Token1: token1},
			{DexID: updatedPair.DexID, Token0: token0, Token1: token1},
		}
	}

	idLegs := make([]idhash.Leg, len(legs))
	for i, l := range legs {
		idLegs[i] = idhash.Leg{DexID: l.DexID, Token0: l.Token0, Token1: l.Token1}
	}

	now := time.Now().UnixMilli()
	confidence := twoPairConfidence(best.netBps, best.poolDepthMin, best.ageMillis, d.cfg.MaxStalenessMillis)

	return &models.Opportunity{
		ID:          idhash.OpportunityID(update.ChainID, update.BlockNumber, idLegs),
		Kind:        models.KindTwoPair,
		ChainID:     update.ChainID,
		BlockNumber: update.BlockNumber,
		Legs:        legs,
		GrossBps:    best.grossBps,
		NetBps:      best.netBps,
		Confidence:  confidence,
		ExpiryMillis: now + d.cfg.ExpiryMillis,
		PipelineTimestamps: models.PipelineTimestamps{
			WSReceivedMillis: update.SourceReceivedMillis,
		},
		Source: d.cfg.Source,
	}
}

// twoPairConfidence blends net profit, pool depth, and staleness into a
// [0,1] confidence score (spec.md §4.3 "confidence = f(netBps,
// pool_depth_min, staleness)"): more profit and deeper pools raise
// confidence; staler counterpart data lowers it.
func twoPairConfidence(netBps int64, poolDepthMin *big.Int, ageMillis, maxStalenessMillis int64) float64 {
	profitFactor := float64(netBps) / float64(netBps+200) // saturates toward 1 as netBps grows
	if profitFactor < 0 {
		profitFactor = 0
	}

	depthFactor := 1.0
	threshold := new(big.Int).SetInt64(1_000)
	if poolDepthMin.Cmp(threshold) < 0 {
		depthFactor = 0.5
	}

	stalenessFactor := 1.0
	if maxStalenessMillis > 0 {
		stalenessFactor = 1 - float64(ageMillis)/float64(maxStalenessMillis)
		if stalenessFactor < 0.1 {
			stalenessFactor = 0.1
		}
	}

	confidence := profitFactor * depthFactor * stalenessFactor
	if confidence <= 0 {
		confidence = 0.01
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
