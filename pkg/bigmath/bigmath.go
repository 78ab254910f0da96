// Package bigmath holds the big-integer arbitrage math every
// profitability decision in the core must go through: mid-price as a
// rational (never a float), constant-product swap simulation, fee and
// gas-to-bps conversion, and bps clamping.
//
// Adapted from the teacher's pkg/utils/math.go (RoundToLotSize /
// CalculateSpread / CalculateNetSpread — CEX float spreads) and
// internal/bot/spread.go's SpreadCalculator/OrderBookAnalyzer, reworked
// over math/big per spec.md's "no float-based profitability decision
// reaches publication" mandate.
package bigmath

import "math/big"

// BpsDenominator is the basis-points denominator: 1 bps = 1/10000.
const BpsDenominator = 10000

// MinProfitBps and MaxProfitBps bound any profit figure that reaches
// publication; anything outside is a decoder bug (spec.md §4.3).
const (
	MinProfitBps = -10000
	MaxProfitBps = 10000
)

var (
	bigBpsDenominator = big.NewInt(BpsDenominator)
	bigZero           = big.NewInt(0)
)

// MidPrice returns reserve1/reserve0 as an exact rational — the
// cross-multiplication-safe representation used to compare two pools'
// prices without introducing rounding bias.
func MidPrice(reserve0, reserve1 *big.Int) *big.Rat {
	if reserve0.Sign() == 0 {
		return new(big.Rat)
	}
	return new(big.Rat).SetFrac(reserve1, reserve0)
}

// ComparePrices reports -1, 0, or 1 according to whether pool A's mid
// price is less than, equal to, or greater than pool B's, using
// cross-multiplication (a1*b0 vs b1*a0) instead of computing either
// rational to avoid any rounding at all.
func ComparePrices(aReserve0, aReserve1, bReserve0, bReserve1 *big.Int) int {
	lhs := new(big.Int).Mul(aReserve1, bReserve0)
	rhs := new(big.Int).Mul(bReserve1, aReserve0)
	return lhs.Cmp(rhs)
}

// SwapOut computes the output amount of a constant-product (x*y=k) swap
// given an input amount, the input/output reserves, and the pool fee in
// basis points. Mirrors the Uniswap V2 style fee-on-input formula:
//
//	amountInWithFee = amountIn * (10000 - feeBps)
//	amountOut = (amountInWithFee * reserveOut) / (reserveIn*10000 + amountInWithFee)
func SwapOut(amountIn, reserveIn, reserveOut *big.Int, feeBps int64) *big.Int {
	if amountIn.Sign() <= 0 || reserveIn.Sign() <= 0 || reserveOut.Sign() <= 0 {
		return new(big.Int)
	}
	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(BpsDenominator-feeBps))
	numerator := new(big.Int).Mul(amountInWithFee, reserveOut)
	denominator := new(big.Int).Add(new(big.Int).Mul(reserveIn, bigBpsDenominator), amountInWithFee)
	if denominator.Sign() == 0 {
		return new(big.Int)
	}
	return numerator.Div(numerator, denominator)
}

// NetBps estimates the net profit, in basis points, of buying amountIn on
// the cheap pool and selling the resulting tokens on the rich pool, after
// both pools' fees and an estimated gas cost expressed in bps via
// gasCostBps (the liquidity-depth-derived conversion is the caller's
// responsibility — see GasCostBps in this package).
func NetBps(amountIn *big.Int, cheapReserveIn, cheapReserveOut *big.Int, cheapFeeBps int64, richReserveIn, richReserveOut *big.Int, richFeeBps int64, gasCostBps int64) int64 {
	if amountIn.Sign() <= 0 {
		return 0
	}
	bought := SwapOut(amountIn, cheapReserveIn, cheapReserveOut, cheapFeeBps)
	if bought.Sign() <= 0 {
		return 0
	}
	soldBack := SwapOut(bought, richReserveIn, richReserveOut, richFeeBps)

	// grossBps = (soldBack - amountIn) / amountIn * 10000
	diff := new(big.Int).Sub(soldBack, amountIn)
	grossNumerator := new(big.Int).Mul(diff, bigBpsDenominator)
	grossBps := new(big.Int).Quo(grossNumerator, amountIn)

	net := grossBps.Int64() - gasCostBps
	return ClampBps(net)
}

// GrossBps estimates the gross profit, in basis points, of buying
// amountIn on the cheap pool and selling the proceeds on the rich pool,
// before any gas deduction (spec.md §4.3 step 4 computes net bps off of
// this minus the gas-to-bps conversion).
func GrossBps(amountIn *big.Int, cheapReserveIn, cheapReserveOut *big.Int, cheapFeeBps int64, richReserveIn, richReserveOut *big.Int, richFeeBps int64) int64 {
	if amountIn.Sign() <= 0 {
		return 0
	}
	bought := SwapOut(amountIn, cheapReserveIn, cheapReserveOut, cheapFeeBps)
	if bought.Sign() <= 0 {
		return 0
	}
	soldBack := SwapOut(bought, richReserveIn, richReserveOut, richFeeBps)

	diff := new(big.Int).Sub(soldBack, amountIn)
	numerator := new(big.Int).Mul(diff, bigBpsDenominator)
	gross := new(big.Int).Quo(numerator, amountIn)
	return ClampBps(gross.Int64())
}

// ClampBps clamps a bps figure to [MinProfitBps, MaxProfitBps].
func ClampBps(bps int64) int64 {
	if bps < MinProfitBps {
		return MinProfitBps
	}
	if bps > MaxProfitBps {
		return MaxProfitBps
	}
	return bps
}

// GasCostBps converts an absolute gas cost (denominated in the same unit
// as amountIn, e.g. wei-of-input-token) to basis points of amountIn using
// a liquidity-depth model: the smaller a pool's reserves, the more a fixed
// gas cost erodes the trade in relative terms, so gas cost is expressed
// relative to amountIn directly rather than to pool depth.
func GasCostBps(gasCostInInputUnits, amountIn *big.Int) int64 {
	if amountIn.Sign() <= 0 {
		return 0
	}
	numerator := new(big.Int).Mul(gasCostInInputUnits, bigBpsDenominator)
	return new(big.Int).Quo(numerator, amountIn).Int64()
}

// PoolDepth returns the smaller of the two reserves, used as the pool's
// liquidity-depth proxy for confidence scoring and slippage bounds.
func PoolDepth(reserve0, reserve1 *big.Int) *big.Int {
	if reserve0.Cmp(reserve1) <= 0 {
		return new(big.Int).Set(reserve0)
	}
	return new(big.Int).Set(reserve1)
}

// FNV1a32 computes the 32-bit FNV-1a hash of s without allocating,
// matching the teacher's inline-hash optimization (internal/bot/spread.go
// fnvHash) used here to shard the correlation tracker's per-pair locks.
func FNV1a32(s string) uint32 {
	const (
		offset32 = uint32(2166136261)
		prime32  = uint32(16777619)
	)
	h := offset32
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= prime32
	}
	return h
}
