package bigmath

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComparePrices(t *testing.T) {
	// Pool A: 1000 WETH / 2,000,000 USDC -> price 2000
	// Pool B: 1000 WETH / 2,020,000 USDC -> price 2020 (richer)
	a0, a1 := big.NewInt(1000), big.NewInt(2_000_000)
	b0, b1 := big.NewInt(1000), big.NewInt(2_020_000)

	assert.Negative(t, ComparePrices(a0, a1, b0, b1), "pool A should be cheaper than pool B")
	assert.Zero(t, ComparePrices(a0, a1, a0, a1), "a pool compared to itself is equal")
}

func TestSwapOutZeroReserves(t *testing.T) {
	out := SwapOut(big.NewInt(100), big.NewInt(0), big.NewInt(100), 30)
	require.NotNil(t, out)
	assert.Zero(t, out.Sign(), "expected zero output on zero reserves")
}

func TestSwapOutConstantProductFormula(t *testing.T) {
	// reserveIn=1_000_000, reserveOut=2_000_000, feeBps=30, amountIn=1000
	amountIn := big.NewInt(1000)
	out := SwapOut(amountIn, big.NewInt(1_000_000), big.NewInt(2_000_000), 30)

	amountInWithFee := new(big.Int).Mul(amountIn, big.NewInt(BpsDenominator-30))
	numerator := new(big.Int).Mul(amountInWithFee, big.NewInt(2_000_000))
	denominator := new(big.Int).Add(new(big.Int).Mul(big.NewInt(1_000_000), big.NewInt(BpsDenominator)), amountInWithFee)
	want := new(big.Int).Div(numerator, denominator)

	assert.Equal(t, want, out)
}

func TestClampBps(t *testing.T) {
	cases := map[int64]int64{
		-20000: MinProfitBps,
		20000:  MaxProfitBps,
		42:     42,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClampBps(in), "ClampBps(%d)", in)
	}
}

func TestNetBpsProfitable(t *testing.T) {
	amountIn := big.NewInt(1000)
	// cheap pool (token1 is cheap here): price 2020 token1/token0; buy token1 with token0
	cheapReserveIn, cheapReserveOut := big.NewInt(1_000_000), big.NewInt(2_020_000_000)
	// rich pool: price 2000 token1/token0; sell token1 back into token0
	richReserveIn, richReserveOut := big.NewInt(2_000_000_000), big.NewInt(1_000_000)

	net := NetBps(amountIn, cheapReserveIn, cheapReserveOut, 30, richReserveIn, richReserveOut, 30, 0)
	assert.Positive(t, net, "expected a profitable round trip")
}

func TestGrossBpsMatchesNetBpsBeforeGas(t *testing.T) {
	amountIn := big.NewInt(1000)
	cheapReserveIn, cheapReserveOut := big.NewInt(1_000_000), big.NewInt(2_000_000_000)
	richReserveIn, richReserveOut := big.NewInt(2_020_000_000), big.NewInt(1_000_000)

	gross := GrossBps(amountIn, cheapReserveIn, cheapReserveOut, 30, richReserveIn, richReserveOut, 30)
	net := NetBps(amountIn, cheapReserveIn, cheapReserveOut, 30, richReserveIn, richReserveOut, 30, 0)
	assert.Equal(t, gross, net, "with zero gas cost, gross and net bps must agree")
}

func TestPoolDepth(t *testing.T) {
	assert.Equal(t, big.NewInt(5), PoolDepth(big.NewInt(5), big.NewInt(9)))
	assert.Equal(t, big.NewInt(5), PoolDepth(big.NewInt(9), big.NewInt(5)))
}

func TestFNV1a32Deterministic(t *testing.T) {
	assert.Equal(t, FNV1a32("pair-a"), FNV1a32("pair-a"), "hash must be deterministic")
	assert.NotEqual(t, FNV1a32("pair-a"), FNV1a32("pair-b"), "distinct inputs collided unexpectedly in this test fixture")
}
