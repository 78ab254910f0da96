package models

import (
	"math/big"
	"strings"
)

// TokenPairKey is the canonical, order-independent identifier of a token
// pair on one chain (spec.md §3): tokenA <= tokenB lexicographically, so
// the same two tokens always hash to the same key regardless of which DEX
// or which pool ordered them reserve0/reserve1.
type TokenPairKey struct {
	ChainID string
	TokenA  string
	TokenB  string
}

// NewTokenPairKey canonicalizes token0/token1 into a TokenPairKey.
func NewTokenPairKey(chainID, token0, token1 string) TokenPairKey {
	if token0 <= token1 {
		return TokenPairKey{ChainID: chainID, TokenA: token0, TokenB: token1}
	}
	return TokenPairKey{ChainID: chainID, TokenA: token1, TokenB: token0}
}

// String renders a TokenPairKey as a stable map/log key.
func (k TokenPairKey) String() string {
	var b strings.Builder
	b.WriteString(k.ChainID)
	b.WriteByte(':')
	b.WriteString(k.TokenA)
	b.WriteByte('/')
	b.WriteString(k.TokenB)
	return b.String()
}

// Pair is a single DEX liquidity pool (spec.md §3 "Pair"). It is owned
// exclusively by the Pair Repository of one chain partition: created on
// factory discovery or static config, mutated only by the Event Decoder
// on reserve-update events, and never destroyed before process exit.
//
// reserve0/reserve1 are mutated in place on the hot path (no structural
// copy, no reallocation) — see internal/decode's Decoder.ApplyReserveUpdate.
type Pair struct {
	ChainID  string
	Address  string // pool address, lower-cased
	DexID    string
	Token0   string
	Token1   string
	FeeBps   int64
	Reserve0 *big.Int
	Reserve1 *big.Int

	BlockNumber      uint64
	LastUpdateMillis int64

	// ChainPairKey is precomputed at pair creation so the hot path never
	// allocates a key string (spec.md §4.2).
	ChainPairKey TokenPairKey
}

// NewPair constructs a Pair with its reserves and canonical key set, ready
// to be inserted into the repository.
func NewPair(chainID, address, dexID, token0, token1 string, feeBps int64) *Pair {
	return &Pair{
		ChainID:      chainID,
		Address:      strings.ToLower(address),
		DexID:        dexID,
		Token0:       token0,
		Token1:       token1,
		FeeBps:       feeBps,
		Reserve0:     new(big.Int),
		Reserve1:     new(big.Int),
		ChainPairKey: NewTokenPairKey(chainID, token0, token1),
	}
}

// Snapshot returns an immutable copy of the pair for detection use, so
// readers never race with C3's in-place mutation (spec.md §3
// "PairSnapshot").
func (p *Pair) Snapshot() PairSnapshot {
	return PairSnapshot{
		ChainID:          p.ChainID,
		Address:          p.Address,
		DexID:            p.DexID,
		Token0:           p.Token0,
		Token1:           p.Token1,
		FeeBps:           p.FeeBps,
		Reserve0:         new(big.Int).Set(p.Reserve0),
		Reserve1:         new(big.Int).Set(p.Reserve1),
		BlockNumber:      p.BlockNumber,
		LastUpdateMillis: p.LastUpdateMillis,
		ChainPairKey:     p.ChainPairKey,
	}
}

// PairSnapshot is an immutable copy of a Pair used for detection so reads
// never race a concurrent decoder mutation. Created on demand, discarded
// after the detection call.
type PairSnapshot struct {
	ChainID  string
	Address  string
	DexID    string
	Token0   string
	Token1   string
	FeeBps   int64
	Reserve0 *big.Int
	Reserve1 *big.Int

	BlockNumber      uint64
	LastUpdateMillis int64
	ChainPairKey     TokenPairKey
}

// PriceUpdate is the immutable record emitted by the Event Decoder on a
// successful reserve mutation (spec.md §3 "PriceUpdate"). Its lifetime is
// at most one detection cycle unless captured by the Publisher.
type PriceUpdate struct {
	ChainID string
	Address string
	DexID   string

	MidPrice *big.Rat
	Reserve0 *big.Int
	Reserve1 *big.Int

	BlockNumber         uint64
	SourceReceivedMillis int64
	PublishedMillis      int64 // 0 until C10 publishes it
}
