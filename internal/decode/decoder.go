// Package decode implements the Event Decoder & Updater (C3): parses a
// reserve-update log into big-integer reserves, mutates the owned Pair in
// place, invalidates its snapshot, and emits a PriceUpdate (spec.md
// §4.2). Grounded on the teacher's hot-path discipline in
// internal/bot/arbitrage.go (direct field writes, no structural copies,
// sync.Pool reuse of short-lived objects) generalized from CEX ticker
// updates to DEX reserve updates.
package decode

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	"dexarb/internal/chain"
	"dexarb/internal/metrics"
	"dexarb/internal/models"
	"dexarb/internal/pair"
	"dexarb/pkg/bigmath"
	"dexarb/pkg/errkind"
)

// reserveFieldLen is the width, in bytes, of one 256-bit reserve field in
// a reserve-update log's data section (two fields, reserve0 then
// reserve1, matches the Uniswap V2 Sync event layout this core's
// reserve-update convention follows).
const reserveFieldLen = 32

// Decoder parses reserve-update logs for one chain and applies them to
// that chain's Pair Repository.
type Decoder struct {
	ChainID    string
	Repository *pair.Repository
}

// NewDecoder constructs a Decoder bound to one chain's repository.
func NewDecoder(chainID string, repo *pair.Repository) *Decoder {
	return &Decoder{ChainID: chainID, Repository: repo}
}

// ApplyReserveUpdate decodes log and mutates the repository's owned Pair
// (spec.md §4.2 "applyReserveUpdate"). Reserves are parsed into big
// integers *before* any mutation or metric recording tied to success, so
// a decode error never inflates activity counters. Returns nil, nil if
// the pair address is unmonitored (silently dropped, not an error).
func (d *Decoder) ApplyReserveUpdate(log chain.DecodedLog) (*models.PriceUpdate, error) {
	reserve0, reserve1, err := parseReserves(log.Data)
	if err != nil {
		metrics.DecodeErrorsTotal.WithLabelValues(d.ChainID).Inc()
		return nil, errkind.Wrap(errkind.Invalid, err)
	}

	p := d.Repository.LookupByAddress(log.Address)
	if p == nil {
		// Not monitored: silently dropped (spec.md §4.2 "Failure semantics").
		return nil, nil
	}

	now := time.Now().UnixMilli()

	// Hot path: direct field assignment, no structural copy.
	p.Reserve0.Set(reserve0)
	p.Reserve1.Set(reserve1)
	p.BlockNumber = log.BlockNumber
	if now > p.LastUpdateMillis {
		p.LastUpdateMillis = now
	}

	d.Repository.InvalidateSnapshot(p.Address)

	update := &models.PriceUpdate{
		ChainID:              p.ChainID,
		Address:              p.Address,
		DexID:                p.DexID,
		MidPrice:             bigmath.MidPrice(reserve0, reserve1),
		Reserve0:             reserve0,
		Reserve1:             reserve1,
		BlockNumber:          log.BlockNumber,
		SourceReceivedMillis: log.ArrivedAtMillis,
	}

	metrics.PriceUpdatesTotal.WithLabelValues(d.ChainID).Inc()
	return update, nil
}

// parseReserves extracts the two 256-bit reserve fields from a
// reserve-update log's data section (spec.md §4.2: "a reserve-update log
// has exactly two 256-bit big-integer fields").
func parseReserves(data []byte) (*big.Int, *big.Int, error) {
	if len(data) < 2*reserveFieldLen {
		return nil, nil, fmt.Errorf("decode: expected %d bytes for two reserve fields, got %d", 2*reserveFieldLen, len(data))
	}

	reserve0 := new(big.Int).SetBytes(data[0:reserveFieldLen])
	reserve1 := new(big.Int).SetBytes(data[reserveFieldLen : 2*reserveFieldLen])

	if reserve0.Sign() < 0 || reserve1.Sign() < 0 {
		return nil, nil, fmt.Errorf("decode: negative reserve")
	}

	return reserve0, reserve1, nil
}

// EncodeReservesForTest builds a reserve-update data payload from two
// uint64 reserves, exported for use by other packages' tests that need a
// well-formed log without importing encoding/binary themselves.
func EncodeReservesForTest(reserve0, reserve1 uint64) []byte {
	buf := make([]byte, 2*reserveFieldLen)
	binary.BigEndian.PutUint64(buf[reserveFieldLen-8:reserveFieldLen], reserve0)
	binary.BigEndian.PutUint64(buf[2*reserveFieldLen-8:2*reserveFieldLen], reserve1)
	return buf
}
