// Package chain implements the Connection Supervisor (C1): one
// supervised upstream event subscription per chain, with reconnection,
// exponential backoff + jitter, health-scored endpoint rotation, and
// staleness/block-gap detection (spec.md §4.1).
//
// Adapted from the teacher's internal/exchange package: Exchange was an
// interface for CEX REST+WS account access (balances, orders, positions);
// here the core only ever consumes a *log* subscription from an upstream
// chain endpoint, so the interface is narrowed to that single capability
// (spec.md §1: "EVM/Solana RPC and signing... external collaborators" —
// this core never signs or calls contract methods, only subscribes).
// WSReconnectManager's state machine, ping/pong, and backoff idiom carry
// over directly (internal/exchange/ws_reconnect.go).
package chain

import "time"

// DecodedLog is one upstream log event, tagged with the time it arrived
// at this process (spec.md §6 "Upstream event source").
type DecodedLog struct {
	Address         string
	Topics          []string
	Data            []byte
	BlockNumber     uint64
	TransactionHash string
	ArrivedAtMillis int64
}

// ErrorClass classifies a subscription error as reported by the upstream
// (spec.md §6: "classifiable as rate-limited, over-capacity, or other").
type ErrorClass int

const (
	ErrorOther ErrorClass = iota
	ErrorRateLimited
	ErrorOverCapacity
)

// Endpoint is one candidate upstream connection (primary or fallback).
type Endpoint struct {
	URL string
}

// Health reports one endpoint's current score (spec.md §4.1 "getHealth").
type Health struct {
	URL           string
	LatencyP95Ms  float64
	SuccessRate   float64 // in [0,1]
	BlocksBehind  uint64
	OverallScore  float64 // in [0,100]
	Excluded      bool
	ExcludedUntil time.Time
}

// StalenessTier maps a chain's block time to the staleness threshold used
// to detect a dead subscription (spec.md §4.1: "5s / 10s / 15s tiers").
func StalenessTier(blockTimeMillis int64) time.Duration {
	switch {
	case blockTimeMillis <= 3000:
		return 5 * time.Second
	case blockTimeMillis <= 8000:
		return 10 * time.Second
	default:
		return 15 * time.Second
	}
}

// RateLimitCooldown returns the cooldown duration for the Nth (0-indexed)
// consecutive rate-limit classification on one endpoint, per the schedule
// in spec.md §4.1: 30s -> 60s -> 120s -> 240s, capped at 300s.
func RateLimitCooldown(consecutiveHits int) time.Duration {
	schedule := []time.Duration{30 * time.Second, 60 * time.Second, 120 * time.Second, 240 * time.Second}
	if consecutiveHits < 0 {
		consecutiveHits = 0
	}
	if consecutiveHits >= len(schedule) {
		return 300 * time.Second
	}
	return schedule[consecutiveHits]
}
