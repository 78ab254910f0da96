// Package idhash computes the deterministic Opportunity id (spec.md §3:
// "id (deterministic hash of {chain, legs, block})") and the coordinator's
// duplicate-window key. Both need a stable, non-secret content hash, not a
// salted password KDF — so unlike the teacher's pkg/crypto/hash.go (bcrypt,
// built for slow one-way password verification), this uses sha256 directly.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// Leg is the minimal shape idhash needs from an opportunity leg; kept
// local (not imported from internal/models) so this package has no
// dependency on the domain model and stays trivially unit-testable.
type Leg struct {
	DexID  string
	Token0 string
	Token1 string
}

// OpportunityID returns the deterministic id for an opportunity: a sha256
// hex digest over chainId, blockNumber, and the ordered legs. Two calls
// with identical inputs always produce the same id, which is what lets
// the detector and the coordinator agree on identity without a shared
// sequence counter.
func OpportunityID(chainID string, blockNumber uint64, legs []Leg) string {
	var b strings.Builder
	fmt.Fprintf(&b, "chain=%s;block=%d", chainID, blockNumber)
	for _, leg := range legs {
		fmt.Fprintf(&b, ";leg=%s:%s:%s", leg.DexID, leg.Token0, leg.Token1)
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// DuplicateKey returns the coordinator's duplicate-suppression key: a hash
// over {chainId, sortedLegKey, blockNumber} (spec.md §4.9 step 3). Legs are
// sorted first so the same cycle starting at a different leg still hashes
// identically.
func DuplicateKey(chainID string, blockNumber uint64, legs []Leg) string {
	keys := make([]string, 0, len(legs))
	for _, leg := range legs {
		keys = append(keys, fmt.Sprintf("%s:%s:%s", leg.DexID, leg.Token0, leg.Token1))
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "chain=%s;block=%d;legs=%s", chainID, blockNumber, strings.Join(keys, ","))
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
