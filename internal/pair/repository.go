// Package pair implements the Pair Repository (C2): an O(1) in-memory
// index of monitored pools, owned exclusively by one chain task
// (spec.md §5 "Pair Repository: owned by one chain task; no external
// mutation"). Adapted from the teacher's internal/repository/pair_repository.go,
// which was a SQL CRUD stub — C2 is process-local hot-path state, not a
// database row, so this is a plain map+slice index instead of a DAL.
package pair

import (
	"strings"
	"sync"

	"dexarb/internal/models"
)

// emptyPairs is returned by LookupByTokenPair for an unknown key so the
// miss path never allocates (spec.md §4.2).
var emptyPairs = []*models.Pair{}

// Repository indexes pairs by pool address and by canonical token-pair
// key. A single RWMutex guards the two maps themselves; mutation of an
// owned Pair's fields happens without taking the write lock, since only
// the one chain task that owns the repository ever calls
// ApplyReserveUpdate (spec.md's ownership invariant) — the lock protects
// map structure (insert/lookup), not field writes.
type Repository struct {
	mu         sync.RWMutex
	byAddress  map[string]*models.Pair
	byTokenKey map[models.TokenPairKey][]*models.Pair

	// snapshotCache is the Repository's on-demand snapshot cache
	// (spec.md §4.2: "the Repository's on-demand snapshot cache is
	// invalidated"). Populated lazily by Snapshot, cleared by
	// InvalidateSnapshot on every reserve mutation.
	snapshotCache map[string]models.PairSnapshot
}

// NewRepository constructs an empty Repository.
func NewRepository() *Repository {
	return &Repository{
		byAddress:     make(map[string]*models.Pair),
		byTokenKey:    make(map[models.TokenPairKey][]*models.Pair),
		snapshotCache: make(map[string]models.PairSnapshot),
	}
}

// UpsertPair inserts a new pair or replaces the existing entry at the same
// address. Re-inserting under the same address updates both indexes.
func (r *Repository) UpsertPair(p *models.Pair) {
	addr := strings.ToLower(p.Address)

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.byAddress[addr]; ok {
		r.removeFromTokenKeyLocked(existing)
	}

	r.byAddress[addr] = p
	r.byTokenKey[p.ChainPairKey] = append(r.byTokenKey[p.ChainPairKey], p)
}

func (r *Repository) removeFromTokenKeyLocked(p *models.Pair) {
	slice := r.byTokenKey[p.ChainPairKey]
	for i, existing := range slice {
		if existing.Address == p.Address {
			r.byTokenKey[p.ChainPairKey] = append(slice[:i], slice[i+1:]...)
			return
		}
	}
}

// LookupByAddress returns the pair at address, or nil if unknown. O(1).
// The decoder (internal/decode, C3) uses the returned pointer to mutate
// reserves in place — spec.md's joint C2/C3 "applyReserveUpdate" is
// implemented as LookupByAddress followed by direct field assignment on
// the owned Pair, not a separate repository method, so the hot path never
// takes the repository's write lock.
func (r *Repository) LookupByAddress(address string) *models.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byAddress[strings.ToLower(address)]
}

// LookupByTokenPair returns every pair sharing a canonical token-pair key.
// O(1) to a small slice; returns the shared empty slice (no allocation)
// if the key is unknown.
func (r *Repository) LookupByTokenPair(key models.TokenPairKey) []*models.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if pairs, ok := r.byTokenKey[key]; ok {
		return pairs
	}
	return emptyPairs
}

// Count returns the number of distinct pairs held, for ops/health surfaces.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}

// AllPairs returns a snapshot slice of every pair currently held, used by
// the Detector's off-path triangular/multi-leg scan to build its token
// graph. Not called from the hot path, so the allocation here is
// acceptable (spec.md §4.3 "off-path using a bounded worker-task budget").
func (r *Repository) AllPairs() []*models.Pair {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.Pair, 0, len(r.byAddress))
	for _, p := range r.byAddress {
		out = append(out, p)
	}
	return out
}

// Snapshot returns the cached PairSnapshot for address, taking one on
// demand if none is cached yet (spec.md §3 "PairSnapshot": created on
// demand, discarded after the detection call — here "discarded" means
// "rebuilt on the next mutation", not "freed after one read", since many
// 2-pair scans read the same pair within one arrival-ordered burst).
func (r *Repository) Snapshot(address string) (models.PairSnapshot, bool) {
	addr := strings.ToLower(address)

	r.mu.RLock()
	if snap, ok := r.snapshotCache[addr]; ok {
		r.mu.RUnlock()
		return snap, true
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byAddress[addr]
	if !ok {
		return models.PairSnapshot{}, false
	}
	snap := p.Snapshot()
	r.snapshotCache[addr] = snap
	return snap, true
}

// InvalidateSnapshot drops the cached snapshot for address; called by the
// Event Decoder (C3) immediately after every reserve mutation so the next
// Snapshot call reflects the new reserves (spec.md §4.2).
func (r *Repository) InvalidateSnapshot(address string) {
	addr := strings.ToLower(address)
	r.mu.Lock()
	delete(r.snapshotCache, addr)
	r.mu.Unlock()
}
