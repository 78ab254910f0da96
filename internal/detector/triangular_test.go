package detector

import (
	"testing"

	"dexarb/internal/models"
	"dexarb/internal/pair"
)

// buildTriangle sets up three pools forming A->B->C->A with a combined
// price product comfortably above 1 so the cycle clears fees at the
// default trade size (spec.md §4.3 "Triangular (3-token)").
func buildTriangle(t *testing.T) (*pair.Repository, *models.Pair) {
	t.Helper()
	repo := pair.NewRepository()
	now := int64(1_700_000_000_000)

	pAB := newTestPair(t, repo, "eth", "0xpool_ab", "uniswap", "tokA", "tokB", 0, 1_000_000, 2_000_000, now, 100)
	newTestPair(t, repo, "eth", "0xpool_bc", "uniswap", "tokB", "tokC", 0, 1_000_000, 2_000_000, now, 100)
	newTestPair(t, repo, "eth", "0xpool_ca", "uniswap", "tokC", "tokA", 0, 1_000_000, 300_000, now, 100)

	return repo, pAB
}

func TestDetector_ScanCycles_FindsProfitableTriangle(t *testing.T) {
	repo, pAB := buildTriangle(t)

	cfg := DefaultConfig("eth")
	cfg.MinProfitBps = 0
	cfg.GasEstimate = 0

	d := New(cfg, repo, nil, nil)
	t.Cleanup(d.Close)

	opps := d.scanCycles("eth", pAB.Address, 3, 3, models.KindTriangular)
	if len(opps) == 0 {
		t.Fatal("expected at least one triangular opportunity from the profitable loop")
	}
	for _, opp := range opps {
		if opp.Kind != models.KindTriangular {
			t.Errorf("expected KindTriangular, got %s", opp.Kind)
		}
		if len(opp.Legs) != 3 {
			t.Errorf("expected a 3-leg cycle, got %d legs", len(opp.Legs))
		}
		if opp.NetBps <= 0 {
			t.Errorf("expected positive netBps, got %d", opp.NetBps)
		}
	}
}

func TestDetector_ScanCycles_DedupesByCanonicalSignature(t *testing.T) {
	repo, pAB := buildTriangle(t)
	cfg := DefaultConfig("eth")
	cfg.MinProfitBps = 0
	cfg.GasEstimate = 0
	d := New(cfg, repo, nil, nil)
	t.Cleanup(d.Close)

	opps := d.scanCycles("eth", pAB.Address, 3, 3, models.KindTriangular)

	seen := make(map[string]bool)
	for _, opp := range opps {
		legKey := ""
		for _, l := range opp.Legs {
			legKey += l.DexID + ":" + l.Token0 + ">" + l.Token1 + "|"
		}
		if seen[legKey] {
			t.Errorf("cycle %q reported more than once", legKey)
		}
		seen[legKey] = true
	}
}

func TestDetector_ScanCycles_UnknownAddressReturnsNil(t *testing.T) {
	repo, _ := buildTriangle(t)
	d := New(DefaultConfig("eth"), repo, nil, nil)
	t.Cleanup(d.Close)

	if opps := d.scanCycles("eth", "0xnotapool", 3, 3, models.KindTriangular); opps != nil {
		t.Errorf("expected nil for an unknown starting address, got %v", opps)
	}
}
