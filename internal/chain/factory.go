package chain

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"dexarb/internal/models"
	"dexarb/internal/pair"
)

// StaticPairSpec is one entry of a static pair-bootstrap file (spec.md
// §3 "Created on factory discovery or static config"). On-chain factory
// event discovery (watching a DEX factory contract for PairCreated logs)
// is not implemented here: every pair this core ever trades against is
// known ahead of time through operator-maintained config, which is the
// deployment model the teacher's own config loader assumes throughout
// (internal/config/config.go's CHAINS_CONFIG_FILE convention).
type StaticPairSpec struct {
	Address string `json:"address"`
	DexID   string `json:"dexId"`
	Token0  string `json:"token0"`
	Token1  string `json:"token1"`
	FeeBps  int64  `json:"feeBps"`
}

// LoadStaticPairs reads a JSON array of StaticPairSpec from path, decoded
// with jsoniter for consistency with internal/config's chain-map loader.
func LoadStaticPairs(path string) ([]StaticPairSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var specs []StaticPairSpec
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.Unmarshal(data, &specs); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return specs, nil
}

// RegisterStaticPairs builds a models.Pair for each spec and inserts it
// into repo, seeding the Pair Repository before the chain's subscription
// starts delivering reserve updates.
func RegisterStaticPairs(repo *pair.Repository, chainID string, specs []StaticPairSpec) {
	for _, spec := range specs {
		p := models.NewPair(chainID, spec.Address, spec.DexID, spec.Token0, spec.Token1, spec.FeeBps)
		repo.UpsertPair(p)
	}
}
