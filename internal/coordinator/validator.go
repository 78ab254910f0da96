package coordinator

import (
	"time"

	"dexarb/internal/metrics"
	"dexarb/internal/models"
)

// ValidationResult reports whether an Opportunity passed validation,
// and if not, a short reason string used both for logging and for the
// coordinator.validation_failed_total{reason} counter.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Validate runs structural and business validation on opp (spec.md
// §4.9 step 2: "structural (required fields present) and business
// (netBps ∈ [−10000, +10000]; chainId known; expiryMillis > now)").
func Validate(opp models.Opportunity, knownChains map[string]bool, now time.Time) ValidationResult {
	if r := validateStructure(opp); !r.Valid {
		metrics.ValidationFailedTotal.WithLabelValues(r.Reason).Inc()
		return r
	}
	if r := validateBusiness(opp, knownChains, now); !r.Valid {
		metrics.ValidationFailedTotal.WithLabelValues(r.Reason).Inc()
		return r
	}
	return ValidationResult{Valid: true}
}

func validateStructure(opp models.Opportunity) ValidationResult {
	if opp.ID == "" {
		return ValidationResult{Reason: "missing_id"}
	}
	if opp.ChainID == "" {
		return ValidationResult{Reason: "missing_chain_id"}
	}
	if len(opp.Legs) == 0 {
		return ValidationResult{Reason: "missing_legs"}
	}
	for _, leg := range opp.Legs {
		if leg.DexID == "" || leg.Token0 == "" || leg.Token1 == "" {
			return ValidationResult{Reason: "incomplete_leg"}
		}
	}
	return ValidationResult{Valid: true}
}

func validateBusiness(opp models.Opportunity, knownChains map[string]bool, now time.Time) ValidationResult {
	if opp.NetBps < -10000 || opp.NetBps > 10000 {
		return ValidationResult{Reason: "net_bps_out_of_range"}
	}
	if !knownChains[opp.ChainID] {
		return ValidationResult{Reason: "unknown_chain"}
	}
	if opp.ExpiryMillis <= now.UnixMilli() {
		return ValidationResult{Reason: "already_expired"}
	}
	return ValidationResult{Valid: true}
}
