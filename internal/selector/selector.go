// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// selector.go - Cheapest-adequate selection and suggestion evaluation.
package selector

import (
	"fmt"

	"github.com/jeranaias/ecoroute/internal/catalog"
)

// =============================================================================
// POLICY CONSTANTS
// =============================================================================

// SuggestionTierGap is the dead-band width for suggestion checks.
// A suggestion is issued only when |chosen.Tier - score| >= SuggestionTierGap;
// smaller mismatches are tolerated to avoid suggestion fatigue.
const SuggestionTierGap = 3

// =============================================================================
// SUGGESTION DECISION
// =============================================================================

// SuggestionDecision is the advisory result of a suggestion check.
//
// Delta sign convention:
//   - IsUnderEngineered == false (downgrade): deltas are chosen - suggested,
//     i.e. the savings realized if the caller accepts.
//   - IsUnderEngineered == true (upgrade): deltas are suggested - chosen,
//     i.e. the added cost of the safer model, reported for transparency.
//
// In both branches a positive delta is the magnitude of the difference.
// The pipeline never substitutes the model itself; only the caller's
// explicit acceptance of a downgrade feeds the savings ledger.
type SuggestionDecision struct {
	// CurrentModel is the model the caller picked.
	CurrentModel catalog.ModelRecord `json:"current_model"`
	// SuggestedModel is the alternative the engine recommends.
	SuggestedModel catalog.ModelRecord `json:"suggested_model"`
	// ComplexityScore is the classified query complexity (1-10).
	ComplexityScore int `json:"complexity_score"`
	// IsUnderEngineered is true when the suggestion raises rather than
	// lowers the tier (the chosen model is under-powered for the query).
	IsUnderEngineered bool `json:"is_under_engineered"`
	// CostDeltaInput is the per-1K input token cost difference.
	CostDeltaInput float64 `json:"cost_delta_input"`
	// CostDeltaOutput is the per-1K output token cost difference.
	CostDeltaOutput float64 `json:"cost_delta_output"`
	// CO2Delta is the per-call CO2 difference in grams.
	CO2Delta float64 `json:"co2_delta"`
	// ScoreDegraded is true when ComplexityScore is the classifier's
	// fallback default rather than a real classification. Set by the
	// pipeline; Evaluate itself never sets it.
	ScoreDegraded bool `json:"score_degraded"`
}

// Reason returns a human-readable explanation of the suggestion.
func (d SuggestionDecision) Reason() string {
	if d.IsUnderEngineered {
		return fmt.Sprintf(
			"query complexity %d exceeds %s (tier %d); %s (tier %d) clears the bar at +$%.4f/1K input",
			d.ComplexityScore, d.CurrentModel.ID, d.CurrentModel.Tier,
			d.SuggestedModel.ID, d.SuggestedModel.Tier, d.CostDeltaInput)
	}
	return fmt.Sprintf(
		"query complexity %d only needs tier %d; %s (tier %d) saves $%.4f/1K input and %.2fg CO2 over %s",
		d.ComplexityScore, d.ComplexityScore,
		d.SuggestedModel.ID, d.SuggestedModel.Tier,
		d.CostDeltaInput, d.CO2Delta, d.CurrentModel.ID)
}

// =============================================================================
// AUTOMATIC SELECTION
// =============================================================================

// SelectForComplexity chooses the cheapest adequate model for a score.
//
// Among all records with Tier >= score the winner has the lowest
// CostInputPerK; ties break by lowest CO2Grams, then lowest Tier (never
// over-provision when cost and CO2 tie). If no record clears the bar the
// highest-tier record is returned as a fallback, so a score of 10 still
// routes when the catalog tops out lower.
func SelectForComplexity(cat *catalog.Catalog, score int) (catalog.ModelRecord, error) {
	if cat == nil || cat.Len() == 0 {
		return catalog.ModelRecord{}, catalog.ErrCatalogEmpty
	}
	if score < catalog.MinTier {
		score = catalog.MinTier
	}
	if score > catalog.MaxTier {
		score = catalog.MaxTier
	}

	adequate := cat.AtOrAbove(score)
	if len(adequate) == 0 {
		// Catalog tops out below the requested score.
		return cat.HighestTier(), nil
	}

	best := adequate[0]
	for _, rec := range adequate[1:] {
		if cheaperThan(rec, best) {
			best = rec
		}
	}
	return best, nil
}

// cheaperThan applies the selection ordering: input cost, then CO2, then tier.
func cheaperThan(a, b catalog.ModelRecord) bool {
	if a.CostInputPerK != b.CostInputPerK {
		return a.CostInputPerK < b.CostInputPerK
	}
	if a.CO2Grams != b.CO2Grams {
		return a.CO2Grams < b.CO2Grams
	}
	return a.Tier < b.Tier
}

// =============================================================================
// SUGGESTION CHECK
// =============================================================================

// Evaluate decides whether to suggest an alternative to the caller's chosen
// model for a query of the given complexity score.
//
// Returns nil when the tier gap is inside the dead-band (|gap| < 3), when the
// best alternative is the chosen model itself, or when the catalog cannot
// produce an alternative. The two branches are mutually exclusive for any
// single gap value; the dead-band guarantees one of them is skipped.
func Evaluate(cat *catalog.Catalog, score int, chosen catalog.ModelRecord) (*SuggestionDecision, error) {
	if cat == nil || cat.Len() == 0 {
		return nil, catalog.ErrCatalogEmpty
	}

	tierGap := chosen.Tier - score
	if tierGap < SuggestionTierGap && tierGap > -SuggestionTierGap {
		return nil, nil
	}

	suggested, err := SelectForComplexity(cat, score)
	if err != nil {
		return nil, err
	}
	if suggested.ID == chosen.ID {
		// The chosen model is already the best the catalog can do.
		return nil, nil
	}

	decision := &SuggestionDecision{
		CurrentModel:    chosen,
		SuggestedModel:  suggested,
		ComplexityScore: score,
	}

	if tierGap >= SuggestionTierGap {
		// Over-engineered: deltas are the savings of stepping down.
		decision.IsUnderEngineered = false
		decision.CostDeltaInput = chosen.CostInputPerK - suggested.CostInputPerK
		decision.CostDeltaOutput = chosen.CostOutputPerK - suggested.CostOutputPerK
		decision.CO2Delta = chosen.CO2Grams - suggested.CO2Grams
	} else {
		// Under-powered: deltas are the added cost of the safer model.
		decision.IsUnderEngineered = true
		decision.CostDeltaInput = suggested.CostInputPerK - chosen.CostInputPerK
		decision.CostDeltaOutput = suggested.CostOutputPerK - chosen.CostOutputPerK
		decision.CO2Delta = suggested.CO2Grams - chosen.CO2Grams
	}

	return decision, nil
}
