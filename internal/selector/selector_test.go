// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package selector

import (
	"errors"
	"testing"

	"github.com/jeranaias/ecoroute/internal/catalog"
)

// testCatalog builds a catalog spanning the tier range with distinct costs.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.ModelRecord{
		{ID: "nano", Name: "Nano", Provider: "groq", Tier: 2, CostInputPerK: 0.0001, CostOutputPerK: 0.0002, CO2Grams: 0.2},
		{ID: "mini", Name: "Mini", Provider: "openai", Tier: 5, CostInputPerK: 0.0005, CostOutputPerK: 0.0015, CO2Grams: 1.0},
		{ID: "large", Name: "Large", Provider: "openai", Tier: 8, CostInputPerK: 0.005, CostOutputPerK: 0.015, CO2Grams: 5.0},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	return cat
}

func TestSelectForComplexity(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name  string
		score int
		want  string
	}{
		{"low complexity takes the cheapest low tier", 1, "nano"},
		{"score at tier boundary", 2, "nano"},
		{"score just above a tier", 3, "mini"},
		{"mid complexity", 5, "mini"},
		{"high complexity", 8, "large"},
		{"score above catalog top falls back to highest tier", 9, "large"},
		{"max score falls back to highest tier", 10, "large"},
		{"score below range clamps to min", 0, "nano"},
		{"score above range clamps to max", 15, "large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := SelectForComplexity(cat, tt.score)
			if err != nil {
				t.Fatalf("SelectForComplexity(%d): %v", tt.score, err)
			}
			if got.ID != tt.want {
				t.Errorf("SelectForComplexity(%d) = %s, want %s", tt.score, got.ID, tt.want)
			}
		})
	}
}

func TestSelectForComplexityPicksCheapestAdequate(t *testing.T) {
	// Two adequate models; the higher-tier one is cheaper and must win.
	cat, err := catalog.New([]catalog.ModelRecord{
		{ID: "pricey", Tier: 5, CostInputPerK: 0.010, CO2Grams: 1.0},
		{ID: "bargain", Tier: 9, CostInputPerK: 0.002, CO2Grams: 3.0},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}

	got, err := SelectForComplexity(cat, 4)
	if err != nil {
		t.Fatalf("SelectForComplexity: %v", err)
	}
	if got.ID != "bargain" {
		t.Errorf("want the cheaper adequate model regardless of tier, got %s", got.ID)
	}
}

func TestSelectForComplexityTieBreaks(t *testing.T) {
	tests := []struct {
		name    string
		records []catalog.ModelRecord
		want    string
	}{
		{
			name: "cost tie breaks by CO2",
			records: []catalog.ModelRecord{
				{ID: "dirty", Tier: 5, CostInputPerK: 0.001, CO2Grams: 4.0},
				{ID: "clean", Tier: 6, CostInputPerK: 0.001, CO2Grams: 1.0},
			},
			want: "clean",
		},
		{
			name: "cost and CO2 tie breaks by lower tier",
			records: []catalog.ModelRecord{
				{ID: "high", Tier: 8, CostInputPerK: 0.001, CO2Grams: 1.0},
				{ID: "low", Tier: 5, CostInputPerK: 0.001, CO2Grams: 1.0},
			},
			want: "low",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cat, err := catalog.New(tt.records)
			if err != nil {
				t.Fatalf("catalog.New: %v", err)
			}
			got, err := SelectForComplexity(cat, 3)
			if err != nil {
				t.Fatalf("SelectForComplexity: %v", err)
			}
			if got.ID != tt.want {
				t.Errorf("got %s, want %s", got.ID, tt.want)
			}
		})
	}
}

func TestSelectForComplexityEmptyCatalog(t *testing.T) {
	_, err := SelectForComplexity(nil, 5)
	if !errors.Is(err, catalog.ErrCatalogEmpty) {
		t.Errorf("want ErrCatalogEmpty, got %v", err)
	}
}

func TestEvaluateDeadBand(t *testing.T) {
	cat := testCatalog(t)

	tests := []struct {
		name           string
		chosenID       string
		score          int
		wantSuggestion bool
		wantUpgrade    bool
	}{
		// chosen tier 8 vs score: gap = 8 - score
		{"gap of 3 triggers downgrade", "large", 5, true, false},
		{"gap of 2 stays silent", "large", 6, false, false},
		{"gap of 0 stays silent", "large", 8, false, false},
		{"gap of -3 triggers upgrade", "mini", 8, true, true},
		{"gap of -2 stays silent", "mini", 7, false, false},
		{"large positive gap triggers downgrade", "large", 1, true, false},
		{"large negative gap triggers upgrade", "nano", 10, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chosen, err := cat.ByID(tt.chosenID)
			if err != nil {
				t.Fatalf("ByID(%s): %v", tt.chosenID, err)
			}
			decision, err := Evaluate(cat, tt.score, chosen)
			if err != nil {
				t.Fatalf("Evaluate: %v", err)
			}
			if (decision != nil) != tt.wantSuggestion {
				t.Fatalf("suggestion presence = %v, want %v", decision != nil, tt.wantSuggestion)
			}
			if decision != nil && decision.IsUnderEngineered != tt.wantUpgrade {
				t.Errorf("IsUnderEngineered = %v, want %v", decision.IsUnderEngineered, tt.wantUpgrade)
			}
		})
	}
}

func TestEvaluateBranchesAreMutuallyExclusive(t *testing.T) {
	cat := testCatalog(t)
	// Cross product of every model and score: no decision may flip both ways.
	for _, chosen := range cat.Models() {
		for score := catalog.MinTier; score <= catalog.MaxTier; score++ {
			decision, err := Evaluate(cat, score, chosen)
			if err != nil {
				t.Fatalf("Evaluate(%s, %d): %v", chosen.ID, score, err)
			}
			gap := chosen.Tier - score
			if gap < SuggestionTierGap && gap > -SuggestionTierGap {
				if decision != nil {
					t.Errorf("Evaluate(%s, %d): suggestion inside dead-band (gap %d)", chosen.ID, score, gap)
				}
				continue
			}
			if decision == nil {
				// The best alternative can be the chosen model itself.
				continue
			}
			if gap >= SuggestionTierGap && decision.IsUnderEngineered {
				t.Errorf("Evaluate(%s, %d): over-engineered gap %d marked as upgrade", chosen.ID, score, gap)
			}
			if gap <= -SuggestionTierGap && !decision.IsUnderEngineered {
				t.Errorf("Evaluate(%s, %d): under-powered gap %d marked as downgrade", chosen.ID, score, gap)
			}
		}
	}
}

func TestEvaluateDeltaSigns(t *testing.T) {
	cat := testCatalog(t)

	// Downgrade: large (tier 8) for a score-2 query suggests nano.
	large, _ := cat.ByID("large")
	decision, err := Evaluate(cat, 2, large)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision == nil || decision.IsUnderEngineered {
		t.Fatalf("want a downgrade decision, got %+v", decision)
	}
	if decision.SuggestedModel.ID != "nano" {
		t.Errorf("suggested = %s, want nano", decision.SuggestedModel.ID)
	}
	if decision.CostDeltaInput <= 0 || decision.CostDeltaOutput <= 0 || decision.CO2Delta <= 0 {
		t.Errorf("downgrade deltas must be positive savings, got %+v", decision)
	}
	wantInput := large.CostInputPerK - decision.SuggestedModel.CostInputPerK
	if decision.CostDeltaInput != wantInput {
		t.Errorf("CostDeltaInput = %g, want %g", decision.CostDeltaInput, wantInput)
	}

	// Upgrade: nano (tier 2) for a score-8 query suggests large.
	nano, _ := cat.ByID("nano")
	decision, err = Evaluate(cat, 8, nano)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision == nil || !decision.IsUnderEngineered {
		t.Fatalf("want an upgrade decision, got %+v", decision)
	}
	if decision.SuggestedModel.ID != "large" {
		t.Errorf("suggested = %s, want large", decision.SuggestedModel.ID)
	}
	if decision.CostDeltaInput <= 0 {
		t.Errorf("upgrade delta must be positive added cost, got %g", decision.CostDeltaInput)
	}
}

func TestEvaluateSuppressesSelfSuggestion(t *testing.T) {
	// Only one model: any gap resolves to the chosen model itself.
	cat, err := catalog.New([]catalog.ModelRecord{
		{ID: "only", Tier: 9, CostInputPerK: 0.001, CO2Grams: 1.0},
	})
	if err != nil {
		t.Fatalf("catalog.New: %v", err)
	}
	only, _ := cat.ByID("only")
	decision, err := Evaluate(cat, 1, only)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if decision != nil {
		t.Errorf("want nil decision when suggested == chosen, got %+v", decision)
	}
}

func TestSuggestionDecisionReason(t *testing.T) {
	cat := testCatalog(t)
	large, _ := cat.ByID("large")
	decision, err := Evaluate(cat, 2, large)
	if err != nil || decision == nil {
		t.Fatalf("Evaluate: decision=%v err=%v", decision, err)
	}
	if decision.Reason() == "" {
		t.Error("Reason() returned empty string")
	}
}
