// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package selector maps complexity scores to the cheapest adequate model
// and decides when to suggest switching.
//
// This is the only stateful-free business logic in the pipeline: a
// deterministic tiered policy (cost, then CO2, then tier) plus a dead-band
// suggestion check. Thresholds live here as named constants so every
// boundary has test coverage.
//
// # Key Types
//
//   - SuggestionDecision: Tagged variant with an explicit IsUnderEngineered
//     discriminant and always-populated delta fields
//
// # Usage
//
// Automatic selection and a suggestion check:
//
//	rec, err := selector.SelectForComplexity(cat, score)
//	decision, err := selector.Evaluate(cat, score, chosen)
//	if decision != nil {
//	    // advisory: the caller decides whether to switch
//	}
package selector
