// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package classify assigns an integer 1-10 complexity score to queries by
// delegating to a lightweight external scorer model.
//
// Classification is advisory, not safety-critical. The classifier is
// defensive on every edge: out-of-range replies clamp to the nearest bound,
// unparseable replies fall back to the documented default of 5 ("balanced"),
// and only an unreachable scorer surfaces ErrClassifierUnavailable. Callers
// treat that as a degraded-mode signal and keep serving the request.
//
// # Key Types
//
//   - Classifier: Scoring front-end with timeout and rate limiting
//   - Scorer: External collaborator contract
//   - OpenRouterScorer: HTTP scorer backed by OpenRouter chat completions
//
// # Usage
//
//	scorer := classify.NewOpenRouterScorer(apiKey)
//	clf := classify.New(scorer, classify.WithRateLimit(5, 2))
//	score, err := clf.Classify(ctx, query)
//	if errors.Is(err, classify.ErrClassifierUnavailable) {
//	    // score already holds DefaultComplexity; log and continue
//	}
package classify
