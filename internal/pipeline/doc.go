// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline orchestrates the ecoroute decision stages: semantic cache
// gate, complexity classification, and model selection.
//
// The pipeline is a decision layer only. It never calls the routed model
// itself; callers take the returned model id to their own gateway and store
// the eventual answer back through StoreAnswer.
//
// # Stage Ordering
//
// A cache hit ends the pipeline before classification runs; the other
// stages always run in classify-then-select order on a miss.
//
// # Degraded Modes
//
//   - Cache unreachable: logged, treated as a miss.
//   - Classifier unreachable: logged, the default score drives selection and
//     the result is marked Degraded.
//   - Ledger write failed: logged, queued for background retry; the accepted
//     switch stands.
//   - Empty catalog: fatal, the only way a decision fails outright.
//
// # Key Types
//
//   - Engine: RouteQuery / CheckSuggestion / ConfirmSwitch / StoreAnswer
//   - RouteResult: Cache hit or (model, score) decision
package pipeline
