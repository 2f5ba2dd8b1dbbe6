// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cache provides the semantic cache gate: answering a query from a
// stored prior answer when a near-duplicate query exists.
//
// The gate sits at the front of the decision pipeline. A hit returns the
// cached answer plus the source model id so the caller can report the cost
// and CO2 of the model that would otherwise have run. A miss returns
// nothing; the caller stores the eventual answer with an explicit Store
// call, so partially-failed answers never enter the cache.
//
// # Key Types
//
//   - Gate: Lookup/Store front-end with the 0.90 similarity threshold
//   - Embedder: Embedding collaborator contract
//   - VectorIndex: Vector store collaborator contract
//   - SQLiteIndex: Local SQLite-backed vector index
//
// # Failure Mode
//
// Both collaborator calls fail open. Any embedder or index error surfaces
// as ErrCacheUnavailable alongside a nil hit; the pipeline logs it and
// routes the query as a plain miss.
package cache
