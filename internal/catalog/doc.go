// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package catalog provides the read-only model catalog for ecoroute.
//
// The catalog is the leaf of the decision pipeline: a table of model records
// (id, provider, complexity tier, token costs, CO2 per call, task types)
// loaded at startup and never mutated at request time.
//
// # Key Types
//
//   - ModelRecord: Immutable catalog entry for one routable model
//   - Catalog: Immutable snapshot with id lookup and tier queries
//   - Store: Collaborator contract for loading records
//   - FileStore: TOML file-backed store
//   - Provider: Snapshot holder with fsnotify hot reload
//
// # Usage
//
// Load a catalog once at startup:
//
//	provider, err := catalog.NewProvider(ctx, "~/.ecoroute/models.toml")
//	cat := provider.Current()
//	rec, err := cat.ByID("gpt-4o-mini")
//
// Hot reload is best-effort: a failed reload keeps the previous snapshot.
// In-flight requests keep the snapshot they started with; new requests see
// new data eventually.
package catalog
