// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ledger persists accepted model downgrades and reports the cost and
// CO2 savings they produced.
//
// The ledger is strictly append-only. A row is written only when a caller
// explicitly accepts a downgrade suggestion; declined suggestions and
// under-engineered (upgrade) suggestions never reach the ledger. Aggregates
// are recomputed from the rows on every read rather than cached, so the row
// set remains the single source of truth.
//
// # Key Types
//
//   - Ledger: SQLite-backed store with Record/ListAll/Totals/ByPeriod
//   - SavingsRecord: One accepted downgrade event
//   - Totals: All-time aggregate
//   - PeriodBucket: Per-day aggregate including zero-activity days
//   - PairStats: Per (original, suggested) model pair aggregate
//
// # Failure Mode
//
// A failed Record never invalidates the routing decision that produced it.
// Callers log the ErrLedgerWrite and retry out-of-band.
package ledger
