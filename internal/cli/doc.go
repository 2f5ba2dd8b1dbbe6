// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the ecoroute command line interface.
//
// Commands map one-to-one onto pipeline operations: route runs the full
// decision pipeline, suggest/accept drive the suggestion flow, savings
// reads the ledger, models and config inspect local state. Every command
// accepts --json for machine-readable output.
package cli
