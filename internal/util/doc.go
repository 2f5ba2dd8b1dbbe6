// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across ecoroute packages.
//
// # Key Functions
//
//   - TruncateRunes: UTF-8 safe string truncation with ellipsis
//   - AtomicWriteFile: Crash-safe file writing with fsync
package util
