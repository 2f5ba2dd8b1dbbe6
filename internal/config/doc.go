// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for ecoroute.
//
// Configuration lives in TOML at ~/.ecoroute/config.toml with built-in
// defaults for everything except API keys. ECOROUTE_* environment variables
// override file values; the bare provider variables (OPENROUTER_API_KEY,
// GEMINI_API_KEY) are honored when no ecoroute-specific value is set.
//
// # Key Types
//
//   - Config: Complete configuration with per-component sections
//   - ValidationError, ValidateErrors: Structured validation failures
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatalf("CONFIG: %v", err)
//	}
//	catalogPath, _ := cfg.CatalogPath()
package config
