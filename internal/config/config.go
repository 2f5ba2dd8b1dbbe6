// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Configuration structures, loading, and validation.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/ecoroute/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete ecoroute configuration.
type Config struct {
	// Version is the config schema version.
	Version string `toml:"version" json:"version"`

	// Catalog configuration
	Catalog CatalogConfig `toml:"catalog" json:"catalog"`

	// Classifier configuration
	Classifier ClassifierConfig `toml:"classifier" json:"classifier"`

	// Cache configuration
	Cache CacheConfig `toml:"cache" json:"cache"`

	// Ledger configuration
	Ledger LedgerConfig `toml:"ledger" json:"ledger"`

	// Suggestions configuration
	Suggestions SuggestionsConfig `toml:"suggestions" json:"suggestions"`
}

// CatalogConfig locates the model catalog.
type CatalogConfig struct {
	// Path is the TOML catalog file (empty = ~/.ecoroute/models.toml).
	Path string `toml:"path" json:"path"`
	// HotReload watches the catalog file and reloads on change.
	HotReload bool `toml:"hot_reload" json:"hot_reload"`
}

// ClassifierConfig configures the complexity scorer.
type ClassifierConfig struct {
	// OpenRouterKey is the API key for the scoring model.
	OpenRouterKey string `toml:"openrouter_key" json:"openrouter_key"`
	// BaseURL overrides the OpenRouter endpoint (empty = production).
	BaseURL string `toml:"base_url" json:"base_url"`
	// Model is the scoring model id (empty = built-in default).
	Model string `toml:"model" json:"model"`
	// TimeoutSecs bounds a single scorer call.
	TimeoutSecs int `toml:"timeout_secs" json:"timeout_secs"`
	// RateLimit caps scorer calls per second (0 = unlimited).
	RateLimit float64 `toml:"rate_limit" json:"rate_limit"`
}

// CacheConfig configures the semantic cache gate.
type CacheConfig struct {
	// Enabled turns the cache gate on.
	Enabled bool `toml:"enabled" json:"enabled"`
	// GeminiKey is the API key for the embedding model.
	GeminiKey string `toml:"gemini_key" json:"gemini_key"`
	// DBPath is the cache database (empty = ~/.ecoroute/cache.db).
	DBPath string `toml:"db_path" json:"db_path"`
	// LookupTimeoutSecs bounds one lookup (0 = built-in default).
	LookupTimeoutSecs int `toml:"lookup_timeout_secs" json:"lookup_timeout_secs"`
}

// LedgerConfig configures the savings ledger.
type LedgerConfig struct {
	// DBPath is the ledger database (empty = ~/.ecoroute/savings.db).
	DBPath string `toml:"db_path" json:"db_path"`
}

// SuggestionsConfig configures the suggestion engine.
type SuggestionsConfig struct {
	// Enabled turns suggestion checks on.
	Enabled bool `toml:"enabled" json:"enabled"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Version: "1",
		Catalog: CatalogConfig{
			HotReload: true,
		},
		Classifier: ClassifierConfig{
			TimeoutSecs: 10,
			RateLimit:   5,
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Suggestions: SuggestionsConfig{
			Enabled: true,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the ecoroute configuration directory (~/.ecoroute).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".ecoroute"), nil
}

// ConfigPath returns the default configuration file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// CatalogPath resolves the catalog file path, applying the default.
func (c *Config) CatalogPath() (string, error) {
	if c.Catalog.Path != "" {
		return c.Catalog.Path, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "models.toml"), nil
}

// CacheDBPath resolves the cache database path, applying the default.
func (c *Config) CacheDBPath() (string, error) {
	if c.Cache.DBPath != "" {
		return c.Cache.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "cache.db"), nil
}

// LedgerDBPath resolves the ledger database path, applying the default.
func (c *Config) LedgerDBPath() (string, error) {
	if c.Ledger.DBPath != "" {
		return c.Ledger.DBPath, nil
	}
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "savings.db"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration from the default location, falling back to
// defaults when no file exists. Environment overrides are always applied.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath reads the configuration from a specific file. A missing file
// is not an error; defaults are used.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.ApplyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the default location.
// Config files carry API keys, so they are created owner read/write only.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML to a specific file.
// The write is atomic (temp file + rename) so a crash never leaves a
// half-written config behind.
func SaveToPath(cfg *Config, path string) error {
	var buf bytes.Buffer
	fmt.Fprintln(&buf, "# ecoroute configuration file")
	fmt.Fprintln(&buf, "# Generated by ecoroute - edit with care")
	fmt.Fprintln(&buf, "")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := util.AtomicWriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies ECOROUTE_* environment variables on top of the
// loaded configuration. Environment always wins over file values.
func (c *Config) ApplyEnvOverrides() {
	if key := os.Getenv("ECOROUTE_OPENROUTER_KEY"); key != "" {
		c.Classifier.OpenRouterKey = key
	}
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" && c.Classifier.OpenRouterKey == "" {
		c.Classifier.OpenRouterKey = key
	}
	if key := os.Getenv("ECOROUTE_GEMINI_KEY"); key != "" {
		c.Cache.GeminiKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Cache.GeminiKey == "" {
		c.Cache.GeminiKey = key
	}
	if path := os.Getenv("ECOROUTE_CATALOG"); path != "" {
		c.Catalog.Path = path
	}
	if model := os.Getenv("ECOROUTE_SCORER_MODEL"); model != "" {
		c.Classifier.Model = model
	}
	if v := os.Getenv("ECOROUTE_CACHE_DISABLED"); v != "" {
		c.Cache.Enabled = !parseBool(v)
	}
	if v := os.Getenv("ECOROUTE_SUGGESTIONS_DISABLED"); v != "" {
		c.Suggestions.Enabled = !parseBool(v)
	}
}

// parseBool accepts the usual truthy spellings; anything else is false.
func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(strings.TrimSpace(s)))
	return err == nil && b
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for out-of-range values.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if c.Classifier.TimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "classifier.timeout_secs",
			Message: fmt.Sprintf("must be >= 0, got %d", c.Classifier.TimeoutSecs),
		})
	}
	if c.Classifier.RateLimit < 0 {
		errs = append(errs, ValidationError{
			Field:   "classifier.rate_limit",
			Message: fmt.Sprintf("must be >= 0, got %g", c.Classifier.RateLimit),
		})
	}
	if c.Cache.LookupTimeoutSecs < 0 {
		errs = append(errs, ValidationError{
			Field:   "cache.lookup_timeout_secs",
			Message: fmt.Sprintf("must be >= 0, got %d", c.Cache.LookupTimeoutSecs),
		})
	}
	if c.Classifier.BaseURL != "" && !strings.HasPrefix(c.Classifier.BaseURL, "http://") &&
		!strings.HasPrefix(c.Classifier.BaseURL, "https://") {
		errs = append(errs, ValidationError{
			Field:   "classifier.base_url",
			Message: fmt.Sprintf("must be an http(s) URL, got %q", c.Classifier.BaseURL),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
