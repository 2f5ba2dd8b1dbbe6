// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// catalog.go - Immutable model catalog snapshot and record validation.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrCatalogEmpty indicates the catalog contains no models at all.
	// This is a fatal configuration error: routing cannot proceed.
	ErrCatalogEmpty = errors.New("model catalog is empty")

	// ErrModelNotFound indicates the requested model id is not in the catalog.
	ErrModelNotFound = errors.New("model not found in catalog")
)

// Tier bounds for model complexity ratings.
const (
	MinTier = 1
	MaxTier = 10
)

// =============================================================================
// MODEL RECORD
// =============================================================================

// ModelRecord is an immutable catalog entry describing one routable model.
// Records are loaded once at startup and never mutated at request time.
type ModelRecord struct {
	// ID is the provider-facing model identifier (e.g. "gpt-4o-mini").
	ID string `toml:"id" json:"id"`
	// Name is the human-readable model name.
	Name string `toml:"name" json:"name"`
	// Provider is the hosting provider (e.g. "openai", "anthropic", "groq").
	Provider string `toml:"provider" json:"provider"`
	// Tier is the complexity tier this model can handle (1-10).
	Tier int `toml:"tier" json:"tier"`
	// CostInputPerK is the input cost per 1000 tokens.
	CostInputPerK float64 `toml:"cost_input_per_k" json:"cost_input_per_k"`
	// CostOutputPerK is the output cost per 1000 tokens.
	CostOutputPerK float64 `toml:"cost_output_per_k" json:"cost_output_per_k"`
	// CO2Grams is the estimated CO2 emission per call in grams.
	CO2Grams float64 `toml:"co2_grams" json:"co2_grams"`
	// TaskTypes tags the task categories this model supports.
	TaskTypes []string `toml:"task_types" json:"task_types,omitempty"`
}

// String returns a one-line summary of the record.
func (m ModelRecord) String() string {
	return fmt.Sprintf("%s (%s, tier %d, $%.4f/$%.4f per 1K, %.2fg CO2)",
		m.ID, m.Provider, m.Tier, m.CostInputPerK, m.CostOutputPerK, m.CO2Grams)
}

// SupportsTask reports whether the record is tagged with the given task type.
// An empty tag set means the model is general purpose.
func (m ModelRecord) SupportsTask(task string) bool {
	if len(m.TaskTypes) == 0 {
		return true
	}
	task = strings.ToLower(task)
	for _, t := range m.TaskTypes {
		if strings.ToLower(t) == task {
			return true
		}
	}
	return false
}

// validate checks a single record for structural problems.
func (m ModelRecord) validate() error {
	if m.ID == "" {
		return errors.New("model record missing id")
	}
	if m.Tier < MinTier || m.Tier > MaxTier {
		return fmt.Errorf("model %q has tier %d outside [%d,%d]", m.ID, m.Tier, MinTier, MaxTier)
	}
	if m.CostInputPerK < 0 || m.CostOutputPerK < 0 {
		return fmt.Errorf("model %q has negative token cost", m.ID)
	}
	if m.CO2Grams < 0 {
		return fmt.Errorf("model %q has negative CO2 estimate", m.ID)
	}
	return nil
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store is the catalog collaborator contract. Implementations load model
// records from wherever they live (a file, a database, a remote registry).
type Store interface {
	// ListModels returns all model records known to the store.
	ListModels(ctx context.Context) ([]ModelRecord, error)
}

// =============================================================================
// CATALOG
// =============================================================================

// Catalog is an immutable snapshot of the model catalog.
// Safe for concurrent reads; replaced wholesale on reload, never mutated.
type Catalog struct {
	records []ModelRecord
	byID    map[string]ModelRecord
}

// New builds a catalog snapshot from records.
// Returns ErrCatalogEmpty if records is empty, or a validation error if any
// record is malformed. Records are kept sorted by tier ascending.
func New(records []ModelRecord) (*Catalog, error) {
	if len(records) == 0 {
		return nil, ErrCatalogEmpty
	}

	sorted := make([]ModelRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Tier < sorted[j].Tier
	})

	byID := make(map[string]ModelRecord, len(sorted))
	for _, rec := range sorted {
		if err := rec.validate(); err != nil {
			return nil, err
		}
		if _, dup := byID[rec.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q in catalog", rec.ID)
		}
		byID[rec.ID] = rec
	}

	return &Catalog{records: sorted, byID: byID}, nil
}

// Load reads all records from a store and builds a snapshot.
func Load(ctx context.Context, store Store) (*Catalog, error) {
	records, err := store.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load model catalog: %w", err)
	}
	return New(records)
}

// Len returns the number of records in the catalog.
func (c *Catalog) Len() int {
	return len(c.records)
}

// Models returns all records sorted by tier ascending.
// The returned slice is a copy; callers may not mutate catalog state.
func (c *Catalog) Models() []ModelRecord {
	out := make([]ModelRecord, len(c.records))
	copy(out, c.records)
	return out
}

// ByID looks up a record by model id.
func (c *Catalog) ByID(id string) (ModelRecord, error) {
	rec, ok := c.byID[id]
	if !ok {
		return ModelRecord{}, fmt.Errorf("%w: %q", ErrModelNotFound, id)
	}
	return rec, nil
}

// AtOrAbove returns all records with Tier >= score, sorted by tier ascending.
func (c *Catalog) AtOrAbove(score int) []ModelRecord {
	var out []ModelRecord
	for _, rec := range c.records {
		if rec.Tier >= score {
			out = append(out, rec)
		}
	}
	return out
}

// HighestTier returns the record with the highest tier. Among equal tiers the
// cheapest record wins (cost, then CO2), so the fallback path stays aligned
// with normal selection ordering.
func (c *Catalog) HighestTier() ModelRecord {
	best := c.records[0]
	for _, rec := range c.records[1:] {
		if rec.Tier > best.Tier {
			best = rec
			continue
		}
		if rec.Tier == best.Tier {
			if rec.CostInputPerK < best.CostInputPerK ||
				(rec.CostInputPerK == best.CostInputPerK && rec.CO2Grams < best.CO2Grams) {
				best = rec
			}
		}
	}
	return best
}

// Tiers returns a histogram of record counts per tier (index 1-10).
// Sparse buckets are expected: selection handles them by searching upward and
// falling back to the highest available tier.
func (c *Catalog) Tiers() [MaxTier + 1]int {
	var hist [MaxTier + 1]int
	for _, rec := range c.records {
		hist[rec.Tier]++
	}
	return hist
}
