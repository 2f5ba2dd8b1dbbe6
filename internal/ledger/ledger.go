// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ledger.go - Append-only SQLite savings store and aggregates.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// ERRORS
// =============================================================================

// ErrLedgerWrite indicates a savings record could not be persisted.
// The routing decision that produced the record is never rolled back;
// callers log the failure and may retry the write out-of-band.
var ErrLedgerWrite = errors.New("failed to write savings record")

// =============================================================================
// SCHEMA
// =============================================================================

// savingsSchema defines the append-only savings ledger. Rows are inserted
// once and never updated or deleted; aggregates are recomputed from rows on
// every read so the ledger stays the single source of truth.
const savingsSchema = `
CREATE TABLE IF NOT EXISTS savings (
	id                 INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at         INTEGER NOT NULL,
	original_model_id  TEXT NOT NULL,
	original_model     TEXT NOT NULL,
	suggested_model_id TEXT NOT NULL,
	suggested_model    TEXT NOT NULL,
	cost_saved_input   REAL NOT NULL,
	cost_saved_output  REAL NOT NULL,
	co2_saved          REAL NOT NULL,
	complexity_level   INTEGER NOT NULL,
	query_preview      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_savings_created_at
	ON savings(created_at DESC);
`

// =============================================================================
// RECORD TYPES
// =============================================================================

// SavingsRecord is one accepted downgrade event.
type SavingsRecord struct {
	// ID is the ledger row id (assigned on insert).
	ID int64 `json:"id"`
	// CreatedAt is when the switch was accepted.
	CreatedAt time.Time `json:"created_at"`
	// OriginalModelID is the model the caller originally picked.
	OriginalModelID string `json:"original_model_id"`
	// OriginalModel is the human-readable name of the original model.
	OriginalModel string `json:"original_model"`
	// SuggestedModelID is the cheaper model the caller switched to.
	SuggestedModelID string `json:"suggested_model_id"`
	// SuggestedModel is the human-readable name of the suggested model.
	SuggestedModel string `json:"suggested_model"`
	// CostSavedInput is the per-1K input token cost saved.
	CostSavedInput float64 `json:"cost_saved_input"`
	// CostSavedOutput is the per-1K output token cost saved.
	CostSavedOutput float64 `json:"cost_saved_output"`
	// CO2Saved is the per-call CO2 saved in grams.
	CO2Saved float64 `json:"co2_saved"`
	// ComplexityLevel is the classified complexity that drove the suggestion.
	ComplexityLevel int `json:"complexity_level"`
	// QueryPreview is a truncated preview of the query text.
	QueryPreview string `json:"query_preview"`
}

// Totals is the all-time aggregate over every ledger row.
type Totals struct {
	// Switches is the total number of accepted downgrades.
	Switches int `json:"switches"`
	// CostSavedInput is the summed per-1K input cost savings.
	CostSavedInput float64 `json:"cost_saved_input"`
	// CostSavedOutput is the summed per-1K output cost savings.
	CostSavedOutput float64 `json:"cost_saved_output"`
	// CostSavedTotal is CostSavedInput + CostSavedOutput.
	CostSavedTotal float64 `json:"cost_saved_total"`
	// CO2Saved is the summed CO2 savings in grams.
	CO2Saved float64 `json:"co2_saved"`
}

// PeriodBucket is one calendar day of savings activity.
type PeriodBucket struct {
	// Day is the bucket date in YYYY-MM-DD form (local time).
	Day string `json:"day"`
	// Switches is the number of accepted downgrades that day.
	Switches int `json:"switches"`
	// CostSaved is the combined input+output cost saved that day.
	CostSaved float64 `json:"cost_saved"`
	// CO2Saved is the CO2 saved that day in grams.
	CO2Saved float64 `json:"co2_saved"`
}

// PairStats aggregates switches for one (original, suggested) model pair.
type PairStats struct {
	// OriginalModelID is the model switched away from.
	OriginalModelID string `json:"original_model_id"`
	// SuggestedModelID is the model switched to.
	SuggestedModelID string `json:"suggested_model_id"`
	// Switches is how many times this pair was accepted.
	Switches int `json:"switches"`
	// CostSaved is the combined input+output cost saved across the pair.
	CostSaved float64 `json:"cost_saved"`
	// CO2Saved is the CO2 saved across the pair in grams.
	CO2Saved float64 `json:"co2_saved"`
}

// =============================================================================
// LEDGER
// =============================================================================

// Ledger is the append-only savings store backed by SQLite.
type Ledger struct {
	db *sql.DB
}

// Open opens (or creates) the savings ledger database at path.
func Open(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(savingsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize ledger schema: %w", err)
	}

	return &Ledger{db: db}, nil
}

// Close closes the underlying database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Record appends one accepted downgrade as a single atomic insert.
// The record's CreatedAt is used if set; otherwise the current time.
// Returns the assigned row id.
func (l *Ledger) Record(ctx context.Context, rec SavingsRecord) (int64, error) {
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	res, err := l.db.ExecContext(ctx, `
		INSERT INTO savings (
			created_at, original_model_id, original_model,
			suggested_model_id, suggested_model,
			cost_saved_input, cost_saved_output, co2_saved,
			complexity_level, query_preview
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, createdAt.Unix(), rec.OriginalModelID, rec.OriginalModel,
		rec.SuggestedModelID, rec.SuggestedModel,
		rec.CostSavedInput, rec.CostSavedOutput, rec.CO2Saved,
		rec.ComplexityLevel, rec.QueryPreview)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLedgerWrite, err)
	}
	return id, nil
}

// ListAll returns every savings record, newest first.
func (l *Ledger) ListAll(ctx context.Context) ([]SavingsRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, created_at, original_model_id, original_model,
		       suggested_model_id, suggested_model,
		       cost_saved_input, cost_saved_output, co2_saved,
		       complexity_level, query_preview
		FROM savings
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list savings records: %w", err)
	}
	defer rows.Close()

	var records []SavingsRecord
	for rows.Next() {
		var rec SavingsRecord
		var createdAt int64
		if err := rows.Scan(&rec.ID, &createdAt,
			&rec.OriginalModelID, &rec.OriginalModel,
			&rec.SuggestedModelID, &rec.SuggestedModel,
			&rec.CostSavedInput, &rec.CostSavedOutput, &rec.CO2Saved,
			&rec.ComplexityLevel, &rec.QueryPreview); err != nil {
			return nil, fmt.Errorf("failed to scan savings record: %w", err)
		}
		rec.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate savings records: %w", err)
	}
	return records, nil
}

// Totals recomputes the all-time aggregate from the rows. Aggregates are
// never cached; a fresh read after N inserts always reflects all N rows.
func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	var t Totals
	err := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(cost_saved_input), 0),
		       COALESCE(SUM(cost_saved_output), 0),
		       COALESCE(SUM(co2_saved), 0)
		FROM savings
	`).Scan(&t.Switches, &t.CostSavedInput, &t.CostSavedOutput, &t.CO2Saved)
	if err != nil {
		return Totals{}, fmt.Errorf("failed to compute savings totals: %w", err)
	}
	t.CostSavedTotal = t.CostSavedInput + t.CostSavedOutput
	return t, nil
}

// ByPeriod returns one bucket per calendar day over the trailing window,
// oldest first. Days with no activity appear as zero-valued buckets so the
// report always covers exactly `days` entries ending today.
func (l *Ledger) ByPeriod(ctx context.Context, days int) ([]PeriodBucket, error) {
	if days <= 0 {
		return nil, nil
	}

	now := time.Now()
	start := now.AddDate(0, 0, -(days - 1))
	startOfWindow := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	rows, err := l.db.QueryContext(ctx, `
		SELECT created_at, cost_saved_input, cost_saved_output, co2_saved
		FROM savings
		WHERE created_at >= ?
	`, startOfWindow.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to query savings window: %w", err)
	}
	defer rows.Close()

	// Bucket rows by local calendar day.
	byDay := make(map[string]*PeriodBucket)
	for rows.Next() {
		var createdAt int64
		var costIn, costOut, co2 float64
		if err := rows.Scan(&createdAt, &costIn, &costOut, &co2); err != nil {
			return nil, fmt.Errorf("failed to scan savings row: %w", err)
		}
		day := time.Unix(createdAt, 0).Format("2006-01-02")
		bucket, ok := byDay[day]
		if !ok {
			bucket = &PeriodBucket{Day: day}
			byDay[day] = bucket
		}
		bucket.Switches++
		bucket.CostSaved += costIn + costOut
		bucket.CO2Saved += co2
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate savings window: %w", err)
	}

	// Emit every day in the window chronologically, zero buckets included.
	buckets := make([]PeriodBucket, 0, days)
	for i := 0; i < days; i++ {
		day := startOfWindow.AddDate(0, 0, i).Format("2006-01-02")
		if bucket, ok := byDay[day]; ok {
			buckets = append(buckets, *bucket)
		} else {
			buckets = append(buckets, PeriodBucket{Day: day})
		}
	}
	return buckets, nil
}

// ModelPairStats aggregates switches by (original, suggested) model pair,
// ordered by descending switch count.
func (l *Ledger) ModelPairStats(ctx context.Context) ([]PairStats, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT original_model_id, suggested_model_id,
		       COUNT(*),
		       COALESCE(SUM(cost_saved_input + cost_saved_output), 0),
		       COALESCE(SUM(co2_saved), 0)
		FROM savings
		GROUP BY original_model_id, suggested_model_id
		ORDER BY COUNT(*) DESC, original_model_id ASC, suggested_model_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query model pair stats: %w", err)
	}
	defer rows.Close()

	var stats []PairStats
	for rows.Next() {
		var p PairStats
		if err := rows.Scan(&p.OriginalModelID, &p.SuggestedModelID,
			&p.Switches, &p.CostSaved, &p.CO2Saved); err != nil {
			return nil, fmt.Errorf("failed to scan pair stats: %w", err)
		}
		stats = append(stats, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate pair stats: %w", err)
	}
	return stats, nil
}
