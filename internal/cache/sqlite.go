// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// sqlite.go - SQLite-backed vector index for the semantic cache.
package cache

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver
)

// =============================================================================
// SCHEMA
// =============================================================================

// cacheSchema defines the append-only cache entry table.
// Entries are never updated; eviction is owned externally.
const cacheSchema = `
CREATE TABLE IF NOT EXISTS cache_entries (
	id              TEXT PRIMARY KEY,
	query_text      TEXT NOT NULL,
	embedding       BLOB NOT NULL,
	answer          TEXT NOT NULL,
	source_model_id TEXT NOT NULL,
	created_at      INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_created_at
	ON cache_entries(created_at DESC);
`

// =============================================================================
// SQLITE INDEX
// =============================================================================

// SQLiteIndex implements VectorIndex on a local SQLite database.
//
// Similarity search is a linear scan with cosine similarity computed in
// process. The cache holds one entry per genuinely answered query, so the
// scan covers at most a few thousand embeddings.
type SQLiteIndex struct {
	db *sql.DB
}

// NewSQLiteIndex opens (or creates) a vector index database at path.
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
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

	if _, err := db.Exec(cacheSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize cache schema: %w", err)
	}

	return &SQLiteIndex{db: db}, nil
}

// Close closes the underlying database.
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

// Upsert implements VectorIndex. Each call appends a fresh row; duplicate
// rows for near-identical queries are an accepted minor storage cost.
func (s *SQLiteIndex) Upsert(ctx context.Context, queryText string, embedding []float32, answer, sourceModelID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cache_entries (id, query_text, embedding, answer, source_model_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), queryText, encodeEmbedding(embedding), answer, sourceModelID, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("failed to insert cache entry: %w", err)
	}
	return nil
}

// Query implements VectorIndex.
func (s *SQLiteIndex) Query(ctx context.Context, embedding []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT embedding, answer, source_model_id FROM cache_entries
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cache entries: %w", err)
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var blob []byte
		var match Match
		if err := rows.Scan(&blob, &match.Answer, &match.SourceModelID); err != nil {
			return nil, fmt.Errorf("failed to scan cache entry: %w", err)
		}
		stored, err := decodeEmbedding(blob)
		if err != nil {
			// Skip corrupt rows rather than failing the lookup.
			continue
		}
		match.Similarity = CosineSimilarity(embedding, stored)
		matches = append(matches, match)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cache entries: %w", err)
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// Count returns the number of stored entries (used by status output).
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM cache_entries").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}

// =============================================================================
// EMBEDDING ENCODING
// =============================================================================

// encodeEmbedding serializes a vector as little-endian float32 bytes.
func encodeEmbedding(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding deserializes a little-endian float32 byte blob.
func decodeEmbedding(blob []byte) ([]float32, error) {
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("embedding blob length %d is not a multiple of 4", len(blob))
	}
	vec := make([]float32, len(blob)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return vec, nil
}
