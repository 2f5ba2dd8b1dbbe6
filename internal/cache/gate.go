// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// gate.go - Semantic cache gate over the embedder and vector index.
package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SimilarityThreshold is the strict cutoff for accepting a cached answer.
// The top match is a hit only when similarity >= 0.90; lower thresholds risk
// returning answers to materially different questions.
const SimilarityThreshold = 0.90

// DefaultLookupTimeout bounds one lookup (embedding + vector query).
// Lookups fail open: a slow index degrades to a miss, never a hang.
const DefaultLookupTimeout = 5 * time.Second

// ErrCacheUnavailable indicates the vector index or embedder could not be
// reached. Recovered locally by treating the lookup as a miss; never
// surfaced as a request failure.
var ErrCacheUnavailable = errors.New("semantic cache unavailable")

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// Embedder computes a vector embedding for a text. Embedding computation is
// a collaborator capability; the gate never computes embeddings itself.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Match is one nearest-neighbor result from the vector index.
type Match struct {
	// Similarity is the cosine similarity in [0,1].
	Similarity float64
	// Answer is the stored answer text.
	Answer string
	// SourceModelID is the model that produced the stored answer.
	SourceModelID string
}

// VectorIndex is the vector store collaborator contract.
type VectorIndex interface {
	// Query returns up to topK nearest neighbors for the embedding,
	// ordered by descending similarity.
	Query(ctx context.Context, embedding []float32, topK int) ([]Match, error)
	// Upsert appends a new entry. Duplicate entries for near-identical
	// queries are acceptable; the index is append-only from the gate's
	// point of view and eviction is owned elsewhere.
	Upsert(ctx context.Context, queryText string, embedding []float32, answer, sourceModelID string) error
}

// =============================================================================
// CACHE GATE
// =============================================================================

// Hit is a successful cache lookup.
type Hit struct {
	// Answer is the cached answer text.
	Answer string `json:"answer"`
	// SourceModelID identifies the model that would have produced this
	// answer, so the caller can report the avoided cost/CO2.
	SourceModelID string `json:"source_model_id"`
	// Similarity is the match similarity that cleared the threshold.
	Similarity float64 `json:"similarity"`
}

// Gate answers queries from previously stored answers when a near-duplicate
// prior query exists. Lookup has no side effects; storage is a separate
// explicit step so partially-failed answers are never cached.
type Gate struct {
	embedder Embedder
	index    VectorIndex
	timeout  time.Duration
}

// NewGate creates a semantic cache gate.
func NewGate(embedder Embedder, index VectorIndex) *Gate {
	return &Gate{
		embedder: embedder,
		index:    index,
		timeout:  DefaultLookupTimeout,
	}
}

// WithTimeout overrides the per-lookup timeout.
func (g *Gate) WithTimeout(d time.Duration) *Gate {
	if d > 0 {
		g.timeout = d
	}
	return g
}

// Lookup returns a cached answer for the query, or nil on a miss.
//
// An empty or whitespace-only query short-circuits to a miss without
// touching the index. Collaborator failures are reported through the error
// (wrapping ErrCacheUnavailable) with a nil hit; callers treat any error as
// a miss and may log it as a degraded-mode signal.
func (g *Gate) Lookup(ctx context.Context, query string) (*Hit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	embedding, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed failed: %v", ErrCacheUnavailable, err)
	}

	matches, err := g.index.Query(ctx, embedding, 1)
	if err != nil {
		return nil, fmt.Errorf("%w: query failed: %v", ErrCacheUnavailable, err)
	}
	if len(matches) == 0 {
		return nil, nil
	}

	top := matches[0]
	if top.Similarity < SimilarityThreshold {
		return nil, nil
	}

	return &Hit{
		Answer:        top.Answer,
		SourceModelID: top.SourceModelID,
		Similarity:    top.Similarity,
	}, nil
}

// Store appends a genuinely answered query to the cache.
//
// Called by the owner of the LLM gateway call after it obtains a real
// answer; never called on lookup. Concurrent stores for near-duplicate
// queries may both succeed.
func (g *Gate) Store(ctx context.Context, query, answer, sourceModelID string) error {
	if strings.TrimSpace(query) == "" || answer == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	embedding, err := g.embedder.Embed(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: embed failed: %v", ErrCacheUnavailable, err)
	}

	if err := g.index.Upsert(ctx, query, embedding, answer, sourceModelID); err != nil {
		return fmt.Errorf("%w: upsert failed: %v", ErrCacheUnavailable, err)
	}
	return nil
}

// =============================================================================
// SIMILARITY
// =============================================================================

// CosineSimilarity computes the cosine similarity between two vectors.
// Returns 0 for mismatched lengths or zero-magnitude vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
