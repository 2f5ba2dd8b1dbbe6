// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// gemini.go - Gemini embeddings API client.
package embed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultModel is the Gemini embedding model used for cache lookups.
const DefaultModel = "text-embedding-004"

// ErrMissingAPIKey indicates no Gemini API key was provided.
var ErrMissingAPIKey = errors.New("gemini API key not configured")

// GeminiEmbedder computes query embeddings with the Gemini embeddings API.
type GeminiEmbedder struct {
	client *genai.Client
	model  *genai.EmbeddingModel
}

// NewGeminiEmbedder creates an embedder using the given API key.
func NewGeminiEmbedder(ctx context.Context, apiKey string) (*GeminiEmbedder, error) {
	return NewGeminiEmbedderWithModel(ctx, apiKey, DefaultModel)
}

// NewGeminiEmbedderWithModel creates an embedder with a specific model.
func NewGeminiEmbedderWithModel(ctx context.Context, apiKey, model string) (*GeminiEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiEmbedder{
		client: client,
		model:  client.EmbeddingModel(model),
	}, nil
}

// Embed returns the embedding vector for a text.
func (e *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	res, err := e.model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("failed to embed content: %w", err)
	}
	if res == nil || res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, errors.New("gemini returned an empty embedding")
	}
	return res.Embedding.Values, nil
}

// Close releases the underlying client.
func (e *GeminiEmbedder) Close() error {
	return e.client.Close()
}
