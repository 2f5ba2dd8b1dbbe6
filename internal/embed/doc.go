// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package embed provides the embedding collaborator used by the semantic
// cache gate. Embedding computation is outside the decision pipeline's
// scope; this package is the thin adapter to the Gemini embeddings API.
//
// # Usage
//
//	embedder, err := embed.NewGeminiEmbedder(ctx, apiKey)
//	defer embedder.Close()
//	vec, err := embedder.Embed(ctx, "how do I parse JSON in Go")
package embed
