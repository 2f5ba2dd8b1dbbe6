// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// openrouter.go - OpenRouter chat-completions scorer client.
package classify

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// =============================================================================
// OPENROUTER SCORER
// =============================================================================

const (
	// DefaultOpenRouterURL is the base URL for the OpenRouter API.
	DefaultOpenRouterURL = "https://openrouter.ai/api/v1"

	// DefaultScorerModel is the lightweight model used for scoring.
	// Complexity scoring only needs a single digit back.
	DefaultScorerModel = "openai/gpt-4o-mini"

	// scorerMaxTokens caps the scorer reply; a score is a single token.
	scorerMaxTokens = 10

	// maxResponseSize bounds the response body read.
	maxResponseSize = 1 * 1024 * 1024 // 1MB
)

var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("scorer API key not configured")

	// ErrAuthFailed indicates authentication failed.
	ErrAuthFailed = errors.New("scorer authentication failed")

	// ErrRateLimited indicates the scorer API rejected the call for rate.
	ErrRateLimited = errors.New("scorer rate limited")
)

// sharedHTTPClient pools connections across all scorer calls.
var sharedHTTPClient = &http.Client{
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
		},
	},
	// Per-call deadlines come from the request context.
}

// APIError represents an error response from the scorer API.
type APIError struct {
	Code    string
	Message string
	Status  int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("scorer API error [%s] (HTTP %d): %s", e.Code, e.Status, e.Message)
	}
	return fmt.Sprintf("scorer API error (HTTP %d): %s", e.Status, e.Message)
}

// chatMessage is a single message in a chat completion request.
type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest is the request body for the chat completions endpoint.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

// chatResponse is the response body for the chat completions endpoint.
type chatResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
}

// apiErrorResponse is the error envelope returned by the API.
type apiErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// OpenRouterScorer scores queries through OpenRouter's chat completions API.
// It makes exactly one attempt per call; callers own any fallback.
type OpenRouterScorer struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOpenRouterScorer creates a scorer client with the given API key.
// An empty key is allowed at construction; calls fail with ErrNotConfigured.
func NewOpenRouterScorer(apiKey string) *OpenRouterScorer {
	return &OpenRouterScorer{
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    DefaultOpenRouterURL,
		model:      DefaultScorerModel,
		httpClient: sharedHTTPClient,
	}
}

// WithBaseURL sets a custom base URL (used by tests and proxies).
func (s *OpenRouterScorer) WithBaseURL(url string) *OpenRouterScorer {
	s.baseURL = strings.TrimSuffix(url, "/")
	return s
}

// WithModel overrides the scorer model.
func (s *OpenRouterScorer) WithModel(model string) *OpenRouterScorer {
	if model != "" {
		s.model = model
	}
	return s
}

// IsConfigured returns true if an API key is set.
func (s *OpenRouterScorer) IsConfigured() bool {
	return s.apiKey != ""
}

// Score implements Scorer. The reply is the raw content of the first choice;
// parsing and clamping happen in the Classifier.
func (s *OpenRouterScorer) Score(ctx context.Context, systemPrompt, query string) (string, error) {
	if !s.IsConfigured() {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: "Analyze this query:\n\n" + query},
		},
		// Low temperature for consistent scores.
		Temperature: 0.1,
		MaxTokens:   scorerMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal scorer request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build scorer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scorer request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("failed to read scorer response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", s.parseAPIError(resp.StatusCode, data)
	}

	var parsed chatResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse scorer response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("scorer response contained no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}

// parseAPIError maps an error response to a typed error.
func (s *OpenRouterScorer) parseAPIError(status int, data []byte) error {
	var envelope apiErrorResponse
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Error.Message != "" {
		apiErr := &APIError{
			Code:    envelope.Error.Code,
			Message: envelope.Error.Message,
			Status:  status,
		}
		switch status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrAuthFailed, apiErr)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, apiErr)
		}
		return apiErr
	}
	return &APIError{Status: status, Message: http.StatusText(status)}
}
