// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package classify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func scorerServer(t *testing.T, handler http.HandlerFunc) *OpenRouterScorer {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOpenRouterScorer("test-key").WithBaseURL(server.URL)
}

func TestOpenRouterScorerScore(t *testing.T) {
	scorer := scorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.MaxTokens != scorerMaxTokens {
			t.Errorf("max_tokens = %d, want %d", req.MaxTokens, scorerMaxTokens)
		}

		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "7"}},
			},
		})
	})

	reply, err := scorer.Score(context.Background(), "guide", "some query")
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if reply != "7" {
		t.Errorf("reply = %q, want \"7\"", reply)
	}
}

func TestOpenRouterScorerNotConfigured(t *testing.T) {
	scorer := NewOpenRouterScorer("")
	if scorer.IsConfigured() {
		t.Error("empty key should not be configured")
	}
	_, err := scorer.Score(context.Background(), "guide", "query")
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("want ErrNotConfigured, got %v", err)
	}
}

func TestOpenRouterScorerErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrAuthFailed},
		{"forbidden", http.StatusForbidden, ErrAuthFailed},
		{"rate limited", http.StatusTooManyRequests, ErrRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scorer := scorerServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"error": map[string]string{"code": "denied", "message": "nope"},
				})
			})
			_, err := scorer.Score(context.Background(), "guide", "query")
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestOpenRouterScorerServerError(t *testing.T) {
	scorer := scorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("upstream exploded"))
	})

	_, err := scorer.Score(context.Background(), "guide", "query")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("want *APIError, got %v", err)
	}
	if apiErr.Status != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", apiErr.Status)
	}
}

func TestOpenRouterScorerNoChoices(t *testing.T) {
	scorer := scorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"choices": []interface{}{}})
	})
	if _, err := scorer.Score(context.Background(), "guide", "query"); err == nil {
		t.Error("want error for empty choices")
	}
}

func TestClassifierWithOpenRouterScorer(t *testing.T) {
	scorer := scorerServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": "Level 9"}},
			},
		})
	})

	c := New(scorer)
	score, err := c.Classify(context.Background(), "prove the Riemann hypothesis")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if score != 9 {
		t.Errorf("score = %d, want 9", score)
	}
}
