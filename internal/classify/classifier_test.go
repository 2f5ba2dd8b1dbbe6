// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package classify

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		want  int
	}{
		{"bare digit", "7", 7},
		{"bare ten", "10", 10},
		{"digit with whitespace", "  4\n", 4},
		{"decorated reply", "Complexity level: 6", 6},
		{"level prefix", "Level 9", 9},
		{"sentence reply", "I would rate this a 3 out of 10.", 3},
		{"zero clamps up", "0", 1},
		{"out of range clamps down", "42", 10},
		{"negative clamps up", "-3", 1},
		{"empty reply defaults", "", DefaultComplexity},
		{"no number defaults", "moderate complexity", DefaultComplexity},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseScore(tt.reply); got != tt.want {
				t.Errorf("ParseScore(%q) = %d, want %d", tt.reply, got, tt.want)
			}
		})
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{-5, 1}, {0, 1}, {1, 1}, {5, 5}, {10, 10}, {11, 10}, {100, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.in); got != tt.want {
			t.Errorf("Clamp(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	c := New(ScorerFunc(func(ctx context.Context, systemPrompt, query string) (string, error) {
		if systemPrompt == "" {
			t.Error("system prompt not passed to scorer")
		}
		return "8", nil
	}))

	score, err := c.Classify(context.Background(), "design a distributed cache")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if score != 8 {
		t.Errorf("score = %d, want 8", score)
	}
}

func TestClassifyEmptyQuery(t *testing.T) {
	called := false
	c := New(ScorerFunc(func(ctx context.Context, systemPrompt, query string) (string, error) {
		called = true
		return "5", nil
	}))

	score, err := c.Classify(context.Background(), "   \t\n")
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if score != MinComplexity {
		t.Errorf("empty query score = %d, want %d", score, MinComplexity)
	}
	if called {
		t.Error("scorer must not be called for an empty query")
	}
}

func TestClassifyScorerFailureFailsOpen(t *testing.T) {
	c := New(ScorerFunc(func(ctx context.Context, systemPrompt, query string) (string, error) {
		return "", errors.New("connection refused")
	}))

	score, err := c.Classify(context.Background(), "some query")
	if score != DefaultComplexity {
		t.Errorf("degraded score = %d, want %d", score, DefaultComplexity)
	}
	if !errors.Is(err, ErrClassifierUnavailable) {
		t.Errorf("want ErrClassifierUnavailable, got %v", err)
	}
}

func TestClassifyUnparseableReplyIsNotAnError(t *testing.T) {
	c := New(ScorerFunc(func(ctx context.Context, systemPrompt, query string) (string, error) {
		return "sorry, I cannot help with that", nil
	}))

	score, err := c.Classify(context.Background(), "some query")
	if err != nil {
		t.Fatalf("unparseable reply must not surface an error, got %v", err)
	}
	if score != DefaultComplexity {
		t.Errorf("score = %d, want %d", score, DefaultComplexity)
	}
}

func TestClassifyTimeout(t *testing.T) {
	c := New(ScorerFunc(func(ctx context.Context, systemPrompt, query string) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(5 * time.Second):
			return "5", nil
		}
	}), WithTimeout(20*time.Millisecond))

	start := time.Now()
	score, err := c.Classify(context.Background(), "slow query")
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Classify did not respect timeout, took %v", elapsed)
	}
	if score != DefaultComplexity {
		t.Errorf("timed-out score = %d, want %d", score, DefaultComplexity)
	}
	if !errors.Is(err, ErrClassifierUnavailable) {
		t.Errorf("want ErrClassifierUnavailable, got %v", err)
	}
}

func TestClassifyScoreAlwaysInRange(t *testing.T) {
	replies := []string{"0", "-7", "11", "9999", "ten", "", "7.5", "level 10"}
	for _, reply := range replies {
		r := reply
		c := New(ScorerFunc(func(ctx context.Context, systemPrompt, query string) (string, error) {
			return r, nil
		}))
		score, _ := c.Classify(context.Background(), "query")
		if score < MinComplexity || score > MaxComplexity {
			t.Errorf("reply %q produced out-of-range score %d", reply, score)
		}
	}
}
