// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// classifier.go - Complexity scoring with clamping and degraded fallback.
package classify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// MinComplexity is the lowest valid complexity score.
	MinComplexity = 1
	// MaxComplexity is the highest valid complexity score.
	MaxComplexity = 10
	// DefaultComplexity is the fallback score ("balanced") used when the
	// scorer is unreachable or its reply cannot be parsed.
	DefaultComplexity = 5

	// DefaultTimeout bounds a single scorer call. The classifier fails open
	// on timeout rather than holding up the route decision.
	DefaultTimeout = 10 * time.Second
)

// ErrClassifierUnavailable indicates the external scorer could not be
// reached at all. Callers fall back to DefaultComplexity and treat this as
// a degraded-mode signal, not a user-visible failure.
var ErrClassifierUnavailable = errors.New("complexity scorer unavailable")

// complexityGuide is the fixed, deterministic contract sent to the scorer.
// The scale wording is stable on purpose: changing it changes routing.
const complexityGuide = `You are a task complexity analyzer. Analyze the user query and determine its complexity level from 1 to 10.

Complexity level guidelines:

1-2 (Very Simple): simple factual questions, greetings, minimal text generation.
3-4 (Simple): short summarization, simple explanations, basic question answering.
5-6 (Moderate): longer summarization, moderate generation or creative writing, basic code questions.
7-8 (Complex): complex code generation or debugging, advanced reasoning, multi-step problem solving.
9-10 (Very Complex): complex architecture or implementation work, advanced mathematical or scientific reasoning, multi-faceted analysis requiring deep expertise.

Output ONLY a single integer from 1 to 10. Do NOT include any explanation.`

// scoreRe extracts the first 1-10 integer from a scorer reply.
// Handles replies like "5", "Level 7", "complexity: 10".
var scoreRe = regexp.MustCompile(`\b([1-9]|10)\b`)

// =============================================================================
// SCORER CONTRACT
// =============================================================================

// Scorer is the external collaborator that rates a query against the
// complexity guide. Implementations send the guide as the system prompt and
// return the model's raw reply text.
type Scorer interface {
	Score(ctx context.Context, systemPrompt, query string) (string, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, systemPrompt, query string) (string, error)

// Score implements Scorer.
func (f ScorerFunc) Score(ctx context.Context, systemPrompt, query string) (string, error) {
	return f(ctx, systemPrompt, query)
}

// =============================================================================
// CLASSIFIER
// =============================================================================

// Classifier scores query complexity via a lightweight external model.
// Safe for concurrent use.
type Classifier struct {
	scorer  Scorer
	timeout time.Duration
	limiter *rate.Limiter
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Classifier) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps outbound scorer calls at rps requests per second with
// the given burst. Zero rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Classifier) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		}
	}
}

// New creates a classifier around an external scorer.
func New(scorer Scorer, opts ...Option) *Classifier {
	c := &Classifier{
		scorer:  scorer,
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify returns the complexity score for a query, always in [1,10].
//
// A single bounded attempt is made; there are no retries. Out-of-range
// numeric replies clamp to the nearest bound; unparseable replies fall back
// to DefaultComplexity. Only a transport failure produces
// ErrClassifierUnavailable.
func (c *Classifier) Classify(ctx context.Context, query string) (int, error) {
	if strings.TrimSpace(query) == "" {
		return MinComplexity, nil
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return DefaultComplexity, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
		}
	}

	reply, err := c.scorer.Score(ctx, complexityGuide, query)
	if err != nil {
		return DefaultComplexity, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}

	return ParseScore(reply), nil
}

// ParseScore extracts a complexity score from a raw scorer reply.
//
// The scorer is told to reply with a bare integer but small models decorate
// answers anyway. Any integer found is clamped to [1,10]; a reply with no
// integer at all yields DefaultComplexity.
func ParseScore(reply string) int {
	reply = strings.TrimSpace(reply)

	if m := scoreRe.FindStringSubmatch(reply); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return Clamp(n)
		}
	}

	// No 1-10 token; try any leading integer (e.g. "0", "42", "-3").
	if n, ok := leadingInt(reply); ok {
		return Clamp(n)
	}

	log.Printf("CLASSIFY: unparseable scorer reply %q, defaulting to %d", truncate(reply, 50), DefaultComplexity)
	return DefaultComplexity
}

// Clamp forces a score into the valid [1,10] range.
func Clamp(score int) int {
	if score < MinComplexity {
		return MinComplexity
	}
	if score > MaxComplexity {
		return MaxComplexity
	}
	return score
}

// leadingInt parses an integer prefix (with optional sign) from s.
func leadingInt(s string) (int, bool) {
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		i++
	}
	start := i
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == start {
		return 0, false
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// truncate shortens a string for log output.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
