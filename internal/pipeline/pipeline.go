// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// pipeline.go - Decision pipeline engine and ledger retry worker.
package pipeline

import (
	"context"
	"log"
	"time"

	"github.com/jeranaias/ecoroute/internal/cache"
	"github.com/jeranaias/ecoroute/internal/catalog"
	"github.com/jeranaias/ecoroute/internal/classify"
	"github.com/jeranaias/ecoroute/internal/ledger"
	"github.com/jeranaias/ecoroute/internal/selector"
	"github.com/jeranaias/ecoroute/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// queryPreviewRunes bounds the query text stored with a savings record.
	queryPreviewRunes = 100

	// retryQueueSize bounds the out-of-band ledger retry queue. A full queue
	// drops the oldest pending record rather than blocking a request.
	retryQueueSize = 64

	// retryInterval spaces out background ledger write retries.
	retryInterval = 5 * time.Second

	// retryAttempts caps retries per queued record.
	retryAttempts = 3
)

// =============================================================================
// COLLABORATOR CONTRACTS
// =============================================================================

// CatalogSource serves the active catalog snapshot. catalog.Provider
// satisfies this; tests supply fixed snapshots.
type CatalogSource interface {
	Current() *catalog.Catalog
}

// staticSource adapts a fixed snapshot to CatalogSource.
type staticSource struct{ cat *catalog.Catalog }

func (s staticSource) Current() *catalog.Catalog { return s.cat }

// StaticCatalog wraps a fixed catalog snapshot as a CatalogSource.
func StaticCatalog(cat *catalog.Catalog) CatalogSource {
	return staticSource{cat: cat}
}

// =============================================================================
// RESULTS
// =============================================================================

// RouteResult is the outcome of one automatic routing decision.
type RouteResult struct {
	// FromCache is true when a cached answer short-circuited the pipeline.
	FromCache bool `json:"from_cache"`
	// CacheHit holds the cached answer when FromCache is true.
	CacheHit *cache.Hit `json:"cache_hit,omitempty"`
	// Model is the selected model on the miss path.
	Model catalog.ModelRecord `json:"model"`
	// ComplexityScore is the classified complexity on the miss path.
	ComplexityScore int `json:"complexity_score"`
	// Degraded is true when the classifier was unreachable and the
	// documented default score drove selection.
	Degraded bool `json:"degraded,omitempty"`
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine runs the decision pipeline: semantic cache gate, complexity
// classification, then model selection. Stages degrade independently; only
// an empty catalog stops a decision.
type Engine struct {
	catalogs   CatalogSource
	classifier *classify.Classifier
	gate       *cache.Gate
	savings    *ledger.Ledger

	suggestionsOff bool

	retryQueue chan ledger.SavingsRecord
	retryDone  chan struct{}
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithCache attaches the semantic cache gate. Without it every query takes
// the classify-and-select path.
func WithCache(gate *cache.Gate) EngineOption {
	return func(e *Engine) { e.gate = gate }
}

// WithLedger attaches the savings ledger and starts the background retry
// worker for failed writes.
func WithLedger(l *ledger.Ledger) EngineOption {
	return func(e *Engine) { e.savings = l }
}

// WithSuggestionsDisabled turns suggestion checks into no-ops. Routing and
// caching behave normally.
func WithSuggestionsDisabled() EngineOption {
	return func(e *Engine) { e.suggestionsOff = true }
}

// NewEngine creates a pipeline engine.
func NewEngine(catalogs CatalogSource, classifier *classify.Classifier, opts ...EngineOption) *Engine {
	e := &Engine{
		catalogs:   catalogs,
		classifier: classifier,
		retryDone:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.savings != nil {
		e.retryQueue = make(chan ledger.SavingsRecord, retryQueueSize)
		go e.retryLoop()
	}
	return e
}

// Close stops the background retry worker, if one is running.
func (e *Engine) Close() error {
	select {
	case <-e.retryDone:
	default:
		close(e.retryDone)
	}
	return nil
}

// =============================================================================
// ROUTE
// =============================================================================

// RouteQuery runs the full decision pipeline for a query.
//
// A cache hit ends the pipeline immediately: no classification, no
// selection. Cache and classifier failures degrade (logged, pipeline
// continues); an empty catalog is the only fatal outcome.
func (e *Engine) RouteQuery(ctx context.Context, query string) (*RouteResult, error) {
	if e.gate != nil {
		hit, err := e.gate.Lookup(ctx, query)
		if err != nil {
			log.Printf("PIPELINE: cache lookup degraded: %v", err)
		}
		if hit != nil {
			return &RouteResult{FromCache: true, CacheHit: hit}, nil
		}
	}

	score, degraded := e.classifyOrDefault(ctx, query)

	model, err := selector.SelectForComplexity(e.catalogs.Current(), score)
	if err != nil {
		return nil, err
	}

	return &RouteResult{
		Model:           model,
		ComplexityScore: score,
		Degraded:        degraded,
	}, nil
}

// classifyOrDefault scores a query, falling back to the documented default
// when the classifier is unreachable.
func (e *Engine) classifyOrDefault(ctx context.Context, query string) (int, bool) {
	score, err := e.classifier.Classify(ctx, query)
	if err != nil {
		log.Printf("PIPELINE: classifier degraded, using default score %d: %v", score, err)
		return score, true
	}
	return score, false
}

// =============================================================================
// SUGGESTIONS
// =============================================================================

// CheckSuggestion evaluates whether a caller's chosen model should be
// swapped for a query.
//
// skip suppresses the check for this one request; callers set it on the
// follow-up request that results from an already-resolved suggestion, so a
// suggestion can never trigger another suggestion.
//
// Returns catalog.ErrModelNotFound if the chosen id is not in the catalog.
// A nil decision with a nil error means the chosen model is fine (inside
// the tolerance band, already optimal, skipped, or suggestions are
// disabled).
func (e *Engine) CheckSuggestion(ctx context.Context, query, chosenModelID string, skip bool) (*selector.SuggestionDecision, error) {
	if skip || e.suggestionsOff {
		return nil, nil
	}

	cat := e.catalogs.Current()
	if cat == nil || cat.Len() == 0 {
		return nil, catalog.ErrCatalogEmpty
	}

	chosen, err := cat.ByID(chosenModelID)
	if err != nil {
		return nil, err
	}

	score, degraded := e.classifyOrDefault(ctx, query)
	decision, err := selector.Evaluate(cat, score, chosen)
	if decision != nil {
		decision.ScoreDegraded = degraded
	}
	return decision, err
}

// CheckSuggestionAt evaluates a suggestion for a known complexity score,
// bypassing the classifier. Callers that already hold the score a prior
// check produced use this so the recorded decision matches what was shown.
func (e *Engine) CheckSuggestionAt(ctx context.Context, score int, chosenModelID string) (*selector.SuggestionDecision, error) {
	if e.suggestionsOff {
		return nil, nil
	}

	cat := e.catalogs.Current()
	if cat == nil || cat.Len() == 0 {
		return nil, catalog.ErrCatalogEmpty
	}

	chosen, err := cat.ByID(chosenModelID)
	if err != nil {
		return nil, err
	}

	return selector.Evaluate(cat, classify.Clamp(score), chosen)
}

// ConfirmSwitch records the caller's response to a downgrade suggestion.
//
// Only accepted downgrades feed the ledger: a rejected suggestion
// (accepted == false) and under-engineered (upgrade) suggestions are never
// recorded. A failed write is queued for background retry and reported
// through the returned error, but the switch itself stands either way.
func (e *Engine) ConfirmSwitch(ctx context.Context, decision *selector.SuggestionDecision, accepted bool, query string) (int64, error) {
	if !accepted || decision == nil || decision.IsUnderEngineered {
		return 0, nil
	}
	if e.savings == nil {
		return 0, nil
	}

	rec := ledger.SavingsRecord{
		OriginalModelID:  decision.CurrentModel.ID,
		OriginalModel:    decision.CurrentModel.Name,
		SuggestedModelID: decision.SuggestedModel.ID,
		SuggestedModel:   decision.SuggestedModel.Name,
		CostSavedInput:   decision.CostDeltaInput,
		CostSavedOutput:  decision.CostDeltaOutput,
		CO2Saved:         decision.CO2Delta,
		ComplexityLevel:  decision.ComplexityScore,
		QueryPreview:     util.TruncateRunes(query, queryPreviewRunes),
		CreatedAt:        time.Now(),
	}

	id, err := e.savings.Record(ctx, rec)
	if err != nil {
		log.Printf("PIPELINE: ledger write failed, queueing retry: %v", err)
		e.enqueueRetry(rec)
		return 0, err
	}
	return id, nil
}

// enqueueRetry queues a record for the background worker, evicting the
// oldest pending record when the queue is full.
func (e *Engine) enqueueRetry(rec ledger.SavingsRecord) {
	if e.retryQueue == nil {
		return
	}
	for {
		select {
		case e.retryQueue <- rec:
			return
		default:
			select {
			case dropped := <-e.retryQueue:
				log.Printf("PIPELINE: retry queue full, dropping savings record for %s -> %s",
					dropped.OriginalModelID, dropped.SuggestedModelID)
			default:
			}
		}
	}
}

// retryLoop re-attempts failed ledger writes out-of-band.
func (e *Engine) retryLoop() {
	for {
		select {
		case rec := <-e.retryQueue:
			e.retryRecord(rec)
		case <-e.retryDone:
			return
		}
	}
}

// retryRecord makes a bounded number of spaced attempts to persist a record.
func (e *Engine) retryRecord(rec ledger.SavingsRecord) {
	for attempt := 1; attempt <= retryAttempts; attempt++ {
		select {
		case <-e.retryDone:
			return
		case <-time.After(retryInterval):
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_, err := e.savings.Record(ctx, rec)
		cancel()
		if err == nil {
			log.Printf("PIPELINE: ledger retry succeeded for %s -> %s",
				rec.OriginalModelID, rec.SuggestedModelID)
			return
		}
		log.Printf("PIPELINE: ledger retry %d/%d failed: %v", attempt, retryAttempts, err)
	}
	log.Printf("PIPELINE: giving up on savings record for %s -> %s",
		rec.OriginalModelID, rec.SuggestedModelID)
}

// =============================================================================
// CACHE STORE
// =============================================================================

// StoreAnswer adds a genuinely answered query to the semantic cache.
// A no-op when no cache gate is attached.
func (e *Engine) StoreAnswer(ctx context.Context, query, answer, sourceModelID string) error {
	if e.gate == nil {
		return nil
	}
	return e.gate.Store(ctx, query, answer, sourceModelID)
}

// =============================================================================
// SAVINGS REPORTS
// =============================================================================

// SavingsTotals returns the all-time savings aggregate.
func (e *Engine) SavingsTotals(ctx context.Context) (ledger.Totals, error) {
	if e.savings == nil {
		return ledger.Totals{}, nil
	}
	return e.savings.Totals(ctx)
}

// SavingsByPeriod returns per-day savings over the trailing window.
func (e *Engine) SavingsByPeriod(ctx context.Context, days int) ([]ledger.PeriodBucket, error) {
	if e.savings == nil {
		return nil, nil
	}
	return e.savings.ByPeriod(ctx, days)
}

// SavingsPairStats returns per model-pair savings aggregates.
func (e *Engine) SavingsPairStats(ctx context.Context) ([]ledger.PairStats, error) {
	if e.savings == nil {
		return nil, nil
	}
	return e.savings.ModelPairStats(ctx)
}

// SavingsHistory returns every savings record, newest first.
func (e *Engine) SavingsHistory(ctx context.Context) ([]ledger.SavingsRecord, error) {
	if e.savings == nil {
		return nil, nil
	}
	return e.savings.ListAll(ctx)
}
