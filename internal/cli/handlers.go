// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// handlers.go - Command handlers for the ecoroute CLI.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jeranaias/ecoroute/internal/cache"
	"github.com/jeranaias/ecoroute/internal/catalog"
	"github.com/jeranaias/ecoroute/internal/classify"
	"github.com/jeranaias/ecoroute/internal/config"
	"github.com/jeranaias/ecoroute/internal/embed"
	"github.com/jeranaias/ecoroute/internal/ledger"
	"github.com/jeranaias/ecoroute/internal/pipeline"
	"github.com/jeranaias/ecoroute/internal/selector"
)

// commandTimeout bounds one whole CLI command.
const commandTimeout = 60 * time.Second

// =============================================================================
// WIRING
// =============================================================================

// loadConfig reads the configuration, honoring a --config override.
func loadConfig(parser *ArgParser) (*config.Config, error) {
	if path := parser.Flag("config"); path != "" {
		return config.LoadFromPath(path)
	}
	return config.Load()
}

// buildEngine wires a pipeline engine from configuration.
// The returned cleanup closes every resource the engine holds.
func buildEngine(ctx context.Context, cfg *config.Config) (*pipeline.Engine, func(), error) {
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	catalogPath, err := cfg.CatalogPath()
	if err != nil {
		return nil, nil, err
	}
	provider, err := catalog.NewProvider(ctx, catalogPath)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("catalog: %w", err)
	}
	cleanups = append(cleanups, func() { provider.Close() })
	if cfg.Catalog.HotReload {
		if err := provider.Watch(); err != nil {
			log.Printf("CLI: catalog watch unavailable: %v", err)
		}
	}

	scorer := classify.NewOpenRouterScorer(cfg.Classifier.OpenRouterKey).
		WithModel(cfg.Classifier.Model)
	if cfg.Classifier.BaseURL != "" {
		scorer.WithBaseURL(cfg.Classifier.BaseURL)
	}
	classifierOpts := []classify.Option{
		classify.WithRateLimit(cfg.Classifier.RateLimit, 1),
	}
	if cfg.Classifier.TimeoutSecs > 0 {
		classifierOpts = append(classifierOpts,
			classify.WithTimeout(time.Duration(cfg.Classifier.TimeoutSecs)*time.Second))
	}
	classifier := classify.New(scorer, classifierOpts...)

	var engineOpts []pipeline.EngineOption

	if cfg.Cache.Enabled && cfg.Cache.GeminiKey != "" {
		embedder, err := embed.NewGeminiEmbedder(ctx, cfg.Cache.GeminiKey)
		if err != nil {
			log.Printf("CLI: cache embedder unavailable, continuing without cache: %v", err)
		} else {
			cleanups = append(cleanups, func() { embedder.Close() })
			cacheDB, err := cfg.CacheDBPath()
			if err == nil {
				index, err := cache.NewSQLiteIndex(cacheDB)
				if err != nil {
					log.Printf("CLI: cache index unavailable, continuing without cache: %v", err)
				} else {
					cleanups = append(cleanups, func() { index.Close() })
					gate := cache.NewGate(embedder, index)
					if cfg.Cache.LookupTimeoutSecs > 0 {
						gate.WithTimeout(time.Duration(cfg.Cache.LookupTimeoutSecs) * time.Second)
					}
					engineOpts = append(engineOpts, pipeline.WithCache(gate))
				}
			}
		}
	}

	ledgerDB, err := cfg.LedgerDBPath()
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	savings, err := ledger.Open(ledgerDB)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("ledger: %w", err)
	}
	cleanups = append(cleanups, func() { savings.Close() })
	engineOpts = append(engineOpts, pipeline.WithLedger(savings))

	if !cfg.Suggestions.Enabled {
		engineOpts = append(engineOpts, pipeline.WithSuggestionsDisabled())
	}

	engine := pipeline.NewEngine(provider, classifier, engineOpts...)
	cleanups = append(cleanups, func() { engine.Close() })
	return engine, cleanup, nil
}

// fail prints an error (JSON-aware) and exits with the given code.
func fail(jsonMode bool, command string, err error, code int) {
	if jsonMode {
		NewJSONErrorResponse(command, err).Print()
	} else {
		fmt.Fprintf(os.Stderr, "ecoroute: %v\n", err)
	}
	os.Exit(code)
}

// =============================================================================
// ROUTE
// =============================================================================

// HandleRoute decides the best model for a query.
func HandleRoute(args []string) {
	parser := NewArgParser(args)
	jsonMode := parser.BoolFlag("json")

	query := parser.JoinPositional(0)
	if query == "" {
		fail(jsonMode, "route", errors.New("usage: ecoroute route <query>"), ExitUsageError)
	}

	cfg, err := loadConfig(parser)
	if err != nil {
		fail(jsonMode, "route", err, ExitConfigError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		fail(jsonMode, "route", err, ExitConfigError)
	}
	defer cleanup()

	result, err := engine.RouteQuery(ctx, query)
	if err != nil {
		fail(jsonMode, "route", err, ExitGeneralError)
	}

	if jsonMode {
		NewJSONResponse("route", result).Print()
		return
	}

	if result.FromCache {
		fmt.Printf("Cache hit (similarity %.3f, originally answered by %s):\n\n%s\n",
			result.CacheHit.Similarity, result.CacheHit.SourceModelID, result.CacheHit.Answer)
		return
	}

	fmt.Printf("Complexity: %d/10", result.ComplexityScore)
	if result.Degraded {
		fmt.Print(" (classifier unavailable, using default)")
	}
	fmt.Println()
	fmt.Printf("Model:      %s\n", result.Model.String())
}

// =============================================================================
// SUGGEST / ACCEPT
// =============================================================================

// HandleSuggest checks a caller-chosen model against a query.
func HandleSuggest(args []string) {
	parser := NewArgParser(args)
	jsonMode := parser.BoolFlag("json")

	modelID := parser.Flag("model")
	query := parser.JoinPositional(0)
	if modelID == "" || query == "" {
		fail(jsonMode, "suggest", errors.New("usage: ecoroute suggest --model <id> <query>"), ExitUsageError)
	}

	cfg, err := loadConfig(parser)
	if err != nil {
		fail(jsonMode, "suggest", err, ExitConfigError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		fail(jsonMode, "suggest", err, ExitConfigError)
	}
	defer cleanup()

	decision, err := engine.CheckSuggestion(ctx, query, modelID, false)
	if err != nil {
		code := ExitGeneralError
		if errors.Is(err, catalog.ErrModelNotFound) {
			code = ExitUsageError
		}
		fail(jsonMode, "suggest", err, code)
	}

	if jsonMode {
		NewJSONResponse("suggest", decision).Print()
		return
	}

	if decision == nil {
		fmt.Printf("%s is a reasonable choice for this query.\n", modelID)
		return
	}
	fmt.Println(decision.Reason())
	if !decision.IsUnderEngineered {
		fmt.Printf("Run 'ecoroute accept --model %s --complexity %d' with the same query to record the switch.\n",
			modelID, decision.ComplexityScore)
	}
}

// HandleAccept accepts a downgrade suggestion and records the savings.
func HandleAccept(args []string) {
	parser := NewArgParser(args)
	jsonMode := parser.BoolFlag("json")

	modelID := parser.Flag("model")
	query := parser.JoinPositional(0)
	if modelID == "" || query == "" {
		fail(jsonMode, "accept", errors.New("usage: ecoroute accept --model <id> <query>"), ExitUsageError)
	}

	cfg, err := loadConfig(parser)
	if err != nil {
		fail(jsonMode, "accept", err, ExitConfigError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	engine, cleanup, err := buildEngine(ctx, cfg)
	if err != nil {
		fail(jsonMode, "accept", err, ExitConfigError)
	}
	defer cleanup()

	// With --complexity the decision is re-derived from the score the user
	// was shown, not from a fresh classifier call that may disagree.
	var decision *selector.SuggestionDecision
	if parser.HasFlag("complexity") {
		decision, err = engine.CheckSuggestionAt(ctx,
			parser.FlagIntOrDefault("complexity", classify.DefaultComplexity), modelID)
	} else {
		decision, err = engine.CheckSuggestion(ctx, query, modelID, false)
	}
	if err != nil {
		fail(jsonMode, "accept", err, ExitGeneralError)
	}
	if decision == nil {
		fail(jsonMode, "accept", errors.New("nothing to accept: no suggestion for this query"), ExitGeneralError)
	}
	if decision.IsUnderEngineered {
		fail(jsonMode, "accept",
			errors.New("nothing to record: the suggestion is an upgrade, only downgrades accrue savings"),
			ExitGeneralError)
	}

	id, err := engine.ConfirmSwitch(ctx, decision, true, query)
	if err != nil {
		// The switch stands; the write is retried in the background.
		fmt.Fprintf(os.Stderr, "ecoroute: savings record deferred: %v\n", err)
	}

	if jsonMode {
		NewJSONResponse("accept", map[string]interface{}{
			"record_id": id,
			"decision":  decision,
		}).Print()
		return
	}
	fmt.Printf("Switched %s -> %s. Saved $%.4f/1K input, $%.4f/1K output, %.2fg CO2.\n",
		decision.CurrentModel.ID, decision.SuggestedModel.ID,
		decision.CostDeltaInput, decision.CostDeltaOutput, decision.CO2Delta)
}

// =============================================================================
// SAVINGS
// =============================================================================

// HandleSavings reports accumulated savings.
func HandleSavings(args []string) {
	parser := NewArgParser(args)
	jsonMode := parser.BoolFlag("json")

	cfg, err := loadConfig(parser)
	if err != nil {
		fail(jsonMode, "savings", err, ExitConfigError)
	}

	ledgerDB, err := cfg.LedgerDBPath()
	if err != nil {
		fail(jsonMode, "savings", err, ExitConfigError)
	}
	savings, err := ledger.Open(ledgerDB)
	if err != nil {
		fail(jsonMode, "savings", err, ExitConfigError)
	}
	defer savings.Close()

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	switch parser.Subcommand() {
	case "history":
		records, err := savings.ListAll(ctx)
		if err != nil {
			fail(jsonMode, "savings", err, ExitGeneralError)
		}
		if jsonMode {
			NewJSONResponse("savings.history", records).Print()
			return
		}
		if len(records) == 0 {
			fmt.Println("No recorded switches yet.")
			return
		}
		for _, rec := range records {
			fmt.Printf("%s  %s -> %s  (complexity %d, $%.4f in, $%.4f out, %.2fg CO2)  %q\n",
				rec.CreatedAt.Format("2006-01-02 15:04"),
				rec.OriginalModelID, rec.SuggestedModelID,
				rec.ComplexityLevel, rec.CostSavedInput, rec.CostSavedOutput,
				rec.CO2Saved, rec.QueryPreview)
		}

	case "period":
		days := parser.FlagIntOrDefault("days", 30)
		buckets, err := savings.ByPeriod(ctx, days)
		if err != nil {
			fail(jsonMode, "savings", err, ExitGeneralError)
		}
		if jsonMode {
			NewJSONResponse("savings.period", buckets).Print()
			return
		}
		for _, b := range buckets {
			fmt.Printf("%s  %3d switches  $%.4f saved  %.2fg CO2\n",
				b.Day, b.Switches, b.CostSaved, b.CO2Saved)
		}

	case "pairs":
		stats, err := savings.ModelPairStats(ctx)
		if err != nil {
			fail(jsonMode, "savings", err, ExitGeneralError)
		}
		if jsonMode {
			NewJSONResponse("savings.pairs", stats).Print()
			return
		}
		if len(stats) == 0 {
			fmt.Println("No recorded switches yet.")
			return
		}
		for _, p := range stats {
			fmt.Printf("%s -> %s: %d switches, $%.4f saved, %.2fg CO2\n",
				p.OriginalModelID, p.SuggestedModelID, p.Switches, p.CostSaved, p.CO2Saved)
		}

	case "", "totals":
		totals, err := savings.Totals(ctx)
		if err != nil {
			fail(jsonMode, "savings", err, ExitGeneralError)
		}
		if jsonMode {
			NewJSONResponse("savings.totals", totals).Print()
			return
		}
		fmt.Printf("Accepted switches: %d\n", totals.Switches)
		fmt.Printf("Cost saved:        $%.4f/1K input, $%.4f/1K output\n",
			totals.CostSavedInput, totals.CostSavedOutput)
		fmt.Printf("CO2 saved:         %.2fg\n", totals.CO2Saved)

	default:
		fail(jsonMode, "savings",
			fmt.Errorf("unknown savings subcommand %q (want totals, history, period, pairs)", parser.Subcommand()),
			ExitUsageError)
	}
}

// =============================================================================
// MODELS
// =============================================================================

// HandleModels lists the model catalog.
func HandleModels(args []string) {
	parser := NewArgParser(args)
	jsonMode := parser.BoolFlag("json")

	cfg, err := loadConfig(parser)
	if err != nil {
		fail(jsonMode, "models", err, ExitConfigError)
	}
	catalogPath, err := cfg.CatalogPath()
	if err != nil {
		fail(jsonMode, "models", err, ExitConfigError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	cat, err := catalog.Load(ctx, catalog.NewFileStore(catalogPath))
	if err != nil {
		fail(jsonMode, "models", err, ExitConfigError)
	}

	if jsonMode {
		NewJSONResponse("models", cat.Models()).Print()
		return
	}

	fmt.Printf("%d models in %s:\n\n", cat.Len(), catalogPath)
	for _, rec := range cat.Models() {
		fmt.Printf("  tier %2d  %s\n", rec.Tier, rec.String())
	}
}

// =============================================================================
// CONFIG
// =============================================================================

// HandleConfig manages the configuration file.
func HandleConfig(args []string) {
	parser := NewArgParser(args)
	jsonMode := parser.BoolFlag("json")

	switch parser.Subcommand() {
	case "", "show":
		cfg, err := loadConfig(parser)
		if err != nil {
			fail(jsonMode, "config", err, ExitConfigError)
		}
		if jsonMode {
			NewJSONResponse("config", cfg).Print()
			return
		}
		catalogPath, _ := cfg.CatalogPath()
		cacheDB, _ := cfg.CacheDBPath()
		ledgerDB, _ := cfg.LedgerDBPath()
		fmt.Printf("catalog:      %s (hot reload: %v)\n", catalogPath, cfg.Catalog.HotReload)
		fmt.Printf("scorer:       %s (key set: %v)\n",
			orDefault(cfg.Classifier.Model, classify.DefaultScorerModel),
			cfg.Classifier.OpenRouterKey != "")
		fmt.Printf("cache:        enabled=%v db=%s (key set: %v)\n",
			cfg.Cache.Enabled, cacheDB, cfg.Cache.GeminiKey != "")
		fmt.Printf("ledger:       %s\n", ledgerDB)
		fmt.Printf("suggestions:  enabled=%v\n", cfg.Suggestions.Enabled)

	case "init":
		path, err := config.ConfigPath()
		if err != nil {
			fail(jsonMode, "config", err, ExitConfigError)
		}
		if _, err := os.Stat(path); err == nil {
			fail(jsonMode, "config", fmt.Errorf("config already exists at %s", path), ExitGeneralError)
		}
		if err := config.Save(config.Default()); err != nil {
			fail(jsonMode, "config", err, ExitGeneralError)
		}
		fmt.Printf("Wrote default config to %s\n", path)

	case "path":
		path, err := config.ConfigPath()
		if err != nil {
			fail(jsonMode, "config", err, ExitConfigError)
		}
		fmt.Println(path)

	default:
		fail(jsonMode, "config",
			fmt.Errorf("unknown config subcommand %q (want show, init, path)", parser.Subcommand()),
			ExitUsageError)
	}
}

// orDefault returns s, or fallback when s is empty.
func orDefault(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
