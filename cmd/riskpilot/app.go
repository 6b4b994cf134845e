package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/riskpilot/riskpilot/internal/ai"
	"github.com/riskpilot/riskpilot/internal/calc"
	"github.com/riskpilot/riskpilot/internal/compliance"
	"github.com/riskpilot/riskpilot/internal/config"
	"github.com/riskpilot/riskpilot/internal/cost"
	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/extract"
	"github.com/riskpilot/riskpilot/internal/gates"
	"github.com/riskpilot/riskpilot/internal/loop"
	"github.com/riskpilot/riskpilot/internal/respond"
	"github.com/riskpilot/riskpilot/internal/riskctx"
	"github.com/riskpilot/riskpilot/internal/storage"
	"github.com/riskpilot/riskpilot/internal/types"
)

// app is the copilot assembled from configuration
type app struct {
	gate    *gates.Gate
	auditor *compliance.Auditor
	context riskctx.Provider
	// file is set when the snapshot comes from disk
	file    *riskctx.FileProvider
	metrics *loop.InMemoryMetricsCollector
	tracker *cost.Tracker
	// model is empty in deterministic mode
	model string
}

// newAuditor builds the compliance auditor from the configured limits
func newAuditor(cfg *config.Config) (*compliance.Auditor, error) {
	ac, err := cfg.Compliance.AuditorConfig()
	if err != nil {
		return nil, err
	}
	return compliance.NewAuditor(ac)
}

// newContextProvider serves the configured snapshot file, or the built-in
// sample when none is configured. Reloads are recorded when store is set.
func newContextProvider(cfg *config.Config, store storage.Storage, logger *slog.Logger) (riskctx.Provider, *riskctx.FileProvider, error) {
	if cfg.Context.Path == "" {
		return riskctx.NewStatic(riskctx.Sample()), nil, nil
	}
	fp, err := riskctx.NewFileProvider(riskctx.FileProviderConfig{
		Path:   cfg.Context.Path,
		MaxFX:  cfg.Compliance.Global.MaxFXExposure,
		Logger: logger,
		OnReload: func(rc *types.RiskContext) {
			if store == nil {
				return
			}
			event, err := events.NewSnapshotReloadedEvent(events.SnapshotReloadedData{Path: cfg.Context.Path, AsOf: rc.AsOf})
			if err != nil {
				logger.Warn("failed to build reload event", "error", err)
				return
			}
			if err := store.StoreEvent(context.Background(), event); err != nil {
				logger.Warn("failed to store reload event", "error", err)
			}
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load risk context: %w", err)
	}
	return fp, fp, nil
}

// newTracker returns nil when cost budgeting is disabled
func newTracker(cfg *config.Config, logger *slog.Logger) (*cost.Tracker, error) {
	if !cfg.Cost.Enabled {
		return nil, nil
	}
	c := cfg.Cost
	return cost.NewTracker(&c, logger)
}

// newCompleter returns nil when no provider is configured or its API key is
// missing. Callers then run in deterministic mode.
func newCompleter(cfg config.AIConfig, tracker *cost.Tracker, logger *slog.Logger) (ai.Completer, string, error) {
	if !cfg.Enabled() {
		return nil, "", nil
	}

	var (
		provider ai.Provider
		err      error
	)
	switch cfg.Provider {
	case ai.ProviderAnthropic:
		provider, err = ai.NewAnthropicProvider(cfg.APIKey(), cfg.BaseURL)
	case ai.ProviderOpenAI:
		provider, err = ai.NewOpenAIProvider(cfg.APIKey(), cfg.BaseURL, &http.Client{Timeout: cfg.Timeout})
	default:
		return nil, "", fmt.Errorf("unsupported ai provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to create %s provider: %w", cfg.Provider, err)
	}

	supCfg := &ai.Config{
		Provider:          provider,
		Model:             cfg.Model,
		Retry:             cfg.Retry,
		RequestsPerSecond: cfg.RequestsPerSecond,
		Logger:            logger,
	}
	if tracker != nil {
		supCfg.CostTracker = tracker
	}
	sup, err := ai.NewSupervisor(supCfg)
	if err != nil {
		return nil, "", err
	}
	return sup, sup.Model(), nil
}

// newApp wires extractor, calculator, auditor, synthesizer, loop and gate
func newApp(cfg *config.Config, store storage.Storage, logger *slog.Logger) (*app, error) {
	auditor, err := newAuditor(cfg)
	if err != nil {
		return nil, err
	}
	provider, file, err := newContextProvider(cfg, store, logger)
	if err != nil {
		return nil, err
	}
	tracker, err := newTracker(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create cost tracker: %w", err)
	}
	client, model, err := newCompleter(cfg.AI, tracker, logger)
	if err != nil {
		return nil, err
	}

	var extractor extract.Extractor = extract.NewKeyword()
	if client != nil {
		extractor, err = extract.NewModel(&extract.ModelConfig{
			Client:  client,
			Timeout: cfg.AI.Timeout,
			Logger:  logger,
		})
		if err != nil {
			return nil, err
		}
	} else {
		logger.Info("no model configured, running in deterministic mode", "provider", cfg.AI.Provider)
	}

	synth := respond.New(&respond.Config{
		Client:      client,
		HedgeLimits: auditor.Limits(),
		Global:      cfg.Compliance.Global,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
		Logger:      logger,
	})

	metrics := loop.NewInMemoryMetricsCollector()
	l, err := loop.New(&loop.Config{
		Extractor:     extractor,
		Calculator:    calc.New(cfg.Compliance.Global),
		Auditor:       auditor,
		Synthesizer:   synth,
		MaxIterations: cfg.Loop.MaxIterations,
		StepBudget:    cfg.Loop.StepBudget,
		Metrics:       metrics,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create refinement loop: %w", err)
	}

	policy, err := gates.ParsePolicy(cfg.Loop.ApprovalPolicy)
	if err != nil {
		return nil, err
	}
	gate, err := gates.New(&gates.Config{
		Loop:    l,
		Store:   store,
		Auditor: auditor,
		Policy:  policy,
		Logger:  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create approval gate: %w", err)
	}

	return &app{
		gate:    gate,
		auditor: auditor,
		context: provider,
		file:    file,
		metrics: metrics,
		tracker: tracker,
		model:   model,
	}, nil
}
