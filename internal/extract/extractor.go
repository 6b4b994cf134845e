// Package extract turns free text into an intent and structured parameters.
//
// Two strategies share one output shape: Keyword, a deterministic pattern
// matcher, and Model, which asks a language model to pick a tool and falls
// back to Keyword whenever the model output cannot be trusted.
package extract

import (
	"context"

	"github.com/riskpilot/riskpilot/internal/types"
)

// Strategy names which path produced an extraction
type Strategy string

const (
	StrategyKeyword  Strategy = "keyword"
	StrategyModel    Strategy = "model"
	StrategyFallback Strategy = "keyword_fallback"
)

// Extraction is the result of interpreting one user request
type Extraction struct {
	Intent   types.Intent
	Params   types.Parameters
	Tool     string
	Strategy Strategy
	// Step is the single ANALYZE entry for the trace
	Step types.ThinkingStep
}

// Extractor interprets user text. Implementations never fail hard: any
// internal problem degrades to a lower-fidelity extraction.
type Extractor interface {
	Extract(ctx context.Context, text string, rc *types.RiskContext) Extraction
}
