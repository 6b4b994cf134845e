// Package ai wraps the external language model behind a small completion
// interface with retries, a circuit breaker, rate limiting and token budgets.
package ai

import (
	"context"
	"os"
)

// Model defaults. The Anthropic model is overridable with RISKPILOT_MODEL.
const (
	ModelHaiku   = "claude-3-5-haiku-20241022"
	ModelSonnet  = "claude-sonnet-4-5-20250929"
	ModelGPTMini = "gpt-4o-mini"

	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// GetDefaultModel returns the model for a provider, checking RISKPILOT_MODEL first
func GetDefaultModel(provider string) string {
	if model := os.Getenv("RISKPILOT_MODEL"); model != "" {
		return model
	}
	if provider == ProviderOpenAI {
		return ModelGPTMini
	}
	return ModelHaiku
}

// Request is one single-turn completion
type Request struct {
	// Operation names the call site for logs and cost attribution
	Operation   string
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response is the text a model produced plus its token usage
type Response struct {
	Text         string
	Model        string
	InputTokens  int64
	OutputTokens int64
}

// Completer is what the rest of the module depends on. The Supervisor is the
// production implementation; tests use fakes.
type Completer interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}

// Provider sends one request to one vendor API without retries
type Provider interface {
	Name() string
	Send(ctx context.Context, model string, req Request) (*Response, error)
}
