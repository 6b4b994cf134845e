package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrBudgetExceeded is returned when the cost tracker refuses a call
var ErrBudgetExceeded = errors.New("model budget exceeded")

// Supervisor is the production Completer. It wraps a Provider with retries,
// a circuit breaker, a concurrency limit, a rate limiter and cost tracking.
type Supervisor struct {
	provider       Provider
	model          string
	retry          RetryConfig
	circuitBreaker *CircuitBreaker
	concurrencySem *semaphore.Weighted
	limiter        *rate.Limiter
	costTracker    CostTracker
	logger         *slog.Logger
}

var _ Completer = (*Supervisor)(nil)

// CostTracker is the budget hook. It lives here as an interface so the cost
// package does not need to import ai.
type CostTracker interface {
	RecordUsage(ctx context.Context, operation string, inputTokens, outputTokens int64) error
	CanProceed(operation string) (bool, string)
}

// Config holds supervisor configuration
type Config struct {
	Provider Provider
	Model    string // defaults to GetDefaultModel(provider)
	Retry    RetryConfig
	// RequestsPerSecond caps outbound calls; 0 disables the limiter
	RequestsPerSecond float64
	CostTracker       CostTracker
	Logger            *slog.Logger
}

// NewSupervisor creates a supervisor around a provider
func NewSupervisor(cfg *Config) (*Supervisor, error) {
	if cfg == nil || cfg.Provider == nil {
		return nil, fmt.Errorf("provider is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = GetDefaultModel(cfg.Provider.Name())
	}

	retry := cfg.Retry
	if retry.Timeout == 0 {
		retry = DefaultRetryConfig()
	}
	if err := retry.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retry config: %w", err)
	}

	s := &Supervisor{
		provider:    cfg.Provider,
		model:       model,
		retry:       retry,
		costTracker: cfg.CostTracker,
		logger:      logger,
	}

	if retry.CircuitBreakerEnabled {
		s.circuitBreaker = NewCircuitBreaker(retry.FailureThreshold, retry.SuccessThreshold, retry.OpenTimeout, logger)
	}
	if retry.MaxConcurrentCalls > 0 {
		s.concurrencySem = semaphore.NewWeighted(int64(retry.MaxConcurrentCalls))
	}
	if cfg.RequestsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	logger.Debug("model supervisor initialized",
		"provider", cfg.Provider.Name(),
		"model", model,
		"max_retries", retry.MaxRetries,
		"max_concurrent", retry.MaxConcurrentCalls)

	return s, nil
}

// Model returns the model name requests are sent to
func (s *Supervisor) Model() string { return s.model }

// Complete implements Completer
func (s *Supervisor) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Operation == "" {
		req.Operation = "completion"
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = 400
	}

	if s.costTracker != nil {
		if ok, reason := s.costTracker.CanProceed(req.Operation); !ok {
			return nil, fmt.Errorf("%w: %s", ErrBudgetExceeded, reason)
		}
	}

	start := time.Now()
	var resp *Response
	err := s.retryWithBackoff(ctx, req.Operation, func(attemptCtx context.Context) error {
		r, apiErr := s.provider.Send(attemptCtx, s.model, req)
		if apiErr != nil {
			return apiErr
		}
		resp = r
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s API call failed: %w", s.provider.Name(), err)
	}

	s.logger.Debug("model call",
		"operation", req.Operation,
		"model", s.model,
		"input_tokens", resp.InputTokens,
		"output_tokens", resp.OutputTokens,
		"duration", time.Since(start))

	if s.costTracker != nil {
		if err := s.costTracker.RecordUsage(ctx, req.Operation, resp.InputTokens, resp.OutputTokens); err != nil {
			s.logger.Warn("failed to record model usage", "operation", req.Operation, "error", err)
		}
	}

	return resp, nil
}

// HealthCheck reports an open circuit
func (s *Supervisor) HealthCheck(ctx context.Context) error {
	if s.circuitBreaker == nil {
		return nil
	}
	state, failures, _ := s.circuitBreaker.GetMetrics()
	if state == CircuitOpen {
		return fmt.Errorf("model unavailable: %w (failures=%d, retry in %v)",
			ErrCircuitOpen, failures, s.retry.OpenTimeout)
	}
	return nil
}

// truncate shortens s to at most maxLen bytes for log previews without
// splitting a UTF-8 sequence
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
