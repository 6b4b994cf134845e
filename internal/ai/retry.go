package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// RetryConfig holds retry configuration for model calls
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	InitialBackoff    time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `mapstructure:"max_backoff"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	Timeout           time.Duration `mapstructure:"timeout"` // per attempt

	CircuitBreakerEnabled bool          `mapstructure:"circuit_breaker"`
	FailureThreshold      int           `mapstructure:"failure_threshold"`
	SuccessThreshold      int           `mapstructure:"success_threshold"`
	OpenTimeout           time.Duration `mapstructure:"open_timeout"`

	// 0 = unlimited
	MaxConcurrentCalls int `mapstructure:"max_concurrent_calls"`
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:            2,
		InitialBackoff:        500 * time.Millisecond,
		MaxBackoff:            5 * time.Second,
		BackoffMultiplier:     2.0,
		Timeout:               30 * time.Second,
		CircuitBreakerEnabled: true,
		FailureThreshold:      5,
		SuccessThreshold:      2,
		OpenTimeout:           30 * time.Second,
		MaxConcurrentCalls:    3,
	}
}

// Validate checks retry settings
func (c RetryConfig) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be non-negative (got %d)", c.MaxRetries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive (got %v)", c.Timeout)
	}
	if c.BackoffMultiplier < 1 {
		return fmt.Errorf("backoff_multiplier must be >= 1 (got %v)", c.BackoffMultiplier)
	}
	if c.CircuitBreakerEnabled && (c.FailureThreshold < 1 || c.SuccessThreshold < 1) {
		return fmt.Errorf("circuit breaker thresholds must be >= 1 (failure=%d, success=%d)",
			c.FailureThreshold, c.SuccessThreshold)
	}
	if c.MaxConcurrentCalls < 0 {
		return fmt.Errorf("max_concurrent_calls must be non-negative (got %d)", c.MaxConcurrentCalls)
	}
	return nil
}

// CircuitState represents the state of a circuit breaker
type CircuitState int

const (
	CircuitClosed   CircuitState = iota // requests pass through
	CircuitOpen                         // fail fast
	CircuitHalfOpen                     // probing for recovery
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops hammering a model endpoint that keeps failing
type CircuitBreaker struct {
	mu sync.Mutex

	state            CircuitState
	failureCount     int
	successCount     int
	lastFailureTime  time.Time
	failureThreshold int
	successThreshold int
	openTimeout      time.Duration
	logger           *slog.Logger
	now              func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker
func NewCircuitBreaker(failureThreshold, successThreshold int, openTimeout time.Duration, logger *slog.Logger) *CircuitBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	return &CircuitBreaker{
		state:            CircuitClosed,
		failureThreshold: failureThreshold,
		successThreshold: successThreshold,
		openTimeout:      openTimeout,
		logger:           logger,
		now:              time.Now,
	}
}

// Allow returns ErrCircuitOpen while the circuit is open and the open
// timeout has not elapsed.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed, CircuitHalfOpen:
		return nil
	case CircuitOpen:
		if cb.now().Sub(cb.lastFailureTime) > cb.openTimeout {
			cb.transition(CircuitHalfOpen)
			return nil
		}
		return ErrCircuitOpen
	}
	return ErrCircuitOpen
}

// RecordSuccess records a successful request
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount = 0
	case CircuitHalfOpen:
		cb.successCount++
		if cb.successCount >= cb.successThreshold {
			cb.transition(CircuitClosed)
		}
	}
}

// RecordFailure records a failed request
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()

	switch cb.state {
	case CircuitClosed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.transition(CircuitOpen)
		}
	case CircuitHalfOpen:
		// Any failure while probing reopens
		cb.transition(CircuitOpen)
	}
}

// GetState returns the current state
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// GetMetrics returns current counters
func (cb *CircuitBreaker) GetMetrics() (state CircuitState, failures, successes int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state, cb.failureCount, cb.successCount
}

// must be called with lock held
func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	cb.successCount = 0
	if to == CircuitClosed {
		cb.failureCount = 0
	}
	cb.logger.Info("circuit breaker state transition",
		"from", from.String(), "to", to.String(), "failures", cb.failureCount)
}

// retryWithBackoff executes fn with retry and exponential backoff. Each
// attempt gets its own timeout.
func (s *Supervisor) retryWithBackoff(ctx context.Context, operation string, fn func(context.Context) error) error {
	if s.concurrencySem != nil {
		if err := s.concurrencySem.Acquire(ctx, 1); err != nil {
			return fmt.Errorf("failed to acquire concurrency slot for %s: %w", operation, err)
		}
		defer s.concurrencySem.Release(1)
	}

	var lastErr error
	backoff := s.retry.InitialBackoff

	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if s.circuitBreaker != nil {
			if err := s.circuitBreaker.Allow(); err != nil {
				state, failures, _ := s.circuitBreaker.GetMetrics()
				s.logger.Warn("model call blocked by circuit breaker",
					"operation", operation, "state", state.String(), "failures", failures)
				return fmt.Errorf("%s failed: %w", operation, err)
			}
		}

		if s.limiter != nil {
			if err := s.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("%s failed waiting for rate limiter: %w", operation, err)
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.retry.Timeout)
		err := fn(attemptCtx)
		cancel()

		if err == nil {
			if s.circuitBreaker != nil {
				s.circuitBreaker.RecordSuccess()
			}
			if attempt > 0 {
				s.logger.Info("model call succeeded after retries", "operation", operation, "retries", attempt)
			}
			return nil
		}

		lastErr = err

		// Caller cancellation is not the endpoint's fault
		if ctx.Err() != nil {
			return fmt.Errorf("%s failed: %w", operation, ctx.Err())
		}

		retriable := isRetriableError(err)
		if s.circuitBreaker != nil && retriable {
			s.circuitBreaker.RecordFailure()
		}
		if !retriable {
			s.logger.Warn("model call failed with non-retriable error", "operation", operation, "error", err)
			return err
		}
		if attempt == s.retry.MaxRetries {
			break
		}

		s.logger.Info("model call failed, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"max_attempts", s.retry.MaxRetries+1,
			"backoff", backoff,
			"error", err)

		select {
		case <-time.After(backoff):
			backoff = time.Duration(float64(backoff) * s.retry.BackoffMultiplier)
			if backoff > s.retry.MaxBackoff {
				backoff = s.retry.MaxBackoff
			}
		case <-ctx.Done():
			return fmt.Errorf("%s failed: context canceled during backoff: %w", operation, ctx.Err())
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, s.retry.MaxRetries+1, lastErr)
}

// isRetriableError determines if an error is transient
func isRetriableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())

	if strings.Contains(errStr, "429") || strings.Contains(errStr, "rate limit") {
		return true
	}

	for _, s := range []string{
		"500", "502", "503", "504", "529",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout", "overloaded",
		"connection refused", "connection reset", "timeout", "temporary failure", "network",
	} {
		if strings.Contains(errStr, s) {
			return true
		}
	}

	return false
}
