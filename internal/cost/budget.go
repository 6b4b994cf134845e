// Package cost tracks model token spend per window and refuses calls once a
// budget is exhausted.
package cost

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// BudgetStatus represents the current budget state
type BudgetStatus int

const (
	BudgetHealthy BudgetStatus = iota
	BudgetWarning
	BudgetExceeded
)

func (s BudgetStatus) String() string {
	switch s {
	case BudgetHealthy:
		return "HEALTHY"
	case BudgetWarning:
		return "WARNING"
	case BudgetExceeded:
		return "EXCEEDED"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// MarshalText renders the status name in JSON output
func (s BudgetStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// BudgetState is the persisted window state
type BudgetState struct {
	HourlyTokensUsed int64     `json:"hourly_tokens_used"`
	HourlyCostUsed   float64   `json:"hourly_cost_used"`
	WindowStartTime  time.Time `json:"window_start_time"`

	// operation -> tokens in the current window
	OperationTokensUsed map[string]int64 `json:"operation_tokens_used"`

	TotalTokensUsed int64     `json:"total_tokens_used"`
	TotalCostUsed   float64   `json:"total_cost_used"`
	LastUpdated     time.Time `json:"last_updated"`
}

// BudgetStats is a point-in-time view of the tracker
type BudgetStats struct {
	Status           BudgetStatus     `json:"status"`
	HourlyTokensUsed int64            `json:"hourly_tokens_used"`
	HourlyCostUsed   float64          `json:"hourly_cost_used"`
	TotalTokensUsed  int64            `json:"total_tokens_used"`
	TotalCostUsed    float64          `json:"total_cost_used"`
	ByOperation      map[string]int64 `json:"by_operation"`
	WindowStartTime  time.Time        `json:"window_start_time"`
	LastUpdated      time.Time        `json:"last_updated"`
}

// Tracker tracks model cost budgets and enforces limits
type Tracker struct {
	config *Config
	logger *slog.Logger
	now    func() time.Time

	mu               sync.RWMutex
	state            *BudgetState
	warningLogged    bool
	lastExceededTime time.Time
}

// NewTracker creates a tracker, restoring persisted state when available
func NewTracker(cfg *Config, logger *slog.Logger) (*Tracker, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	t := &Tracker{
		config: cfg,
		logger: logger,
		now:    time.Now,
	}
	t.state = t.freshState()

	if cfg.PersistStatePath != "" {
		if err := t.loadState(); err != nil {
			logger.Warn("failed to load cost state, starting fresh", "path", cfg.PersistStatePath, "error", err)
		}
	}

	t.mu.Lock()
	t.checkAndResetWindow()
	t.mu.Unlock()

	return t, nil
}

func (t *Tracker) freshState() *BudgetState {
	now := t.now()
	return &BudgetState{
		WindowStartTime:     now,
		OperationTokensUsed: make(map[string]int64),
		LastUpdated:         now,
	}
}

// RecordUsage records token usage for an operation
func (t *Tracker) RecordUsage(ctx context.Context, operation string, inputTokens, outputTokens int64) error {
	if !t.config.Enabled {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.checkAndResetWindow()

	total := inputTokens + outputTokens
	c := t.calculateCost(inputTokens, outputTokens)

	t.state.HourlyTokensUsed += total
	t.state.HourlyCostUsed += c
	t.state.TotalTokensUsed += total
	t.state.TotalCostUsed += c
	t.state.LastUpdated = t.now()
	if operation != "" {
		t.state.OperationTokensUsed[operation] += total
	}

	if err := t.persistState(); err != nil {
		t.logger.Warn("failed to persist cost state", "error", err)
	}

	status := t.getBudgetStatusLocked()
	t.logger.Debug("model usage recorded",
		"operation", operation,
		"tokens", total,
		"cost_usd", c,
		"hourly_tokens", t.state.HourlyTokensUsed,
		"status", status.String())
	t.emitAlertsIfNeeded(status)

	return nil
}

// CheckBudget returns the current status without recording usage
func (t *Tracker) CheckBudget() BudgetStatus {
	if !t.config.Enabled {
		return BudgetHealthy
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkAndResetWindow()
	return t.getBudgetStatusLocked()
}

// CanProceed reports whether another call for operation fits in the budget
func (t *Tracker) CanProceed(operation string) (bool, string) {
	if !t.config.Enabled {
		return true, ""
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkAndResetWindow()

	if t.isHourlyTokenLimitExceeded() {
		return false, fmt.Sprintf("hourly token budget exceeded (%d/%d tokens used)",
			t.state.HourlyTokensUsed, t.config.MaxTokensPerHour)
	}
	if t.isHourlyCostLimitExceeded() {
		return false, fmt.Sprintf("hourly cost budget exceeded ($%.2f/$%.2f used)",
			t.state.HourlyCostUsed, t.config.MaxCostPerHour)
	}
	if operation != "" && t.isOperationLimitExceeded(operation) {
		return false, fmt.Sprintf("token budget exceeded for %s (%d/%d tokens used)",
			operation, t.state.OperationTokensUsed[operation], t.config.MaxTokensPerOperation)
	}
	return true, ""
}

// GetStats returns current budget statistics
func (t *Tracker) GetStats() BudgetStats {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.checkAndResetWindow()

	byOp := make(map[string]int64, len(t.state.OperationTokensUsed))
	for k, v := range t.state.OperationTokensUsed {
		byOp[k] = v
	}

	return BudgetStats{
		Status:           t.getBudgetStatusLocked(),
		HourlyTokensUsed: t.state.HourlyTokensUsed,
		HourlyCostUsed:   t.state.HourlyCostUsed,
		TotalTokensUsed:  t.state.TotalTokensUsed,
		TotalCostUsed:    t.state.TotalCostUsed,
		ByOperation:      byOp,
		WindowStartTime:  t.state.WindowStartTime,
		LastUpdated:      t.state.LastUpdated,
	}
}

// must be called with lock held
func (t *Tracker) getBudgetStatusLocked() BudgetStatus {
	if t.isHourlyTokenLimitExceeded() || t.isHourlyCostLimitExceeded() {
		return BudgetExceeded
	}

	if t.config.MaxTokensPerHour > 0 &&
		float64(t.state.HourlyTokensUsed)/float64(t.config.MaxTokensPerHour) >= t.config.AlertThreshold {
		return BudgetWarning
	}
	if t.config.MaxCostPerHour > 0 &&
		t.state.HourlyCostUsed/t.config.MaxCostPerHour >= t.config.AlertThreshold {
		return BudgetWarning
	}
	return BudgetHealthy
}

func (t *Tracker) isHourlyTokenLimitExceeded() bool {
	return t.config.MaxTokensPerHour > 0 && t.state.HourlyTokensUsed >= t.config.MaxTokensPerHour
}

func (t *Tracker) isHourlyCostLimitExceeded() bool {
	return t.config.MaxCostPerHour > 0 && t.state.HourlyCostUsed >= t.config.MaxCostPerHour
}

func (t *Tracker) isOperationLimitExceeded(operation string) bool {
	if t.config.MaxTokensPerOperation <= 0 {
		return false
	}
	return t.state.OperationTokensUsed[operation] >= t.config.MaxTokensPerOperation
}

func (t *Tracker) calculateCost(inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)*t.config.InputTokenCost/1_000_000 +
		float64(outputTokens)*t.config.OutputTokenCost/1_000_000
}

// must be called with lock held
func (t *Tracker) checkAndResetWindow() {
	now := t.now()
	if now.Sub(t.state.WindowStartTime) < t.config.BudgetResetInterval {
		return
	}
	t.state.HourlyTokensUsed = 0
	t.state.HourlyCostUsed = 0
	t.state.OperationTokensUsed = make(map[string]int64)
	t.state.WindowStartTime = now
	t.warningLogged = false
}

func (t *Tracker) persistState() error {
	if t.config.PersistStatePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(t.state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(t.config.PersistStatePath), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := os.WriteFile(t.config.PersistStatePath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	return nil
}

func (t *Tracker) loadState() error {
	data, err := os.ReadFile(t.config.PersistStatePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var state BudgetState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to unmarshal state: %w", err)
	}
	if state.OperationTokensUsed == nil {
		state.OperationTokensUsed = make(map[string]int64)
	}
	t.state = &state
	return nil
}

// must be called with lock held
func (t *Tracker) emitAlertsIfNeeded(status BudgetStatus) {
	now := t.now()
	switch status {
	case BudgetWarning:
		if !t.warningLogged {
			t.logger.Warn("model cost budget warning",
				"hourly_tokens", t.state.HourlyTokensUsed,
				"max_tokens", t.config.MaxTokensPerHour,
				"hourly_cost_usd", t.state.HourlyCostUsed)
			t.warningLogged = true
		}
	case BudgetExceeded:
		// throttled to once per 5 minutes
		if now.Sub(t.lastExceededTime) > 5*time.Minute {
			reset := t.state.WindowStartTime.Add(t.config.BudgetResetInterval)
			t.logger.Error("model cost budget exceeded, pausing model calls",
				"hourly_tokens", t.state.HourlyTokensUsed,
				"max_tokens", t.config.MaxTokensPerHour,
				"hourly_cost_usd", t.state.HourlyCostUsed,
				"resets_in", reset.Sub(now).Round(time.Second))
			t.lastExceededTime = now
		}
	}
}
