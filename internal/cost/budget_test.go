package cost

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func newTestTracker(t *testing.T, mutate func(*Config)) (*Tracker, *time.Time) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.PersistStatePath = ""
	cfg.MaxTokensPerHour = 1000
	cfg.MaxTokensPerOperation = 0
	cfg.MaxCostPerHour = 0
	if mutate != nil {
		mutate(cfg)
	}
	tr, err := NewTracker(cfg, nil)
	if err != nil {
		t.Fatalf("NewTracker failed: %v", err)
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return now }
	tr.state.WindowStartTime = now
	return tr, &now
}

func TestTrackerStatusProgression(t *testing.T) {
	tr, _ := newTestTracker(t, nil)
	ctx := context.Background()

	if got := tr.CheckBudget(); got != BudgetHealthy {
		t.Fatalf("Expected HEALTHY, got %s", got)
	}

	_ = tr.RecordUsage(ctx, "extraction", 500, 300)
	if got := tr.CheckBudget(); got != BudgetWarning {
		t.Errorf("Expected WARNING at 80%%, got %s", got)
	}
	if ok, _ := tr.CanProceed("extraction"); !ok {
		t.Error("Expected calls to proceed while in WARNING")
	}

	_ = tr.RecordUsage(ctx, "synthesis", 150, 50)
	if got := tr.CheckBudget(); got != BudgetExceeded {
		t.Errorf("Expected EXCEEDED, got %s", got)
	}
	ok, reason := tr.CanProceed("synthesis")
	if ok {
		t.Fatal("Expected budget refusal")
	}
	if !strings.Contains(reason, "hourly token budget exceeded") {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestTrackerWindowReset(t *testing.T) {
	tr, now := newTestTracker(t, nil)
	_ = tr.RecordUsage(context.Background(), "synthesis", 900, 200)
	if ok, _ := tr.CanProceed("synthesis"); ok {
		t.Fatal("Expected refusal before reset")
	}

	*now = now.Add(61 * time.Minute)
	if ok, reason := tr.CanProceed("synthesis"); !ok {
		t.Fatalf("Expected window reset to allow calls, got: %s", reason)
	}

	stats := tr.GetStats()
	if stats.HourlyTokensUsed != 0 {
		t.Errorf("Expected hourly tokens reset, got %d", stats.HourlyTokensUsed)
	}
	if stats.TotalTokensUsed != 1100 {
		t.Errorf("Expected total tokens kept, got %d", stats.TotalTokensUsed)
	}
}

func TestTrackerPerOperationLimit(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MaxTokensPerHour = 0
		c.MaxTokensPerOperation = 100
	})
	_ = tr.RecordUsage(context.Background(), "extraction", 80, 40)

	if ok, _ := tr.CanProceed("extraction"); ok {
		t.Error("Expected extraction to be refused")
	}
	if ok, _ := tr.CanProceed("synthesis"); !ok {
		t.Error("Expected synthesis to be unaffected")
	}
	if got := tr.GetStats().ByOperation["extraction"]; got != 120 {
		t.Errorf("Expected 120 extraction tokens, got %d", got)
	}
}

func TestTrackerCostLimit(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) {
		c.MaxTokensPerHour = 0
		c.MaxCostPerHour = 0.01
		c.InputTokenCost = 1.0
		c.OutputTokenCost = 1.0
	})
	_ = tr.RecordUsage(context.Background(), "synthesis", 6000, 4000)

	ok, reason := tr.CanProceed("synthesis")
	if ok {
		t.Fatal("Expected cost refusal")
	}
	if !strings.Contains(reason, "hourly cost budget exceeded") {
		t.Errorf("Unexpected reason: %s", reason)
	}
}

func TestTrackerDisabled(t *testing.T) {
	tr, _ := newTestTracker(t, func(c *Config) { c.Enabled = false })
	_ = tr.RecordUsage(context.Background(), "synthesis", 1_000_000, 1_000_000)
	if ok, _ := tr.CanProceed("synthesis"); !ok {
		t.Error("Disabled tracker must never refuse")
	}
	if got := tr.GetStats().TotalTokensUsed; got != 0 {
		t.Errorf("Disabled tracker must not record, got %d", got)
	}
}

func TestTrackerPersistsState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state", "cost.json")
	cfg := DefaultConfig()
	cfg.PersistStatePath = path

	tr, err := NewTracker(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	_ = tr.RecordUsage(context.Background(), "extraction", 10, 5)

	restored, err := NewTracker(cfg, nil)
	if err != nil {
		t.Fatal(err)
	}
	stats := restored.GetStats()
	if stats.TotalTokensUsed != 15 {
		t.Errorf("Expected 15 restored tokens, got %d", stats.TotalTokensUsed)
	}
	if stats.ByOperation["extraction"] != 15 {
		t.Errorf("Expected per-operation usage restored, got %v", stats.ByOperation)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("Default config invalid: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative tokens", func(c *Config) { c.MaxTokensPerHour = -1 }},
		{"negative per operation", func(c *Config) { c.MaxTokensPerOperation = -1 }},
		{"negative cost", func(c *Config) { c.MaxCostPerHour = -1 }},
		{"zero threshold", func(c *Config) { c.AlertThreshold = 0 }},
		{"threshold above one", func(c *Config) { c.AlertThreshold = 1.5 }},
		{"zero interval", func(c *Config) { c.BudgetResetInterval = 0 }},
		{"negative price", func(c *Config) { c.OutputTokenCost = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("RISKPILOT_COST_MAX_TOKENS_PER_HOUR", "5000")
	t.Setenv("RISKPILOT_COST_ENABLED", "off")
	t.Setenv("RISKPILOT_COST_BUDGET_RESET_INTERVAL", "30m")

	cfg := LoadFromEnv()
	if cfg.MaxTokensPerHour != 5000 {
		t.Errorf("Expected 5000, got %d", cfg.MaxTokensPerHour)
	}
	if cfg.Enabled {
		t.Error("Expected disabled")
	}
	if cfg.BudgetResetInterval != 30*time.Minute {
		t.Errorf("Expected 30m, got %v", cfg.BudgetResetInterval)
	}

	t.Setenv("RISKPILOT_COST_ALERT_THRESHOLD", "7")
	if got := LoadFromEnv(); got.AlertThreshold != DefaultConfig().AlertThreshold {
		t.Errorf("Expected fallback to defaults on invalid env, got %v", got.AlertThreshold)
	}
}

func TestBudgetStatusString(t *testing.T) {
	if BudgetExceeded.String() != "EXCEEDED" {
		t.Errorf("Unexpected: %s", BudgetExceeded)
	}
	if BudgetStatus(7).String() != "UNKNOWN(7)" {
		t.Errorf("Unexpected: %s", BudgetStatus(7))
	}
}
