package config

import (
	"strings"
	"testing"
	"time"
)

func TestEventRetentionConfigFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		envVars map[string]string
		wantErr string
		check   func(t *testing.T, cfg EventRetentionConfig)
	}{
		{
			name:    "no environment variables uses defaults",
			envVars: map[string]string{},
			check: func(t *testing.T, cfg EventRetentionConfig) {
				if cfg != DefaultEventRetentionConfig() {
					t.Errorf("got %s, want defaults", cfg)
				}
			},
		},
		{
			name: "valid custom configuration",
			envVars: map[string]string{
				EnvEventRetentionDays:         "60",
				EnvEventRetentionCriticalDays: "180",
				EnvEventPerRunLimit:           "500",
				EnvEventGlobalLimit:           "200000",
				EnvEventCleanupIntervalHours:  "12",
				EnvEventCleanupBatchSize:      "500",
				EnvEventCleanupEnabled:        "false",
				EnvEventCleanupStrategy:       StrategyOldestFirst,
				EnvEventCleanupVacuum:         "true",
			},
			check: func(t *testing.T, cfg EventRetentionConfig) {
				want := EventRetentionConfig{
					RetentionDays:         60,
					RetentionCriticalDays: 180,
					PerRunLimitEvents:     500,
					GlobalLimitEvents:     200000,
					CleanupIntervalHours:  12,
					CleanupBatchSize:      500,
					CleanupEnabled:        false,
					CleanupStrategy:       StrategyOldestFirst,
					CleanupVacuum:         true,
				}
				if cfg != want {
					t.Errorf("got %s, want %s", cfg, want)
				}
			},
		},
		{
			name:    "unlimited per-run events",
			envVars: map[string]string{EnvEventPerRunLimit: "0"},
			check: func(t *testing.T, cfg EventRetentionConfig) {
				if cfg.PerRunLimitEvents != 0 {
					t.Errorf("PerRunLimitEvents = %d, want 0", cfg.PerRunLimitEvents)
				}
			},
		},
		{
			name:    "invalid int value",
			envVars: map[string]string{EnvEventRetentionDays: "thirty"},
			wantErr: "invalid value for " + EnvEventRetentionDays,
		},
		{
			name:    "invalid bool value",
			envVars: map[string]string{EnvEventCleanupEnabled: "maybe"},
			wantErr: "invalid value for " + EnvEventCleanupEnabled,
		},
		{
			name:    "critical retention less than regular retention",
			envVars: map[string]string{EnvEventRetentionDays: "60", EnvEventRetentionCriticalDays: "30"},
			wantErr: "must be >= retention_days",
		},
		{
			name:    "invalid cleanup strategy",
			envVars: map[string]string{EnvEventCleanupStrategy: "newest_first"},
			wantErr: "cleanup_strategy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{
				EnvEventRetentionDays, EnvEventRetentionCriticalDays, EnvEventPerRunLimit,
				EnvEventGlobalLimit, EnvEventCleanupIntervalHours, EnvEventCleanupBatchSize,
				EnvEventCleanupEnabled, EnvEventCleanupStrategy, EnvEventCleanupVacuum,
			} {
				t.Setenv(key, "")
			}
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg, err := EventRetentionConfigFromEnv()
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestEventRetentionConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *EventRetentionConfig)
		wantErr string
	}{
		{name: "default config is valid", mutate: func(c *EventRetentionConfig) {}},
		{
			name: "valid config at minimum bounds",
			mutate: func(c *EventRetentionConfig) {
				*c = EventRetentionConfig{
					RetentionDays: 1, RetentionCriticalDays: 1, PerRunLimitEvents: 20,
					GlobalLimitEvents: 1000, CleanupIntervalHours: 1, CleanupBatchSize: 100,
					CleanupStrategy: StrategyOldestFirst,
				}
			},
		},
		{
			name: "valid config at maximum bounds",
			mutate: func(c *EventRetentionConfig) {
				*c = EventRetentionConfig{
					RetentionDays: 365, RetentionCriticalDays: 730, PerRunLimitEvents: 10000,
					GlobalLimitEvents: 1000000, CleanupIntervalHours: 168, CleanupBatchSize: 10000,
					CleanupStrategy: StrategyOldestNonCritical,
				}
			},
		},
		{name: "retention days too low", mutate: func(c *EventRetentionConfig) { c.RetentionDays = 0 }, wantErr: "retention_days"},
		{name: "retention days too high", mutate: func(c *EventRetentionConfig) { c.RetentionDays = 366 }, wantErr: "retention_days"},
		{name: "critical retention too high", mutate: func(c *EventRetentionConfig) { c.RetentionCriticalDays = 731 }, wantErr: "retention_critical_days"},
		{name: "per-run limit negative", mutate: func(c *EventRetentionConfig) { c.PerRunLimitEvents = -1 }, wantErr: "cannot be negative"},
		{name: "per-run limit too low", mutate: func(c *EventRetentionConfig) { c.PerRunLimitEvents = 5 }, wantErr: "0 (unlimited) or >= 20"},
		{name: "per-run limit too high", mutate: func(c *EventRetentionConfig) { c.PerRunLimitEvents = 10001 }, wantErr: "too large"},
		{name: "global limit too low", mutate: func(c *EventRetentionConfig) { c.GlobalLimitEvents = 999 }, wantErr: "global_limit"},
		{name: "global limit too high", mutate: func(c *EventRetentionConfig) { c.GlobalLimitEvents = 1000001 }, wantErr: "global_limit"},
		{name: "cleanup interval too low", mutate: func(c *EventRetentionConfig) { c.CleanupIntervalHours = 0 }, wantErr: "cleanup_interval_hours"},
		{name: "cleanup interval too high", mutate: func(c *EventRetentionConfig) { c.CleanupIntervalHours = 169 }, wantErr: "cleanup_interval_hours"},
		{name: "batch size too low", mutate: func(c *EventRetentionConfig) { c.CleanupBatchSize = 99 }, wantErr: "cleanup_batch_size"},
		{name: "batch size too high", mutate: func(c *EventRetentionConfig) { c.CleanupBatchSize = 10001 }, wantErr: "cleanup_batch_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultEventRetentionConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestEventRetentionDerivedValues(t *testing.T) {
	cfg := DefaultEventRetentionConfig()
	if got := cfg.Interval(); got != 24*time.Hour {
		t.Errorf("Interval() = %v, want 24h", got)
	}
	if got := cfg.GlobalTrigger(); got != 95000 {
		t.Errorf("GlobalTrigger() = %d, want 95000", got)
	}
	if s := cfg.String(); !strings.Contains(s, "PerRunLimit: 200") {
		t.Errorf("String() = %q, want per-run limit", s)
	}
}
