// Package storage defines the persistence surface for runs, pending
// approvals and the audit trail.
package storage

import (
	"context"
	"os"
	"time"

	"github.com/riskpilot/riskpilot/internal/events"
	"github.com/riskpilot/riskpilot/internal/storage/sqlite"
	"github.com/riskpilot/riskpilot/internal/types"
)

// DefaultPath is where the database lives relative to the working directory
const DefaultPath = ".riskpilot/riskpilot.db"

// Storage defines the interface for riskpilot storage backends
type Storage interface {
	// Audit trail
	events.EventStore

	// Event cleanup, driven by the retention policy
	CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error)
	CleanupEventsByRunLimit(ctx context.Context, perRunLimit, batchSize int) (int, error)
	CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error)
	GetEventCounts(ctx context.Context) (*sqlite.EventCounts, error)
	VacuumDatabase(ctx context.Context) error

	// Runs
	RecordRun(ctx context.Context, run *types.RunRecord) error
	GetRun(ctx context.Context, id string) (*types.RunRecord, error)
	ListRuns(ctx context.Context, limit int) ([]*types.RunRecord, error)

	// Pending approvals
	CreateApproval(ctx context.Context, p *types.PendingApproval) error
	GetApproval(ctx context.Context, id string) (*types.PendingApproval, error)
	ListApprovals(ctx context.Context, status types.ApprovalStatus) ([]*types.PendingApproval, error)
	ResolveApproval(ctx context.Context, id string, status types.ApprovalStatus, reviewer, reason string, at time.Time) (*types.PendingApproval, error)

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Config holds database configuration
type Config struct {
	// Path is the SQLite database file path
	// Default: ".riskpilot/riskpilot.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string
}

// DefaultConfig returns a config with sensible defaults.
// RISKPILOT_DB_PATH overrides the default path.
func DefaultConfig() *Config {
	if p := os.Getenv(EnvDBPath); p != "" {
		return &Config{Path: p}
	}
	return &Config{Path: DefaultPath}
}

// NewStorage creates a new SQLite storage backend. The ctx parameter is
// unused by the SQLite backend.
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	path := cfg.Path
	if path == "" {
		path = DefaultConfig().Path
	}
	return sqlite.New(path)
}
