package sqlite

import "github.com/riskpilot/riskpilot/internal/storage/migrations"

// schemaMigrations is applied in order by New. Append, never edit.
var schemaMigrations = []migrations.Migration{
	{
		Version:     1,
		Description: "events, runs, approvals, config",
		Up: `
-- Audit trail: every step of every run plus approval decisions
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    timestamp DATETIME NOT NULL,
    run_id TEXT NOT NULL DEFAULT '',
    approval_id TEXT NOT NULL DEFAULT '',
    actor TEXT NOT NULL DEFAULT '',
    severity TEXT NOT NULL DEFAULT 'info',
    message TEXT NOT NULL,
    data TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, timestamp);
CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);
CREATE INDEX IF NOT EXISTS idx_events_severity ON events(severity);

-- One row per turn
CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    text TEXT NOT NULL,
    intent TEXT NOT NULL,
    strategy TEXT NOT NULL DEFAULT '',
    outcome TEXT NOT NULL,
    response TEXT NOT NULL DEFAULT '',
    iterations INTEGER NOT NULL DEFAULT 0,
    steps INTEGER NOT NULL DEFAULT 0,
    approval_id TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    started_at DATETIME NOT NULL,
    completed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);

-- Suspended turns awaiting sign-off
CREATE TABLE IF NOT EXISTS approvals (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    created_at DATETIME NOT NULL,
    user_text TEXT NOT NULL,
    intent TEXT NOT NULL,
    hedge_type TEXT NOT NULL,
    proposed REAL NOT NULL,
    max_allowed REAL NOT NULL,
    recommendation REAL NOT NULL,
    audit TEXT NOT NULL DEFAULT '{}',
    trace TEXT NOT NULL DEFAULT '[]',
    status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending', 'approved', 'rejected')),
    reviewed_by TEXT NOT NULL DEFAULT '',
    reviewed_at DATETIME,
    reason TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status, created_at);

-- Key/value settings
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`,
		Down: `
DROP TABLE IF EXISTS config;
DROP TABLE IF EXISTS approvals;
DROP TABLE IF EXISTS runs;
DROP TABLE IF EXISTS events;
`,
	},
}
