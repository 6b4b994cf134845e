// Package migrations versions the riskpilot SQLite schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"
)

// Migration is one schema version
type Migration struct {
	Version     int
	Description string
	Up          string // SQL to apply the migration
	Down        string // SQL to revert the migration
}

// Manager applies registered migrations in version order
type Manager struct {
	migrations []Migration
}

// NewManager creates a migration manager preloaded with ms
func NewManager(ms ...Migration) *Manager {
	m := &Manager{}
	for _, migration := range ms {
		m.Register(migration)
	}
	return m
}

// Register adds a migration to the manager
func (m *Manager) Register(migration Migration) {
	m.migrations = append(m.migrations, migration)
}

func (m *Manager) sortMigrations() {
	sort.Slice(m.migrations, func(i, j int) bool {
		return m.migrations[i].Version < m.migrations[j].Version
	})
}

// Apply runs every migration newer than the database's current version.
// It returns the version the database is at afterwards.
func (m *Manager) Apply(ctx context.Context, db *sql.DB) (int, error) {
	if err := createVersionTable(ctx, db); err != nil {
		return 0, fmt.Errorf("failed to create version table: %w", err)
	}

	current, err := Version(ctx, db)
	if err != nil {
		return 0, fmt.Errorf("failed to get current version: %w", err)
	}

	m.sortMigrations()
	for _, migration := range m.migrations {
		if migration.Version <= current {
			continue
		}
		if err := apply(ctx, db, migration); err != nil {
			return current, fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Description, err)
		}
		current = migration.Version
	}
	return current, nil
}

// Rollback reverts the most recent migration
func (m *Manager) Rollback(ctx context.Context, db *sql.DB) error {
	current, err := Version(ctx, db)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if current == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	for _, migration := range m.migrations {
		if migration.Version == current {
			if err := rollback(ctx, db, migration); err != nil {
				return fmt.Errorf("failed to rollback migration %d: %w", migration.Version, err)
			}
			return nil
		}
	}
	return fmt.Errorf("migration %d not found", current)
}

// Version returns the highest applied migration, 0 for a fresh database
func Version(ctx context.Context, db *sql.DB) (int, error) {
	var version int
	err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func createVersionTable(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`)
	return err
}

func apply(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Up); err != nil {
		return fmt.Errorf("failed to execute migration SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_version (version, description, applied_at) VALUES (?, ?, ?)",
		migration.Version, migration.Description, time.Now().UTC(),
	); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}
	return tx.Commit()
}

func rollback(ctx context.Context, db *sql.DB, migration Migration) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, migration.Down); err != nil {
		return fmt.Errorf("failed to execute rollback SQL: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM schema_version WHERE version = ?", migration.Version); err != nil {
		return fmt.Errorf("failed to remove migration record: %w", err)
	}
	return tx.Commit()
}
