// Package sqlite persists the riskpilot audit trail, runs and pending
// approvals in a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"github.com/riskpilot/riskpilot/internal/storage/migrations"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

// New opens (creating if needed) the database at path and brings its
// schema up to date.
func New(path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// WAL lets readers run while a turn is being written
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Every new connection to :memory: is a fresh database
	if path == MemoryPath {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := migrations.NewManager(schemaMigrations...).Apply(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: path}, nil
}

// Path returns the database file the storage was opened on
func (s *SQLiteStorage) Path() string {
	return s.path
}

// GetConfig gets a configuration value from the config table.
// A missing key is returned as the empty string.
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}
