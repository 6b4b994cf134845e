package migrations

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

var widgets = Migration{
	Version:     1,
	Description: "widgets",
	Up:          `CREATE TABLE IF NOT EXISTS widgets (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
	Down:        `DROP TABLE IF EXISTS widgets`,
}

var gadgets = Migration{
	Version:     2,
	Description: "gadgets",
	Up:          `CREATE TABLE IF NOT EXISTS gadgets (id INTEGER PRIMARY KEY)`,
	Down:        `DROP TABLE IF EXISTS gadgets`,
}

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "m.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestApplyAndRollback(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	manager := NewManager(gadgets, widgets)
	version, err := manager.Apply(ctx, db)
	if err != nil {
		t.Fatalf("failed to apply migrations: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	if _, err := db.Exec("INSERT INTO widgets (id, name) VALUES (1, 'w')"); err != nil {
		t.Fatalf("widgets table not created: %v", err)
	}

	// Applying again is a no-op
	version, err = manager.Apply(ctx, db)
	if err != nil || version != 2 {
		t.Fatalf("re-apply: version=%d err=%v", version, err)
	}

	if err := manager.Rollback(ctx, db); err != nil {
		t.Fatalf("failed to rollback: %v", err)
	}
	if v, _ := Version(ctx, db); v != 1 {
		t.Errorf("expected version 1 after rollback, got %d", v)
	}
	if _, err := db.Exec("INSERT INTO gadgets (id) VALUES (1)"); err == nil {
		t.Error("gadgets table should have been dropped")
	}
}

func TestRollbackFreshDatabase(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	manager := NewManager()
	if _, err := manager.Apply(ctx, db); err != nil {
		t.Fatalf("apply with no migrations: %v", err)
	}
	if err := manager.Rollback(ctx, db); err == nil {
		t.Error("expected error rolling back a fresh database")
	}
}

func TestFailedMigrationKeepsPriorVersion(t *testing.T) {
	ctx := context.Background()
	db := openDB(t)

	broken := Migration{Version: 2, Description: "broken", Up: `CREATE TABLE`}
	version, err := NewManager(widgets, broken).Apply(ctx, db)
	if err == nil {
		t.Fatal("expected error from broken migration")
	}
	if version != 1 {
		t.Errorf("expected version 1 to stick, got %d", version)
	}
	if v, _ := Version(ctx, db); v != 1 {
		t.Errorf("expected recorded version 1, got %d", v)
	}
}

func TestMigrationOrdering(t *testing.T) {
	manager := NewManager()
	manager.Register(Migration{Version: 3, Description: "Third"})
	manager.Register(Migration{Version: 1, Description: "First"})
	manager.Register(Migration{Version: 2, Description: "Second"})

	manager.sortMigrations()

	for i, m := range manager.migrations {
		if m.Version != i+1 {
			t.Errorf("position %d: expected version %d, got %d", i, i+1, m.Version)
		}
	}
}
