package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// EnvDBPath overrides database discovery, mainly for test isolation
const EnvDBPath = "RISKPILOT_DB_PATH"

// DataDir is the per-project directory holding the database and lock file
const DataDir = ".riskpilot"

// DiscoverDatabase looks for .riskpilot/*.db in the current directory only.
// Parent directories are not searched so that a nested checkout never
// writes approvals into an enclosing project's database.
//
// RISKPILOT_DB_PATH, when set, is returned as is (":memory:" included).
func DiscoverDatabase() (string, error) {
	if dbPath := os.Getenv(EnvDBPath); dbPath != "" {
		return dbPath, nil
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("failed to get current directory: %w", err)
	}
	return discoverDatabaseInDir(dir)
}

// discoverDatabaseInDir checks for .riskpilot/*.db in dir only
func discoverDatabaseInDir(dir string) (string, error) {
	dataDir := filepath.Join(dir, DataDir)

	if info, err := os.Stat(dataDir); err == nil && info.IsDir() {
		entries, err := os.ReadDir(dataDir)
		if err == nil {
			for _, entry := range entries {
				if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".db") {
					absPath, err := filepath.Abs(filepath.Join(dataDir, entry.Name()))
					if err != nil {
						return "", fmt.Errorf("failed to get absolute path: %w", err)
					}
					return absPath, nil
				}
			}
		}
	}

	return "", fmt.Errorf(
		"no %s/*.db found in %s\n"+
			"  Run any riskpilot command to create %s\n"+
			"  Or use --db to specify the database path explicitly",
		DataDir, dir, DefaultPath)
}

// ResolvePath picks the database to open: an explicit path wins, then
// discovery, then DefaultPath (created on first open).
func ResolvePath(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if found, err := DiscoverDatabase(); err == nil {
		return found
	}
	return DefaultPath
}

// GetProjectRoot returns the directory containing the .riskpilot/ directory
// that holds dbPath.
func GetProjectRoot(dbPath string) (string, error) {
	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}

	dbDir := filepath.Dir(absPath)
	if filepath.Base(dbDir) != DataDir {
		return "", fmt.Errorf("database must be in a %s/ directory, got: %s", DataDir, dbPath)
	}
	return filepath.Dir(dbDir), nil
}
