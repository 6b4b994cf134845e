package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"
)

// LockFileName sits next to the database file
const LockFileName = ".serve-lock"

// ExclusiveLock is the content of the lock file a long-running host writes
// so that a second `riskpilot serve` on the same database refuses to start.
// Two servers would both run event retention and both accept approvals.
type ExclusiveLock struct {
	Holder    string    `json:"holder"`
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartedAt time.Time `json:"started_at"`
	Version   string    `json:"version"`
}

// AcquireExclusiveLock creates the lock file beside dbPath. A lock left by
// a dead process on this host is taken over. Returns the lock file path
// for ReleaseExclusiveLock.
func AcquireExclusiveLock(dbPath, holder, version string) (lockPath string, err error) {
	if dbPath == "" || dbPath == ":memory:" {
		return "", nil
	}

	absPath, err := filepath.Abs(dbPath)
	if err != nil {
		return "", fmt.Errorf("invalid database path: %w", err)
	}
	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}
	lockPath = filepath.Join(dir, LockFileName)

	if existing, err := ReadExclusiveLock(lockPath); err == nil && existing != nil {
		if isProcessAlive(existing.PID, existing.Hostname) {
			return "", fmt.Errorf("another %s is already running (PID %d on %s, started %s)",
				existing.Holder, existing.PID, existing.Hostname, existing.StartedAt.Format(time.RFC3339))
		}
	}

	hostname, err := os.Hostname()
	if err != nil {
		return "", fmt.Errorf("failed to get hostname: %w", err)
	}

	data, err := json.MarshalIndent(ExclusiveLock{
		Holder:    holder,
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartedAt: time.Now(),
		Version:   version,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal lock: %w", err)
	}

	if err := os.WriteFile(lockPath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to create exclusive lock: %w", err)
	}
	return lockPath, nil
}

// ReadExclusiveLock parses a lock file. A missing file returns nil, nil.
func ReadExclusiveLock(lockPath string) (*ExclusiveLock, error) {
	data, err := os.ReadFile(lockPath)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read lock: %w", err)
	}
	var lock ExclusiveLock
	if err := json.Unmarshal(data, &lock); err != nil {
		return nil, fmt.Errorf("failed to parse lock %s: %w", lockPath, err)
	}
	return &lock, nil
}

// ReleaseExclusiveLock removes the lock file
func ReleaseExclusiveLock(lockPath string) error {
	if lockPath == "" {
		return nil
	}
	if err := os.Remove(lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove exclusive lock: %w", err)
	}
	return nil
}

// isProcessAlive reports whether pid exists on hostname. Remote hosts
// cannot be checked and count as alive.
func isProcessAlive(pid int, hostname string) bool {
	currentHost, err := os.Hostname()
	if err != nil {
		return true
	}
	if !strings.EqualFold(hostname, currentHost) {
		return true
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// Signal 0 probes without delivering anything
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: the process exists but belongs to someone else
	return err == syscall.EPERM
}
