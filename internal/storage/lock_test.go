package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestExclusiveLockLifecycle(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DataDir, "riskpilot.db")

	lockPath, err := AcquireExclusiveLock(dbPath, "riskpilot-serve", "test")
	if err != nil {
		t.Fatalf("AcquireExclusiveLock failed: %v", err)
	}

	lock, err := ReadExclusiveLock(lockPath)
	if err != nil || lock == nil {
		t.Fatalf("ReadExclusiveLock: lock=%v err=%v", lock, err)
	}
	if lock.PID != os.Getpid() || lock.Holder != "riskpilot-serve" {
		t.Errorf("unexpected lock content: %+v", lock)
	}

	// This process is alive, so a second acquire must fail
	if _, err := AcquireExclusiveLock(dbPath, "riskpilot-serve", "test"); err == nil {
		t.Error("expected second acquire to fail while the holder is alive")
	}

	if err := ReleaseExclusiveLock(lockPath); err != nil {
		t.Fatalf("ReleaseExclusiveLock failed: %v", err)
	}
	if lock, _ := ReadExclusiveLock(lockPath); lock != nil {
		t.Error("lock file should be gone after release")
	}

	// Releasing twice is fine
	if err := ReleaseExclusiveLock(lockPath); err != nil {
		t.Errorf("second release failed: %v", err)
	}
}

func TestStaleLockIsTakenOver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), DataDir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	hostname, _ := os.Hostname()
	stale := `{"holder":"riskpilot-serve","pid":999999999,"hostname":"` + hostname + `"}`
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte(stale), 0644); err != nil {
		t.Fatal(err)
	}

	lockPath, err := AcquireExclusiveLock(filepath.Join(dir, "riskpilot.db"), "riskpilot-serve", "test")
	if err != nil {
		t.Fatalf("expected stale lock takeover, got %v", err)
	}
	defer func() { _ = ReleaseExclusiveLock(lockPath) }()

	lock, _ := ReadExclusiveLock(lockPath)
	if lock.PID != os.Getpid() {
		t.Errorf("expected our pid in the lock, got %d", lock.PID)
	}
}

func TestMemoryDatabaseNeedsNoLock(t *testing.T) {
	lockPath, err := AcquireExclusiveLock(":memory:", "riskpilot-serve", "test")
	if err != nil || lockPath != "" {
		t.Errorf("expected no lock for :memory:, got %q, %v", lockPath, err)
	}
}
