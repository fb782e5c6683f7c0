package lockfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireAndReleaseLock(t *testing.T) {
	dir := t.TempDir()

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	lockPath := filepath.Join(dir, LockFileName)
	data, err := os.ReadFile(lockPath)
	if err != nil {
		t.Fatalf("lock file not created: %v", err)
	}
	if !strings.HasPrefix(string(data), "pid=") {
		t.Errorf("lock file content = %q, want pid= prefix", data)
	}

	if err := lock.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if _, err := os.Stat(lockPath); !os.IsNotExist(err) {
		t.Error("lock file should be removed after Release")
	}
}

func TestAcquireLockConflict(t *testing.T) {
	dir := t.TempDir()

	first, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("first AcquireLock failed: %v", err)
	}
	defer first.Release()

	_, err = AcquireLock(dir)
	if err == nil {
		t.Fatal("second AcquireLock should fail while the lock is held")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("error = %T, want *LockError", err)
	}
	if !strings.Contains(lockErr.ExistingInfo, "running") {
		t.Errorf("ExistingInfo = %q, want holder description", lockErr.ExistingInfo)
	}

	// Once released, the directory can be locked again.
	first.Release()
	second, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock after release failed: %v", err)
	}
	second.Release()
}

func TestReleaseIsIdempotent(t *testing.T) {
	lock, err := AcquireLock(t.TempDir())
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Errorf("first Release failed: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Errorf("second Release failed: %v", err)
	}
}

func TestAcquireLockCreatesStateDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")

	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory was not created: %v", err)
	}
}

func TestExtractPIDFromLockInfo(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"well formed", "pid=1234\n", 1234},
		{"no newline", "pid=42", 42},
		{"missing prefix", "process 1234", 0},
		{"empty value", "pid=\n", 0},
		{"empty content", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractPIDFromLockInfo(tt.content); got != tt.want {
				t.Errorf("extractPIDFromLockInfo(%q) = %d, want %d", tt.content, got, tt.want)
			}
		})
	}
}
