package pipeline

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestAcquireFileLockRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nova.lock")
	lock, err := AcquireFileLock("nova", path, time.Second)
	if err != nil {
		t.Fatalf("AcquireFileLock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected lock file to exist, got %v", err)
	}
}

func TestAcquireFileLockTimesOutWhenHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nova.lock")
	holder, err := AcquireFileLock("nova", path, time.Second)
	if err != nil {
		t.Fatalf("AcquireFileLock (holder): %v", err)
	}
	defer holder.Release()

	_, err = AcquireFileLock("nova", path, 50*time.Millisecond)
	var be *BuildError
	if !errors.As(err, &be) || !be.WasLocked {
		t.Fatalf("expected WasLocked FETCH_FAILED, got %v", err)
	}
}
