package cache

import (
	"testing"
	"time"
)

func TestAcquireLockRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir, "nova", time.Second)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	if err := lock.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
}

func TestAcquireLockTimesOutWhenHeld(t *testing.T) {
	dir := t.TempDir()
	first, err := AcquireLock(dir, "neutron", time.Second)
	if err != nil {
		t.Fatalf("AcquireLock: %v", err)
	}
	defer first.Release()

	if _, err := AcquireLock(dir, "neutron", 100*time.Millisecond); !IsLocked(err) {
		t.Errorf("expected ErrLocked while the first holder is active, got %v", err)
	}
}
