package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"
)

// FileLock is an advisory, process-identity-scoped exclusive lock backed
// by flock(2). It is used to serialize mutation on a given cache
// directory: the same mechanism guards content-addressed tarball cache
// writes and artifact-pool indexing. On crash the OS releases the lock,
// which is why every write this package guards also follows
// write-then-rename.
type FileLock struct {
	f *os.File
}

// AcquireLock opens (creating if needed) dir/<name>.lock and blocks until
// it can take an exclusive flock, or until deadline elapses. A zero
// deadline blocks indefinitely.
func AcquireLock(dir, name string, deadline time.Duration) (*FileLock, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("cache: lock dir %s: %w", dir, err)
	}
	path := filepath.Join(dir, name+".lock")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("cache: open lock %s: %w", path, err)
	}

	done := make(chan error, 1)
	go func() { done <- unix.Flock(int(f.Fd()), unix.LOCK_EX) }()

	if deadline <= 0 {
		if err := <-done; err != nil {
			f.Close()
			return nil, fmt.Errorf("cache: flock %s: %w", path, err)
		}
		return &FileLock{f: f}, nil
	}

	select {
	case err := <-done:
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("cache: flock %s: %w", path, err)
		}
		return &FileLock{f: f}, nil
	case <-time.After(deadline):
		f.Close()
		return nil, &EntryError{Op: "lock", Key: name, Err: ErrLocked}
	}
}

// Release unlocks and closes the underlying file. Safe to call once.
func (l *FileLock) Release() error {
	if l == nil || l.f == nil {
		return nil
	}
	unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	err := l.f.Close()
	l.f = nil
	return err
}
