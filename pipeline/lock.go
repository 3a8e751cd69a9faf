package pipeline

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// FileLock is a per-package advisory lock file under a cache directory
// (`<pkg>.lock`), implemented with flock(2) the way cache/lock.go
// reaches for golang.org/x/sys/unix for OS-level primitives.
type FileLock struct {
	file *os.File
	path string
}

// AcquireFileLock opens (creating if needed) path and attempts an
// exclusive, non-blocking flock, retrying until timeout elapses. On
// timeout it returns a *BuildError{Kind: FetchFailed, WasLocked: true}
// so callers can distinguish lock contention from a genuine fetch
// failure.
func AcquireFileLock(pkg, path string, timeout time.Duration) (*FileLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, NewBuildError(pkg, "fetch", FailureFetchFailed, fmt.Sprintf("opening lock file: %v", err))
	}

	deadline := time.Now().Add(timeout)
	backoff := 10 * time.Millisecond
	for {
		err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
		if err == nil {
			return &FileLock{file: f, path: path}, nil
		}
		if time.Now().After(deadline) {
			f.Close()
			be := NewBuildError(pkg, "fetch", FailureFetchFailed, "timed out waiting for package lock")
			be.WasLocked = true
			return nil, be
		}
		time.Sleep(backoff)
		if backoff < 500*time.Millisecond {
			backoff *= 2
		}
	}
}

// Release unlocks and closes the lock file. The OS releases the lock on
// process crash regardless.
func (l *FileLock) Release() error {
	defer l.file.Close()
	return unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
}
