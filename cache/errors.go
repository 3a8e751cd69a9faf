// Package cache implements the two caches a batch run relies on: a
// content-addressed upstream tarball cache and an archive-index cache,
// both backed by a bbolt database for metadata with the tarball payloads
// themselves stored as plain files underneath the same cache directory.
//
// Error handling follows the same two-tier taxonomy as the rest of this
// module's persistence layer: sentinel errors for errors.Is checks, and
// structured *Error types carrying operation context for errors.As.
package cache

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a lookup finds no entry for the given key.
	ErrNotFound = fmt.Errorf("cache: entry not found")

	// ErrExpired is returned when an entry exists but has aged past its
	// TTL and is not pinned.
	ErrExpired = fmt.Errorf("cache: entry expired")

	// ErrInvalidEntry is returned when a cached tarball's header fails to
	// deserialize.
	ErrInvalidEntry = fmt.Errorf("cache: entry failed header validation")

	// ErrBucketNotFound is returned when a required bbolt bucket is missing,
	// which indicates the database was not opened through OpenIndexCache or
	// OpenTarballCache.
	ErrBucketNotFound = fmt.Errorf("cache: bucket not found")

	// ErrLocked is returned (wrapped in an *EntryError) by AcquireLock when a per-key advisory lock could not
	// be acquired before the caller's deadline.
	ErrLocked = fmt.Errorf("cache: lock held by another process")
)

// DatabaseError wraps a bbolt operation failure with the operation name
// and bucket involved.
type DatabaseError struct {
	Op string
	Bucket string
	Err error
}

func (e *DatabaseError) Error() string {
	if e.Bucket != "" {
		return fmt.Sprintf("cache database %s [bucket: %s]: %v", e.Op, e.Bucket, e.Err)
	}
	return fmt.Sprintf("cache database %s: %v", e.Op, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// EntryError wraps a failure tied to one cache entry's key.
type EntryError struct {
	Op string
	Key string
	Err error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("cache entry %s [key: %s]: %v", e.Op, e.Key, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsExpired reports whether err is or wraps ErrExpired.
func IsExpired(err error) bool { return errors.Is(err, ErrExpired) }

// IsLocked reports whether err is or wraps ErrLocked.
func IsLocked(err error) bool { return errors.Is(err, ErrLocked) }
