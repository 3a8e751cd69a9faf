package cache

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketTarballs = "tarballs"

// TarballEntry records one cached upstream release tarball, content-
// addressed by (Project, Version).
type TarballEntry struct {
	Project string `json:"project"`
	Version string `json:"version"`
	Path string `json:"path"` // file path under the cache's payload directory
	SHA256 string `json:"sha256"`
	Size int64 `json:"size"`
	FetchedAt time.Time `json:"fetched_at"`
	Pinned bool `json:"pinned"` // pinned entries never expire
}

func tarballKey(project, version string) []byte {
	return []byte(project + "@" + version)
}

// TarballCache is the content-addressed upstream tarball cache. Metadata
// lives in a bbolt bucket; payloads live as plain files under dir/blobs,
// named by their content hash so concurrent writers never collide.
type TarballCache struct {
	db *bolt.DB
	dir string
}

// OpenTarballCache opens (creating if needed) the tarball cache rooted
// at dir. dir/meta.db holds the bbolt metadata bucket; dir/blobs holds
// the tarball payloads themselves.
func OpenTarballCache(dir string) (*TarballCache, error) {
	if err := os.MkdirAll(filepath.Join(dir, "blobs"), 0755); err != nil {
		return nil, fmt.Errorf("cache: tarball cache dir: %w", err)
	}
	db, err := bolt.Open(filepath.Join(dir, "meta.db"), 0600, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketTarballs))
		return err
	})
	if err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "create bucket", Bucket: bucketTarballs, Err: err}
	}
	return &TarballCache{db: db, dir: dir}, nil
}

// Close closes the underlying metadata database.
func (c *TarballCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put stores r as the cached tarball for (project, version). The payload
// is written to a temp file and renamed into place atomically, then validated by attempting to read
// its gzip+tar header before the metadata entry is committed.
func (c *TarballCache) Put(project, version string, r io.Reader, pinned bool) (*TarballEntry, error) {
	lock, err := AcquireLock(c.dir, "write", 30*time.Second)
	if err != nil {
		return nil, err
	}
	defer lock.Release()

	tmp, err := os.CreateTemp(filepath.Join(c.dir, "blobs"), "incoming-*")
	if err != nil {
		return nil, fmt.Errorf("cache: tarball temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hash := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hash), r)
	tmp.Close()
	if err != nil {
		return nil, &EntryError{Op: "write", Key: project + "@" + version, Err: err}
	}

	sum := hex.EncodeToString(hash.Sum(nil))
	finalPath := filepath.Join(c.dir, "blobs", sum)
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return nil, fmt.Errorf("cache: rename tarball into place: %w", err)
	}

	if err := validateTarballHeader(finalPath); err != nil {
		os.Remove(finalPath)
		return nil, &EntryError{Op: "validate", Key: project + "@" + version, Err: err}
	}

	entry := &TarballEntry{
		Project: project,
		Version: version,
		Path: finalPath,
		SHA256: sum,
		Size: size,
		FetchedAt: time.Now(),
		Pinned: pinned,
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("cache: marshal tarball entry: %w", err)
	}

	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTarballs))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.Put(tarballKey(project, version), data)
	})
	if err != nil {
		return nil, &DatabaseError{Op: "put", Bucket: bucketTarballs, Err: err}
	}
	return entry, nil
}

// Get returns the cached entry for (project, version). It returns
// ErrNotFound if no entry exists, ErrExpired if the entry has aged past
// maxAge and is not pinned, and ErrInvalidEntry if the payload no longer
// passes header validation (e.g. truncated by an external process).
//
// A zero maxAge disables expiry checking (useful for pinned-only lookups
// or callers that already filtered by age).
func (c *TarballCache) Get(project, version string, maxAge time.Duration) (*TarballEntry, error) {
	var entry TarballEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTarballs))
		if b == nil {
			return ErrBucketNotFound
		}
		data := b.Get(tarballKey(project, version))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		if err == ErrNotFound || err == ErrBucketNotFound {
			return nil, err
		}
		return nil, &DatabaseError{Op: "get", Bucket: bucketTarballs, Err: err}
	}

	if !entry.Pinned && maxAge != 0 && time.Since(entry.FetchedAt) > maxAge {
		return nil, ErrExpired
	}
	if err := validateTarballHeader(entry.Path); err != nil {
		return nil, ErrInvalidEntry
	}
	return &entry, nil
}

// Pin marks an existing entry as exempt from age-based expiry.
func (c *TarballCache) Pin(project, version string) error {
	return c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTarballs))
		if b == nil {
			return ErrBucketNotFound
		}
		key := tarballKey(project, version)
		data := b.Get(key)
		if data == nil {
			return ErrNotFound
		}
		var entry TarballEntry
		if err := json.Unmarshal(data, &entry); err != nil {
			return err
		}
		entry.Pinned = true
		updated, err := json.Marshal(&entry)
		if err != nil {
			return err
		}
		return b.Put(key, updated)
	})
}

// PruneExpired removes every unpinned entry older than maxAge, deleting
// both its bbolt metadata and its blob file, and returns the removed
// (project, version) keys.
func (c *TarballCache) PruneExpired(maxAge time.Duration) ([]string, error) {
	var stale []struct {
		key []byte
		entry TarballEntry
	}
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTarballs))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.ForEach(func(k, v []byte) error {
			var entry TarballEntry
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			if !entry.Pinned && time.Since(entry.FetchedAt) > maxAge {
				stale = append(stale, struct {
					key []byte
					entry TarballEntry
				}{append([]byte(nil), k...), entry})
			}
			return nil
		})
	})
	if err != nil {
		return nil, &DatabaseError{Op: "scan", Bucket: bucketTarballs, Err: err}
	}

	var removed []string
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketTarballs))
		if b == nil {
			return ErrBucketNotFound
		}
		for _, s := range stale {
			if err := b.Delete(s.key); err != nil {
				return err
			}
			removed = append(removed, string(s.key))
		}
		return nil
	})
	if err != nil {
		return nil, &DatabaseError{Op: "delete", Bucket: bucketTarballs, Err: err}
	}

	for _, s := range stale {
		os.Remove(s.entry.Path)
	}
	return removed, nil
}

// validateTarballHeader opens path and confirms its gzip and tar headers
// deserialize, without reading the full archive body.
func validateTarballHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	if _, err := tr.Next(); err != nil && err != io.EOF {
		return err
	}
	return nil
}
