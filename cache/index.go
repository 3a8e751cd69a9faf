package cache

import (
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketIndices = "archive_indices"

// IndexEntry caches one fetched archive package list, keyed by (Series, Pocket, Component,
// Architecture). It carries enough HTTP caching metadata to support
// conditional refresh without re-downloading an unchanged index.
type IndexEntry struct {
	Series string `json:"series"`
	Pocket string `json:"pocket"`
	Component string `json:"component"`
	Architecture string `json:"architecture"`
	ETag string `json:"etag"`
	LastModified string `json:"last_modified"`
	FetchedAt time.Time `json:"fetched_at"`
	SHA256 string `json:"sha256"`
	Size int64 `json:"size"`
}

func indexKey(series, pocket, component, arch string) []byte {
	return []byte(fmt.Sprintf("%s/%s/%s/%s", series, pocket, component, arch))
}

// IndexCache is the archive-index cache, keyed by (series, pocket,
// component, arch) and storing a digest plus fetch time per entry.
type IndexCache struct {
	db *bolt.DB
}

// OpenIndexCache opens (creating if needed) a bbolt database at path
// holding the archive_indices bucket.
func OpenIndexCache(path string) (*IndexCache, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, &DatabaseError{Op: "open", Err: err}
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketIndices))
		return err
	})
	if err != nil {
		db.Close()
		return nil, &DatabaseError{Op: "create bucket", Bucket: bucketIndices, Err: err}
	}
	return &IndexCache{db: db}, nil
}

// Close closes the underlying database.
func (c *IndexCache) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Put records or replaces the cached entry for its (series, pocket,
// component, architecture) key.
func (c *IndexCache) Put(entry IndexEntry) error {
	data, err := json.Marshal(&entry)
	if err != nil {
		return fmt.Errorf("cache: marshal index entry: %w", err)
	}
	key := indexKey(entry.Series, entry.Pocket, entry.Component, entry.Architecture)
	err = c.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIndices))
		if b == nil {
			return ErrBucketNotFound
		}
		return b.Put(key, data)
	})
	if err != nil {
		return &DatabaseError{Op: "put", Bucket: bucketIndices, Err: err}
	}
	return nil
}

// Get returns the cached entry for the given key, or ErrNotFound.
func (c *IndexCache) Get(series, pocket, component, arch string) (*IndexEntry, error) {
	var entry IndexEntry
	err := c.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIndices))
		if b == nil {
			return ErrBucketNotFound
		}
		data := b.Get(indexKey(series, pocket, component, arch))
		if data == nil {
			return ErrNotFound
		}
		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		if err == ErrNotFound || err == ErrBucketNotFound {
			return nil, err
		}
		return nil, &DatabaseError{Op: "get", Bucket: bucketIndices, Err: err}
	}
	return &entry, nil
}

// NeedsRevalidation reports whether the cached entry for this key is
// missing or has aged past ttl. It does not itself perform the
// conditional HTTP request; callers use the returned entry's ETag and
// LastModified (when present) as If-None-Match / If-Modified-Since
// values and call Put again on a 200, or just refresh FetchedAt on 304.
func (c *IndexCache) NeedsRevalidation(series, pocket, component, arch string, ttl time.Duration) (*IndexEntry, bool) {
	entry, err := c.Get(series, pocket, component, arch)
	if err != nil {
		return nil, true
	}
	if ttl <= 0 {
		return entry, false
	}
	return entry, time.Since(entry.FetchedAt) > ttl
}

// Touch refreshes FetchedAt for an entry that a conditional request
// confirmed is still current (HTTP 304), without re-fetching the body.
func (c *IndexCache) Touch(series, pocket, component, arch string) error {
	entry, err := c.Get(series, pocket, component, arch)
	if err != nil {
		return err
	}
	entry.FetchedAt = time.Now()
	return c.Put(*entry)
}
