package cache

import (
	"path/filepath"
	"testing"
	"time"
)

func openTestIndexCache(t *testing.T) *IndexCache {
	t.Helper()
	c, err := OpenIndexCache(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatalf("OpenIndexCache: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIndexCachePutGet(t *testing.T) {
	c := openTestIndexCache(t)
	entry := IndexEntry{
		Series: "noble", Pocket: "updates", Component: "main", Architecture: "amd64",
		ETag: `"abc123"`, SHA256: "deadbeef", Size: 4096, FetchedAt: time.Now(),
	}
	if err := c.Put(entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get("noble", "updates", "main", "amd64")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ETag != entry.ETag || got.SHA256 != entry.SHA256 {
		t.Errorf("got %+v, want %+v", got, entry)
	}
}

func TestIndexCacheMiss(t *testing.T) {
	c := openTestIndexCache(t)
	if _, err := c.Get("jammy", "release", "universe", "arm64"); !IsNotFound(err) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIndexCacheNeedsRevalidation(t *testing.T) {
	c := openTestIndexCache(t)

	if _, stale := c.NeedsRevalidation("noble", "updates", "main", "amd64", time.Hour); !stale {
		t.Error("expected a missing entry to need revalidation")
	}

	c.Put(IndexEntry{Series: "noble", Pocket: "updates", Component: "main", Architecture: "amd64", FetchedAt: time.Now()})

	if _, stale := c.NeedsRevalidation("noble", "updates", "main", "amd64", time.Hour); stale {
		t.Error("expected a fresh entry to not need revalidation")
	}

	c.Put(IndexEntry{Series: "noble", Pocket: "updates", Component: "main", Architecture: "amd64", FetchedAt: time.Now().Add(-2 * time.Hour)})

	if _, stale := c.NeedsRevalidation("noble", "updates", "main", "amd64", time.Hour); !stale {
		t.Error("expected an aged entry past ttl to need revalidation")
	}
}

func TestIndexCacheTouchRefreshesFetchedAt(t *testing.T) {
	c := openTestIndexCache(t)
	old := time.Now().Add(-2 * time.Hour)
	c.Put(IndexEntry{Series: "noble", Pocket: "updates", Component: "main", Architecture: "amd64", FetchedAt: old})

	if err := c.Touch("noble", "updates", "main", "amd64"); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	entry, err := c.Get("noble", "updates", "main", "amd64")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !entry.FetchedAt.After(old) {
		t.Error("expected Touch to advance FetchedAt")
	}
}
