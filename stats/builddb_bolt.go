package stats

import (
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const bucketLiveStats = "live_stats"

// BoltBuildDB is a bbolt-backed BuildDB: one key per run ID, holding the
// most recent JSON-encoded TopInfo snapshot BuildDBWriter wrote for it.
type BoltBuildDB struct {
	db *bolt.DB
}

// OpenBuildDB opens (creating if needed) a bbolt database at path
// holding the live_stats bucket.
func OpenBuildDB(path string) (*BoltBuildDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("stats: opening build db %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketLiveStats))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("stats: creating %s bucket: %w", bucketLiveStats, err)
	}
	return &BoltBuildDB{db: db}, nil
}

// Close closes the underlying database.
func (b *BoltBuildDB) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

// UpdateRunSnapshot implements BuildDB, storing snapshot as the current
// value for runID.
func (b *BoltBuildDB) UpdateRunSnapshot(runID string, snapshot string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLiveStats))
		return bucket.Put([]byte(runID), []byte(snapshot))
	})
}

// DeleteRunSnapshot removes runID's snapshot, if any. Used when a run
// directory is pruned so stats.db doesn't grow unbounded with entries
// for runs whose RunState has already been removed.
func (b *BoltBuildDB) DeleteRunSnapshot(runID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLiveStats))
		return bucket.Delete([]byte(runID))
	})
}

// Snapshot returns the last snapshot recorded for runID, or "" if none
// has been written yet.
func (b *BoltBuildDB) Snapshot(runID string) (string, error) {
	var snapshot string
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketLiveStats))
		snapshot = string(bucket.Get([]byte(runID)))
		return nil
	})
	return snapshot, err
}
