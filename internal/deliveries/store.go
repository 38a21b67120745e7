// Package deliveries is a small bbolt-backed cache with two jobs: remember
// webhook delivery GUIDs so duplicated at-least-once deliveries are skipped
// without forge calls, and remember registered hook IDs per repository so
// hook installation stays idempotent across restarts. Correctness never
// depends on this cache; losing it only costs redundant (idempotent) work.
package deliveries

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketDeliveries = []byte("deliveries")
	bucketHooks      = []byte("hooks")
)

// Store is the delivery/hook cache.
type Store struct {
	db  *bolt.DB
	ttl time.Duration
}

// Open opens or creates the cache file.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open delivery cache: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketDeliveries); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(bucketHooks)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init delivery cache: %w", err)
	}

	return &Store{db: db, ttl: 24 * time.Hour}, nil
}

// Seen reports whether a delivery GUID has been recorded, without
// recording it. Callers check before doing the work and MarkSeen only once
// the work is safely handed off; a delivery that failed to enqueue must
// stay unseen so the forge's redelivery is processed.
func (s *Store) Seen(deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}

	var seen bool
	err := s.db.View(func(tx *bolt.Tx) error {
		seen = tx.Bucket(bucketDeliveries).Get([]byte(deliveryID)) != nil
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("check delivery seen: %w", err)
	}
	return seen, nil
}

// MarkSeen records a delivery GUID and reports whether it was already
// present. The first caller gets false and proceeds; duplicates get true.
func (s *Store) MarkSeen(deliveryID string) (bool, error) {
	if deliveryID == "" {
		return false, nil
	}

	var dup bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeliveries)
		if v := b.Get([]byte(deliveryID)); v != nil {
			dup = true
			return nil
		}
		ts := make([]byte, 8)
		binary.BigEndian.PutUint64(ts, uint64(time.Now().Unix()))
		return b.Put([]byte(deliveryID), ts)
	})
	if err != nil {
		return false, fmt.Errorf("mark delivery seen: %w", err)
	}
	return dup, nil
}

// Prune removes delivery records older than the TTL. Run occasionally; the
// GUID space is unbounded otherwise.
func (s *Store) Prune() (int, error) {
	cutoff := time.Now().Add(-s.ttl).Unix()

	removed := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketDeliveries)
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(v) == 8 && int64(binary.BigEndian.Uint64(v)) < cutoff {
				if err := c.Delete(); err != nil {
					return err
				}
				removed++
			}
		}
		return nil
	})
	if err != nil {
		return removed, fmt.Errorf("prune deliveries: %w", err)
	}
	return removed, nil
}

// HookID returns the cached hook ID for owner/repo, or 0 when unknown.
func (s *Store) HookID(owner, repo string) (int64, error) {
	var id int64
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketHooks).Get(hookKey(owner, repo))
		if len(v) == 8 {
			id = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("read hook id: %w", err)
	}
	return id, nil
}

// SetHookID caches the hook ID registered for owner/repo.
func (s *Store) SetHookID(owner, repo string, id int64) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		v := make([]byte, 8)
		binary.BigEndian.PutUint64(v, uint64(id))
		return tx.Bucket(bucketHooks).Put(hookKey(owner, repo), v)
	})
	if err != nil {
		return fmt.Errorf("store hook id: %w", err)
	}
	return nil
}

// Close closes the cache file.
func (s *Store) Close() error {
	return s.db.Close()
}

func hookKey(owner, repo string) []byte {
	return []byte(owner + "/" + repo)
}
