package storage

import (
	"encoding/binary"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/soupchef/internal/domain"
)

const (
	recipeBucket    = "recipes"
	orderBucket     = "recipe_order"
	fetchedAtLength = 8
)

// boltBackend implements a Backend backed by BoltDB. Entries are keyed by id
// with the fetched-at unix time as value; a sequence bucket preserves
// insertion order for refresh runs.
type boltBackend struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed index.
func openBolt(path string) (Backend, error) {
	if err := ensureDir(path); err != nil {
		return nil, err
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("%w: open bbolt db %s: %v", domain.ErrIndexCorrupt, path, err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recipeBucket)); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists([]byte(orderBucket))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init bucket: %w", err)
	}

	return &boltBackend{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltBackend) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

// Load walks the order bucket and resolves each id's fetched-at value.
func (b *boltBackend) Load() ([]domain.IndexEntry, error) {
	var entries []domain.IndexEntry
	err := b.db.View(func(tx *bolt.Tx) error {
		recipes := tx.Bucket([]byte(recipeBucket))
		order := tx.Bucket([]byte(orderBucket))
		if recipes == nil || order == nil {
			return fmt.Errorf("recipe bucket missing")
		}

		return order.ForEach(func(_, id []byte) error {
			value := recipes.Get(id)
			if value == nil {
				return fmt.Errorf("order entry %q has no recipe record", id)
			}
			fetchedAt, ok := decodeFetchedAt(value)
			if !ok {
				return fmt.Errorf("recipe %q has malformed fetched-at value", id)
			}
			entries = append(entries, domain.IndexEntry{ID: domain.RecipeID(id), FetchedAt: fetchedAt})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIndexCorrupt, err)
	}
	return entries, nil
}

// Append stores the entry and its sequence number in one transaction.
func (b *boltBackend) Append(e domain.IndexEntry) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		recipes := tx.Bucket([]byte(recipeBucket))
		order := tx.Bucket([]byte(orderBucket))
		if recipes == nil || order == nil {
			return fmt.Errorf("recipe bucket missing")
		}
		key := []byte(e.ID)
		if recipes.Get(key) != nil {
			return nil
		}
		seq, err := order.NextSequence()
		if err != nil {
			return err
		}
		seqKey := make([]byte, 8)
		binary.BigEndian.PutUint64(seqKey, seq)
		if err := order.Put(seqKey, key); err != nil {
			return err
		}
		return recipes.Put(key, encodeFetchedAt(e.FetchedAt))
	})
}

func encodeFetchedAt(t time.Time) []byte {
	buf := make([]byte, fetchedAtLength)
	binary.BigEndian.PutUint64(buf, uint64(t.Unix()))
	return buf
}

// decodeFetchedAt decodes the fetched-at time from the stored byte slice.
func decodeFetchedAt(value []byte) (time.Time, bool) {
	if len(value) != fetchedAtLength {
		return time.Time{}, false
	}
	unix := int64(binary.BigEndian.Uint64(value))
	if unix <= 0 {
		return time.Time{}, false
	}
	return time.Unix(unix, 0).UTC(), true
}
