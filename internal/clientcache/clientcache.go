// Package clientcache is the client's local resume cache: a durable copy
// of the last acknowledged snapshot that a restarted client can load
// while it resubscribes. This is strictly a resume aid, not offline operation
// across a disconnect — a client still must call Subscribe and reconcile
// via FetchState before editing anything.
package clientcache

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/astromechza/cwse/internal/shape"
)

var bucketName = []byte("snapshot")

const (
	keyShapes            = "shapes"
	keyGeneration        = "gen"
	keyCheckpointsNumber = "checkpoints_number"
)

// Cache wraps a single bbolt database file holding one resumable snapshot.
type Cache struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) the bbolt file at path.
func Open(path string) (*Cache, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("clientcache: open: %w", err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("clientcache: init bucket: %w", err)
	}
	return &Cache{db: db}, nil
}

// Close releases the underlying database handle.
func (c *Cache) Close() error {
	return c.db.Close()
}

// Save persists shapes, gen, and checkpointsNumber as the resumable
// snapshot, overwriting whatever was previously stored.
func (c *Cache) Save(shapes []shape.BoardShape, gen uint64, checkpointsNumber uint64) error {
	encoded, err := json.Marshal(shapes)
	if err != nil {
		return fmt.Errorf("clientcache: marshal shapes: %w", err)
	}

	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		if err := b.Put([]byte(keyShapes), encoded); err != nil {
			return err
		}
		if err := b.Put([]byte(keyGeneration), encodeUint64(gen)); err != nil {
			return err
		}
		return b.Put([]byte(keyCheckpointsNumber), encodeUint64(checkpointsNumber))
	})
}

// Load returns the last saved snapshot. found is false if nothing has ever
// been saved.
func (c *Cache) Load() (shapes []shape.BoardShape, gen uint64, checkpointsNumber uint64, found bool, err error) {
	err = c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketName)
		raw := b.Get([]byte(keyShapes))
		if raw == nil {
			return nil
		}
		found = true
		if jsonErr := json.Unmarshal(raw, &shapes); jsonErr != nil {
			return fmt.Errorf("clientcache: unmarshal shapes: %w", jsonErr)
		}
		gen = decodeUint64(b.Get([]byte(keyGeneration)))
		checkpointsNumber = decodeUint64(b.Get([]byte(keyCheckpointsNumber)))
		return nil
	})
	return shapes, gen, checkpointsNumber, found, err
}

func encodeUint64(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func decodeUint64(buf []byte) uint64 {
	if len(buf) != 8 {
		return 0
	}
	return binary.BigEndian.Uint64(buf)
}
