// Package store provides a thin bbolt wrapper for carprice's local prediction
// history.
//
// The store is opt-in: predictions are written only when the user asks for it
// (predict --save, serve --record) and read back by the history commands. The
// prediction service itself is never cached here.
//
// Buckets:
//
//	predictions: saved predictions keyed by time-ordered UUIDv7
//	_meta:       internal, schema version, created_at
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/derickschaefer/carprice/internal/model"
)

// Current schema version. Bump when bucket layout or key format changes.
const schemaVersion = 1

// BucketPredictions is the name of the prediction history bucket.
const BucketPredictions = "predictions"

var (
	bucketPredictions = []byte(BucketPredictions)
	bucketInternal    = []byte("_meta")
)

// AllBuckets lists every top-level bucket for stats and clear operations.
var AllBuckets = []string{BucketPredictions}

// Store wraps a bbolt database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the bbolt database at path.
// Parent directories are created automatically.
// Runs schema migrations on every open.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening db %s: %w", path, err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the filesystem path of the open database.
func (s *Store) Path() string {
	return s.db.Path()
}

// ─── Migrations ───────────────────────────────────────────────────────────────

// migrate ensures all buckets exist and schema is current.
func (s *Store) migrate() error {
	return s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketPredictions, bucketInternal} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("creating bucket %s: %w", name, err)
			}
		}

		meta := tx.Bucket(bucketInternal)
		if meta.Get([]byte("schema_version")) == nil {
			if err := meta.Put([]byte("schema_version"), []byte(fmt.Sprintf("%d", schemaVersion))); err != nil {
				return err
			}
			if err := meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339))); err != nil {
				return err
			}
		}
		return nil
	})
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion() (string, error) {
	var v string
	err := s.db.View(func(tx *bolt.Tx) error {
		v = string(tx.Bucket(bucketInternal).Get([]byte("schema_version")))
		return nil
	})
	return v, err
}

// ─── Predictions ──────────────────────────────────────────────────────────────

// NewID returns a time-ordered identifier, so bucket order is creation order.
func NewID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// PutPrediction stores p. A missing ID or CreatedAt is filled in; the stored
// record is returned.
func (s *Store) PutPrediction(p model.Prediction) (model.Prediction, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	data, err := json.Marshal(p)
	if err != nil {
		return p, fmt.Errorf("encoding prediction: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketPredictions).Put([]byte(p.ID), data)
	})
	return p, err
}

// GetPrediction retrieves a prediction by ID.
// Returns (p, true, nil) if found, (zero, false, nil) if not found.
func (s *Store) GetPrediction(id string) (model.Prediction, bool, error) {
	var p model.Prediction
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketPredictions).Get([]byte(id))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &p)
	})
	if err != nil {
		return p, false, err
	}
	return p, p.ID != "", nil
}

// ListPredictions returns saved predictions, newest first. A positive limit
// caps the number returned.
func (s *Store) ListPredictions(limit int) ([]model.Prediction, error) {
	var preds []model.Prediction
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketPredictions).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(preds) >= limit {
				break
			}
			var p model.Prediction
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("decoding prediction %s: %w", k, err)
			}
			preds = append(preds, p)
		}
		return nil
	})
	return preds, err
}

// DeletePrediction removes a prediction by ID and reports whether it existed.
func (s *Store) DeletePrediction(id string) (bool, error) {
	var found bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPredictions)
		found = b.Get([]byte(id)) != nil
		if !found {
			return nil
		}
		return b.Delete([]byte(id))
	})
	return found, err
}

// ─── Stats & Maintenance ──────────────────────────────────────────────────────

// BucketStats holds row count and byte size for a single bucket.
type BucketStats struct {
	Name  string
	Count int
	Bytes int64
}

// Stats returns row counts and approximate sizes for all buckets.
func (s *Store) Stats() ([]BucketStats, error) {
	var stats []BucketStats
	err := s.db.View(func(tx *bolt.Tx) error {
		for _, name := range AllBuckets {
			b := tx.Bucket([]byte(name))
			if b == nil {
				continue
			}
			var count int
			var bytes int64
			_ = b.ForEach(func(k, v []byte) error {
				count++
				bytes += int64(len(k) + len(v))
				return nil
			})
			stats = append(stats, BucketStats{Name: name, Count: count, Bytes: bytes})
		}
		return nil
	})
	return stats, err
}

// ClearBucket deletes all entries in the named bucket.
func (s *Store) ClearBucket(name string) error {
	bname := []byte(name)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := tx.DeleteBucket(bname); err != nil {
			return fmt.Errorf("clearing bucket %s: %w", name, err)
		}
		_, err := tx.CreateBucket(bname)
		return err
	})
}

// ClearAll deletes all entries from every user-facing bucket.
func (s *Store) ClearAll() error {
	for _, name := range AllBuckets {
		if err := s.ClearBucket(name); err != nil {
			return err
		}
	}
	return nil
}
