package store

import (
	"context"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

const (
	boltBucket = "sessionkit"
	boltKey    = "credential"
)

// Bolt is a [Store] backed by a bbolt database, for clients that want
// durable local persistence without managing file layout themselves. The
// caller owns the database handle and may share it with other buckets.
type Bolt struct {
	db *bolt.DB
}

// NewBolt wraps an open bbolt database. The bucket is created on first Put.
func NewBolt(db *bolt.DB) (*Bolt, error) {
	if db == nil {
		return nil, fmt.Errorf("bolt store: nil database")
	}
	return &Bolt{db: db}, nil
}

// Get implements [Store].
func (b *Bolt) Get(_ context.Context) (*Record, error) {
	var rec *Record
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return ErrNotFound
		}
		payload := bucket.Get([]byte(boltKey))
		if len(payload) == 0 {
			return ErrNotFound
		}
		rec = &Record{}
		if err := json.Unmarshal(payload, rec); err != nil {
			return fmt.Errorf("bolt store: decode: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if rec.AccessToken == "" {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Put implements [Store].
func (b *Bolt) Put(_ context.Context, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("bolt store: encode: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(boltBucket))
		if err != nil {
			return fmt.Errorf("bolt store: %w", err)
		}
		return bucket.Put([]byte(boltKey), payload)
	})
}

// Clear implements [Store].
func (b *Bolt) Clear(_ context.Context) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(boltBucket))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(boltKey))
	})
}
