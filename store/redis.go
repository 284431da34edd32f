package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a [Store] backed by a Redis key, for clients that share one
// session across processes (workers, sidecars). The record is stored as a
// single JSON blob under prefix+"credential" with an optional TTL acting as
// an absolute session lifetime backstop.
type Redis struct {
	client redis.UniversalClient
	key    string
	ttl    time.Duration
}

// NewRedis creates a Redis-backed store. prefix namespaces the key (default
// "sessionkit:"); ttl of zero keeps the record until Clear.
func NewRedis(client redis.UniversalClient, prefix string, ttl time.Duration) (*Redis, error) {
	if client == nil {
		return nil, fmt.Errorf("redis store: nil client")
	}
	if prefix == "" {
		prefix = "sessionkit:"
	}
	if ttl < 0 {
		return nil, fmt.Errorf("redis store: negative ttl")
	}
	return &Redis{client: client, key: prefix + "credential", ttl: ttl}, nil
}

// Get implements [Store].
func (r *Redis) Get(ctx context.Context) (*Record, error) {
	payload, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis store: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("redis store: decode: %w", err)
	}
	if rec.AccessToken == "" {
		return nil, ErrNotFound
	}
	return &rec, nil
}

// Put implements [Store].
func (r *Redis) Put(ctx context.Context, rec *Record) error {
	if rec == nil {
		return ErrNilRecord
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("redis store: encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	return nil
}

// Clear implements [Store].
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis store: %w", err)
	}
	return nil
}
