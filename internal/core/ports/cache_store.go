package ports

import (
	"context"
	"time"
)

// KVStore is one tier of the session cache. Get returns domain.ErrCacheMiss
// when the key is absent.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key. A positive ttl lets the store expire the
	// key on its own; the cache still enforces its TTL on read.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
