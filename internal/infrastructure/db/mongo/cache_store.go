package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
)

const collectionSessionCache = "session_cache"

// CacheStore is the backup session cache tier. It is shared by every agent
// process pointed at the same database; writes are last-write-wins.
type CacheStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

func NewCacheStore(db *mongo.Database) *CacheStore {
	return &CacheStore{coll: db.Collection(collectionSessionCache), now: time.Now}
}

type cacheDoc struct {
	Key       string     `bson:"_id"`
	Payload   []byte     `bson:"payload"`
	UpdatedAt time.Time  `bson:"updated_at"`
	ExpiresAt *time.Time `bson:"expires_at,omitempty"`
}

// Get returns the payload stored under key or domain.ErrCacheMiss. Entries
// past their expiry are reported as missing even before the TTL monitor
// removes them.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, error) {
	var doc cacheDoc
	if err := s.coll.FindOne(ctx, bson.M{"_id": key}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("cache store get: %w", err)
	}
	if doc.ExpiresAt != nil && !s.now().Before(*doc.ExpiresAt) {
		return nil, domain.ErrCacheMiss
	}
	return doc.Payload, nil
}

// Set upserts the payload under key.
func (s *CacheStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	now := s.now().UTC()
	doc := cacheDoc{Key: key, Payload: value, UpdatedAt: now}
	if ttl > 0 {
		exp := now.Add(ttl)
		doc.ExpiresAt = &exp
	}

	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": key}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cache store set: %w", err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *CacheStore) Delete(ctx context.Context, key string) error {
	if _, err := s.coll.DeleteOne(ctx, bson.M{"_id": key}); err != nil {
		return fmt.Errorf("cache store delete: %w", err)
	}
	return nil
}

// EnsureIndexes creates the TTL index that purges expired entries.
func (s *CacheStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "expires_at", Value: 1}},
		Options: options.Index().SetExpireAfterSeconds(0),
	})
	return err
}
