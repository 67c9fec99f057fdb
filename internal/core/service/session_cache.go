package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmaai/backoffice-auth/internal/core/domain"
	"github.com/pharmaai/backoffice-auth/internal/core/ports"
	"github.com/pharmaai/backoffice-auth/internal/metrics"
)

const (
	// DefaultCacheTTL bounds how long a cached session is trusted.
	DefaultCacheTTL = 5 * time.Minute

	primaryCacheKey = "auth_cache"
	backupCacheKey  = "auth_cache_backup"
)

// SessionCache keeps the last known session in two tiers: a primary store
// and a backup that survives agent restarts. It is an optimization, never
// a source of truth, so storage failures are logged and swallowed.
//
// The tiers are shared infrastructure, so every agent must use its own
// namespace (see WithNamespace).
type SessionCache struct {
	primary    ports.KVStore
	backup     ports.KVStore
	primaryKey string
	backupKey  string
	ttl        time.Duration
	now        func() time.Time
	log        zerolog.Logger
}

// NewSessionCache returns a cache over the given tiers. A non-positive ttl
// falls back to DefaultCacheTTL.
func NewSessionCache(primary, backup ports.KVStore, ttl time.Duration, log zerolog.Logger) *SessionCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &SessionCache{
		primary:    primary,
		backup:     backup,
		primaryKey: primaryCacheKey,
		backupKey:  backupCacheKey,
		ttl:        ttl,
		now:        time.Now,
		log:        log.With().Str("component", "session_cache").Logger(),
	}
}

// WithNamespace scopes both keys to one agent installation. Agents sharing
// the same stores never see each other's sessions.
func (c *SessionCache) WithNamespace(ns string) *SessionCache {
	if ns == "" {
		return c
	}
	c.primaryKey = primaryCacheKey + ":" + ns
	c.backupKey = backupCacheKey + ":" + ns
	return c
}

// WithClock overrides the clock used for timestamps and TTL checks.
func (c *SessionCache) WithClock(now func() time.Time) *SessionCache {
	c.now = now
	return c
}

// Read returns the cached entry, or nil when nothing usable is cached.
// Corrupted, expired and invalid entries are removed from both tiers.
func (c *SessionCache) Read(ctx context.Context) *domain.CacheEntry {
	raw, ok := c.load(ctx)
	if !ok {
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		return nil
	}

	var entry domain.CacheEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		c.log.Warn().Err(errors.Join(domain.ErrCacheCorrupted, err)).Msg("discarding corrupted session cache")
		metrics.CacheLookupsTotal.WithLabelValues("corrupted").Inc()
		c.Invalidate(ctx)
		return nil
	}

	age := c.now().Sub(entry.WrittenAt())
	switch {
	case !entry.Valid || entry.Session == nil:
		metrics.CacheLookupsTotal.WithLabelValues("miss").Inc()
		c.Invalidate(ctx)
		return nil
	case age >= c.ttl:
		c.log.Debug().Dur("age", age).Msg("session cache expired")
		metrics.CacheLookupsTotal.WithLabelValues("expired").Inc()
		c.Invalidate(ctx)
		return nil
	case !entry.Session.User.Active:
		metrics.CacheLookupsTotal.WithLabelValues("inactive").Inc()
		c.Invalidate(ctx)
		return nil
	}

	metrics.CacheLookupsTotal.WithLabelValues("hit").Inc()
	return &entry
}

// load fetches the raw payload from the primary tier, falling back to the
// backup when the primary is absent or unreachable.
func (c *SessionCache) load(ctx context.Context) ([]byte, bool) {
	raw, err := c.primary.Get(ctx, c.primaryKey)
	if err == nil {
		return raw, true
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		c.log.Warn().Err(err).Msg("primary session cache unavailable, trying backup")
	}

	raw, err = c.backup.Get(ctx, c.backupKey)
	if err == nil {
		return raw, true
	}
	if !errors.Is(err, domain.ErrCacheMiss) {
		c.log.Warn().Err(err).Msg("backup session cache unavailable")
	}
	return nil, false
}

// Write stores session in both tiers, stamped with the current time.
func (c *SessionCache) Write(ctx context.Context, session *domain.Session) {
	raw, err := json.Marshal(domain.CacheEntry{
		Session:   session,
		Timestamp: c.now().UnixMilli(),
		Valid:     true,
	})
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to encode session cache entry")
		return
	}

	if err := c.primary.Set(ctx, c.primaryKey, raw, c.ttl); err != nil {
		metrics.CacheWriteErrorsTotal.WithLabelValues("primary").Inc()
		c.log.Warn().Err(err).Msg("failed to write primary session cache")
	}
	if err := c.backup.Set(ctx, c.backupKey, raw, c.ttl); err != nil {
		metrics.CacheWriteErrorsTotal.WithLabelValues("backup").Inc()
		c.log.Warn().Err(err).Msg("failed to write backup session cache")
	}
}

// Invalidate deletes both tiers. It is idempotent.
func (c *SessionCache) Invalidate(ctx context.Context) {
	if err := c.primary.Delete(ctx, c.primaryKey); err != nil {
		metrics.CacheWriteErrorsTotal.WithLabelValues("primary").Inc()
		c.log.Warn().Err(err).Msg("failed to clear primary session cache")
	}
	if err := c.backup.Delete(ctx, c.backupKey); err != nil {
		metrics.CacheWriteErrorsTotal.WithLabelValues("backup").Inc()
		c.log.Warn().Err(err).Msg("failed to clear backup session cache")
	}
}
