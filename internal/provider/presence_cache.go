package provider

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceCache short-circuits the dedup Contains() check against a
// Redis-backed cache of chunk hashes already known
// to exist at a provider, avoiding a network round trip to the back-end
// for every chunk of every run. The cache is only ever a fast-path: a
// cache miss always falls back to the provider's own Contains.
type PresenceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewPresenceCache wires a presence cache against an existing redis
// client. ttl bounds how long a positive entry is trusted before the
// provider is asked again, guarding against out-of-band deletes.
func NewPresenceCache(rdb *redis.Client, ttl time.Duration) *PresenceCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PresenceCache{rdb: rdb, ttl: ttl}
}

func presenceKey(jobID, hash string) string {
	return "kip:presence:" + jobID + ":" + hash
}

// Known reports whether hash was previously recorded as present for
// jobID. The second return value is false on a cache miss, meaning the
// caller must fall back to the provider.
func (c *PresenceCache) Known(ctx context.Context, jobID, hash string) (present bool, found bool) {
	val, err := c.rdb.Get(ctx, presenceKey(jobID, hash)).Result()
	if err != nil {
		return false, false
	}
	return val == "1", true
}

// Record marks hash as present for jobID so future Contains checks for
// the same chunk within this job can skip the provider round trip.
func (c *PresenceCache) Record(ctx context.Context, jobID, hash string) error {
	return c.rdb.Set(ctx, presenceKey(jobID, hash), "1", c.ttl).Err()
}

// Forget removes a cached entry. The retention sweep does not call it;
// an entry for a purged chunk stays until its TTL expires.
func (c *PresenceCache) Forget(ctx context.Context, jobID, hash string) error {
	return c.rdb.Del(ctx, presenceKey(jobID, hash)).Err()
}

// Contains checks the cache first and, on a miss, asks the underlying
// provider directly, recording a positive answer in the cache.
// Negative answers are not cached.
func Contains(ctx context.Context, p Provider, cache *PresenceCache, jobID, hash string) (bool, error) {
	key := ChunkKey(jobID, hash)
	if cache != nil {
		if present, found := cache.Known(ctx, jobID, hash); found {
			return present, nil
		}
	}
	present, err := p.Contains(ctx, key)
	if err != nil {
		return false, err
	}
	if present && cache != nil {
		_ = cache.Record(ctx, jobID, hash)
	}
	return present, nil
}
