// Package cache is the domain-keyed KV store, TTL-class registry, and
// single-flight factory described in spec C1. It wraps go-redis the way
// internal/platform/redis wraps it for connection setup, and provides a
// fail-secure revocation lookup (IsRevoked) alongside the generic
// get/set/invalidate surface.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// TTL classes (spec §4.1, fixed and named).
const (
	TTLStaticConfig = 24 * time.Hour
	TTLSemiStatic   = 15 * time.Minute
	TTLUserData     = 5 * time.Minute
	TTLSession      = 30 * time.Minute
	TTLShortLived   = 1 * time.Minute
	TTLEphemeral    = 10 * time.Second
	TTLLookup       = 2 * time.Hour
)

const lockTTL = 5 * time.Second

// Cache is a namespaced wrapper around a single Redis client. All keys
// built through KeyFor carry the service prefix, so multiple callers
// sharing a Redis instance never collide.
type Cache struct {
	client  *redis.Client
	service string
	sf      singleflight.Group
}

func New(client *redis.Client, service string) *Cache {
	return &Cache{client: client, service: service}
}

// KeyFor builds a namespaced key: "<service>:<family>:<parts...>".
func (c *Cache) KeyFor(family string, parts ...string) string {
	key := c.service + ":" + family
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// Get returns the raw stored value, or (nil, false) on a cache miss.
// Propagates any error other than a miss.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}
	return val, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("cache: delete %s: %w", key, err)
	}
	return nil
}

// InvalidatePattern deletes every key matching glob with a SCAN + DEL pass
// (200 keys per SCAN step) until the cursor returns to 0, and returns how
// many keys it deleted. It runs synchronously on the caller's goroutine and
// has no time or key budget of its own beyond ctx; it stops at the first
// SCAN or DEL error and returns that error with the count deleted so far.
func (c *Cache) InvalidatePattern(ctx context.Context, glob string) (int, error) {
	var (
		cursor  uint64
		deleted int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, glob, 200).Result()
		if err != nil {
			return deleted, fmt.Errorf("cache: scan %s: %w", glob, err)
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("cache: delete matched %s: %w", glob, err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return deleted, nil
}

// Factory computes the value to cache on a miss.
type Factory func(ctx context.Context) ([]byte, error)

// GetOrCompute implements the spec's single-flight factory: read, and on
// hit return; otherwise acquire a short-TTL lock, re-read under the lock
// (another replica may have just populated it), and only then invoke
// factory — exactly once — before writing the result and releasing the
// lock. The release runs in a deferred block so it fires on every exit
// path, including factory errors and context cancellation. When another
// caller holds the lock and the re-read still misses, it returns an error
// without invoking factory.
func (c *Cache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, factory Factory) ([]byte, error) {
	// Collapse duplicate concurrent local callers before any of them talks
	// to Redis; the distributed lock below still guards against duplicate
	// computation across replicas.
	v, err, _ := c.sf.Do(key, func() (any, error) {
		return c.getOrComputeLocked(ctx, key, ttl, factory)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *Cache) getOrComputeLocked(ctx context.Context, key string, ttl time.Duration, factory Factory) ([]byte, error) {
	if val, ok, err := c.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return val, nil
	}

	lockKey := c.KeyFor("lock", key)
	acquired, err := c.client.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		return nil, fmt.Errorf("cache: acquire lock %s: %w", lockKey, err)
	}
	if !acquired {
		// Someone else is computing it; re-read once and do not invoke the
		// factory. A caller needing strict blocking polls Get in its own
		// retry loop.
		if val, ok, err := c.Get(ctx, key); err != nil {
			return nil, err
		} else if ok {
			return val, nil
		}
		return nil, fmt.Errorf("cache: %s is being computed under %s", key, lockKey)
	}
	if acquired {
		defer func() {
			_ = c.client.Del(ctx, lockKey).Err()
		}()
	}

	if val, ok, err := c.Get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		return val, nil
	}

	val, err := factory(ctx)
	if err != nil {
		return nil, err
	}
	if err := c.Set(ctx, key, val, ttl); err != nil {
		return nil, err
	}
	return val, nil
}

// IsRevoked is the fail-secure revocation lookup (spec §4.1): a
// Redis miss means "not revoked", but every other error propagates so the
// caller treats unknown state as revoked rather than silently trusting the
// token.
func (c *Cache) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, nil
	}
	key := c.KeyFor("revoked", jti)
	_, err := c.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("cache: is-revoked %s: %w", jti, err)
	}
	return true, nil
}

// Revoke marks jti revoked until ttl elapses (normally the token's
// remaining lifetime).
func (c *Cache) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return nil
	}
	if ttl <= 0 {
		return fmt.Errorf("cache: revoke %s: ttl must be positive", jti)
	}
	key := c.KeyFor("revoked", jti)
	if err := c.client.Set(ctx, key, "1", ttl).Err(); err != nil {
		return fmt.Errorf("cache: revoke %s: %w", jti, err)
	}
	return nil
}
