package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/lyzr/launchpad/common/logger"
	rediscommon "github.com/lyzr/launchpad/common/redis"
)

// Cache interface for key-value storage
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// MemoryCache is an in-process cache backed by ttlcache
type MemoryCache struct {
	items *ttlcache.Cache[string, []byte]
	log   *logger.Logger
}

// NewMemoryCache creates a new in-memory cache. defaultTTL applies when Set
// is called with a zero ttl.
func NewMemoryCache(defaultTTL time.Duration, log *logger.Logger) *MemoryCache {
	items := ttlcache.New[string, []byte](
		ttlcache.WithTTL[string, []byte](defaultTTL),
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()

	return &MemoryCache{
		items: items,
		log:   log,
	}
}

// Get retrieves a value from cache
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	item := c.items.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

// Set stores a value in cache with TTL
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.DefaultTTL
	}
	c.items.Set(key, value, ttl)
	return nil
}

// Delete removes a value from cache
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.items.Delete(key)
	return nil
}

// Close stops the expiration loop
func (c *MemoryCache) Close() error {
	c.items.Stop()
	c.items.DeleteAll()
	c.log.Info("memory cache closed")
	return nil
}

// Stats returns cache statistics
func (c *MemoryCache) Stats() map[string]interface{} {
	m := c.items.Metrics()
	return map[string]interface{}{
		"entries": c.items.Len(),
		"hits":    m.Hits,
		"misses":  m.Misses,
		"type":    "memory",
	}
}

// RedisCache stores values in Redis so every gateway instance sees the same entries
type RedisCache struct {
	client *rediscommon.Client
	log    *logger.Logger
}

// NewRedisCache creates a cache over an existing Redis client
func NewRedisCache(client *rediscommon.Client, log *logger.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

// Get retrieves a value from Redis
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key)
	if errors.Is(err, rediscommon.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache get %s: %w", key, err)
	}
	return []byte(val), true, nil
}

// Set stores a value in Redis with TTL
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.SetWithExpiry(ctx, key, string(value), ttl); err != nil {
		return fmt.Errorf("cache set %s: %w", key, err)
	}
	return nil
}

// Delete removes a key from Redis
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("cache delete %s: %w", key, err)
	}
	return nil
}

// Close is a no-op; the Redis client is owned by bootstrap
func (c *RedisCache) Close() error {
	return nil
}
