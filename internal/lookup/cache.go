package lookup

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Option is one value/label pair of a lookup list. Tree lookups carry the
// indentation inside Text.
type Option struct {
	Value string `json:"value"`
	Text  string `json:"text"`
}

// Cache stores resolved option lists under a key with a time-to-live.
// Entries are immutable once stored; concurrent misses recomputing the same
// key are tolerated because the underlying query is idempotent.
type Cache interface {
	Get(ctx context.Context, key string) ([]Option, bool)
	Set(ctx context.Context, key string, options []Option)
}

// MemoryCache is an in-process expirable LRU cache.
type MemoryCache struct {
	lru *expirable.LRU[string, []Option]
}

// NewMemoryCache builds a bounded in-memory cache with per-entry TTL.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	return &MemoryCache{lru: expirable.NewLRU[string, []Option](size, nil, ttl)}
}

// Get returns the cached options for key if present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) ([]Option, bool) {
	return c.lru.Get(key)
}

// Set stores options under key.
func (c *MemoryCache) Set(_ context.Context, key string, options []Option) {
	c.lru.Add(key, options)
}

// RedisCache stores option lists in Redis so multiple instances share one
// lookup cache.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache builds a Redis-backed cache with per-entry TTL.
func NewRedisCache(addr string, db int, ttl time.Duration) *RedisCache {
	return &RedisCache{
		client: redis.NewClient(&redis.Options{Addr: addr, DB: db}),
		ttl:    ttl,
	}
}

// Get returns the cached options for key. Redis errors count as a miss.
func (c *RedisCache) Get(ctx context.Context, key string) ([]Option, bool) {
	payload, errGet := c.client.Get(ctx, key).Bytes()
	if errGet == redis.Nil {
		return nil, false
	}
	if errGet != nil {
		log.WithError(errGet).WithField("key", key).Warn("lookup cache read failed")
		return nil, false
	}
	var options []Option
	if errUnmarshal := json.Unmarshal(payload, &options); errUnmarshal != nil {
		log.WithError(errUnmarshal).WithField("key", key).Warn("lookup cache entry corrupt")
		return nil, false
	}
	return options, true
}

// Set stores options under key. Redis errors are logged and dropped.
func (c *RedisCache) Set(ctx context.Context, key string, options []Option) {
	payload, errMarshal := json.Marshal(options)
	if errMarshal != nil {
		return
	}
	if errSet := c.client.Set(ctx, key, payload, c.ttl).Err(); errSet != nil {
		log.WithError(errSet).WithField("key", key).Warn("lookup cache write failed")
	}
}
