// Package rag implements the retrieval pipeline and its two-tier caching
// (C6): an offline result cache keyed on request shape, a RAG answer cache
// with hit/miss accounting, top-k dot-product retrieval over graph nodes,
// and threshold-based alerting on cache health.
package rag

import (
	"context"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

// Cache is the narrow key/value contract both the offline cache and the
// RAG cache build on. Implementations may be in-process (TTLCache, the
// default) or backed by a shared store (RedisCache).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Len(ctx context.Context) (int, error)
}

type ttlEntry struct {
	value     []byte
	expiresAt time.Time
}

// TTLCache is an in-memory map with lazy, read-time TTL eviction (spec
// section 4.6: "TTL eviction on read").
type TTLCache struct {
	mu      sync.Mutex
	entries map[string]ttlEntry
}

// NewTTLCache builds an empty in-memory cache.
func NewTTLCache() *TTLCache {
	return &TTLCache{entries: map[string]ttlEntry{}}
}

func (c *TTLCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (c *TTLCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.entries[key] = ttlEntry{value: append([]byte(nil), value...), expiresAt: time.Now().Add(ttl)}
	return nil
}

func (c *TTLCache) Len(_ context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := time.Now()
	n := 0
	for _, e := range c.entries {
		if now.Before(e.expiresAt) {
			n++
		}
	}
	return n, nil
}

// RedisCache backs Cache with a namespaced go-redis/v8 client, following
// the DB-isolation and key-prefixing convention of the teacher's
// RedisClient (formatKey, per-concern namespace).
type RedisCache struct {
	client    *goredis.Client
	namespace string
}

// NewRedisCache wraps an existing client. Pass a dedicated DB/namespace per
// cache instance, matching the teacher's DB-allocation convention.
func NewRedisCache(client *goredis.Client, namespace string) *RedisCache {
	return &RedisCache{client: client, namespace: namespace}
}

func (r *RedisCache) formatKey(key string) string {
	if r.namespace == "" {
		return key
	}
	return r.namespace + ":" + key
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.formatKey(key)).Bytes()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, r.formatKey(key), value, ttl).Err()
}

func (r *RedisCache) Len(ctx context.Context) (int, error) {
	var (
		cursor uint64
		count  int
	)
	pattern := r.formatKey("*")
	for {
		keys, next, err := r.client.Scan(ctx, cursor, pattern, 256).Result()
		if err != nil {
			return 0, err
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return count, nil
}
