package rag

import (
	"context"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// canonicalize recursively normalizes a value for hashing: byte slices
// become their SHA-1 hex digest, maps/slices are walked so nested
// collections normalize the same way, and everything else passes through
// unchanged (spec section 4.6: "nested collections recursively
// normalized").
func canonicalize(v interface{}) interface{} {
	switch vv := v.(type) {
	case []byte:
		sum := sha1.Sum(vv)
		return hex.EncodeToString(sum[:])
	case map[string]interface{}:
		out := make(map[string]interface{}, len(vv))
		for k, val := range vv {
			out[k] = canonicalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, item := range vv {
			out[i] = canonicalize(item)
		}
		return out
	default:
		return v
	}
}

func hashKey(parts map[string]interface{}) string {
	canon := canonicalize(parts)
	raw, _ := json.Marshal(canon) // encoding/json sorts map[string]interface{} keys
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func sortedUnique(in []string) []string {
	set := map[string]bool{}
	for _, s := range in {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// OfflineCache memoizes a full request's serialized response payload keyed
// on the request's shape, with TTL eviction on read.
type OfflineCache struct {
	cache Cache
	ttl   time.Duration
}

// NewOfflineCache wraps cache (an in-memory TTLCache by default) with a
// fixed TTL for every entry.
func NewOfflineCache(cache Cache, ttl time.Duration) *OfflineCache {
	if cache == nil {
		cache = NewTTLCache()
	}
	return &OfflineCache{cache: cache, ttl: ttl}
}

// Key computes the SHA-256 key over {user, goal, modalities, transcript,
// sorted tags} per spec section 4.6.
func (o *OfflineCache) Key(user, goal string, modalities map[string]interface{}, transcript []string, tags []string) string {
	return hashKey(map[string]interface{}{
		"user":       user,
		"goal":       goal,
		"modalities": modalities,
		"transcript": transcript,
		"tags":       sortedUnique(tags),
	})
}

// Get returns the cached payload for key, or ok=false on miss or expiry.
func (o *OfflineCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return o.cache.Get(ctx, key)
}

// Put stores payload under key with the cache's configured TTL.
func (o *OfflineCache) Put(ctx context.Context, key string, payload []byte) error {
	return o.cache.Set(ctx, key, payload, o.ttl)
}
