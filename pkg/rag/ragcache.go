package rag

import (
	"context"
	"sync/atomic"
	"time"
)

// Stats is the RAG cache's health snapshot (spec section 4.6 `stats()`).
type Stats struct {
	Hits            int64
	Misses          int64
	Requests        int64
	HitRate         float64
	MissRate        float64
	Size            int
}

// RAGCache memoizes retrieval answers keyed on query shape and tracks
// hit/miss counters for alerting.
type RAGCache struct {
	cache  Cache
	ttl    time.Duration
	hits   int64
	misses int64
}

// NewRAGCache wraps cache (an in-memory TTLCache by default) with a fixed
// TTL for every entry.
func NewRAGCache(cache Cache, ttl time.Duration) *RAGCache {
	if cache == nil {
		cache = NewTTLCache()
	}
	return &RAGCache{cache: cache, ttl: ttl}
}

// Key computes the SHA-256 key over {user, query, sorted unique tags,
// sorted unique modalities, top_k} per spec section 4.6.
func (r *RAGCache) Key(user, query string, tags, modalities []string, topK int) string {
	return hashKey(map[string]interface{}{
		"user":       user,
		"query":      query,
		"tags":       sortedUnique(tags),
		"modalities": sortedUnique(modalities),
		"top_k":      topK,
	})
}

// Get looks up key, recording a hit or miss against the running counters.
func (r *RAGCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := r.cache.Get(ctx, key)
	if err != nil {
		return nil, false, err
	}
	if ok {
		atomic.AddInt64(&r.hits, 1)
	} else {
		atomic.AddInt64(&r.misses, 1)
	}
	return val, ok, nil
}

// Set stores a deep copy of payload under key with the cache's TTL.
func (r *RAGCache) Set(ctx context.Context, key string, payload []byte) error {
	return r.cache.Set(ctx, key, payload, r.ttl)
}

// Stats returns the current hit/miss/size snapshot.
func (r *RAGCache) Stats(ctx context.Context) (Stats, error) {
	hits := atomic.LoadInt64(&r.hits)
	misses := atomic.LoadInt64(&r.misses)
	requests := hits + misses
	size, err := r.cache.Len(ctx)
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Hits: hits, Misses: misses, Requests: requests, Size: size}
	if requests > 0 {
		st.HitRate = float64(hits) / float64(requests)
		st.MissRate = float64(misses) / float64(requests)
	}
	return st, nil
}
