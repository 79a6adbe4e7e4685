package rag_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/graph"
	"github.com/leontov-kolibri/kolibri-x/pkg/rag"
)

func TestTTLCacheExpiresOnRead(t *testing.T) {
	c := rag.NewTTLCache()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOfflineCacheKeyStableUnderTagOrder(t *testing.T) {
	o := rag.NewOfflineCache(nil, time.Minute)
	k1 := o.Key("u", "goal", map[string]interface{}{"m": []byte("x")}, []string{"t1"}, []string{"b", "a"})
	k2 := o.Key("u", "goal", map[string]interface{}{"m": []byte("x")}, []string{"t1"}, []string{"a", "b"})
	assert.Equal(t, k1, k2)
}

func TestOfflineCacheRoundTrip(t *testing.T) {
	o := rag.NewOfflineCache(nil, time.Minute)
	ctx := context.Background()
	key := o.Key("u", "g", nil, nil, nil)
	require.NoError(t, o.Put(ctx, key, []byte("payload")))
	val, ok, err := o.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "payload", string(val))
}

func TestRAGCacheTracksHitsAndMisses(t *testing.T) {
	r := rag.NewRAGCache(nil, time.Minute)
	ctx := context.Background()
	key := r.Key("u", "q", []string{"tag"}, []string{"text"}, 3)

	_, ok, err := r.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, r.Set(ctx, key, []byte("answer")))
	_, ok, err = r.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(2), stats.Requests)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestRetrieveRanksByScoreAndRespectsTopK(t *testing.T) {
	nodes := []graph.Node{
		{ID: "a", Text: "kolibri supports offline mode", Sources: []string{"doc"}, Confidence: 0.9},
		{ID: "b", Text: "kolibri runtime is fast", Confidence: 0.5},
		{ID: "c", Text: "", Confidence: 0.1},
	}
	encode := func(text string) []float64 {
		// crude bag-of-words style vector over two marker words so distinct
		// texts score differently and deterministically.
		v := []float64{0, 0}
		if containsWord(text, "offline") {
			v[0] = 1
		}
		if containsWord(text, "kolibri") {
			v[1] = 1
		}
		return v
	}

	ans := rag.Retrieve("offline kolibri", nodes, encode, 1)
	require.Len(t, ans.Support, 1)
	assert.Equal(t, "a", ans.Support[0].ID)
	assert.Equal(t, "ok", ans.Verification.Status)
	assert.InDelta(t, 0.9, ans.Verification.Confidence, 1e-9)
}

func TestRetrieveWithoutSourcesIsPartial(t *testing.T) {
	nodes := []graph.Node{{ID: "b", Text: "kolibri runtime", Confidence: 0.5}}
	encode := func(text string) []float64 { return []float64{1} }

	ans := rag.Retrieve("kolibri", nodes, encode, 5)
	require.Len(t, ans.Support, 1)
	assert.Equal(t, "partial", ans.Verification.Status)
	assert.InDelta(t, 0.2, ans.Verification.Confidence, 1e-9)
}

type recordingSink struct {
	events []map[string]interface{}
}

func (s *recordingSink) Append(event string, payload map[string]interface{}) {
	payload["__event"] = event
	s.events = append(s.events, payload)
}

func TestEvaluateAlertsSkipsBelowMinObservations(t *testing.T) {
	sink := &recordingSink{}
	alerts := rag.EvaluateAlerts(rag.Stats{Hits: 0, Misses: 1, Requests: 1}, rag.DefaultThresholds(), sink)
	assert.Empty(t, alerts)
	assert.Empty(t, sink.events)
}

func TestEvaluateAlertsFiresOnLowHitRate(t *testing.T) {
	sink := &recordingSink{}
	stats := rag.Stats{Hits: 1, Misses: 19, Requests: 20, HitRate: 0.05, MissRate: 0.95, Size: 10}
	alerts := rag.EvaluateAlerts(stats, rag.DefaultThresholds(), sink)
	require.NotEmpty(t, alerts)

	var names []string
	for _, a := range alerts {
		names = append(names, a.Name)
	}
	assert.Contains(t, names, "rag_cache.low_hit_rate")
	assert.NotEmpty(t, sink.events)
}

func containsWord(text, word string) bool {
	for _, w := range splitWords(text) {
		if w == word {
			return true
		}
	}
	return false
}

func splitWords(text string) []string {
	var out []string
	cur := ""
	for _, r := range text {
		if r == ' ' {
			if cur != "" {
				out = append(out, cur)
				cur = ""
			}
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		out = append(out, cur)
	}
	return out
}
