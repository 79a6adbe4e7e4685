package graph_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leontov-kolibri/kolibri-x/pkg/graph"
)

func TestPromoteIsOneWay(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a", Text: "hi", Mem: graph.Operational})

	require.NoError(t, g.Promote("a"))
	n, ok := g.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, graph.LongTerm, n.Mem)

	nodes := g.Nodes(graph.Operational)
	assert.Empty(t, nodes)
}

func TestLazyUpdatePropagateBackprop(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a", Text: "old", Confidence: 0.5})
	g.AddNode(graph.Node{ID: "b", Text: "neighbor"})
	g.AddEdge(graph.Edge{Source: "a", Target: "b", Relation: "rel", Weight: 1.0})

	require.NoError(t, g.LazyUpdate("a", map[string]interface{}{
		"text":     "new",
		"metadata": map[string]interface{}{"note": "x"},
	}))
	rev0 := g.Revision()
	g.PropagatePending()
	assert.Equal(t, rev0+1, g.Revision())

	a, _ := g.GetNode("a")
	assert.Equal(t, "new", a.Text)
	assert.Equal(t, "x", a.Metadata["note"])

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.InDelta(t, 0.95, edges[0].Weight, 1e-9)
	assert.Equal(t, true, edges[0].Metadata["pending_review"])

	b, _ := g.GetNode("b")
	assert.Equal(t, []string{"a"}, b.Metadata["pending_backprop"])
}

func TestLazyUpdateUnknownNode(t *testing.T) {
	g := graph.New()
	err := g.LazyUpdate("missing", map[string]interface{}{"text": "x"})
	assert.Error(t, err)
}

func TestVerifyWithCriticsAggregates(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a", Text: "claim"})

	g.RegisterCritic("length", func(n graph.Node) float64 {
		if len(n.Text) > 0 {
			return 1.0
		}
		return 0.0
	})
	g.RegisterAuthority("trust", func(n graph.Node) graph.AuthorityResult {
		return graph.AuthorityResult{Score: 0.5, Details: map[string]interface{}{"why": "test"}}
	})

	results := g.VerifyWithCritics(nil, nil)
	require.Len(t, results, 2)

	a, _ := g.GetNode("a")
	assert.InDelta(t, 0.75, a.Metadata["verification_score"].(float64), 1e-9)
}

func TestVerifyCacheInvalidatesOnRevisionBump(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a", Text: "claim"})
	calls := 0
	g.RegisterCritic("count", func(n graph.Node) float64 {
		calls++
		return 1.0
	})

	g.VerifyWithCritics(nil, nil)
	g.VerifyWithCritics(nil, nil)
	assert.Equal(t, 1, calls)

	require.NoError(t, g.LazyUpdate("a", map[string]interface{}{"text": "claim2"}))
	g.PropagatePending()

	g.VerifyWithCritics(nil, nil)
	assert.Equal(t, 2, calls)
}

func TestDeduplicateEmbeddings(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "A", Text: "same", Embedding: []float64{1, 0}, Confidence: 0.7, Mem: graph.Operational})
	g.AddNode(graph.Node{ID: "B", Text: "same", Embedding: []float64{1, 0}, Confidence: 0.7, Mem: graph.LongTerm})
	g.AddEdge(graph.Edge{Source: "A", Target: "C", Relation: "supports", Weight: 1.0})

	pairs := g.DeduplicateEmbeddings(0.995)
	require.Len(t, pairs, 1)
	assert.Equal(t, "B", pairs[0].Canonical)
	assert.Equal(t, "A", pairs[0].Duplicate)

	_, ok := g.GetNode("A")
	assert.False(t, ok)

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "B", edges[0].Source)
	redirects := edges[0].Metadata["redirects"].([]map[string]string)
	require.Len(t, redirects, 1)
	assert.Equal(t, "A", redirects[0]["from"])
	assert.Equal(t, "B", redirects[0]["to"])
}

func TestDetectConflictsSymmetricAndIdempotent(t *testing.T) {
	g1 := graph.New()
	g1.AddNode(graph.Node{ID: "p", Text: "Kolibri runtime is reliable"})
	g1.AddNode(graph.Node{ID: "q", Text: "Kolibri runtime is not reliable"})

	g2 := graph.New()
	g2.AddNode(graph.Node{ID: "q", Text: "Kolibri runtime is not reliable"})
	g2.AddNode(graph.Node{ID: "p", Text: "Kolibri runtime is reliable"})

	c1 := g1.DetectConflicts()
	c2 := g2.DetectConflicts()
	assert.Equal(t, c1, c2)
	require.Len(t, c1, 1)
	assert.Equal(t, "p", c1[0].A)
	assert.Equal(t, "q", c1[0].B)

	c1again := g1.DetectConflicts()
	assert.Equal(t, c1, c1again)
}

func TestGenerateClarificationRequests(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "p", Text: "Kolibri runtime is reliable", Sources: []string{"doc1"}})
	g.AddNode(graph.Node{ID: "q", Text: "Kolibri runtime is not reliable", Sources: []string{"doc2"}})

	reqs := g.GenerateClarificationRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, []string{"p", "q"}, reqs[0].NodeIDs)
	assert.Equal(t, []string{"doc1", "doc2"}, reqs[0].Sources)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a", Text: "hi", Mem: graph.Operational, Sources: []string{"s1"}})
	g.AddNode(graph.Node{ID: "b", Text: "there", Mem: graph.LongTerm})
	g.AddEdge(graph.Edge{Source: "a", Target: "b", Relation: "rel", Weight: 0.5})
	require.NoError(t, g.LazyUpdate("a", map[string]interface{}{"confidence": 0.9}))

	dir := t.TempDir()
	path := filepath.Join(dir, "snap.jsonl")
	require.NoError(t, g.Save(path))

	loaded := graph.New()
	require.NoError(t, loaded.Load(path))

	a, ok := loaded.GetNode("a")
	require.True(t, ok)
	assert.Equal(t, "hi", a.Text)
	assert.Equal(t, graph.Operational, a.Mem)

	edges := loaded.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "a", edges[0].Source)
}
