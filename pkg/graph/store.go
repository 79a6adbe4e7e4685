package graph

import (
	"sort"
	"sync"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

type tier struct {
	nodes map[string]Node
	edges []Edge
}

func newTier() *tier {
	return &tier{nodes: map[string]Node{}}
}

// Graph is the two-tier (operational / long_term) node+edge store.
type Graph struct {
	mu         sync.RWMutex
	tiers      map[Memory]*tier
	revision   int
	pending    map[string]map[string]interface{} // staged lazy_update changes, keyed by node id
	critics    map[string]Critic
	authorities map[string]Authority
	verifyCache map[int][]VerificationResult
}

// New builds an empty two-tier Graph.
func New() *Graph {
	return &Graph{
		tiers: map[Memory]*tier{
			Operational: newTier(),
			LongTerm:    newTier(),
		},
		pending:     map[string]map[string]interface{}{},
		critics:     map[string]Critic{},
		authorities: map[string]Authority{},
		verifyCache: map[int][]VerificationResult{},
	}
}

func (g *Graph) tierFor(m Memory) *tier {
	t, ok := g.tiers[m]
	if !ok {
		t = newTier()
		g.tiers[m] = t
	}
	return t
}

// AddNode inserts or replaces a node by id within its declared tier.
func (g *Graph) AddNode(n Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if n.Mem == "" {
		n.Mem = Operational
	}
	g.tierFor(n.Mem).nodes[n.ID] = n.clone()
}

// AddEdge appends an edge (edges form a multiset, never deduplicated on
// insert).
func (g *Graph) AddEdge(e Edge) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if e.Mem == "" {
		e.Mem = Operational
	}
	t := g.tierFor(e.Mem)
	t.edges = append(t.edges, e.clone())
}

// GetNode looks up a node by id across both tiers.
func (g *Graph) GetNode(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, t := range g.tiers {
		if n, ok := t.nodes[id]; ok {
			return n.clone(), true
		}
	}
	return Node{}, false
}

// Nodes returns every node, optionally restricted to one tier.
func (g *Graph) Nodes(level ...Memory) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var mems []Memory
	if len(level) > 0 {
		mems = level
	} else {
		mems = []Memory{Operational, LongTerm}
	}
	var out []Node
	for _, m := range mems {
		t, ok := g.tiers[m]
		if !ok {
			continue
		}
		for _, n := range t.nodes {
			out = append(out, n.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Edges returns every edge, optionally restricted to one tier.
func (g *Graph) Edges(level ...Memory) []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var mems []Memory
	if len(level) > 0 {
		mems = level
	} else {
		mems = []Memory{Operational, LongTerm}
	}
	var out []Edge
	for _, m := range mems {
		t, ok := g.tiers[m]
		if !ok {
			continue
		}
		for _, e := range t.edges {
			out = append(out, e.clone())
		}
	}
	return out
}

// Promote moves a node from operational to long_term. One-way within a
// session (spec section 3 invariants).
func (g *Graph) Promote(id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	op := g.tierFor(Operational)
	n, ok := op.nodes[id]
	if !ok {
		return kerrors.Wrap("graph.Promote", kerrors.KindValidation, id, kerrors.ErrNodeUnknown)
	}
	delete(op.nodes, id)
	n.Mem = LongTerm
	g.tierFor(LongTerm).nodes[id] = n
	return nil
}

// Revision returns the current monotonically increasing revision counter.
func (g *Graph) Revision() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revision
}

func (g *Graph) bumpRevision() {
	g.revision++
	g.verifyCache = map[int][]VerificationResult{}
}

// mutateEdgesOf applies fn to every edge across tiers whose Source or
// Target equals id, replacing the edge slice in place.
func (g *Graph) mutateEdgesOf(id string, fn func(*Edge)) {
	for _, t := range g.tiers {
		for i := range t.edges {
			if t.edges[i].Source == id || t.edges[i].Target == id {
				fn(&t.edges[i])
			}
		}
	}
}

// neighborsOf returns the ids adjacent to id via any edge.
func (g *Graph) neighborsOf(id string) []string {
	seen := map[string]bool{}
	for _, t := range g.tiers {
		for _, e := range t.edges {
			if e.Source == id {
				seen[e.Target] = true
			}
			if e.Target == id {
				seen[e.Source] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
