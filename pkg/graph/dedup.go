package graph

import (
	"math"
	"sort"
)

// DuplicatePair is one collapsed (canonical, duplicate) result.
type DuplicatePair struct {
	Canonical string
	Duplicate string
}

// DeduplicateEmbeddings collapses nodes whose embeddings are cosine-similar
// above threshold. The surviving node in each pair is the one with the
// higher (memory==long_term, confidence) tuple; every edge referencing the
// loser is rewritten in place to point at the winner, with a
// {from, to} entry appended to edge.Metadata["redirects"].
func (g *Graph) DeduplicateEmbeddings(threshold float64) []DuplicatePair {
	if threshold <= 0 {
		threshold = 0.995
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	var ids []string
	nodes := map[string]Node{}
	for _, t := range g.tiers {
		for id, n := range t.nodes {
			if len(n.Embedding) == 0 {
				continue
			}
			ids = append(ids, id)
			nodes[id] = n
		}
	}
	sort.Strings(ids)

	var canonicals []string
	var pairs []DuplicatePair

	for _, id := range ids {
		n := nodes[id]
		matched := ""
		for _, c := range canonicals {
			if _, alive := g.findNodeLocked(c); !alive {
				continue
			}
			cn := nodes[c]
			if cosine(n.Embedding, cn.Embedding) >= threshold {
				matched = c
				break
			}
		}
		if matched == "" {
			canonicals = append(canonicals, id)
			continue
		}

		winner, loser := resolveWinner(nodes[matched], n)
		if loser == matched {
			// the newly-seen node wins; swap canonical bookkeeping.
			for i, c := range canonicals {
				if c == matched {
					canonicals[i] = winner
				}
			}
			nodes[winner] = nodes[id]
		}
		g.redirectEdgesLocked(loser, winner)
		g.removeNodeLocked(loser)
		pairs = append(pairs, DuplicatePair{Canonical: winner, Duplicate: loser})
	}

	return pairs
}

// resolveWinner returns (winner, loser) ids comparing (memory==long_term,
// confidence) tuples; a is the existing canonical, b the newly seen node.
func resolveWinner(a, b Node) (winner, loser string) {
	aKey := tupleKey(a)
	bKey := tupleKey(b)
	if bKey > aKey {
		return b.ID, a.ID
	}
	return a.ID, b.ID
}

func tupleKey(n Node) float64 {
	lt := 0.0
	if n.Mem == LongTerm {
		lt = 1.0
	}
	return lt*10 + n.Confidence
}

func cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (g *Graph) redirectEdgesLocked(loser, winner string) {
	for _, t := range g.tiers {
		for i := range t.edges {
			e := &t.edges[i]
			changed := false
			if e.Source == loser {
				e.Source = winner
				changed = true
			}
			if e.Target == loser {
				e.Target = winner
				changed = true
			}
			if changed {
				if e.Metadata == nil {
					e.Metadata = map[string]interface{}{}
				}
				redirects, _ := e.Metadata["redirects"].([]map[string]string)
				redirects = append(redirects, map[string]string{"from": loser, "to": winner})
				e.Metadata["redirects"] = redirects
			}
		}
	}
}

func (g *Graph) removeNodeLocked(id string) {
	for _, t := range g.tiers {
		delete(t.nodes, id)
	}
}
