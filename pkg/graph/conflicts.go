package graph

import (
	"sort"
	"strings"
)

var negationTokens = map[string]bool{"not": true, "never": true, "no": true}

var conflictRelations = map[string]bool{"contradicts": true, "conflicts_with": true}

// ConflictPair is an unordered pair of conflicting node ids, always stored
// with the lexicographically smaller id first so result sets compare
// equal regardless of discovery order.
type ConflictPair struct {
	A, B string
}

func newPair(a, b string) ConflictPair {
	if a > b {
		a, b = b, a
	}
	return ConflictPair{A: a, B: b}
}

// normalizeText drops negation tokens and returns the sorted, lower-cased
// remaining word tokens joined by a space, so "X is reliable" and
// "X is not reliable" group together while differing by negation.
func normalizeText(text string) (key string, negative bool) {
	fields := strings.Fields(strings.ToLower(text))
	var kept []string
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:")
		if negationTokens[f] {
			negative = true
			continue
		}
		if f != "" {
			kept = append(kept, f)
		}
	}
	sort.Strings(kept)
	return strings.Join(kept, " "), negative
}

// DetectConflicts finds edges whose relation marks an explicit conflict,
// plus node-text pairs that assert and negate the same normalized claim.
// The result is sorted and deduplicated so it is symmetric and idempotent
// under any insertion order.
func (g *Graph) DetectConflicts() []ConflictPair {
	g.mu.RLock()
	defer g.mu.RUnlock()

	seen := map[ConflictPair]bool{}
	var out []ConflictPair

	add := func(a, b string) {
		p := newPair(a, b)
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, t := range g.tiers {
		for _, e := range t.edges {
			if conflictRelations[e.Relation] {
				add(e.Source, e.Target)
			}
		}
	}

	groups := map[string][]string{}
	negatives := map[string]bool{}
	var ids []string
	for _, t := range g.tiers {
		for id, n := range t.nodes {
			key, neg := normalizeText(n.Text)
			groups[key] = append(groups[key], id)
			negatives[id] = neg
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	for _, members := range groups {
		sort.Strings(members)
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				a, b := members[i], members[j]
				if negatives[a] != negatives[b] {
					add(a, b)
				}
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// ClarificationRequest is a generated prompt for a conflicting node pair.
type ClarificationRequest struct {
	NodeIDs []string
	Prompt  string
	Sources []string
}

// GenerateClarificationRequests builds one ClarificationRequest per
// detected conflict, listing both node ids and the union of their sources
// — a feature present in the original Python implementation's graph
// module but only implied by the spec's S5 scenario.
func (g *Graph) GenerateClarificationRequests() []ClarificationRequest {
	conflicts := g.DetectConflicts()
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []ClarificationRequest
	for _, c := range conflicts {
		a := g.tiers[Operational].nodes[c.A]
		if _, ok := g.tiers[Operational].nodes[c.A]; !ok {
			a = g.tiers[LongTerm].nodes[c.A]
		}
		b := g.tiers[Operational].nodes[c.B]
		if _, ok := g.tiers[Operational].nodes[c.B]; !ok {
			b = g.tiers[LongTerm].nodes[c.B]
		}

		sources := map[string]bool{}
		for _, s := range a.Sources {
			sources[s] = true
		}
		for _, s := range b.Sources {
			sources[s] = true
		}
		var srcList []string
		for s := range sources {
			srcList = append(srcList, s)
		}
		sort.Strings(srcList)

		out = append(out, ClarificationRequest{
			NodeIDs: []string{c.A, c.B},
			Prompt:  "Conflicting claims between " + c.A + " and " + c.B + ": please clarify.",
			Sources: srcList,
		})
	}
	return out
}
