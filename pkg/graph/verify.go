package graph

import "sort"

// RegisterCritic installs a named scoring function used by VerifyWithCritics.
func (g *Graph) RegisterCritic(name string, fn Critic) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.critics[name] = fn
}

// RegisterAuthority installs a named external-evidence verifier.
func (g *Graph) RegisterAuthority(name string, fn Authority) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.authorities[name] = fn
}

// VerifyWithCritics runs every registered critic and authority over every
// node. Results are cached keyed on the revision counter when called with
// no extra critics/authorities. It also aggregates, per node, the mean
// score into metadata.verification_score and the provenance list into
// metadata.verification_sources.
func (g *Graph) VerifyWithCritics(extraCritics map[string]Critic, extraAuthorities map[string]Authority) []VerificationResult {
	g.mu.Lock()
	cacheable := len(extraCritics) == 0 && len(extraAuthorities) == 0
	if cacheable {
		if cached, ok := g.verifyCache[g.revision]; ok {
			g.mu.Unlock()
			return cached
		}
	}

	critics := mergeCritics(g.critics, extraCritics)
	authorities := mergeAuthorities(g.authorities, extraAuthorities)

	var nodeIDs []string
	allNodes := map[string]Node{}
	for _, t := range g.tiers {
		for id, n := range t.nodes {
			nodeIDs = append(nodeIDs, id)
			allNodes[id] = n
		}
	}
	sort.Strings(nodeIDs)
	g.mu.Unlock()

	var results []VerificationResult
	perNodeScores := map[string][]float64{}
	perNodeProv := map[string][]string{}

	names := make([]string, 0, len(critics))
	for name := range critics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, id := range nodeIDs {
		n := allNodes[id]
		for _, name := range names {
			score := critics[name](n)
			results = append(results, VerificationResult{NodeID: id, Critic: name, Score: score, Provenance: "critic"})
			perNodeScores[id] = append(perNodeScores[id], score)
			perNodeProv[id] = append(perNodeProv[id], "critic")
		}
	}

	authNames := make([]string, 0, len(authorities))
	for name := range authorities {
		authNames = append(authNames, name)
	}
	sort.Strings(authNames)
	for _, id := range nodeIDs {
		n := allNodes[id]
		for _, name := range authNames {
			res := authorities[name](n)
			results = append(results, VerificationResult{NodeID: id, Critic: name, Score: res.Score, Provenance: "authority", Details: res.Details})
			perNodeScores[id] = append(perNodeScores[id], res.Score)
			perNodeProv[id] = append(perNodeProv[id], "authority")
		}
	}

	g.mu.Lock()
	for id, scores := range perNodeScores {
		mean := 0.0
		for _, s := range scores {
			mean += s
		}
		if len(scores) > 0 {
			mean /= float64(len(scores))
		}
		for _, t := range g.tiers {
			if n, ok := t.nodes[id]; ok {
				if n.Metadata == nil {
					n.Metadata = map[string]interface{}{}
				}
				n.Metadata["verification_score"] = mean
				n.Metadata["verification_sources"] = perNodeProv[id]
				t.nodes[id] = n
			}
		}
	}
	if cacheable {
		g.verifyCache[g.revision] = results
	}
	g.mu.Unlock()

	return results
}

func mergeCritics(base, extra map[string]Critic) map[string]Critic {
	out := make(map[string]Critic, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func mergeAuthorities(base, extra map[string]Authority) map[string]Authority {
	out := make(map[string]Authority, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}
