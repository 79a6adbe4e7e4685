package graph

import (
	"sort"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

// knownFields are the Node struct fields lazy_update may write directly;
// anything else lands in metadata.ignored_updates (spec section 4.5).
var knownFields = map[string]bool{
	"type": true, "text": true, "sources": true, "confidence": true,
	"embedding": true, "mem": true,
}

// LazyUpdate validates that id exists, then stages changes for later
// application by PropagatePending. Metadata changes merge into a pending
// per-node patch; direct field changes replace the staged value.
func (g *Graph) LazyUpdate(id string, changes map[string]interface{}) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.findNodeLocked(id); !ok {
		return kerrors.Wrap("graph.LazyUpdate", kerrors.KindValidation, id, kerrors.ErrNodeUnknown)
	}
	staged, ok := g.pending[id]
	if !ok {
		staged = map[string]interface{}{}
		g.pending[id] = staged
	}
	for k, v := range changes {
		if patch, ok := v.(map[string]interface{}); ok && k == "metadata" {
			merged := map[string]interface{}{}
			if prior, ok := staged[k].(map[string]interface{}); ok {
				for mk, mv := range prior {
					merged[mk] = mv
				}
			}
			for mk, mv := range patch {
				merged[mk] = mv
			}
			staged[k] = merged
			continue
		}
		staged[k] = v
	}
	return nil
}

func (g *Graph) findNodeLocked(id string) (Node, bool) {
	for _, t := range g.tiers {
		if n, ok := t.nodes[id]; ok {
			return n, true
		}
	}
	return Node{}, false
}

// PropagatePending applies every staged lazy_update atomically: metadata
// merges (recording the prior patch into metadata.revisions), known-field
// writes, unknown fields into metadata.ignored_updates, then back-
// propagates a 0.95 weight decay to incident edges and marks neighbors
// with metadata.pending_backprop. Bumps the revision counter exactly once.
func (g *Graph) PropagatePending() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.pending) == 0 {
		return
	}

	ids := make([]string, 0, len(g.pending))
	for id := range g.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		changes := g.pending[id]
		g.applyChangesLocked(id, changes)
	}
	g.pending = map[string]map[string]interface{}{}
	g.bumpRevision()
}

func (g *Graph) applyChangesLocked(id string, changes map[string]interface{}) {
	for _, t := range g.tiers {
		n, ok := t.nodes[id]
		if !ok {
			continue
		}
		if n.Metadata == nil {
			n.Metadata = map[string]interface{}{}
		}

		metaPatch, hasMetaPatch := changes["metadata"].(map[string]interface{})
		var ignored []string
		for k, v := range changes {
			switch k {
			case "metadata":
				continue
			case "type":
				n.Type, _ = v.(string)
			case "text":
				n.Text, _ = v.(string)
			case "sources":
				n.Sources = toStringSlice(v)
			case "confidence":
				n.Confidence = toFloat(v)
			case "embedding":
				n.Embedding = toFloatSlice(v)
			case "mem":
				if s, ok := v.(string); ok {
					n.Mem = Memory(s)
				}
			default:
				ignored = append(ignored, k)
				n.Metadata[k] = v
			}
		}

		if hasMetaPatch {
			prior := cloneMeta(n.Metadata)
			for k, v := range metaPatch {
				n.Metadata[k] = v
			}
			revisions, _ := n.Metadata["revisions"].([]interface{})
			revisions = append(revisions, prior)
			n.Metadata["revisions"] = revisions
		}
		if len(ignored) > 0 {
			existing, _ := n.Metadata["ignored_updates"].([]string)
			n.Metadata["ignored_updates"] = append(existing, ignored...)
		}

		t.nodes[id] = n
		g.backpropagateLocked(id)
		return
	}
}

// backpropagateLocked decays every edge incident to id by 0.95, marks it
// pending_review, and records id into each neighbor's
// metadata.pending_backprop (sorted, unique).
func (g *Graph) backpropagateLocked(id string) {
	g.mutateEdgesOf(id, func(e *Edge) {
		e.Weight *= 0.95
		if e.Metadata == nil {
			e.Metadata = map[string]interface{}{}
		}
		e.Metadata["pending_review"] = true
	})

	for _, neighbor := range g.neighborsOf(id) {
		for _, t := range g.tiers {
			n, ok := t.nodes[neighbor]
			if !ok {
				continue
			}
			if n.Metadata == nil {
				n.Metadata = map[string]interface{}{}
			}
			set := map[string]bool{}
			if existing, ok := n.Metadata["pending_backprop"].([]string); ok {
				for _, s := range existing {
					set[s] = true
				}
			}
			set[id] = true
			ordered := make([]string, 0, len(set))
			for s := range set {
				ordered = append(ordered, s)
			}
			sort.Strings(ordered)
			n.Metadata["pending_backprop"] = ordered
			t.nodes[neighbor] = n
		}
	}
}

func toStringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

func toFloatSlice(v interface{}) []float64 {
	switch vv := v.(type) {
	case []float64:
		return vv
	case []interface{}:
		out := make([]float64, 0, len(vv))
		for _, item := range vv {
			out = append(out, toFloat(item))
		}
		return out
	default:
		return nil
	}
}

func toFloat(v interface{}) float64 {
	switch vv := v.(type) {
	case float64:
		return vv
	case float32:
		return float64(vv)
	case int:
		return float64(vv)
	default:
		return 0
	}
}
