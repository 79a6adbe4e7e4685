package graph

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	kerrors "github.com/leontov-kolibri/kolibri-x/internal/errors"
)

type metaLine struct {
	Kind    string `json:"kind"`
	Version int    `json:"version"`
}

type nodeLine struct {
	Kind string   `json:"kind"`
	Data nodeData `json:"data"`
}

type nodeData struct {
	ID         string                 `json:"id"`
	Type       string                 `json:"type"`
	Text       string                 `json:"text"`
	Sources    []string               `json:"sources"`
	Confidence float64                `json:"confidence"`
	Embedding  []float64              `json:"embedding"`
	Metadata   map[string]interface{} `json:"metadata"`
	Memory     string                 `json:"memory"`
}

type edgeLine struct {
	Kind string   `json:"kind"`
	Data edgeData `json:"data"`
}

type edgeData struct {
	Source   string                 `json:"source"`
	Target   string                 `json:"target"`
	Relation string                 `json:"relation"`
	Weight   float64                `json:"weight"`
	Memory   string                 `json:"memory"`
	Metadata map[string]interface{} `json:"metadata"`
}

type pendingLine struct {
	Kind string                            `json:"kind"`
	Data map[string]map[string]interface{} `json:"data"`
}

// Save writes the graph as line-delimited JSON: one meta line, nodes
// sorted by (memory, id), edges sorted by (memory, source, target,
// relation), and an optional pending-updates line.
func (g *Graph) Save(path string) error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return kerrors.Wrap("graph.Save", kerrors.KindValidation, path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return kerrors.Wrap("graph.Save", kerrors.KindValidation, path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	defer w.Flush()

	writeLine := func(v interface{}) error {
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(append(raw, '\n'))
		return err
	}

	if err := writeLine(metaLine{Kind: "meta", Version: 1}); err != nil {
		return err
	}

	var nodes []nodeData
	for mem, t := range g.tiers {
		for _, n := range t.nodes {
			nodes = append(nodes, nodeData{
				ID: n.ID, Type: n.Type, Text: n.Text, Sources: n.Sources,
				Confidence: n.Confidence, Embedding: n.Embedding,
				Metadata: n.Metadata, Memory: string(mem),
			})
		}
	}
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Memory != nodes[j].Memory {
			return nodes[i].Memory < nodes[j].Memory
		}
		return nodes[i].ID < nodes[j].ID
	})
	for _, n := range nodes {
		if err := writeLine(nodeLine{Kind: "node", Data: n}); err != nil {
			return err
		}
	}

	var edges []edgeData
	for mem, t := range g.tiers {
		for _, e := range t.edges {
			edges = append(edges, edgeData{
				Source: e.Source, Target: e.Target, Relation: e.Relation,
				Weight: e.Weight, Memory: string(mem), Metadata: e.Metadata,
			})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Memory != edges[j].Memory {
			return edges[i].Memory < edges[j].Memory
		}
		if edges[i].Source != edges[j].Source {
			return edges[i].Source < edges[j].Source
		}
		if edges[i].Target != edges[j].Target {
			return edges[i].Target < edges[j].Target
		}
		return edges[i].Relation < edges[j].Relation
	})
	for _, e := range edges {
		if err := writeLine(edgeLine{Kind: "edge", Data: e}); err != nil {
			return err
		}
	}

	if len(g.pending) > 0 {
		if err := writeLine(pendingLine{Kind: "pending", Data: g.pending}); err != nil {
			return err
		}
	}
	return nil
}

// Load replaces the graph's contents with a snapshot read from path.
func (g *Graph) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return kerrors.Wrap("graph.Load", kerrors.KindValidation, path, err)
	}
	defer f.Close()

	fresh := New()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var probe struct {
			Kind string `json:"kind"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return kerrors.Wrap("graph.Load", kerrors.KindValidation, path, err)
		}
		switch probe.Kind {
		case "meta":
			// version currently unused; reserved for future migrations.
		case "node":
			var nl nodeLine
			if err := json.Unmarshal(line, &nl); err != nil {
				return err
			}
			fresh.AddNode(Node{
				ID: nl.Data.ID, Type: nl.Data.Type, Text: nl.Data.Text,
				Sources: nl.Data.Sources, Confidence: nl.Data.Confidence,
				Embedding: nl.Data.Embedding, Metadata: nl.Data.Metadata,
				Mem: Memory(nl.Data.Memory),
			})
		case "edge":
			var el edgeLine
			if err := json.Unmarshal(line, &el); err != nil {
				return err
			}
			fresh.AddEdge(Edge{
				Source: el.Data.Source, Target: el.Data.Target, Relation: el.Data.Relation,
				Weight: el.Data.Weight, Mem: Memory(el.Data.Memory), Metadata: el.Data.Metadata,
			})
		case "pending":
			var pl pendingLine
			if err := json.Unmarshal(line, &pl); err != nil {
				return err
			}
			fresh.pending = pl.Data
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	g.mu.Lock()
	g.tiers = fresh.tiers
	g.pending = fresh.pending
	g.mu.Unlock()
	return nil
}
