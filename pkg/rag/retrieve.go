package rag

import (
	"sort"
	"strconv"
	"strings"

	"github.com/leontov-kolibri/kolibri-x/pkg/graph"
)

// EncodeFunc turns text into a fixed-dimension vector. Retrieve is
// deterministic as long as the supplied EncodeFunc is.
type EncodeFunc func(text string) []float64

// Fact is one retrieved node rendered for the answer's support list.
type Fact struct {
	ID         string
	Text       string
	Sources    []string
	Confidence float64
	Score      float64
}

// Verification summarizes how trustworthy the retrieved set looks, derived
// from whether any supporting fact carries a source (spec section 4.6).
type Verification struct {
	Status     string // "ok" | "partial"
	Confidence float64
}

// Answer is the bundle a retrieval call returns.
type Answer struct {
	Query        string
	Summary      string
	Support      []Fact
	Verification Verification
}

// Retrieve encodes query, scores every node with non-empty text by dot
// product against the query vector, keeps the top-k with score > 0, and
// builds the answer bundle.
func Retrieve(query string, nodes []graph.Node, encode EncodeFunc, topK int) Answer {
	qVec := encode(query)

	type scored struct {
		node  graph.Node
		score float64
	}
	var candidates []scored
	for _, n := range nodes {
		if strings.TrimSpace(n.Text) == "" {
			continue
		}
		score := dot(qVec, encode(n.Text))
		if score > 0 {
			candidates = append(candidates, scored{node: n, score: score})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}

	support := make([]Fact, 0, len(candidates))
	hasSource := false
	var summaryParts []string
	for _, c := range candidates {
		support = append(support, Fact{
			ID: c.node.ID, Text: c.node.Text, Sources: c.node.Sources,
			Confidence: c.node.Confidence, Score: c.score,
		})
		if len(c.node.Sources) > 0 {
			hasSource = true
		}
		summaryParts = append(summaryParts, c.node.Text+" (confidence "+
			strconv.FormatFloat(c.node.Confidence, 'f', 2, 64)+")")
	}

	verification := Verification{Status: "partial", Confidence: 0.2}
	if hasSource {
		verification = Verification{Status: "ok", Confidence: 0.9}
	}

	return Answer{
		Query:        query,
		Summary:      strings.Join(summaryParts, "; "),
		Support:      support,
		Verification: verification,
	}
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
