package encode

import (
	"math"
	"sort"
)

// ModalitySignal is one modality's embedding plus the quality/latency
// metadata the adaptive transformer uses to choose depth, resolution, and
// blend weight.
type ModalitySignal struct {
	Name      string
	Embedding []float64
	Quality   float64
	LatencyMs float64
	Metadata  map[string]interface{}
}

// Energy is the mean absolute value of the embedding, used as a proxy for
// signal strength when scoring depth.
func (s ModalitySignal) Energy() float64 {
	if len(s.Embedding) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.Embedding {
		sum += math.Abs(v)
	}
	return sum / float64(len(s.Embedding))
}

const (
	highResCost = 1.0
	lowResCost  = 0.3
)

// AdaptiveCrossModalTransformer selects a per-modality pseudo-attention
// depth and high/low resolution under a shared budget, then blends each
// modality's layered embedding by a quality/latency-derived weight.
type AdaptiveCrossModalTransformer struct {
	Dim      int
	MinDepth int
	MaxDepth int
}

// NewAdaptiveCrossModalTransformer builds a transformer with the given
// dimension and depth range.
func NewAdaptiveCrossModalTransformer(dim, minDepth, maxDepth int) AdaptiveCrossModalTransformer {
	if dim <= 0 {
		dim = 32
	}
	if minDepth <= 0 {
		minDepth = 1
	}
	if maxDepth < minDepth {
		maxDepth = minDepth
	}
	return AdaptiveCrossModalTransformer{Dim: dim, MinDepth: minDepth, MaxDepth: maxDepth}
}

// Fuse scores each signal, assigns high/low resolution under budget
// (highest-scoring signals get high resolution first), applies a
// depth-selected stack of pseudo-attention layers to each, and blends the
// results by a normalized quality/latency weight.
func (f AdaptiveCrossModalTransformer) Fuse(signals []ModalitySignal, budget float64) FusionResult {
	if len(signals) == 0 {
		return FusionResult{Embedding: make([]float64, f.Dim), ModalityWeights: map[string]float64{}}
	}
	if budget <= 0 {
		budget = 1.0
	}

	type scored struct {
		signal ModalitySignal
		score  float64
		weight float64
	}
	items := make([]scored, len(signals))
	for i, s := range signals {
		score := depthScore(s)
		items[i] = scored{signal: s, score: score, weight: fusionWeight(s)}
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].score > items[j].score })
	remaining := budget
	resolutions := make(map[string]string, len(items))
	for i := range items {
		name := items[i].signal.Name
		if remaining >= highResCost {
			resolutions[name] = "high"
			remaining -= highResCost
		} else if remaining >= lowResCost {
			resolutions[name] = "low"
			remaining -= lowResCost
		} else {
			resolutions[name] = "low"
		}
	}

	var totalWeight float64
	for _, it := range items {
		totalWeight += it.weight
	}
	if totalWeight == 0 {
		totalWeight = 1
	}

	fused := make([]float64, f.Dim)
	weights := make(map[string]float64, len(items))
	layers := make(map[string]interface{}, len(items))
	attention := make(map[string]interface{}, len(items))

	for _, it := range items {
		depth := selectDepth(it.score, f.MinDepth, f.MaxDepth)
		vec, attn := applyPseudoAttentionLayers(it.signal.Embedding, depth, f.Dim)
		w := it.weight / totalWeight
		weights[it.signal.Name] = w
		layers[it.signal.Name] = depth
		attention[it.signal.Name] = attn
		for i := 0; i < f.Dim; i++ {
			fused[i] += w * vec[i]
		}
	}

	return FusionResult{
		Embedding:       fused,
		ModalityWeights: weights,
		Metadata: map[string]interface{}{
			"layers":      layers,
			"resolutions": resolutions,
			"attention":   attention,
		},
	}
}

// depthScore is the monotone-in-quality/energy, monotone-decreasing-in-
// latency score the runtime uses to choose pseudo-attention depth.
func depthScore(s ModalitySignal) float64 {
	return s.Quality * (1 + math.Log1p(s.Energy())) / (1 + s.LatencyMs/1000)
}

func fusionWeight(s ModalitySignal) float64 {
	w := s.Quality / (1 + s.LatencyMs/1000)
	if w < 0 {
		return 0
	}
	return w
}

// selectDepth maps an unbounded score into [minDepth, maxDepth] via a
// bounded, monotone normalization (score/(1+score) saturates toward 1
// without ever reaching it), then floors into the configured range.
func selectDepth(score float64, minDepth, maxDepth int) int {
	if score < 0 {
		score = 0
	}
	normalized := score / (1 + score)
	depth := int(math.Floor(float64(minDepth) + float64(maxDepth-minDepth)*normalized))
	if depth < minDepth {
		depth = minDepth
	}
	if depth > maxDepth {
		depth = maxDepth
	}
	return depth
}

// applyPseudoAttentionLayers repeatedly splits vec in half, rotates the
// second half by one position, blends the first half against that rotated
// second half, and blends the second half against the unrotated first
// half — a cheap, deterministic stand-in for real attention. Returns
// the transformed vector (resized/zero-padded to dim) and the mean
// absolute value accumulated across layers as an attention-weight proxy.
func applyPseudoAttentionLayers(vec []float64, layers, dim int) ([]float64, float64) {
	cur := make([]float64, dim)
	copy(cur, vec)

	var attn float64
	for l := 0; l < layers; l++ {
		half := dim / 2
		a := cur[:half]
		b := cur[half:]
		rotated := rotateRight(b, 1)

		next := make([]float64, dim)
		for i := range a {
			other := 0.0
			if i < len(rotated) {
				other = rotated[i]
			}
			next[i] = (a[i] + other) / 2
		}
		for i := range b {
			other := 0.0
			if i < len(a) {
				other = a[i]
			}
			next[half+i] = (b[i] + other) / 2
		}
		cur = next
		attn += meanAbs(cur)
	}
	if layers > 0 {
		attn /= float64(layers)
	}
	return cur, attn
}

func rotateRight(v []float64, by int) []float64 {
	n := len(v)
	if n == 0 {
		return v
	}
	by = by % n
	out := make([]float64, n)
	copy(out, v[n-by:])
	copy(out[by:], v[:n-by])
	return out
}

func meanAbs(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	var sum float64
	for _, x := range v {
		sum += math.Abs(x)
	}
	return sum / float64(len(v))
}
