// Package learn implements the background self-learner (C10): secure
// aggregation of per-task weak-supervision gradients, an elastic-
// consolidation continual learner, drift tracking over task outcomes, and
// file-based persistence of the whole pipeline's state.
package learn

import "hash/fnv"

// ModelUpdate is one clipped gradient vector submitted by a user/device.
type ModelUpdate struct {
	UserID   string
	Values   map[string]float64
	Clipping float64
}

// SecureAggregator sums clipped per-key contributions without retaining
// any single update, so aggregation never exposes one user's raw values.
type SecureAggregator struct {
	NoiseScale float64

	sums   map[string]float64
	counts map[string]int
}

// NewSecureAggregator builds an aggregator. noise_scale must be
// non-negative.
func NewSecureAggregator(noiseScale float64) *SecureAggregator {
	if noiseScale < 0 {
		noiseScale = 0
	}
	return &SecureAggregator{NoiseScale: noiseScale, sums: map[string]float64{}, counts: map[string]int{}}
}

// Submit clips update's values to [-clipping, clipping] and folds them
// into the running per-key sums/counts.
func (a *SecureAggregator) Submit(update ModelUpdate) {
	clip := update.Clipping
	if clip <= 0 {
		clip = 1.0
	}
	for key, value := range update.Values {
		clipped := value
		if clipped > clip {
			clipped = clip
		}
		if clipped < -clip {
			clipped = -clip
		}
		a.sums[key] += clipped
		a.counts[key]++
	}
}

// Aggregate averages every key's sum by its contribution count, optionally
// perturbing it with a deterministic pseudo-noise term scaled by
// NoiseScale, then clears the running state.
func (a *SecureAggregator) Aggregate() map[string]float64 {
	if len(a.sums) == 0 {
		return map[string]float64{}
	}
	out := make(map[string]float64, len(a.sums))
	for key, total := range a.sums {
		count := a.counts[key]
		if count <= 0 {
			count = 1
		}
		averaged := total / float64(count)
		if a.NoiseScale != 0 {
			averaged += pseudoNoise(key, count) * a.NoiseScale
		}
		out[key] = averaged
	}
	a.sums = map[string]float64{}
	a.counts = map[string]int{}
	return out
}

// Peek returns the current un-aggregated sums, for observability.
func (a *SecureAggregator) Peek() map[string]float64 {
	out := make(map[string]float64, len(a.sums))
	for k, v := range a.sums {
		out[k] = v
	}
	return out
}

// pseudoNoise is a deterministic stand-in for a differential-privacy
// Gaussian mechanism: it depends only on (key, count), so aggregation
// stays reproducible across identical runs rather than drawing from a
// real RNG.
func pseudoNoise(key string, count int) float64 {
	h := fnv.New64a()
	h.Write([]byte(key))
	sum := h.Sum64() ^ uint64(count)*1099511628211
	return float64(sum%1000)/1000.0 - 0.5
}
