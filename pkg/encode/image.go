package encode

import "crypto/sha256"

// ImageEncoder hashes raw bytes into a pseudo-embedding: a deterministic
// placeholder standing in for a real vision model.
type ImageEncoder struct {
	Dim int
}

// NewImageEncoder builds an encoder with the given output dimension.
func NewImageEncoder(dim int) ImageEncoder {
	if dim <= 0 {
		dim = 32
	}
	return ImageEncoder{Dim: dim}
}

// Encode turns raw image bytes into a Dim-length vector in [0,1].
func (e ImageEncoder) Encode(data []byte) []float64 {
	vec := make([]float64, e.Dim)
	if len(data) == 0 {
		return vec
	}
	digest := sha256.Sum256(data)
	for i := range vec {
		vec[i] = float64(digest[i%len(digest)]) / 255.0
	}
	return vec
}

// DiffusionVisionEncoder aggregates the last FrameWindow video frames by
// hashing their concatenation, matching ImageEncoder's pseudo-embedding
// style over a sliding window.
type DiffusionVisionEncoder struct {
	Dim         int
	FrameWindow int
}

// NewDiffusionVisionEncoder builds an encoder with the given dimension and
// sliding-window size.
func NewDiffusionVisionEncoder(dim, frameWindow int) DiffusionVisionEncoder {
	if dim <= 0 {
		dim = 32
	}
	if frameWindow <= 0 {
		frameWindow = 4
	}
	return DiffusionVisionEncoder{Dim: dim, FrameWindow: frameWindow}
}

// EncodeVideo hashes the last FrameWindow frames, in order, into one
// Dim-length vector.
func (e DiffusionVisionEncoder) EncodeVideo(frames [][]byte) []float64 {
	vec := make([]float64, e.Dim)
	if len(frames) == 0 {
		return vec
	}
	window := frames
	if len(window) > e.FrameWindow {
		window = window[len(window)-e.FrameWindow:]
	}
	var joined []byte
	for _, f := range window {
		joined = append(joined, f...)
	}
	digest := sha256.Sum256(joined)
	for i := range vec {
		vec[i] = float64(digest[i%len(digest)]) / 255.0
	}
	return vec
}
