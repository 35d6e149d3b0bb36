package cache

import (
	"context"
	"hash/fnv"
	"math"
)

// Embedder turns texts into vectors whose cosine similarity reflects name similarity.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// TrigramDimensions is the vector size produced by TrigramEmbedder.
const TrigramDimensions = 512

// TrigramEmbedder hashes character trigrams into a fixed-size, L2-normalized vector.
// It needs no model and is deterministic across processes.
type TrigramEmbedder struct{}

func (TrigramEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = trigramVector(text)
	}
	return out, nil
}

func trigramVector(text string) []float32 {
	vec := make([]float32, TrigramDimensions)
	runes := []rune(" " + text + " ")
	if len(runes) < 3 {
		return vec
	}

	h := fnv.New32a()
	for i := 0; i+3 <= len(runes); i++ {
		h.Reset()
		_, _ = h.Write([]byte(string(runes[i : i+3])))
		vec[h.Sum32()%TrigramDimensions]++
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

// Cosine returns the cosine similarity of a and b, 0 when either is empty or zero.
func Cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		fa, fb := float64(a[i]), float64(b[i])
		dot += fa * fb
		na += fa * fa
		nb += fb * fb
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
