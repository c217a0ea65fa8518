package embedding

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// HashEmbedder is the always-available fast tier: a feature-hashing
// embedder with no model weights or network dependency. Every process
// running this code produces byte-identical vectors for the same text and
// dimension, which keeps bake-off comparisons and vector index rebuilds
// reproducible without bundling a model.
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder returns a HashEmbedder that produces vectors of the given
// dimension. dimension must be positive.
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed tokenizes each text on whitespace, hashes each token into a bucket
// with a signed contribution (the classic hashing trick), and L2-normalizes
// the result.
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *HashEmbedder) embedOne(text string) []float32 {
	v := make([]float32, e.dimension)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		bucket := int(sum % uint64(e.dimension))
		sign := float32(1)
		if sum&(1<<63) != 0 {
			sign = -1
		}
		v[bucket] += sign
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v
}

func (e *HashEmbedder) Dimension() int { return e.dimension }

func (e *HashEmbedder) ID() string {
	return fmt.Sprintf("hash-fnv1a/%d", e.dimension)
}

// IsSemantic is false: hashed bag-of-tokens vectors carry lexical overlap
// signal, not learned distributional meaning, so the fast tier alone should
// never be reported as a genuine semantic match.
func (e *HashEmbedder) IsSemantic() bool { return false }
