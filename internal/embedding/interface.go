// Package embedding defines the embedder contract used by the semantic
// search path and provides two implementations: a dependency-free
// hash-based embedder always available as the fast tier, and an
// Ollama-backed embedder usable as the optional quality tier.
package embedding

import "context"

// Embedder converts text into dense vectors for the vector index and
// semantic search. Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to texts.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension is the fixed length of every vector this embedder produces.
	Dimension() int

	// ID uniquely identifies this embedder's model and configuration, so a
	// vector index built with one embedder can be detected as stale under
	// another (feeds the cvvi header's embedder_id_hash).
	ID() string

	// IsSemantic reports whether vectors from this embedder carry genuine
	// distributional meaning. A degraded or disabled embedder returns
	// false so callers can fall back to lexical-only search.
	IsSemantic() bool
}
