package reranker

import "context"

// noneReranker implements Reranker as a no-op, used when no cross-encoder
// backend is configured: hybrid search keeps its fused order without
// reranking.
type noneReranker struct{}

// Rerank returns a zero score for every document; callers that check
// Config.Backend == BackendNone should skip the rerank stage entirely
// rather than rely on these scores to mean anything.
func (noneReranker) Rerank(_ context.Context, _ string, documents []string) ([]float64, error) {
	return make([]float64, len(documents)), nil
}

func (noneReranker) ID() string { return "none" }
