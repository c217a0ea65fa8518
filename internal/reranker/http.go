package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// httpReranker calls an externally hosted cross-encoder scoring service.
// The registry of well-known models this service might be serving
// (ms-marco-minilm-l6-v2, bge-reranker-v2-m3, jina-reranker-v1-turbo-en,
// jina-reranker-v2-base-multilingual) lives in registry.go; this type only
// needs the endpoint and is agnostic to which one answers.
type httpReranker struct {
	endpoint string
	model    string
	client   *http.Client
}

func newHTTPReranker(cfg HTTPConfig) *httpReranker {
	return &httpReranker{
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		client:   &http.Client{Timeout: 30 * time.Second},
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

type rerankResponse struct {
	Scores []float64 `json:"scores"`
	Error  string    `json:"error,omitempty"`
}

// Rerank posts query and documents to the scoring service's /rerank
// endpoint and returns one score per document, parallel to documents.
func (r *httpReranker) Rerank(ctx context.Context, query string, documents []string) ([]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(rerankRequest{Query: query, Documents: documents})
	if err != nil {
		return nil, fmt.Errorf("reranker: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/rerank", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("reranker: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("reranker: request failed: %w", err)
	}
	defer resp.Body.Close()

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("reranker: decode response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, fmt.Errorf("reranker: %s", msg)
	}
	if len(result.Scores) != len(documents) {
		return nil, fmt.Errorf("reranker: expected %d scores, got %d", len(documents), len(result.Scores))
	}
	return result.Scores, nil
}

func (r *httpReranker) ID() string {
	if r.model != "" {
		return "http/" + r.model
	}
	return "http/" + r.endpoint
}
