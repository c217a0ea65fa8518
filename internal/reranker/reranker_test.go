package reranker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestConfigValidateRejectsMissingEndpoint(t *testing.T) {
	t.Parallel()
	cfg := Config{Backend: BackendHTTP}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("want error for missing HTTP endpoint")
	}
}

func TestNewNoneBackendIsNoOp(t *testing.T) {
	t.Parallel()
	r, err := New(Config{Backend: BackendNone})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	scores, err := r.Rerank(context.Background(), "q", []string{"a", "b"})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(scores) != 2 {
		t.Fatalf("want 2 scores, got %d", len(scores))
	}
	if r.ID() != "none" {
		t.Errorf("want ID() == \"none\", got %q", r.ID())
	}
}

func TestHTTPRerankerPostsAndParsesScores(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body rerankRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if body.Query != "widget flakiness" {
			t.Errorf("unexpected query: %q", body.Query)
		}
		scores := make([]float64, len(body.Documents))
		for i := range scores {
			scores[i] = float64(len(body.Documents) - i)
		}
		_ = json.NewEncoder(w).Encode(rerankResponse{Scores: scores})
	}))
	defer srv.Close()

	r, err := New(Config{Backend: BackendHTTP, HTTP: HTTPConfig{Endpoint: srv.URL, Model: "ms-marco"}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	scores, err := r.Rerank(context.Background(), "widget flakiness", []string{"doc a", "doc b", "doc c"})
	if err != nil {
		t.Fatalf("rerank: %v", err)
	}
	if len(scores) != 3 || scores[0] != 3 || scores[2] != 1 {
		t.Fatalf("unexpected scores: %v", scores)
	}
}

func TestLookupRegisteredModel(t *testing.T) {
	t.Parallel()
	m, ok := LookupRegisteredModel("bge-reranker-v2")
	if !ok {
		t.Fatalf("want bge-reranker-v2 to be registered")
	}
	if m.ID != "bge-reranker-v2-m3" {
		t.Errorf("unexpected id: %q", m.ID)
	}
	if _, ok := LookupRegisteredModel("nonexistent"); ok {
		t.Errorf("want lookup of unknown model to fail")
	}
}
