package queryserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rawwerks/cass-go/internal/hybrid"
)

// fakeSearcher is a test double for the searcher interface.
type fakeSearcher struct {
	results []hybrid.Result
	err     error
	gotMode hybrid.Mode
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ hybrid.Filters, _, _ int, _ hybrid.FieldMask, mode hybrid.Mode) ([]hybrid.Result, error) {
	f.gotMode = mode
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newSearchTestServer(search searcher) *Server {
	return &Server{
		search:  search,
		cfg:     &Config{},
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func TestHandleSearch_MissingQuery(t *testing.T) {
	t.Parallel()

	s := newSearchTestServer(&fakeSearcher{})
	body, _ := json.Marshal(searchRequest{})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d — body: %s", w.Code, w.Body.String())
	}
}

func TestHandleSearch_InvalidJSON(t *testing.T) {
	t.Parallel()

	s := newSearchTestServer(&fakeSearcher{})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader([]byte("{not json")))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestHandleSearch_OK(t *testing.T) {
	t.Parallel()

	fake := &fakeSearcher{results: []hybrid.Result{
		{ConversationID: 1, MessageID: 2, Title: "fix the bug", Score: 0.9, MatchType: hybrid.MatchExact},
	}}
	s := newSearchTestServer(fake)

	body, _ := json.Marshal(searchRequest{Query: "bug", Mode: "lexical"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d — body: %s", w.Code, w.Body.String())
	}
	if fake.gotMode != hybrid.ModeLexical {
		t.Errorf("expected mode lexical to be forwarded, got %q", fake.gotMode)
	}

	var resp searchResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(resp.Results))
	}
	if resp.Results[0].Title != "fix the bug" {
		t.Errorf("title: expected %q, got %q", "fix the bug", resp.Results[0].Title)
	}
}

func TestHandleSearch_SearcherError(t *testing.T) {
	t.Parallel()

	s := newSearchTestServer(&fakeSearcher{err: errors.New("index unavailable")})

	body, _ := json.Marshal(searchRequest{Query: "bug"})
	req := httptest.NewRequest(http.MethodPost, "/api/search", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleSearch(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
}

func TestToHybridMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		want hybrid.Mode
	}{
		{"lexical", hybrid.ModeLexical},
		{"SEMANTIC", hybrid.ModeSemantic},
		{"Hybrid", hybrid.ModeHybrid},
		{"", hybrid.ModeAuto},
		{"bogus", hybrid.ModeAuto},
	}
	for _, tc := range cases {
		if got := toHybridMode(tc.raw); got != tc.want {
			t.Errorf("toHybridMode(%q): expected %q, got %q", tc.raw, tc.want, got)
		}
	}
}

func TestToFieldMask(t *testing.T) {
	t.Parallel()

	mask := toFieldMask([]string{"title", "content", "bogus"})
	if !mask.Title || !mask.Content {
		t.Errorf("expected Title and Content set, got %+v", mask)
	}
	if mask.Snippet || mask.SourcePath {
		t.Errorf("expected Snippet and SourcePath unset, got %+v", mask)
	}
}
