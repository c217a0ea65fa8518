// Package hybrid implements the unified search entry point: routes a
// query across the lexical path (internal/lexical) and the two-tier
// semantic path, fuses the two ranked lists with Reciprocal Rank Fusion,
// optionally reranks the top candidates with a cross-encoder, and applies a
// caller-specified field mask before returning results.
package hybrid

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"

	"github.com/rawwerks/cass-go/internal/budget"
	"github.com/rawwerks/cass-go/internal/embedding"
	"github.com/rawwerks/cass-go/internal/lexical"
	"github.com/rawwerks/cass-go/internal/otelspan"
	"github.com/rawwerks/cass-go/internal/reranker"
	"github.com/rawwerks/cass-go/internal/textprep"
	"github.com/rawwerks/cass-go/internal/vectorindex"
)

const instrumentationName = "github.com/rawwerks/cass-go/internal/hybrid"

// Mode selects which retrieval paths a Search call exercises.
type Mode string

const (
	ModeLexical  Mode = "lexical"
	ModeSemantic Mode = "semantic"
	ModeHybrid   Mode = "hybrid"
	ModeAuto     Mode = "auto"
)

// Filters restricts the search to a subset of the corpus, shared verbatim
// between the lexical and semantic paths so a compound filter behaves
// identically regardless of mode.
type Filters = lexical.Filters

// FieldMask restricts which fields are populated on returned Results, to
// bound response payload size. A zero-value FieldMask means
// "populate everything".
type FieldMask struct {
	Title      bool
	SourcePath bool
	Snippet    bool
	Content    bool
}

// full reports whether mask selects nothing at all, which this package
// treats as "no restriction" rather than "return nothing".
func (m FieldMask) full() bool {
	return !m.Title && !m.SourcePath && !m.Snippet && !m.Content
}

// MatchType classifies how a result was found.
type MatchType string

const (
	MatchExact            MatchType = "exact"
	MatchPrefix           MatchType = "prefix"
	MatchWildcard         MatchType = "wildcard"
	MatchFuzzy            MatchType = "fuzzy"
	MatchWildcardFallback MatchType = "wildcard_fallback"
	MatchSemantic         MatchType = "semantic"
)

// Result is one ranked hit from Search.
type Result struct {
	ConversationID int64
	MessageID      int64
	Title          string
	SourcePath     string
	Agent          string
	Workspace      string
	SourceID       string
	Snippet        string
	Content        string
	Score          float64
	MatchType      MatchType
	// Degraded records a degraded path taken during this search, e.g.
	// "semantic: no embedder or vector index configured" — empty when
	// nothing degraded.
	Degraded string
}

// Config tunes the fusion and rerank stages. Zero values resolve to the
// documented defaults.
type Config struct {
	// Alpha blends the quality tier into the fast tier's ANN score.
	Alpha float64
	// RRFK is the Reciprocal Rank Fusion constant.
	RRFK int
	// FastTopNMultiplier sets the semantic candidate pool size as a
	// multiple of the requested limit (N ~ 3x limit).
	FastTopNMultiplier int
	// RerankTopM bounds how many fused results are sent to the reranker.
	RerankTopM int
}

func (c Config) withDefaults() Config {
	if c.Alpha <= 0 {
		c.Alpha = DefaultQualityBlendAlpha
	}
	if c.RRFK <= 0 {
		c.RRFK = defaultRRFK
	}
	if c.FastTopNMultiplier <= 0 {
		c.FastTopNMultiplier = 3
	}
	if c.RerankTopM <= 0 {
		c.RerankTopM = 25
	}
	return c
}

// Searcher is the single entry point combining the lexical, semantic, and
// rerank stages.
type Searcher struct {
	db       *sql.DB
	lexical  *lexical.Searcher
	fast     embedding.Embedder
	quality  embedding.Embedder
	index    *vectorindex.Index
	reranker reranker.Reranker
	cfg      Config
	tracer   oteltrace.Tracer
}

// New constructs a Searcher. quality, index, and rr may all be nil: a nil
// quality embedder disables the quality tier's rescore, a nil index
// disables the semantic path entirely, and a nil rr (or one built from
// reranker.BackendNone) disables the rerank stage — each degrades
// gracefully rather than erroring. tel may be nil, in
// which case spans are recorded against the global no-op tracer.
func New(db *sql.DB, fast, quality embedding.Embedder, index *vectorindex.Index, rr reranker.Reranker, cfg Config, tel *otelspan.Telemetry) *Searcher {
	return &Searcher{
		db:       db,
		lexical:  lexical.NewSearcher(db),
		fast:     fast,
		quality:  quality,
		index:    index,
		reranker: rr,
		cfg:      cfg.withDefaults(),
		tracer:   tel.Tracer(instrumentationName),
	}
}

// Search runs query through the paths mode selects, fuses and optionally
// reranks the results, and returns up to limit Results starting at offset.
// Determinism: identical (db contents, query, filters, cfg) always produce
// identical ordering.
func (s *Searcher) Search(ctx context.Context, query string, filters Filters, limit, offset int, mask FieldMask, mode Mode) (_ []Result, err error) {
	ctx, end := otelspan.Start(ctx, s.tracer, "hybrid.search",
		attribute.String("mode", string(mode)), attribute.Int("limit", limit))
	defer end(&err)

	if mode == ModeAuto {
		mode = ModeHybrid
	}
	if limit <= 0 {
		limit = 20
	}

	var degraded string
	var lexicalIDs []int64
	var lexicalScores map[int64]float64
	var lexicalByID map[int64]lexical.Hit

	if mode == ModeLexical || mode == ModeHybrid {
		tokenMode := textprep.Resolve(textprep.Auto, query)
		hits, err := s.lexical.Search(query, tokenMode, filters, limit*s.cfg.FastTopNMultiplier, 0)
		if err != nil {
			return nil, fmt.Errorf("hybrid: lexical search: %w", err)
		}
		lexicalIDs = make([]int64, len(hits))
		lexicalScores = make(map[int64]float64, len(hits))
		lexicalByID = make(map[int64]lexical.Hit, len(hits))
		for i, h := range hits {
			lexicalIDs[i] = h.MessageID
			lexicalScores[h.MessageID] = h.Score
			lexicalByID[h.MessageID] = h
		}
	}

	// An empty (or all-whitespace) query has no lexical terms and embeds
	// to a meaningless vector; it must return no hits in semantic mode
	// rather than whatever the index's nearest neighbors to the
	// zero/canonicalized embedding happen to be.
	emptyQuery := lexical.EscapeQuery(query) == ""

	var semanticIDs []int64
	var semanticScores map[int64]float64
	if (mode == ModeSemantic || mode == ModeHybrid) && !emptyQuery {
		if s.fast == nil || s.index == nil {
			degraded = "semantic: no embedder or vector index configured"
		} else {
			semFilter, err := s.buildSemanticFilter(ctx, filters)
			if err != nil {
				return nil, err
			}
			n := limit * s.cfg.FastTopNMultiplier
			ids, scores, err := semanticSearch(ctx, s.db, s.index, s.fast, s.quality, query, n, semFilter, s.cfg.Alpha)
			if err != nil {
				return nil, err
			}
			semanticIDs, semanticScores = ids, scores
		}
	}

	var fused []rankedItem
	switch mode {
	case ModeLexical:
		fused = fuse(lexicalIDs, lexicalScores, nil, s.cfg.RRFK)
	case ModeSemantic:
		fused = fuse(nil, nil, semanticIDs, s.cfg.RRFK)
	default:
		fused = fuse(lexicalIDs, lexicalScores, semanticIDs, s.cfg.RRFK)
	}

	if offset > 0 && offset < len(fused) {
		fused = fused[offset:]
	} else if offset >= len(fused) {
		fused = nil
	}
	if len(fused) > limit {
		fused = fused[:limit]
	}

	results, err := s.materialize(ctx, fused, lexicalByID, semanticScores, mode, s.cfg.RRFK)
	if err != nil {
		return nil, err
	}

	results = s.maybeRerank(ctx, query, results)
	applyFieldMask(results, mask)
	if degraded != "" && len(results) > 0 {
		results[0].Degraded = degraded
	}
	return results, nil
}

func applyFieldMask(results []Result, mask FieldMask) {
	if mask.full() {
		return
	}
	for i := range results {
		if !mask.Title {
			results[i].Title = ""
		}
		if !mask.SourcePath {
			results[i].SourcePath = ""
		}
		if !mask.Snippet {
			results[i].Snippet = ""
		}
		if !mask.Content {
			results[i].Content = ""
		}
	}
}

// maybeRerank re-scores the top RerankTopM results with the cross-encoder
// reranker when one is configured, preserving the fused order for the
// remainder.
func (s *Searcher) maybeRerank(ctx context.Context, query string, results []Result) []Result {
	if s.reranker == nil || s.reranker.ID() == "none" {
		return results
	}
	m := s.cfg.RerankTopM
	if m > len(results) {
		m = len(results)
	}
	if m == 0 {
		return results
	}
	head := results[:m]
	tail := results[m:]

	var rerankErr error
	_, end := otelspan.Start(ctx, s.tracer, "hybrid.rerank", attribute.Int("candidates", len(head)))
	defer end(&rerankErr)

	docs := make([]string, len(head))
	for i, r := range head {
		docs[i] = r.Content
	}

	// Bound the candidate list sent to the reranker so a pathological fusion
	// pass (many long messages) never blows an HTTP request past the
	// backend's context window. Documents dropped this way fall back into
	// the unreranked tail rather than being discarded outright.
	trimmed := budget.TrimCandidates(query, docs, budget.DefaultMaxContextTokens)
	if len(trimmed) < len(head) {
		dropped := head[len(trimmed):]
		head = head[:len(trimmed)]
		docs = trimmed
		tail = append(append([]Result{}, dropped...), tail...)
	}

	scores, err := s.reranker.Rerank(ctx, query, docs)
	rerankErr = err
	if err != nil || len(scores) != len(head) {
		// Reranker unavailable mid-query: keep the fused order.
		return results
	}
	for i := range head {
		head[i].Score = scores[i]
	}
	sort.SliceStable(head, func(i, j int) bool {
		if head[i].Score != head[j].Score {
			return head[i].Score > head[j].Score
		}
		return head[i].MessageID < head[j].MessageID
	})

	out := make([]Result, 0, len(results))
	out = append(out, head...)
	out = append(out, tail...)
	return out
}
