package hybrid

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rawwerks/cass-go/internal/embedding"
	"github.com/rawwerks/cass-go/internal/textprep"
	"github.com/rawwerks/cass-go/internal/vectorindex"
)

// DefaultQualityBlendAlpha is the default weight given to the quality tier
// when both tiers produce a score for a candidate.
const DefaultQualityBlendAlpha = 0.7

// semanticCandidate is one message id ranked by the semantic path, with
// enough of its score breakdown to blend and re-sort.
type semanticCandidate struct {
	messageID int64
	fastScore float64
	qualScore float64
	hasQual   bool
}

// semanticSearch runs the two-tier semantic path: ANN top-N against
// the fast embedder's vector index, then an optional quality-tier rescore
// of those N candidates by re-embedding their stored content. It returns
// message ids ordered by the blended score, descending, ties broken by
// message_id ascending.
func semanticSearch(ctx context.Context, db *sql.DB, index *vectorindex.Index, fast, quality embedding.Embedder, query string, n int, filter *vectorindex.SemanticFilter, alpha float64) ([]int64, map[int64]float64, error) {
	if index == nil || fast == nil {
		return nil, nil, nil
	}
	if alpha <= 0 {
		alpha = DefaultQualityBlendAlpha
	}

	fastVecs, err := fast.Embed(ctx, []string{textprep.CanonicalizeForEmbedding(query)})
	if err != nil {
		return nil, nil, fmt.Errorf("hybrid: embed query with fast tier: %w", err)
	}
	hits, err := index.Search(fastVecs[0], n, filter)
	if err != nil {
		return nil, nil, fmt.Errorf("hybrid: fast-tier ANN search: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil, nil
	}

	candidates := make([]semanticCandidate, len(hits))
	for i, h := range hits {
		candidates[i] = semanticCandidate{messageID: int64(h.Row.MessageID), fastScore: float64(h.Score)}
	}

	if quality != nil {
		if err := rescoreWithQualityTier(ctx, db, quality, query, candidates); err != nil {
			return nil, nil, err
		}
	}

	final := make(map[int64]float64, len(candidates))
	for i, c := range candidates {
		blended := c.fastScore
		if c.hasQual {
			blended = alpha*c.qualScore + (1-alpha)*c.fastScore
		}
		candidates[i].fastScore = blended
		final[c.messageID] = blended
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].fastScore != candidates[j].fastScore {
			return candidates[i].fastScore > candidates[j].fastScore
		}
		return candidates[i].messageID < candidates[j].messageID
	})

	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.messageID
	}
	return ids, final, nil
}

// rescoreWithQualityTier fetches each candidate's stored content, re-embeds
// candidates and the query with the quality embedder, and fills in
// qualScore/hasQual in place.
func rescoreWithQualityTier(ctx context.Context, db *sql.DB, quality embedding.Embedder, query string, candidates []semanticCandidate) error {
	ids := make([]int64, len(candidates))
	for i, c := range candidates {
		ids[i] = c.messageID
	}
	contents, err := fetchMessageContents(ctx, db, ids)
	if err != nil {
		return err
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, textprep.CanonicalizeForEmbedding(query))
	order := make([]int64, 0, len(candidates))
	for _, c := range candidates {
		if content, ok := contents[c.messageID]; ok {
			texts = append(texts, textprep.CanonicalizeForEmbedding(content))
			order = append(order, c.messageID)
		}
	}
	if len(order) == 0 {
		return nil
	}

	vectors, err := quality.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("hybrid: embed candidates with quality tier: %w", err)
	}
	queryVec := vectors[0]
	candidateVecs := vectors[1:]

	scores := make(map[int64]float64, len(order))
	for i, id := range order {
		scores[id] = cosine(queryVec, candidateVecs[i])
	}
	for i := range candidates {
		if s, ok := scores[candidates[i].messageID]; ok {
			candidates[i].qualScore = s
			candidates[i].hasQual = true
		}
	}
	return nil
}

func fetchMessageContents(ctx context.Context, db *sql.DB, ids []int64) (map[int64]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := "SELECT id, content FROM messages WHERE id IN (" + strings.Join(placeholders, ", ") + ")"
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("hybrid: fetch candidate content: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]string, len(ids))
	for rows.Next() {
		var id int64
		var content string
		if err := rows.Scan(&id, &content); err != nil {
			return nil, fmt.Errorf("hybrid: scan candidate content: %w", err)
		}
		out[id] = content
	}
	return out, rows.Err()
}

// cosine is shared with vectorindex's reference scorer conceptually but
// kept local: this package scores query-vs-candidate pairs fetched from the
// relational store, not rows from a mapped index file.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
