package hybrid

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rawwerks/cass-go/internal/lexical"
)

// facet holds the conversation/agent/workspace context for one message,
// fetched once per Search call for the message ids fuse() produced that
// are not already lexical hits — i.e. the semantic-only hits that never
// went through the lexical join.
type facet struct {
	conversationID int64
	title          string
	sourcePath     string
	agent          string
	workspace      string
	sourceID       string
	content        string
}

func (s *Searcher) materialize(ctx context.Context, fused []rankedItem, lexicalByID map[int64]lexical.Hit, semanticScores map[int64]float64, mode Mode, k int) ([]Result, error) {
	if len(fused) == 0 {
		return nil, nil
	}

	needFacets := make([]int64, 0, len(fused))
	for _, it := range fused {
		if _, ok := lexicalByID[it.messageID]; !ok {
			needFacets = append(needFacets, it.messageID)
		}
	}
	facets, err := fetchFacets(ctx, s.db, needFacets)
	if err != nil {
		return nil, err
	}

	results := make([]Result, len(fused))
	for i, it := range fused {
		r := Result{MessageID: it.messageID, Score: fusedScore(it, k)}
		if hit, ok := lexicalByID[it.messageID]; ok {
			r.ConversationID = hit.ConversationID
			r.Title = hit.Title
			r.Agent = hit.AgentSlug
			r.Workspace = hit.Workspace
			r.Content = hit.Content
			r.Snippet = hit.Snippet
			r.MatchType = MatchExact
		} else if f, ok := facets[it.messageID]; ok {
			r.ConversationID = f.conversationID
			r.Title = f.title
			r.SourcePath = f.sourcePath
			r.Agent = f.agent
			r.Workspace = f.workspace
			r.SourceID = f.sourceID
			r.Content = f.content
			r.MatchType = MatchSemantic
		}
		if it.semanticRank > 0 && it.lexicalRank > 0 {
			// Present in both lists: neither a pure lexical exact match nor
			// a semantic-only hit, but "exact" best reflects that the
			// lexical path did find literal terms in it.
			r.MatchType = MatchExact
		} else if it.semanticRank > 0 && it.lexicalRank == 0 {
			r.MatchType = MatchSemantic
		}
		results[i] = r
	}
	return results, nil
}

func fetchFacets(ctx context.Context, db *sql.DB, ids []int64) (map[int64]facet, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`
		SELECT m.id, m.content, c.id, coalesce(c.title, ''), c.source_path, a.slug, coalesce(w.path, ''), c.source_id
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		JOIN agents a ON a.id = c.agent_id
		LEFT JOIN workspaces w ON w.id = c.workspace_id
		WHERE m.id IN (%s)`, strings.Join(placeholders, ", "))

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("hybrid: fetch result facets: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]facet, len(ids))
	for rows.Next() {
		var id int64
		var f facet
		if err := rows.Scan(&id, &f.content, &f.conversationID, &f.title, &f.sourcePath, &f.agent, &f.workspace, &f.sourceID); err != nil {
			return nil, fmt.Errorf("hybrid: scan result facet: %w", err)
		}
		out[id] = f
	}
	return out, rows.Err()
}
