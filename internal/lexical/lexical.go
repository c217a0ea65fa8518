// Package lexical implements the full-text search path over the dual
// FTS5 mirrors maintained by internal/storage: query escaping, tokenizer
// routing by query mode, BM25 scoring, and snippet highlighting.
package lexical

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/rawwerks/cass-go/internal/textprep"
)

// Hit is one lexical search result, joined against its owning conversation's
// facets so callers never need a second query to render a result list.
type Hit struct {
	MessageID      int64
	ConversationID int64
	Role           string
	Content        string
	AgentSlug      string
	Workspace      string
	Title          string
	StartedAtUnix  int64
	// Score is the raw BM25 score; smaller is better per this convention.
	Score float64
	// Snippet is a <mark>-highlighted excerpt at the configured length.
	Snippet string
	// FixedSnippet is a 64-char-radius excerpt around the first match, with
	// no highlighting, for UI contexts that render their own markup.
	FixedSnippet string
}

// Filters restricts the lexical search to a subset of the corpus. A nil or
// empty field means "no restriction" on that dimension.
type Filters struct {
	Agents     []string
	Workspaces []string
	Roles      []string
	Sources    []string
	SinceUnix  *int64
	UntilUnix  *int64
}

// Searcher runs lexical queries against one storage connection.
type Searcher struct {
	db            *sql.DB
	snippetRadius int
	fixedRadius   int
}

// DefaultSnippetRadius is the configurable highlighted-snippet length (in
// characters on either side of the match) used when none is specified.
const DefaultSnippetRadius = 120

// FixedSnippetRadius is the fixed radius used for the UI-oriented
// unformatted snippet, independent of the configurable highlighted one.
const FixedSnippetRadius = 64

// NewSearcher wraps a raw *sql.DB (as returned by storage.DB.Conn()) for
// lexical queries.
func NewSearcher(db *sql.DB) *Searcher {
	return &Searcher{db: db, snippetRadius: DefaultSnippetRadius, fixedRadius: FixedSnippetRadius}
}

// WithSnippetRadius overrides the configurable highlighted-snippet radius.
func (s *Searcher) WithSnippetRadius(radius int) *Searcher {
	s.snippetRadius = radius
	return s
}

// Search runs query against the FTS mirror selected by mode, applying
// filters, and returns up to limit hits ordered ascending by BM25 score
// (smaller is better), offset by offset.
func (s *Searcher) Search(query string, mode textprep.Mode, f Filters, limit, offset int) ([]Hit, error) {
	mode = textprep.Resolve(mode, query)
	table := "fts_prose"
	if mode == textprep.Code {
		table = "fts_code"
	}

	matchExpr := EscapeQuery(query)
	if matchExpr == "" {
		return nil, nil
	}

	where, args := buildFilterClause(f)
	args = append([]any{matchExpr}, args...)
	args = append(args, limit, offset)

	sqlText := fmt.Sprintf(`
		SELECT m.id, m.conversation_id, m.role, m.content, a.slug, w.path, c.title,
		       coalesce(c.started_at, 0), bm25(%s) AS score
		FROM %s
		JOIN messages m ON m.id = %s.rowid
		JOIN conversations c ON c.id = m.conversation_id
		JOIN agents a ON a.id = c.agent_id
		LEFT JOIN workspaces w ON w.id = c.workspace_id
		WHERE %s MATCH ? %s
		ORDER BY score ASC
		LIMIT ? OFFSET ?`, table, table, table, table, where)

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("lexical: search: %w", err)
	}
	defer rows.Close()

	var hits []Hit
	for rows.Next() {
		var h Hit
		var workspace sql.NullString
		var title sql.NullString
		if err := rows.Scan(&h.MessageID, &h.ConversationID, &h.Role, &h.Content, &h.AgentSlug, &workspace, &title, &h.StartedAtUnix, &h.Score); err != nil {
			return nil, fmt.Errorf("lexical: scan hit: %w", err)
		}
		h.Workspace = workspace.String
		h.Title = title.String
		terms := queryTerms(query)
		h.Snippet = HighlightSnippet(h.Content, terms, s.snippetRadius)
		h.FixedSnippet = PlainSnippet(h.Content, terms, s.fixedRadius)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lexical: iterate hits: %w", err)
	}
	return hits, nil
}

// buildFilterClause renders Filters as additional SQL predicates, so a
// compound filter is expressible as a single query without post-filtering.
func buildFilterClause(f Filters) (string, []any) {
	var clauses []string
	var args []any

	if len(f.Agents) > 0 {
		clauses = append(clauses, "a.slug IN ("+placeholders(len(f.Agents))+")")
		for _, v := range f.Agents {
			args = append(args, v)
		}
	}
	if len(f.Workspaces) > 0 {
		clauses = append(clauses, "w.path IN ("+placeholders(len(f.Workspaces))+")")
		for _, v := range f.Workspaces {
			args = append(args, v)
		}
	}
	if len(f.Roles) > 0 {
		clauses = append(clauses, "m.role IN ("+placeholders(len(f.Roles))+")")
		for _, v := range f.Roles {
			args = append(args, v)
		}
	}
	if len(f.Sources) > 0 {
		clauses = append(clauses, "c.source_id IN ("+placeholders(len(f.Sources))+")")
		for _, v := range f.Sources {
			args = append(args, v)
		}
	}
	if f.SinceUnix != nil {
		clauses = append(clauses, "m.created_at >= ?")
		args = append(args, *f.SinceUnix)
	}
	if f.UntilUnix != nil {
		clauses = append(clauses, "m.created_at <= ?")
		args = append(args, *f.UntilUnix)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return "AND " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = "?"
	}
	return strings.Join(parts, ", ")
}
