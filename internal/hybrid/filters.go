package hybrid

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rawwerks/cass-go/internal/vectorindex"
)

// buildSemanticFilter resolves string-keyed Filters (agent slugs, workspace
// paths, role strings, source ids) into the numeric-keyed
// vectorindex.SemanticFilter the vector index's fixed-width rows require.
// A filter dimension left empty in f maps to a nil map, meaning
// "unrestricted" on that dimension — consistent with lexical.Filters.
func (s *Searcher) buildSemanticFilter(ctx context.Context, f Filters) (*vectorindex.SemanticFilter, error) {
	if len(f.Agents) == 0 && len(f.Workspaces) == 0 && len(f.Roles) == 0 && len(f.Sources) == 0 && f.SinceUnix == nil && f.UntilUnix == nil {
		return nil, nil
	}

	sf := &vectorindex.SemanticFilter{}

	if len(f.Agents) > 0 {
		ids, err := lookupIDs(ctx, s.db, "SELECT id FROM agents WHERE slug = ?", f.Agents)
		if err != nil {
			return nil, fmt.Errorf("hybrid: resolve agent filter: %w", err)
		}
		sf.AgentIDs = ids
	}
	if len(f.Workspaces) > 0 {
		ids, err := lookupIDs(ctx, s.db, "SELECT id FROM workspaces WHERE path = ?", f.Workspaces)
		if err != nil {
			return nil, fmt.Errorf("hybrid: resolve workspace filter: %w", err)
		}
		sf.WorkspaceIDs = ids
	}
	if len(f.Roles) > 0 {
		sf.Roles = make(map[uint8]bool, len(f.Roles))
		for _, r := range f.Roles {
			sf.Roles[roleCode(r)] = true
		}
	}
	if len(f.Sources) > 0 {
		sf.SourceIDs = make(map[uint32]bool, len(f.Sources))
		for _, src := range f.Sources {
			sf.SourceIDs[sourceIDHash(src)] = true
		}
	}
	if f.SinceUnix != nil {
		ms := *f.SinceUnix * 1000
		sf.SinceMs = &ms
	}
	if f.UntilUnix != nil {
		ms := *f.UntilUnix * 1000
		sf.UntilMs = &ms
	}
	return sf, nil
}

func lookupIDs(ctx context.Context, db *sql.DB, query string, values []string) (map[uint32]bool, error) {
	out := make(map[uint32]bool, len(values))
	for _, v := range values {
		var id int64
		if err := db.QueryRowContext(ctx, query, v).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				continue
			}
			return nil, err
		}
		out[uint32(id)] = true
	}
	return out, nil
}
