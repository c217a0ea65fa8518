package export

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type sourceConversation struct {
	id         int64
	agentSlug  string
	workspace  sql.NullString
	sourceID   string
	title      sql.NullString
	sourcePath string
	startedAt  sql.NullInt64
	endedAt    sql.NullInt64
}

type sourceMessage struct {
	id        int64
	idx       int
	role      string
	author    sql.NullString
	createdAt sql.NullInt64
	content   string
}

// buildConversationQuery assembles the filtered conversation scan (agent,
// workspace, and time-range filters).
func buildConversationQuery(opts Options) (string, []any) {
	q := strings.Builder{}
	q.WriteString(`
		SELECT c.id, a.slug, w.path, c.source_id, c.title, c.source_path, c.started_at, c.ended_at
		FROM conversations c
		JOIN agents a ON a.id = c.agent_id
		LEFT JOIN workspaces w ON w.id = c.workspace_id
		WHERE 1 = 1`)
	var args []any
	if len(opts.AgentSlugs) > 0 {
		q.WriteString(" AND a.slug IN (" + placeholders(len(opts.AgentSlugs)) + ")")
		for _, s := range opts.AgentSlugs {
			args = append(args, s)
		}
	}
	if len(opts.WorkspacePaths) > 0 {
		q.WriteString(" AND w.path IN (" + placeholders(len(opts.WorkspacePaths)) + ")")
		for _, w := range opts.WorkspacePaths {
			args = append(args, w)
		}
	}
	if opts.SinceUnix != nil {
		// Strict >: a conversation started exactly at the bound is excluded.
		q.WriteString(" AND c.started_at > ?")
		args = append(args, *opts.SinceUnix)
	}
	if opts.UntilUnix != nil {
		q.WriteString(" AND c.started_at <= ?")
		args = append(args, *opts.UntilUnix)
	}
	q.WriteString(" ORDER BY c.id ASC")
	return q.String(), args
}

func placeholders(n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = "?"
	}
	return strings.Join(ph, ", ")
}

// CopyFiltered reads conversations and messages matching opts from src,
// rewrites paths per opts.PathMode, and writes them into a fresh derived
// database at dst. Every row lands inside one write transaction; both FTS
// mirrors are populated as each message is inserted.
func CopyFiltered(ctx context.Context, src, dst *sql.DB, opts Options) (Result, error) {
	if err := createDerivedSchema(dst); err != nil {
		return Result{}, err
	}

	query, args := buildConversationQuery(opts)
	rows, err := src.QueryContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("export: query conversations: %w", err)
	}
	var convs []sourceConversation
	for rows.Next() {
		var c sourceConversation
		if err := rows.Scan(&c.id, &c.agentSlug, &c.workspace, &c.sourceID, &c.title, &c.sourcePath, &c.startedAt, &c.endedAt); err != nil {
			rows.Close()
			return Result{}, fmt.Errorf("export: scan conversation: %w", err)
		}
		convs = append(convs, c)
	}
	if cerr := rows.Err(); cerr != nil {
		rows.Close()
		return Result{}, fmt.Errorf("export: iterate conversations: %w", cerr)
	}
	rows.Close()

	tx, err := dst.BeginTx(ctx, nil)
	if err != nil {
		return Result{}, fmt.Errorf("export: begin derived tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	exportedAt := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES ('schema_version', '1'), ('exported_at', ?)`,
		exportedAt.Format(time.RFC3339)); err != nil {
		return Result{}, fmt.Errorf("export: stamp meta: %w", err)
	}

	result := Result{ExportedAt: exportedAt}
	for _, c := range convs {
		workspace := ""
		if c.workspace.Valid {
			workspace = c.workspace.String
		}
		rewritten := rewritePath(opts.pathMode(), workspace, c.sourcePath)

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO conversations (id, agent_slug, workspace, source_id, title, source_path, started_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.id, c.agentSlug, nullableString(c.workspace), c.sourceID, nullableString(c.title), rewritten,
			nullableInt(c.startedAt), nullableInt(c.endedAt)); err != nil {
			return Result{}, fmt.Errorf("export: insert conversation %d: %w", c.id, err)
		}
		result.ConversationCount++

		n, err := copyMessages(ctx, tx, src, c.id)
		if err != nil {
			return Result{}, err
		}
		result.MessageCount += n
	}

	if err := tx.Commit(); err != nil {
		return Result{}, fmt.Errorf("export: commit derived tx: %w", err)
	}
	return result, nil
}

func copyMessages(ctx context.Context, tx *sql.Tx, src *sql.DB, conversationID int64) (int, error) {
	rows, err := src.QueryContext(ctx, `
		SELECT id, idx, role, author, created_at, content
		FROM messages WHERE conversation_id = ? ORDER BY idx ASC`, conversationID)
	if err != nil {
		return 0, fmt.Errorf("export: query messages for conversation %d: %w", conversationID, err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var m sourceMessage
		if err := rows.Scan(&m.id, &m.idx, &m.role, &m.author, &m.createdAt, &m.content); err != nil {
			return count, fmt.Errorf("export: scan message: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, idx, role, author, created_at, content)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			m.id, conversationID, m.idx, m.role, nullableString(m.author), nullableInt(m.createdAt), m.content); err != nil {
			return count, fmt.Errorf("export: insert message %d: %w", m.id, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO fts_prose(rowid, content) VALUES (?, ?)`, m.id, m.content); err != nil {
			return count, fmt.Errorf("export: insert fts_prose for message %d: %w", m.id, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO fts_code(rowid, content) VALUES (?, ?)`, m.id, m.content); err != nil {
			return count, fmt.Errorf("export: insert fts_code for message %d: %w", m.id, err)
		}
		count++
	}
	return count, rows.Err()
}

func nullableString(s sql.NullString) any {
	if !s.Valid {
		return nil
	}
	return s.String
}

func nullableInt(i sql.NullInt64) any {
	if !i.Valid {
		return nil
	}
	return i.Int64
}
