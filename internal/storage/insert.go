package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rawwerks/cass-go/internal/budget"
	"github.com/rawwerks/cass-go/internal/provenance"
	"github.com/rawwerks/cass-go/internal/recordmodel"
)

// InsertResult reports what UpsertConversation actually did, so callers
// (connectors, the index command) can print a useful scan summary.
type InsertResult struct {
	ConversationID int64
	MessagesAdded  int
	Created        bool
}

// UpsertConversation inserts a connector-normalized conversation, or appends
// any new messages to an existing one keyed on (agent_slug, external_id) —
// or, when external_id is empty, on source_path. The whole tree
// (agent/workspace/source lookup, conversation row, message rows, snippet
// rows, tags) is written in a single transaction so a crash mid-scan never
// leaves a partial conversation behind.
//
// Appends are idempotent: a message is inserted only when it is not already
// present in the stored conversation, so replaying a conversation object we
// already hold — a connector that filters per-file resends the whole
// history whenever the file's mtime advances — skips the stored overlap and
// inserts just the genuinely new indices. A connector that filtered
// per-message instead hands back only the new tail, re-sequenced densely
// from 0; those rows land after the stored ones, preserving density. The
// two shapes are told apart by whether the incoming batch's first message
// is already stored at its own idx.
func (s *DB) UpsertConversation(c *recordmodel.Conversation) (InsertResult, error) {
	c.Normalize()
	c.ApproxTokens = budget.EstimateConversation(c)

	tx, err := s.db.Begin()
	if err != nil {
		return InsertResult{}, fmt.Errorf("storage: upsert conversation: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	agentID, err := findOrInsertAgent(tx, c.AgentSlug)
	if err != nil {
		return InsertResult{}, err
	}
	var workspaceID sql.NullInt64
	if c.Workspace != "" {
		id, err := findOrInsertWorkspace(tx, c.Workspace)
		if err != nil {
			return InsertResult{}, err
		}
		workspaceID = sql.NullInt64{Int64: id, Valid: true}
	}
	sourceID := c.SourceID
	if sourceID == "" {
		sourceID = recordmodel.LocalSourceID
	}
	if err := ensureSource(tx, sourceID); err != nil {
		return InsertResult{}, err
	}

	existingID, existingCount, err := findExistingConversation(tx, agentID, c.ExternalID, c.SourcePath)
	if err != nil {
		return InsertResult{}, err
	}

	var convID int64
	created := false
	if existingID == 0 {
		convID, err = insertConversationRow(tx, c, agentID, workspaceID, sourceID)
		if err != nil {
			return InsertResult{}, err
		}
		created = true
	} else {
		convID = existingID
	}

	added := 0
	if created {
		for _, m := range c.Messages {
			if err := insertMessage(tx, convID, m.Idx, m); err != nil {
				return InsertResult{}, err
			}
			added++
		}
	} else if len(c.Messages) > 0 {
		// A replayed history carries the stored rows at their own idx; a
		// re-sequenced tail starts at idx 0 with a message we have never
		// seen. Probe the first incoming message to pick the append mode.
		replay, err := messageStoredAt(tx, convID, c.Messages[0].Idx, c.Messages[0])
		if err != nil {
			return InsertResult{}, err
		}
		for i, m := range c.Messages {
			if replay {
				stored, err := messageStoredAt(tx, convID, m.Idx, m)
				if err != nil {
					return InsertResult{}, err
				}
				if stored {
					continue
				}
				if err := insertMessage(tx, convID, m.Idx, m); err != nil {
					return InsertResult{}, err
				}
			} else {
				if err := insertMessage(tx, convID, existingCount+i, m); err != nil {
					return InsertResult{}, err
				}
			}
			added++
		}
	}

	if added > 0 {
		if err := touchConversationExtrema(tx, convID, c); err != nil {
			return InsertResult{}, err
		}
	}

	for _, t := range c.Tags {
		if err := attachTag(tx, convID, t); err != nil {
			return InsertResult{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return InsertResult{}, fmt.Errorf("storage: upsert conversation: commit: %w", err)
	}

	return InsertResult{ConversationID: convID, MessagesAdded: added, Created: created}, nil
}

// messageStoredAt reports whether the stored conversation already holds m at
// idx. Content and timestamp participate in the match so a brand-new message
// that merely reuses an old idx (the first row of a re-sequenced tail) is
// not mistaken for a replay of the stored row.
func messageStoredAt(tx *sql.Tx, convID int64, idx int, m recordmodel.Message) (bool, error) {
	ts := nullableUnix(m.CreatedAt)
	var one int
	err := tx.QueryRow(`SELECT 1 FROM messages
		WHERE conversation_id = ? AND idx = ? AND content = ?
		AND ((created_at IS NULL AND ? IS NULL) OR created_at = ?)`,
		convID, idx, m.Content, ts, ts).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage: check message idx=%d: %w", idx, err)
	}
	return true, nil
}

func findOrInsertAgent(tx *sql.Tx, slug string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM agents WHERE slug = ?`, slug).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("storage: find agent %q: %w", slug, err)
	}
	res, err := tx.Exec(`INSERT INTO agents (slug, name, kind, updated_at) VALUES (?, ?, 'cli', ?)`,
		slug, slug, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("storage: insert agent %q: %w", slug, err)
	}
	return res.LastInsertId()
}

func findOrInsertWorkspace(tx *sql.Tx, path string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM workspaces WHERE path = ?`, path).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("storage: find workspace %q: %w", path, err)
	}
	res, err := tx.Exec(`INSERT INTO workspaces (path, display_name) VALUES (?, ?)`, path, baseName(path))
	if err != nil {
		return 0, fmt.Errorf("storage: insert workspace %q: %w", path, err)
	}
	return res.LastInsertId()
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

// ensureSource makes sure a sources row exists for id. The reserved local
// source additionally gets its provenance probed — host label,
// platform, and machine id — refreshed on every call so a renamed or
// migrated host is reflected without a manual fixup.
func ensureSource(tx *sql.Tx, id string) error {
	if id == recordmodel.LocalSourceID {
		p := provenance.Local()
		_, err := tx.Exec(`INSERT INTO sources (id, kind, host_label, machine_id, platform)
			VALUES (?, 'local', ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				host_label = excluded.host_label,
				machine_id = excluded.machine_id,
				platform   = excluded.platform`,
			id, nullString(p.HostLabel), nullString(p.MachineID), nullString(p.Platform))
		if err != nil {
			return fmt.Errorf("storage: ensure source %q: %w", id, err)
		}
		return nil
	}
	_, err := tx.Exec(`INSERT OR IGNORE INTO sources (id, kind) VALUES (?, 'local')`, id)
	if err != nil {
		return fmt.Errorf("storage: ensure source %q: %w", id, err)
	}
	return nil
}

// findExistingConversation returns the conversation id and its current
// message count, or (0, 0, nil) if no matching conversation exists yet.
func findExistingConversation(tx *sql.Tx, agentID int64, externalID, sourcePath string) (int64, int, error) {
	var id int64
	var err error
	if externalID != "" {
		err = tx.QueryRow(`SELECT id FROM conversations WHERE agent_id = ? AND external_id = ?`, agentID, externalID).Scan(&id)
	} else {
		err = tx.QueryRow(`SELECT id FROM conversations WHERE agent_id = ? AND source_path = ? AND (external_id IS NULL OR external_id = '')`, agentID, sourcePath).Scan(&id)
	}
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("storage: find existing conversation: %w", err)
	}
	var count int
	if err := tx.QueryRow(`SELECT count(*) FROM messages WHERE conversation_id = ?`, id).Scan(&count); err != nil {
		return 0, 0, fmt.Errorf("storage: count messages for conversation %d: %w", id, err)
	}
	return id, count, nil
}

func insertConversationRow(tx *sql.Tx, c *recordmodel.Conversation, agentID int64, workspaceID sql.NullInt64, sourceID string) (int64, error) {
	metaJSON, err := marshalMetadata(c.Metadata)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`INSERT INTO conversations
		(agent_id, workspace_id, source_id, external_id, title, source_path, started_at, ended_at, approx_tokens, metadata_json, origin_host)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		agentID, nullableInt64(workspaceID), sourceID, nullString(c.ExternalID), nullString(c.Title), c.SourcePath,
		nullableUnix(c.StartedAt), nullableUnix(c.EndedAt), c.ApproxTokens, metaJSON, nullString(c.OriginHost))
	if err != nil {
		return 0, fmt.Errorf("storage: insert conversation: %w", err)
	}
	return res.LastInsertId()
}

func touchConversationExtrema(tx *sql.Tx, convID int64, c *recordmodel.Conversation) error {
	_, err := tx.Exec(`UPDATE conversations SET
		started_at = CASE WHEN started_at IS NULL OR ? < started_at THEN ? ELSE started_at END,
		ended_at   = CASE WHEN ended_at   IS NULL OR ? > ended_at   THEN ? ELSE ended_at   END,
		approx_tokens = ?
		WHERE id = ? AND ? IS NOT NULL`,
		nullableUnix(c.StartedAt), nullableUnix(c.StartedAt),
		nullableUnix(c.EndedAt), nullableUnix(c.EndedAt),
		c.ApproxTokens,
		convID, nullableUnix(c.StartedAt))
	if err != nil {
		return fmt.Errorf("storage: update conversation extrema: %w", err)
	}
	return nil
}

func insertMessage(tx *sql.Tx, convID int64, idx int, m recordmodel.Message) error {
	extraJSON, err := marshalMetadata(m.Extra)
	if err != nil {
		return err
	}
	res, err := tx.Exec(`INSERT INTO messages (conversation_id, idx, role, author, created_at, content, extra_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		convID, idx, m.Role.String(), nullString(m.Author), nullableUnix(m.CreatedAt), m.Content, extraJSON)
	if err != nil {
		return fmt.Errorf("storage: insert message idx=%d: %w", idx, err)
	}
	if len(m.Snippets) == 0 {
		return nil
	}
	messageID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("storage: message id idx=%d: %w", idx, err)
	}
	for _, sn := range m.Snippets {
		if _, err := tx.Exec(`INSERT INTO snippets (message_id, file_path, start_line, end_line, language, text)
			VALUES (?, ?, ?, ?, ?, ?)`, messageID, sn.FilePath, sn.StartLine, sn.EndLine, sn.Language, sn.Text); err != nil {
			return fmt.Errorf("storage: insert snippet for message %d: %w", messageID, err)
		}
	}
	return nil
}

func attachTag(tx *sql.Tx, convID int64, name string) error {
	if _, err := tx.Exec(`INSERT OR IGNORE INTO tags (name) VALUES (?)`, name); err != nil {
		return fmt.Errorf("storage: insert tag %q: %w", name, err)
	}
	var tagID int64
	if err := tx.QueryRow(`SELECT id FROM tags WHERE name = ?`, name).Scan(&tagID); err != nil {
		return fmt.Errorf("storage: find tag %q: %w", name, err)
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO conversation_tags (conversation_id, tag_id) VALUES (?, ?)`, convID, tagID); err != nil {
		return fmt.Errorf("storage: attach tag %q: %w", name, err)
	}
	return nil
}

func marshalMetadata(m map[string]string) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("storage: marshal metadata: %w", err)
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullableInt64(n sql.NullInt64) any {
	if !n.Valid {
		return nil
	}
	return n.Int64
}

func nullableUnix(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Unix()
}
