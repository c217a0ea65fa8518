package storage

import (
	"database/sql"
	"fmt"
)

// migration is one idempotent, atomic step that advances the schema from
// its version-1 to its version. Every migration runs inside a single
// transaction, including any backfill it requires.
type migration struct {
	version int
	apply   func(tx *sql.Tx) error
}

// migrations is the ordered list of schema steps. Applying migrations[i]
// twice (by re-running migrateFrom with a stale version) is a no-op beyond
// the version counter, because every step uses CREATE TABLE IF NOT EXISTS /
// INSERT OR IGNORE style statements.
var migrations = []migration{
	{version: 1, apply: migrateV1},
}

// initSchema runs every migration in order against a brand-new database.
func (s *DB) initSchema() error {
	return s.migrateFrom(0)
}

// migrateFrom applies every migration with version > from, strictly in
// order, until CurrentSchemaVersion is reached.
func (s *DB) migrateFrom(from int) error {
	for _, m := range migrations {
		if m.version <= from {
			continue
		}
		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("storage: migration %d: begin: %w", m.version, err)
		}
		if err := m.apply(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("storage: migration %d: %w", m.version, err)
		}
		if _, err := tx.Exec(`INSERT INTO meta(key, value) VALUES ('schema_version', ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, fmt.Sprintf("%d", m.version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("storage: migration %d: stamp version: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("storage: migration %d: commit: %w", m.version, err)
		}
	}
	return nil
}

// migrateV1 creates the full initial schema: record-model tables, the
// scan-watermark table, and both FTS mirrors with their sync triggers.
func migrateV1(tx *sql.Tx) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			slug       TEXT NOT NULL UNIQUE,
			name       TEXT NOT NULL,
			version    TEXT,
			kind       TEXT NOT NULL DEFAULT 'cli',
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS workspaces (
			id           INTEGER PRIMARY KEY AUTOINCREMENT,
			path         TEXT NOT NULL UNIQUE,
			display_name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS sources (
			id          TEXT PRIMARY KEY,
			kind        TEXT NOT NULL DEFAULT 'local',
			host_label  TEXT,
			machine_id  TEXT,
			platform    TEXT,
			config_blob TEXT
		)`,
		`INSERT OR IGNORE INTO sources (id, kind) VALUES ('local', 'local')`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			agent_id      INTEGER NOT NULL REFERENCES agents(id),
			workspace_id  INTEGER REFERENCES workspaces(id),
			source_id     TEXT NOT NULL DEFAULT 'local' REFERENCES sources(id),
			external_id   TEXT,
			title         TEXT,
			source_path   TEXT NOT NULL,
			started_at    INTEGER,
			ended_at      INTEGER,
			approx_tokens INTEGER,
			metadata_json TEXT,
			origin_host   TEXT,
			UNIQUE (agent_id, external_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_source_path ON conversations (source_path)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_workspace ON conversations (workspace_id)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			idx             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			author          TEXT,
			created_at      INTEGER,
			content         TEXT NOT NULL,
			extra_json      TEXT,
			UNIQUE (conversation_id, idx)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id)`,
		`CREATE TABLE IF NOT EXISTS snippets (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			message_id INTEGER NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
			file_path  TEXT,
			start_line INTEGER,
			end_line   INTEGER,
			language   TEXT,
			text       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snippets_message ON snippets (message_id)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id   INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		)`,
		`CREATE TABLE IF NOT EXISTS conversation_tags (
			conversation_id INTEGER NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
			tag_id          INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (conversation_id, tag_id)
		)`,
		// Two FTS5 mirrors over the same rows: "prose" uses the stemming
		// porter tokenizer; "code" treats _ . / as in-token characters so
		// identifiers and paths tokenize as single terms.
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_prose USING fts5(
			content,
			content = 'messages',
			content_rowid = 'id',
			tokenize = 'porter unicode61'
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_code USING fts5(
			content,
			content = 'messages',
			content_rowid = 'id',
			tokenize = "unicode61 tokenchars '_./'"
		)`,
		`CREATE TRIGGER IF NOT EXISTS messages_ai AFTER INSERT ON messages BEGIN
			INSERT INTO fts_prose(rowid, content) VALUES (new.id, new.content);
			INSERT INTO fts_code(rowid, content) VALUES (new.id, new.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_ad AFTER DELETE ON messages BEGIN
			INSERT INTO fts_prose(fts_prose, rowid, content) VALUES ('delete', old.id, old.content);
			INSERT INTO fts_code(fts_code, rowid, content) VALUES ('delete', old.id, old.content);
		END`,
		`CREATE TRIGGER IF NOT EXISTS messages_au AFTER UPDATE ON messages BEGIN
			INSERT INTO fts_prose(fts_prose, rowid, content) VALUES ('delete', old.id, old.content);
			INSERT INTO fts_code(fts_code, rowid, content) VALUES ('delete', old.id, old.content);
			INSERT INTO fts_prose(rowid, content) VALUES (new.id, new.content);
			INSERT INTO fts_code(rowid, content) VALUES (new.id, new.content);
		END`,
	}
	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", firstLine(stmt), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	for i, c := range s {
		if c == '\n' {
			return s[:i]
		}
	}
	return s
}
