package export

import (
	"database/sql"
	"fmt"
)

// createDerivedSchema builds the restricted export schema:
// conversations and messages projected down to the columns a reader needs,
// plus the same dual FTS mirror shape the primary store keeps, and a meta
// table recording schema_version/exported_at.
func createDerivedSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE conversations (
			id          INTEGER PRIMARY KEY,
			agent_slug  TEXT NOT NULL,
			workspace   TEXT,
			source_id   TEXT NOT NULL,
			title       TEXT,
			source_path TEXT NOT NULL,
			started_at  INTEGER,
			ended_at    INTEGER
		)`,
		`CREATE TABLE messages (
			id              INTEGER PRIMARY KEY,
			conversation_id INTEGER NOT NULL REFERENCES conversations(id),
			idx             INTEGER NOT NULL,
			role            TEXT NOT NULL,
			author          TEXT,
			created_at      INTEGER,
			content         TEXT NOT NULL
		)`,
		`CREATE VIRTUAL TABLE fts_prose USING fts5(
			content,
			content = 'messages',
			content_rowid = 'id',
			tokenize = 'porter unicode61'
		)`,
		`CREATE VIRTUAL TABLE fts_code USING fts5(
			content,
			content = 'messages',
			content_rowid = 'id',
			tokenize = "unicode61 tokenchars '_./'"
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("export: create derived schema: %w", err)
		}
	}
	return nil
}
