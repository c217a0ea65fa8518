// Package opencodedb implements the OpenCode-style connector:
// sessions and messages stored as rows in a per-user SQLite database rather
// than flat files. since_ts filters directly against the stored timestamp
// column instead of file mtime.
package opencodedb

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rawwerks/cass-go/internal/connectors"
	"github.com/rawwerks/cass-go/internal/recordmodel"

	_ "modernc.org/sqlite"
)

const (
	slug   = "opencode"
	dbName = "opencode.db"
)

// New returns the OpenCode-style connector.
func New() connectors.Connector { return connector{} }

type connector struct{}

func (connector) Slug() string { return slug }

func (connector) Detect(root string) (connectors.DetectResult, error) {
	path := filepath.Join(root, dbName)
	if _, err := os.Stat(path); err != nil {
		return connectors.DetectResult{}, nil
	}
	return connectors.DetectResult{Detected: true, Evidence: []string{path}}, nil
}

func (c connector) Scan(ctx connectors.ScanContext) ([]*recordmodel.Conversation, connectors.ScanStats, error) {
	var stats connectors.ScanStats
	path := filepath.Join(ctx.DataRoot, dbName)
	if len(ctx.ScanRoots) == 1 {
		path = ctx.ScanRoots[0]
	}

	log := ctx.Logger
	if log == nil {
		log = slog.Default()
	}

	if info, err := os.Stat(path); err == nil {
		stats.BytesRead = info.Size()
	}

	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro&_pragma=foreign_keys(1)")
	if err != nil {
		log.Warn("opencodedb: could not open database", "path", path, "error", err)
		return nil, stats, nil
	}
	defer db.Close()

	sessions, err := db.Query(`SELECT id, cwd, title FROM sessions`)
	if err != nil {
		log.Warn("opencodedb: could not query sessions", "path", path, "error", err)
		return nil, stats, nil
	}
	defer sessions.Close()

	var out []*recordmodel.Conversation
	for sessions.Next() {
		var sessionID, cwd, title string
		if err := sessions.Scan(&sessionID, &cwd, &title); err != nil {
			log.Warn("opencodedb: malformed session row", "error", err)
			stats.FilesSkipped++
			continue
		}
		conv, err := c.scanSession(db, path, sessionID, cwd, title, ctx.SinceTS, log)
		if err != nil {
			log.Warn("opencodedb: skipping unreadable session", "session", sessionID, "error", err)
			stats.FilesSkipped++
			continue
		}
		if conv == nil || len(conv.Messages) == 0 {
			continue
		}
		out = append(out, conv)
	}
	if err := sessions.Err(); err != nil {
		log.Warn("opencodedb: error iterating sessions", "error", err)
	}
	return out, stats, nil
}

func (c connector) scanSession(db *sql.DB, path, sessionID, cwd, title string, sinceTS *time.Time, log *slog.Logger) (*recordmodel.Conversation, error) {
	query := `SELECT role, author, content, created_at FROM messages WHERE session_id = ? ORDER BY id ASC`
	rows, err := db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("opencodedb: query messages for session %s: %w", sessionID, err)
	}
	defer rows.Close()

	conv := &recordmodel.Conversation{
		AgentSlug:  slug,
		Workspace:  cwd,
		ExternalID: sessionID,
		Title:      title,
		SourcePath: path,
	}

	for rows.Next() {
		var role, author, content string
		var createdAtUnix int64
		if err := rows.Scan(&role, &author, &content, &createdAtUnix); err != nil {
			log.Debug("opencodedb: malformed message row", "session", sessionID, "error", err)
			continue
		}
		if strings.TrimSpace(content) == "" {
			continue
		}
		ts := time.Unix(createdAtUnix, 0).UTC()
		if sinceTS != nil && !ts.After(*sinceTS) {
			continue
		}
		conv.Messages = append(conv.Messages, recordmodel.Message{
			Role:      recordmodel.NewRole(role),
			Author:    author,
			CreatedAt: &ts,
			Content:   content,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("opencodedb: iterate messages for session %s: %w", sessionID, err)
	}

	conv.Normalize()
	if conv.Title == "" {
		base := ""
		if cwd != "" {
			base = filepath.Base(cwd)
		}
		conv.Title = recordmodel.DeriveTitle(conv.Messages, base, sessionID)
	}
	return conv, nil
}
