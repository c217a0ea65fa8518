package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// watermarkKeyPrefix namespaces per-connector scan watermarks inside the
// shared meta table so a future unrelated meta key never collides.
const watermarkKeyPrefix = "last_scan_ts:"

// ScanWatermark returns the last recorded scan timestamp for a connector
// slug, or the zero Time if the connector has never completed a scan.
func (s *DB) ScanWatermark(connectorSlug string) (time.Time, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, watermarkKeyPrefix+connectorSlug).Scan(&v)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: read watermark for %q: %w", connectorSlug, err)
	}
	unix, err := parseUnix(v)
	if err != nil {
		return time.Time{}, fmt.Errorf("storage: malformed watermark for %q: %w", connectorSlug, err)
	}
	return time.Unix(unix, 0).UTC(), nil
}

// SetScanWatermark persists the high-water mtime/timestamp a connector
// reached, so the next scan can skip everything at or before it.
// Only advance the watermark after a scan completes without error — a
// partial scan must not move it forward.
func (s *DB) SetScanWatermark(connectorSlug string, t time.Time) error {
	_, err := s.db.Exec(`INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		watermarkKeyPrefix+connectorSlug, fmt.Sprintf("%d", t.Unix()))
	if err != nil {
		return fmt.Errorf("storage: set watermark for %q: %w", connectorSlug, err)
	}
	return nil
}

func parseUnix(v string) (int64, error) {
	var n int64
	_, err := fmt.Sscanf(v, "%d", &n)
	return n, err
}

// RebuildFTS drops and repopulates both FTS mirrors from the current
// messages table. This is the explicit "cass index --rebuild-fts" escape
// hatch for when a tokenizer bug or manual data edit leaves the
// mirrors out of sync with messages.
func (s *DB) RebuildFTS() error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: rebuild fts: begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"fts_prose", "fts_code"} {
		if _, err := tx.Exec(fmt.Sprintf(`INSERT INTO %s(%s) VALUES ('rebuild')`, table, table)); err != nil {
			return fmt.Errorf("storage: rebuild %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: rebuild fts: commit: %w", err)
	}
	return nil
}
