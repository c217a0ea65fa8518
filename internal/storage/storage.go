// Package storage is the relational persistence layer: a single-writer
// SQLite store with deterministic migrations, append-only conversation
// insertion, and two full-text indexes kept in lockstep with the messages
// table. It is the storage half of the "Derived FTS as a separate module"
// design note — the FTS mirror is maintained by this package via
// triggers, not hidden behind a base-class insert.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// CurrentSchemaVersion is the schema version this build knows how to reach.
// Every migration advances the stored version by exactly one.
const CurrentSchemaVersion = 1

// RebuildRequiredError signals that the database file is corrupt, unreadable,
// or carries a schema version ahead of what this build understands. The
// caller owns deciding whether to invoke a rebuild; the original
// file has already been moved aside to BackupPath, never discarded.
type RebuildRequiredError struct {
	Path       string
	BackupPath string
	Reason     string
}

func (e *RebuildRequiredError) Error() string {
	return fmt.Sprintf("storage: rebuild required for %s (backed up to %s): %s", e.Path, e.BackupPath, e.Reason)
}

// DefaultDBPath returns ~/.cass/corpus.db, creating the parent directory.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("storage: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".cass")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("storage: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "corpus.db"), nil
}

// Open opens (or creates) a Store at path, moving aside and replacing a
// corrupt or too-new database rather than overwriting it silently.
// Use ":memory:" for an ephemeral database in tests.
func Open(path string) (*DB, error) {
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	} else {
		dsn = path + "?_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	// A single writer connection avoids SQLITE_BUSY under concurrent writes;
	// readers (search) still see a consistent snapshot via WAL.
	db.SetMaxOpenConns(1)

	s := &DB{db: db, path: path}
	if err := s.openOrRebuild(path); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB is the concrete Store implementation.
type DB struct {
	db   *sql.DB
	path string
}

func (s *DB) openOrRebuild(path string) error {
	version, err := s.readSchemaVersion()
	if err != nil {
		if path == ":memory:" {
			return s.initSchema()
		}
		backup, berr := s.backupCorrupt(path)
		if berr != nil {
			return fmt.Errorf("storage: failed reading schema_version and failed to back up %s: %w", path, berr)
		}
		return &RebuildRequiredError{Path: path, BackupPath: backup, Reason: err.Error()}
	}

	if version == 0 {
		return s.initSchema()
	}
	if version > CurrentSchemaVersion {
		if path == ":memory:" {
			return fmt.Errorf("storage: schema version %d is ahead of this build (%d)", version, CurrentSchemaVersion)
		}
		backup, berr := s.backupCorrupt(path)
		if berr != nil {
			return fmt.Errorf("storage: schema version %d is ahead of this build (%d), and backup failed: %w", version, CurrentSchemaVersion, berr)
		}
		return &RebuildRequiredError{Path: path, BackupPath: backup, Reason: fmt.Sprintf("schema version %d ahead of build %d", version, CurrentSchemaVersion)}
	}

	return s.migrateFrom(version)
}

func (s *DB) readSchemaVersion() (int, error) {
	var exists int
	err := s.db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='meta'`).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists == 0 {
		return 0, nil
	}
	var v string
	err = s.db.QueryRow(`SELECT value FROM meta WHERE key = 'schema_version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var version int
	if _, err := fmt.Sscanf(v, "%d", &version); err != nil {
		return 0, fmt.Errorf("storage: malformed schema_version %q: %w", v, err)
	}
	return version, nil
}

// backupCorrupt moves the existing file aside (never discards it) and
// returns the backup path.
func (s *DB) backupCorrupt(path string) (string, error) {
	_ = s.db.Close()
	backup := fmt.Sprintf("%s.bak-%d", path, time.Now().UnixNano())
	if err := os.Rename(path, backup); err != nil {
		return "", err
	}
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)")
	if err != nil {
		return "", err
	}
	db.SetMaxOpenConns(1)
	s.db = db
	return backup, nil
}

// Close releases the database connection pool.
func (s *DB) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("storage: close: %w", err)
	}
	return nil
}

// Conn exposes the underlying *sql.DB for packages (lexical, vectorindex
// builders) that need to run ad hoc read queries against the same file.
func (s *DB) Conn() *sql.DB { return s.db }
