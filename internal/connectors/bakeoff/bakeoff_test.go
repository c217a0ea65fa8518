// Package bakeoff runs every connector's Scan over a small fixture corpus of
// its own on-disk format and asserts the shared connector contract
// uniformly, instead of duplicating the same assertions in each
// connector's own test file.
package bakeoff

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rawwerks/cass-go/internal/connectors"
	"github.com/rawwerks/cass-go/internal/connectors/cacheblob"
	"github.com/rawwerks/cass-go/internal/connectors/claudecode"
	"github.com/rawwerks/cass-go/internal/connectors/envelope"
	"github.com/rawwerks/cass-go/internal/connectors/opencodedb"
	"github.com/rawwerks/cass-go/internal/connectors/sessionheader"
	"github.com/rawwerks/cass-go/internal/recordmodel"

	_ "modernc.org/sqlite"
)

// contestant is one connector entered into the bake-off: a constructor and a
// fixture writer that lays down a 3-message conversation under dir, with
// messages timestamped t0 < t1 < t2 so since_ts filtering has something to
// bite on.
type contestant struct {
	slug    string
	connect func() connectors.Connector
	seed    func(t *testing.T, dir string, t0, t1, t2 time.Time)
}

var t0 = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
var t1 = t0.Add(10 * time.Minute)
var t2 = t0.Add(20 * time.Minute)

var contestants = []contestant{
	{slug: "claude-code", connect: claudecode.New, seed: seedClaudeCode},
	{slug: "codex", connect: envelope.New, seed: seedCodexEnvelope},
	{slug: "amp", connect: cacheblob.New, seed: seedCacheBlob},
	{slug: "pi-agent", connect: sessionheader.New, seed: seedSessionHeader},
	{slug: "opencode", connect: opencodedb.New, seed: seedOpenCodeDB},
}

// TestEveryConnectorRespectsCoreInvariants runs the shared invariant set
// against every connector's own fixture format: dense zero-based message
// indices after Normalize, no blank-content messages surviving, the
// since_ts boundary excluding a message whose timestamp equals the
// watermark exactly (strict >), and a Slug() that matches what the
// connector actually reports.
func TestEveryConnectorRespectsCoreInvariants(t *testing.T) {
	for _, tc := range contestants {
		tc := tc
		t.Run(tc.slug, func(t *testing.T) {
			t.Parallel()
			dir := t.TempDir()
			tc.seed(t, dir, t0, t1, t2)
			c := tc.connect()

			if c.Slug() != tc.slug {
				t.Fatalf("want slug %q, got %q", tc.slug, c.Slug())
			}

			full, fullStats, err := c.Scan(connectors.ScanContext{DataRoot: dir})
			if err != nil {
				t.Fatalf("full scan: %v", err)
			}
			if len(full) != 1 {
				t.Fatalf("want 1 conversation from the fixture corpus, got %d", len(full))
			}
			if fullStats.FilesSkipped != 0 {
				t.Errorf("want no skipped files scanning a well-formed fixture, got %d", fullStats.FilesSkipped)
			}
			if fullStats.BytesRead <= 0 {
				t.Errorf("want a positive byte count for a non-empty fixture, got %d", fullStats.BytesRead)
			}
			assertDenseIdx(t, full[0])
			if len(full[0].Messages) != 3 {
				t.Fatalf("want 3 messages in the full scan, got %d", len(full[0].Messages))
			}

			// since_ts == t1 must exclude the message timestamped exactly t1
			// (strict >), leaving only the message at t2.
			sinceT1 := t1
			delta, _, err := c.Scan(connectors.ScanContext{DataRoot: dir, SinceTS: &sinceT1})
			if err != nil {
				t.Fatalf("delta scan: %v", err)
			}
			if len(delta) != 1 {
				t.Fatalf("want 1 conversation from the delta scan, got %d", len(delta))
			}
			assertDenseIdx(t, delta[0])
			if len(delta[0].Messages) != 1 {
				t.Fatalf("want exactly the one message after since_ts=t1, got %d", len(delta[0].Messages))
			}
			for _, m := range delta[0].Messages {
				if m.CreatedAt == nil || !m.CreatedAt.After(sinceT1) {
					t.Errorf("want every delta message strictly after since_ts, got %v", m.CreatedAt)
				}
			}
		})
	}
}

func assertDenseIdx(t *testing.T, conv *recordmodel.Conversation) {
	t.Helper()
	for i, m := range conv.Messages {
		if m.Idx != i {
			t.Errorf("want message %d to have idx %d, got %d", i, i, m.Idx)
		}
		if m.Content == "" {
			t.Errorf("want no blank-content messages to survive Normalize, got one at idx %d", i)
		}
	}
}

func seedClaudeCode(t *testing.T, dir string, t0, t1, t2 time.Time) {
	t.Helper()
	projectDir := filepath.Join(dir, "-home-dev-bakeoff")
	mkdirAll(t, projectDir)
	content := `{"type":"session-start","sessionId":"bakeoff-1","cwd":"/home/dev/bakeoff"}
{"type":"user","timestamp":"` + rfc3339(t0) + `","message":{"role":"user","content":"first message"}}
{"type":"assistant","timestamp":"` + rfc3339(t1) + `","message":{"role":"assistant","content":"second message"}}
{"type":"user","timestamp":"` + rfc3339(t2) + `","message":{"role":"user","content":"third message"}}
`
	writeFile(t, filepath.Join(projectDir, "bakeoff.jsonl"), content)
}

func seedCodexEnvelope(t *testing.T, dir string, t0, t1, t2 time.Time) {
	t.Helper()
	content := `{"type":"user","timestamp":"` + rfc3339(t0) + `","payload":{"id":"bakeoff-1","role":"user","content":"first message","cwd":"/home/dev/bakeoff"}}
{"type":"assistant","timestamp":"` + rfc3339(t1) + `","payload":{"role":"assistant","content":"second message"}}
{"type":"user","timestamp":"` + rfc3339(t2) + `","payload":{"role":"user","content":"third message"}}
`
	writeFile(t, filepath.Join(dir, "bakeoff.jsonl"), content)
}

func seedCacheBlob(t *testing.T, dir string, t0, t1, t2 time.Time) {
	t.Helper()
	content := `{
		"sessionId": "bakeoff-1",
		"cwd": "/home/dev/bakeoff",
		"title": "bakeoff",
		"messages": [
			{"role": "user", "content": "first message", "timestamp": "` + rfc3339(t0) + `"},
			{"role": "assistant", "content": "second message", "timestamp": "` + rfc3339(t1) + `"},
			{"role": "user", "content": "third message", "timestamp": "` + rfc3339(t2) + `"}
		]
	}`
	writeFile(t, filepath.Join(dir, "bakeoff.json"), content)
}

func seedSessionHeader(t *testing.T, dir string, t0, t1, t2 time.Time) {
	t.Helper()
	content := `{"type":"session","cwd":"/home/dev/bakeoff","modelId":"model-a"}
{"type":"message","timestamp":"` + rfc3339(t0) + `","message":{"role":"user","content":"first message"}}
{"type":"message","timestamp":"` + rfc3339(t1) + `","message":{"role":"assistant","content":"second message"}}
{"type":"message","timestamp":"` + rfc3339(t2) + `","message":{"role":"user","content":"third message"}}
`
	writeFile(t, filepath.Join(dir, "bakeoff.jsonl"), content)
}

func seedOpenCodeDB(t *testing.T, dir string, t0, t1, t2 time.Time) {
	t.Helper()
	path := filepath.Join(dir, "opencode.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open opencode fixture db: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE sessions (id TEXT PRIMARY KEY, cwd TEXT, title TEXT)`,
		`CREATE TABLE messages (id INTEGER PRIMARY KEY AUTOINCREMENT, session_id TEXT, role TEXT, author TEXT, content TEXT, created_at INTEGER)`,
		`INSERT INTO sessions (id, cwd, title) VALUES ('bakeoff-1', '/home/dev/bakeoff', 'bakeoff')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("seed opencode fixture schema: %v", err)
		}
	}
	inserts := []struct {
		role, content string
		ts            time.Time
	}{
		{"user", "first message", t0},
		{"assistant", "second message", t1},
		{"user", "third message", t2},
	}
	for _, m := range inserts {
		if _, err := db.Exec(`INSERT INTO messages (session_id, role, author, content, created_at) VALUES (?, ?, '', ?, ?)`,
			"bakeoff-1", m.role, m.content, m.ts.Unix()); err != nil {
			t.Fatalf("seed opencode fixture message: %v", err)
		}
	}
}

func rfc3339(t time.Time) string { return t.Format(time.RFC3339) }

func mkdirAll(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
