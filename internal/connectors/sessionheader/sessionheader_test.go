package sessionheader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rawwerks/cass-go/internal/connectors"
)

const sampleSessionFile = `{"type":"session","cwd":"/home/dev/pi","modelId":"claude-sonnet-4"}
{"type":"message","timestamp":"2026-02-01T00:00:00Z","message":{"role":"user","content":"why is this panicking"}}
{"type":"model_change","modelId":"claude-opus-4"}
{"type":"message","timestamp":"2026-02-01T00:00:05Z","message":{"role":"assistant","content":[{"type":"text","text":"nil pointer somewhere"}]}}
{"type":"thinking_level_change","thinkingLevel":"high"}
`

func TestSessionHeaderTracksModelChange(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "sess.jsonl")
	if err := os.WriteFile(path, []byte(sampleSessionFile), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	c := New()
	convs, _, err := c.Scan(connectors.ScanContext{DataRoot: dir})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("want 1 conversation, got %d", len(convs))
	}
	conv := convs[0]
	if conv.Workspace != "/home/dev/pi" {
		t.Errorf("want workspace from session header, got %q", conv.Workspace)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("want 2 messages, got %d", len(conv.Messages))
	}
	if conv.Messages[1].Author != "claude-opus-4" {
		t.Errorf("want assistant author updated by model_change, got %q", conv.Messages[1].Author)
	}
}
