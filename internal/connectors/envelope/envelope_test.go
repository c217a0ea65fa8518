package envelope

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rawwerks/cass-go/internal/connectors"
)

const sampleEnvelopeFile = `{"type":"user_message","timestamp":"2026-01-01T00:00:00Z","payload":{"role":"user","content":"investigate the flaky test","cwd":"/home/dev/proj"}}
{"type":"agent_message","timestamp":"2026-01-01T00:00:05Z","payload":{"role":"assistant","content":"looking now","model":"gpt-5-codex"}}
{"type":"noop"}
`

func TestEnvelopeScanFlattensPayload(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "rollout.jsonl")
	if err := os.WriteFile(path, []byte(sampleEnvelopeFile), 0o644); err != nil {
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
	if len(conv.Messages) != 2 {
		t.Fatalf("want 2 messages (noop envelope dropped), got %d", len(conv.Messages))
	}
	if conv.Workspace != "/home/dev/proj" {
		t.Errorf("want workspace from payload.cwd, got %q", conv.Workspace)
	}
	if conv.Messages[1].Author != "gpt-5-codex" {
		t.Errorf("want assistant author set to model, got %q", conv.Messages[1].Author)
	}
}
