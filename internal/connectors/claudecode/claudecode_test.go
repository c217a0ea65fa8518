package claudecode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rawwerks/cass-go/internal/connectors"
)

func scanContextFor(root string) connectors.ScanContext {
	return connectors.ScanContext{DataRoot: root}
}

func writeSessionFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write session file: %v", err)
	}
	return path
}

const sampleSession = `{"type":"session-start","sessionId":"abc123","cwd":"/home/dev/widgets"}
{"type":"summary","summary":"ignored"}
{"type":"user","message":{"role":"user","content":"Fix the widget_factory.go bug"}}
{"type":"assistant","message":{"role":"assistant","model":"claude-opus","content":[{"type":"thinking","thinking":"let me look"},{"type":"tool_use","id":"t1","name":"bash","input":{"command":"ls"}},{"type":"text","text":"Found it."}]}}
{"type":"user","message":{"role":"user","content":[{"type":"tool_result","tool_output":"file contents"}]}}
not even json
`

func TestScanFlattensAndSkipsAdminEvents(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "-home-dev-widgets")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	path := writeSessionFile(t, projectDir, "session1.jsonl", sampleSession)

	c := New()
	convs, _, err := c.Scan(scanContextFor(dir))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(convs) != 1 {
		t.Fatalf("want 1 conversation, got %d", len(convs))
	}
	conv := convs[0]
	if conv.SourcePath != path {
		t.Errorf("want source path %s, got %s", path, conv.SourcePath)
	}
	if conv.Workspace != "/home/dev/widgets" {
		t.Errorf("want workspace captured from cwd, got %q", conv.Workspace)
	}
	if len(conv.Messages) != 3 {
		t.Fatalf("want 3 messages (summary skipped, malformed line skipped), got %d", len(conv.Messages))
	}
	if conv.Title != "Fix the widget_factory.go bug" {
		t.Errorf("want title derived from first user message, got %q", conv.Title)
	}
	assistant := conv.Messages[1]
	if assistant.Content == "" {
		t.Fatalf("assistant message content empty")
	}
	wantSubstrings := []string{"[Thinking]", "[Tool: bash]", "Found it."}
	for _, want := range wantSubstrings {
		if !contains(assistant.Content, want) {
			t.Errorf("want assistant content to contain %q, got %q", want, assistant.Content)
		}
	}
}

func TestDetectFindsJSONLUnderProjectDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	projectDir := filepath.Join(dir, "-home-dev-widgets")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeSessionFile(t, projectDir, "session1.jsonl", sampleSession)

	c := New()
	result, err := c.Detect(dir)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if !result.Detected {
		t.Fatalf("want detected=true")
	}
	if len(result.Evidence) != 1 {
		t.Fatalf("want 1 evidence path, got %d", len(result.Evidence))
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && (func() bool {
		for i := 0; i+len(sub) <= len(s); i++ {
			if s[i:i+len(sub)] == sub {
				return true
			}
		}
		return false
	})()
}
