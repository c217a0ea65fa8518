package cacheblob

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rawwerks/cass-go/internal/connectors"
)

const sampleBlob = `{
  "sessionId": "amp-1",
  "cwd": "/home/dev/amp-project",
  "title": "",
  "messages": [
    {"role": "user", "content": "summarize this diff", "timestamp": "2026-03-01T00:00:00Z"},
    {"role": "assistant", "author": "amp-large", "content": "it refactors the parser", "timestamp": "2026-03-01T00:00:02Z"},
    {"role": "user", "content": "", "timestamp": "2026-03-01T00:00:03Z"}
  ]
}`

func TestCacheBlobScanParsesWholeFileAsOneConversation(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, "amp-1.json")
	if err := os.WriteFile(path, []byte(sampleBlob), 0o644); err != nil {
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
	if conv.ExternalID != "amp-1" {
		t.Errorf("want external id amp-1, got %q", conv.ExternalID)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("want 2 messages (empty-content message dropped), got %d", len(conv.Messages))
	}
	if conv.Title != "summarize this diff" {
		t.Errorf("want title derived from first user message, got %q", conv.Title)
	}
}
