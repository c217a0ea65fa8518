// Package cacheblob implements the Amp-style connector: each cache
// file is a single JSON document holding one whole conversation, rather than
// one event per line.
package cacheblob

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rawwerks/cass-go/internal/connectors"
	"github.com/rawwerks/cass-go/internal/recordmodel"
)

const slug = "amp"

type blob struct {
	SessionID string    `json:"sessionId"`
	CWD       string    `json:"cwd"`
	Title     string    `json:"title"`
	Messages  []blobMsg `json:"messages"`
}

type blobMsg struct {
	Role      string     `json:"role"`
	Author    string     `json:"author"`
	Content   string     `json:"content"`
	Timestamp *time.Time `json:"timestamp"`
}

// New returns the cache/JSON-blob connector.
func New() connectors.Connector { return connector{} }

type connector struct{}

func (connector) Slug() string { return slug }

func (connector) Detect(root string) (connectors.DetectResult, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*.json"))
	if err != nil {
		return connectors.DetectResult{}, err
	}
	return connectors.DetectResult{Detected: len(matches) > 0, Evidence: matches}, nil
}

func (c connector) Scan(ctx connectors.ScanContext) ([]*recordmodel.Conversation, connectors.ScanStats, error) {
	var stats connectors.ScanStats
	files := ctx.ScanRoots
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(ctx.DataRoot, "*.json"))
		if err != nil {
			return nil, stats, fmt.Errorf("cacheblob: glob %s: %w", ctx.DataRoot, err)
		}
		files = matches
	}

	log := ctx.Logger
	if log == nil {
		log = slog.Default()
	}

	var out []*recordmodel.Conversation
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			log.Warn("cacheblob: stat failed", "path", path, "error", err)
			stats.FilesSkipped++
			continue
		}
		if ctx.SinceTS != nil && !info.ModTime().After(*ctx.SinceTS) {
			continue
		}
		stats.BytesRead += info.Size()
		conv, err := c.scanFile(path, ctx.SinceTS)
		if err != nil {
			log.Warn("cacheblob: skipping unreadable cache file", "path", path, "error", err)
			stats.FilesSkipped++
			continue
		}
		if conv == nil || len(conv.Messages) == 0 {
			continue
		}
		out = append(out, conv)
	}
	return out, stats, nil
}

func (c connector) scanFile(path string, sinceTS *time.Time) (*recordmodel.Conversation, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var b blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, err
	}

	conv := &recordmodel.Conversation{
		AgentSlug:  slug,
		Workspace:  b.CWD,
		ExternalID: b.SessionID,
		Title:      b.Title,
		SourcePath: path,
	}
	for _, m := range b.Messages {
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		if sinceTS != nil && m.Timestamp != nil && !m.Timestamp.After(*sinceTS) {
			continue
		}
		conv.Messages = append(conv.Messages, recordmodel.Message{
			Role:      recordmodel.NewRole(m.Role),
			Author:    m.Author,
			CreatedAt: m.Timestamp,
			Content:   m.Content,
		})
	}

	conv.Normalize()
	if conv.Title == "" {
		base := ""
		if b.CWD != "" {
			base = filepath.Base(b.CWD)
		}
		conv.Title = recordmodel.DeriveTitle(conv.Messages, base, strings.TrimSuffix(filepath.Base(path), ".json"))
	}
	return conv, nil
}
