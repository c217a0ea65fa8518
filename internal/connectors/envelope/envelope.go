// Package envelope implements the Codex-family connector: JSONL files
// where every line is a uniform {type, timestamp, payload} envelope and the
// payload's shape is dictated by type.
package envelope

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

const slug = "codex"

type envelope struct {
	Type      string          `json:"type"`
	Timestamp *time.Time      `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// payload shapes vary by envelope type; only the fields relevant to a given
// type are populated.
type payload struct {
	ID      string `json:"id"`
	Role    string `json:"role"`
	Content string `json:"content"`
	Model   string `json:"model"`
	CWD     string `json:"cwd"`
}

// New returns the envelope-style connector.
func New() connectors.Connector { return connector{} }

type connector struct{}

func (connector) Slug() string { return slug }

func (connector) Detect(root string) (connectors.DetectResult, error) {
	matches, err := filepath.Glob(filepath.Join(root, "*.jsonl"))
	if err != nil {
		return connectors.DetectResult{}, err
	}
	return connectors.DetectResult{Detected: len(matches) > 0, Evidence: matches}, nil
}

func (c connector) Scan(ctx connectors.ScanContext) ([]*recordmodel.Conversation, connectors.ScanStats, error) {
	var stats connectors.ScanStats
	files := ctx.ScanRoots
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(ctx.DataRoot, "*.jsonl"))
		if err != nil {
			return nil, stats, fmt.Errorf("envelope: glob %s: %w", ctx.DataRoot, err)
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
			log.Warn("envelope: stat failed", "path", path, "error", err)
			stats.FilesSkipped++
			continue
		}
		if ctx.SinceTS != nil && !info.ModTime().After(*ctx.SinceTS) {
			continue
		}
		stats.BytesRead += info.Size()
		conv, err := c.scanFile(path, ctx.SinceTS, log)
		if err != nil {
			log.Warn("envelope: skipping unreadable session file", "path", path, "error", err)
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

func (c connector) scanFile(path string, sinceTS *time.Time, log *slog.Logger) (*recordmodel.Conversation, error) {
	conv := &recordmodel.Conversation{AgentSlug: slug, SourcePath: path}
	workspace := ""

	err := connectors.WalkLines(path, log, func(line []byte) bool {
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			return false
		}
		var p payload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return false
			}
		}
		if p.CWD != "" && workspace == "" {
			workspace = p.CWD
		}
		if strings.TrimSpace(p.Content) == "" {
			return true
		}
		if sinceTS != nil && env.Timestamp != nil && !env.Timestamp.After(*sinceTS) {
			return true
		}
		role := p.Role
		if role == "" {
			role = env.Type
		}
		conv.Messages = append(conv.Messages, recordmodel.Message{
			Role:      recordmodel.NewRole(role),
			Author:    p.Model,
			CreatedAt: env.Timestamp,
			Content:   p.Content,
		})
		return true
	})
	if err != nil {
		return nil, err
	}

	conv.Workspace = workspace
	conv.Normalize()
	base := ""
	if workspace != "" {
		base = filepath.Base(workspace)
	}
	conv.Title = recordmodel.DeriveTitle(conv.Messages, base, strings.TrimSuffix(filepath.Base(path), ".jsonl"))
	return conv, nil
}
