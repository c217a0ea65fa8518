// Package sessionheader implements the PI-Agent-style connector:
// JSONL files whose first line is a session descriptor, followed by message
// and model_change lines. model_change updates the "current model" attributed
// to subsequent assistant messages as their Author.
package sessionheader

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

const slug = "pi-agent"

type rawLine struct {
	Type      string          `json:"type"` // "session", "message", "model_change", "thinking_level_change", "custom"
	Timestamp *time.Time      `json:"timestamp"`
	Message   *rawMessage     `json:"message"`
	CWD       string          `json:"cwd"`     // type="session"
	ModelID   string          `json:"modelId"` // type="session" or "model_change"
}

type rawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type rawPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// New returns the session-headered connector.
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
			return nil, stats, fmt.Errorf("sessionheader: glob %s: %w", ctx.DataRoot, err)
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
			log.Warn("sessionheader: stat failed", "path", path, "error", err)
			stats.FilesSkipped++
			continue
		}
		if ctx.SinceTS != nil && !info.ModTime().After(*ctx.SinceTS) {
			continue
		}
		stats.BytesRead += info.Size()
		conv, err := c.scanFile(path, ctx.SinceTS, log)
		if err != nil {
			log.Warn("sessionheader: skipping unreadable session file", "path", path, "error", err)
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
	currentModel := ""
	first := true

	err := connectors.WalkLines(path, log, func(line []byte) bool {
		var l rawLine
		if err := json.Unmarshal(line, &l); err != nil {
			return false
		}

		if first {
			first = false
			if l.Type == "session" {
				workspace = l.CWD
				currentModel = l.ModelID
				return true
			}
		}

		switch l.Type {
		case "model_change":
			currentModel = l.ModelID
			return true
		case "message":
			if l.Message == nil {
				return false
			}
			text, err := flattenParts(l.Message.Content)
			if err != nil {
				return false
			}
			if strings.TrimSpace(text) == "" {
				return true
			}
			if sinceTS != nil && l.Timestamp != nil && !l.Timestamp.After(*sinceTS) {
				return true
			}
			author := ""
			role := recordmodel.NewRole(l.Message.Role)
			if role.Kind == recordmodel.RoleAgent {
				author = currentModel
			}
			conv.Messages = append(conv.Messages, recordmodel.Message{
				Role:      role,
				Author:    author,
				CreatedAt: l.Timestamp,
				Content:   text,
			})
			return true
		default:
			return true
		}
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

func flattenParts(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var parts []rawPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}
	var texts []string
	for _, p := range parts {
		if p.Type == "text" && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n"), nil
}
