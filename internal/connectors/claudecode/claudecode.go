// Package claudecode implements the Claude-Code-like connector: JSONL
// session files under a per-project directory, one typed event per line.
package claudecode

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

const slug = "claude-code"

// skippedEventTypes are administrative events that carry no conversational
// content and are dropped before role flattening.
var skippedEventTypes = map[string]bool{
	"summary":               true,
	"file-history-snapshot": true,
	"thinking_level_change": true,
}

// rawEvent is the superset of fields across every Claude-Code event type.
// Only the fields relevant to the event's Type are populated on a given line.
type rawEvent struct {
	Type      string          `json:"type"`
	UUID      string          `json:"uuid"`
	Timestamp *time.Time      `json:"timestamp"`
	CWD       string          `json:"cwd"`
	SessionID string          `json:"sessionId"`
	Message   *rawMessage     `json:"message"`
	Content   json.RawMessage `json:"content"`
}

type rawMessage struct {
	Role    string          `json:"role"`
	Model   string          `json:"model"`
	Content json.RawMessage `json:"content"`
}

// contentPart is one element of an assistant message's content array.
type contentPart struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	Name     string          `json:"name"`     // tool_use
	ToolName string          `json:"toolName"` // toolCall (alt shape)
	Input    json.RawMessage `json:"input"`
	Content  json.RawMessage `json:"tool_output"`
}

// New returns the Claude-Code-like connector.
func New() connectors.Connector { return connector{} }

type connector struct{}

func (connector) Slug() string { return slug }

func (connector) Detect(root string) (connectors.DetectResult, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return connectors.DetectResult{}, nil
		}
		return connectors.DetectResult{}, err
	}
	var evidence []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(root, e.Name(), "*.jsonl"))
		if err != nil || len(files) == 0 {
			continue
		}
		evidence = append(evidence, files...)
	}
	return connectors.DetectResult{Detected: len(evidence) > 0, Evidence: evidence}, nil
}

func (c connector) Scan(ctx connectors.ScanContext) ([]*recordmodel.Conversation, connectors.ScanStats, error) {
	var stats connectors.ScanStats
	files := ctx.ScanRoots
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(ctx.DataRoot, "*", "*.jsonl"))
		if err != nil {
			return nil, stats, fmt.Errorf("claudecode: glob %s: %w", ctx.DataRoot, err)
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
			log.Warn("claudecode: stat failed", "path", path, "error", err)
			stats.FilesSkipped++
			continue
		}
		if ctx.SinceTS != nil && !info.ModTime().After(*ctx.SinceTS) {
			continue
		}
		stats.BytesRead += info.Size()
		conv, err := c.scanFile(path, ctx.SinceTS, log)
		if err != nil {
			log.Warn("claudecode: skipping unreadable session file", "path", path, "error", err)
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
	workspace := ""
	conv := &recordmodel.Conversation{
		AgentSlug:  slug,
		SourcePath: path,
	}

	err := connectors.WalkLines(path, log, func(line []byte) bool {
		var ev rawEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return false
		}
		if skippedEventTypes[ev.Type] {
			return true
		}
		if ev.CWD != "" && workspace == "" {
			workspace = ev.CWD
		}
		if ev.ExternalID() != "" && conv.ExternalID == "" {
			conv.ExternalID = ev.ExternalID()
		}

		role := ev.Type
		var contentJSON json.RawMessage
		var model string
		if ev.Message != nil {
			if ev.Message.Role != "" {
				role = ev.Message.Role
			}
			contentJSON = ev.Message.Content
			model = ev.Message.Model
		}

		text, err := flattenContent(contentJSON)
		if err != nil || strings.TrimSpace(text) == "" {
			return err == nil
		}

		if sinceTS != nil && ev.Timestamp != nil && !ev.Timestamp.After(*sinceTS) {
			return true
		}

		m := recordmodel.Message{
			Role:      recordmodel.NewRole(role),
			Author:    model,
			CreatedAt: ev.Timestamp,
			Content:   text,
		}
		conv.Messages = append(conv.Messages, m)
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

// ExternalID exposes the session id, if present, as the stable identity key
// for append-on-rescan. Defined as a method so future event shapes
// carrying the id under a different field can override it in one place.
func (e rawEvent) ExternalID() string { return e.SessionID }

// flattenContent renders an assistant/user content payload — either a bare
// string or an array of typed parts — into a single textual message,
// preserving part order. Tool invocations render as "[Tool: NAME ...]"
// and thinking blocks as "[Thinking] ...".
func flattenContent(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", err
	}

	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte('\n')
		}
		switch p.Type {
		case "text":
			b.WriteString(p.Text)
		case "thinking":
			b.WriteString("[Thinking] ")
			b.WriteString(p.Thinking)
		case "tool_use", "toolCall":
			name := p.Name
			if name == "" {
				name = p.ToolName
			}
			b.WriteString(fmt.Sprintf("[Tool: %s] %s", name, string(p.Input)))
		case "tool_result", "toolResult":
			b.WriteString(fmt.Sprintf("[Tool result] %s", string(p.Content)))
		}
	}
	return b.String(), nil
}
