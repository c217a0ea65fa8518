package recordmodel

import (
	"strings"
	"testing"
	"time"
)

func TestNewRole(t *testing.T) {
	t.Parallel()
	cases := []struct {
		raw      string
		wantKind string
		wantStr  string
	}{
		{"user", RoleUser, "user"},
		{"human", RoleUser, "user"},
		{"assistant", RoleAgent, "agent"},
		{"model", RoleAgent, "agent"},
		{"tool_result", RoleTool, "tool"},
		{"system", RoleSystem, "system"},
		{"critic", RoleOther, "other:critic"},
		{"", RoleOther, "other:"},
	}
	for _, tc := range cases {
		r := NewRole(tc.raw)
		if r.Kind != tc.wantKind {
			t.Errorf("NewRole(%q).Kind = %q, want %q", tc.raw, r.Kind, tc.wantKind)
		}
		if r.String() != tc.wantStr {
			t.Errorf("NewRole(%q).String() = %q, want %q", tc.raw, r.String(), tc.wantStr)
		}
	}
}

func TestDeriveTitle(t *testing.T) {
	t.Parallel()
	user := NewRole("user")
	agent := NewRole("assistant")

	t.Run("first non-empty line of first user message", func(t *testing.T) {
		msgs := []Message{
			{Role: agent, Content: "ignored assistant preamble"},
			{Role: user, Content: "\n\nHelp me fix the bug\nMore details"},
		}
		if got := DeriveTitle(msgs, "widgets", "a"); got != "Help me fix the bug" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("truncated at 100 runes", func(t *testing.T) {
		long := strings.Repeat("é", 150)
		msgs := []Message{{Role: user, Content: long}}
		got := DeriveTitle(msgs, "", "")
		if len([]rune(got)) != TitleMaxLen {
			t.Fatalf("want %d runes, got %d", TitleMaxLen, len([]rune(got)))
		}
	})

	t.Run("falls back to workspace basename", func(t *testing.T) {
		msgs := []Message{{Role: agent, Content: "no user turn"}}
		if got := DeriveTitle(msgs, "widgets", "session-01"); got != "widgets" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("falls back to source stem", func(t *testing.T) {
		if got := DeriveTitle(nil, "", "session-01"); got != "session-01" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("empty title allowed", func(t *testing.T) {
		if got := DeriveTitle(nil, "", ""); got != "" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("blank first user message does not fall through to later ones", func(t *testing.T) {
		msgs := []Message{
			{Role: user, Content: "   "},
			{Role: user, Content: "second user turn"},
		}
		if got := DeriveTitle(msgs, "widgets", ""); got != "widgets" {
			t.Fatalf("got %q", got)
		}
	})
}

func TestNormalize(t *testing.T) {
	t.Parallel()
	ts := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	c := &Conversation{
		AgentSlug:  "claude-code",
		SourcePath: "/logs/a.jsonl",
		Messages: []Message{
			{Idx: 0, Role: NewRole("user"), Content: "keep me", CreatedAt: &ts},
			{Idx: 1, Role: NewRole("assistant"), Content: "  \t\n"},
			{Idx: 2, Role: NewRole("assistant"), Content: "also kept"},
		},
	}
	c.Normalize()

	if len(c.Messages) != 2 {
		t.Fatalf("want 2 messages after dropping blank content, got %d", len(c.Messages))
	}
	for i, m := range c.Messages {
		if m.Idx != i {
			t.Fatalf("idx not dense: messages[%d].Idx = %d", i, m.Idx)
		}
	}
	if c.Messages[1].Content != "also kept" {
		t.Fatalf("re-sequencing must preserve order, got %q", c.Messages[1].Content)
	}
	if c.SourceID != LocalSourceID {
		t.Fatalf("SourceID must default to %q, got %q", LocalSourceID, c.SourceID)
	}
}

func TestNormalizeKeepsExplicitSourceID(t *testing.T) {
	t.Parallel()
	c := &Conversation{SourceID: "laptop-ssh", Messages: []Message{{Content: "x"}}}
	c.Normalize()
	if c.SourceID != "laptop-ssh" {
		t.Fatalf("explicit source id must survive Normalize, got %q", c.SourceID)
	}
}
