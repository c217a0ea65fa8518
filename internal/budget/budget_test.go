package budget

import (
	"strings"
	"testing"

	"github.com/rawwerks/cass-go/internal/recordmodel"
)

func userMessage(content string) recordmodel.Message {
	return recordmodel.Message{Role: recordmodel.NewRole(recordmodel.RoleUser), Content: content}
}

func Test_Estimate(t *testing.T) {
	t.Parallel()
	cases := []struct {
		input string
		want  int
	}{
		{"", 0},
		{"a", 1},        // < 4 chars → 1
		{"abcd", 1},     // exactly 4 chars → 1
		{"abcde", 1},    // 5 chars → 1
		{"abcdefgh", 2}, // 8 chars → 2
		{strings.Repeat("x", 400), 100},
	}
	for _, tc := range cases {
		got := Estimate(tc.input)
		if got != tc.want {
			t.Errorf("Estimate(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func Test_EstimateMessage(t *testing.T) {
	t.Parallel()
	// 4 overhead + Estimate("user")=1 + Estimate("hello world")=2 = 7
	got := EstimateMessage(userMessage("hello world"))
	if got != 7 {
		t.Errorf("EstimateMessage = %d, want 7", got)
	}
}

func Test_EstimateConversation(t *testing.T) {
	t.Parallel()
	conv := &recordmodel.Conversation{
		Messages: []recordmodel.Message{
			userMessage("hello world"),
			userMessage("hello world"),
		},
	}
	got := EstimateConversation(conv)
	if got != 14 {
		t.Errorf("EstimateConversation = %d, want 14", got)
	}
}

func Test_EstimateConversation_Empty(t *testing.T) {
	t.Parallel()
	got := EstimateConversation(&recordmodel.Conversation{})
	if got != 0 {
		t.Errorf("EstimateConversation = %d, want 0", got)
	}
}

func Test_TrimCandidates_NoTrimNeeded(t *testing.T) {
	t.Parallel()
	documents := []string{"hi", "there"}
	got := TrimCandidates("query", documents, DefaultMaxContextTokens)
	if len(got) != 2 {
		t.Errorf("want 2 documents, got %d", len(got))
	}
}

func Test_TrimCandidates_DropsFromTail(t *testing.T) {
	t.Parallel()
	// Each document costs: 4 overhead + Estimate("abcd")=1 = 5 tokens.
	// Two documents = 10. Query "" costs 4. Budget 9 fits one document
	// (4+5=9) but not two (4+10=14). The worst-ranked (last) is dropped.
	documents := []string{"abcd", "abcd"}
	got := TrimCandidates("", documents, 9)
	if len(got) != 1 {
		t.Errorf("want 1 document after trim, got %d", len(got))
	}
}

func Test_TrimCandidates_EmptyInput(t *testing.T) {
	t.Parallel()
	got := TrimCandidates("query", nil, DefaultMaxContextTokens)
	if len(got) != 0 {
		t.Errorf("want empty, got %d", len(got))
	}
}

func Test_TrimCandidates_KeepsAtLeastOne(t *testing.T) {
	t.Parallel()
	documents := []string{strings.Repeat("x", 4*7000), "short"}
	got := TrimCandidates("query", documents, 10)
	if len(got) != 1 {
		t.Errorf("want 1 document retained even over budget, got %d", len(got))
	}
}
