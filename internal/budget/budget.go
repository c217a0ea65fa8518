// Package budget estimates token counts for ingested conversations and
// search candidates. Because conversations arrive from many coding agents
// with different (and sometimes unknown) tokenizers, this package uses a
// simple character-based heuristic: 1 token ≈ 4 characters of English
// prose or code. Text that tokenizes more densely than that is
// under-counted; the estimate adds no headroom of its own.
package budget

import (
	"github.com/rawwerks/cass-go/internal/recordmodel"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	// 4 chars/token is standard for English and code; a ratio of 3 would
	// give larger, more conservative counts.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default candidate-list budget in tokens
	// for a single reranking request. Conservative enough to fit comfortably
	// within an 8k-context cross-encoder while leaving room for the query.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessage returns the estimated token count of a single message,
// including a small per-message overhead for role and framing (~4 tokens in
// most chat-completion APIs).
func EstimateMessage(m recordmodel.Message) int {
	return 4 + Estimate(m.Role.String()) + Estimate(m.Content)
}

// EstimateConversation returns the estimated total token count across every
// message in c. storage.DB.UpsertConversation uses this to populate
// Conversation.ApproxTokens at ingestion time.
func EstimateConversation(c *recordmodel.Conversation) int {
	total := 0
	for _, m := range c.Messages {
		total += EstimateMessage(m)
	}
	return total
}

// TrimCandidates removes the lowest-ranked documents from a reranking
// candidate list until the total estimated token count of query + documents
// fits within maxTokens. documents are assumed to already be ordered
// best-first, so trimming drops from the tail.
//
// Returns the (possibly shortened) documents slice. A single document is
// always kept even if it alone exceeds the budget — callers should warn
// separately rather than send an empty candidate list to the reranker.
func TrimCandidates(query string, documents []string, maxTokens int) []string {
	if len(documents) == 0 {
		return documents
	}

	queryTokens := 4 + Estimate(query)

	for len(documents) > 1 {
		if queryTokens+estimateDocuments(documents) <= maxTokens {
			break
		}
		documents = documents[:len(documents)-1]
	}
	return documents
}

func estimateDocuments(documents []string) int {
	total := 0
	for _, d := range documents {
		total += 4 + Estimate(d)
	}
	return total
}
