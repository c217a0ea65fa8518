// Package textprep provides the text preparation shared by the lexical and
// semantic search paths: embedding-stable canonicalization and query-mode
// detection. Both internal/lexical and internal/hybrid depend on this
// package rather than duplicating whitespace/case folding rules.
package textprep

import (
	"crypto/sha256"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// CanonicalizeForEmbedding normalizes whitespace, case, and Unicode form so
// that semantically identical text always produces the same byte sequence —
// and therefore the same ContentHash — across runs. Normalization order is
// fixed: NFKC fold, then lowercase, then whitespace collapse, then trim.
func CanonicalizeForEmbedding(text string) string {
	folded := norm.NFKC.String(text)
	folded = strings.ToLower(folded)
	folded = collapseWhitespace(folded)
	return strings.TrimSpace(folded)
}

// collapseWhitespace replaces every run of Unicode whitespace with a single
// ASCII space, preserving word boundaries without caring about which
// specific whitespace rune was originally present.
func collapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteByte(' ')
			}
			prevSpace = true
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// ContentHash returns the 32-byte SHA-256 digest of the canonicalized text.
// Vector entries use this to detect whether a previously indexed chunk's
// text changed, so an incremental rescan can skip re-embedding unchanged
// content.
func ContentHash(text string) [32]byte {
	return sha256.Sum256([]byte(CanonicalizeForEmbedding(text)))
}
