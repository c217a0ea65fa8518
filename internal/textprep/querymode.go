package textprep

import "strings"

// Mode classifies a search query for the purpose of routing to the correct
// FTS tokenizer or weighting the hybrid fusion.
type Mode int

const (
	// Auto lets DetectMode resolve the effective mode; it is never returned
	// by DetectMode itself.
	Auto Mode = iota
	// Code indicates the query looks like an identifier, path, or other
	// code-shaped token stream.
	Code
	// NaturalLanguage indicates the query reads like prose.
	NaturalLanguage
)

// codeSignalChars are characters that, if present in a query, strongly
// suggest the user is searching for an identifier or path rather than prose.
const codeSignalChars = "_./\\#@$%"

// proseStopWords are common function words whose presence suggests natural
// language rather than a code token.
var proseStopWords = map[string]bool{
	"the": true, "is": true, "are": true, "was": true, "were": true,
	"a": true, "an": true, "of": true, "in": true, "on": true, "to": true,
}

var questionWords = map[string]bool{
	"how": true, "what": true, "why": true, "when": true, "where": true,
	"who": true, "which": true, "does": true, "do": true, "can": true,
}

// DetectMode classifies a query as code-shaped or prose. Code signals win
// ties: a query
// that both contains a code signal and reads like prose is classified Code.
// Auto is resolved to one of {Code, NaturalLanguage}; it is never returned.
func DetectMode(query string) Mode {
	if hasCodeSignal(query) {
		return Code
	}
	if looksLikeProse(query) {
		return NaturalLanguage
	}
	// No strong signal either way — a single bare token defaults to Code
	// (the common case of searching for an identifier), multi-word
	// queries without prose markers still default to NaturalLanguage per
	// the ">3 words" prose indicator below falling through.
	words := strings.Fields(query)
	if len(words) <= 1 {
		return Code
	}
	return NaturalLanguage
}

func hasCodeSignal(query string) bool {
	if strings.ContainsAny(query, codeSignalChars) {
		return true
	}
	if strings.Contains(query, "::") {
		return true
	}
	if isCamelCase(query) || isKebabCase(query) {
		return true
	}
	return false
}

func isCamelCase(s string) bool {
	sawLower := false
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' && sawLower {
			return true
		}
		if r >= 'a' && r <= 'z' {
			sawLower = true
		}
	}
	return false
}

func isKebabCase(s string) bool {
	return strings.Contains(s, "-") && !strings.Contains(s, " ")
}

func looksLikeProse(query string) bool {
	words := strings.Fields(strings.ToLower(query))
	if len(words) > 3 {
		return true
	}
	for _, w := range words {
		w = strings.Trim(w, "?.!,")
		if questionWords[w] || proseStopWords[w] {
			return true
		}
	}
	return false
}

// Resolve maps Auto to the detected mode for query and returns any explicit
// non-Auto mode unchanged.
func Resolve(mode Mode, query string) Mode {
	if mode != Auto {
		return mode
	}
	return DetectMode(query)
}
