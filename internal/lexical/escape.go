package lexical

import "strings"

// EscapeQuery tokenizes user input on whitespace and double-quotes each
// term, doubling any internal quote, to disable FTS5 query syntax injection.
// An empty or all-whitespace query returns "".
func EscapeQuery(query string) string {
	terms := queryTerms(query)
	if len(terms) == 0 {
		return ""
	}
	quoted := make([]string, len(terms))
	for i, t := range terms {
		quoted[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " ")
}

func queryTerms(query string) []string {
	return strings.Fields(query)
}
