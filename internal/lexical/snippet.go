package lexical

import "strings"

// HighlightSnippet returns an excerpt of content centered on the first
// occurrence of any term, radius characters on either side, with every
// occurrence of a term inside the excerpt wrapped in <mark>…</mark>.
// If no term is found, the first 2*radius characters are returned unmarked.
func HighlightSnippet(content string, terms []string, radius int) string {
	lower := strings.ToLower(content)
	start := -1
	for _, t := range terms {
		if idx := strings.Index(lower, strings.ToLower(t)); idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	if start < 0 {
		return mark(truncate(content, 2*radius), terms)
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := start + radius
	if hi > len(content) {
		hi = len(content)
	}
	return mark(content[lo:hi], terms)
}

// PlainSnippet returns an unmarked excerpt at a fixed radius, for UI contexts
// that apply their own highlighting.
func PlainSnippet(content string, terms []string, radius int) string {
	lower := strings.ToLower(content)
	start := -1
	for _, t := range terms {
		if idx := strings.Index(lower, strings.ToLower(t)); idx >= 0 && (start < 0 || idx < start) {
			start = idx
		}
	}
	if start < 0 {
		return truncate(content, 2*radius)
	}
	lo := start - radius
	if lo < 0 {
		lo = 0
	}
	hi := start + radius
	if hi > len(content) {
		hi = len(content)
	}
	return content[lo:hi]
}

func mark(excerpt string, terms []string) string {
	lower := strings.ToLower(excerpt)
	var b strings.Builder
	i := 0
	for i < len(excerpt) {
		matched := ""
		for _, t := range terms {
			lt := strings.ToLower(t)
			if lt == "" {
				continue
			}
			if strings.HasPrefix(lower[i:], lt) && len(lt) > len(matched) {
				matched = lt
			}
		}
		if matched != "" {
			b.WriteString("<mark>")
			b.WriteString(excerpt[i : i+len(matched)])
			b.WriteString("</mark>")
			i += len(matched)
			continue
		}
		b.WriteByte(excerpt[i])
		i++
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
