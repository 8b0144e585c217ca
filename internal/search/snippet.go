package search

import "strings"

const (
	snippetBefore = 100
	snippetAfter  = 200
)

// synthesizeSnippet implements spec.md §4.8.1's term-length-wins selection:
// among the query's whitespace-split terms, find the first occurrence of
// each (case-insensitively) and pick the longest term (ties: earliest
// position). The window is [p-100, p+200) sliced from the original
// (non-lowercased) text, with leading/trailing "..." when the window is
// clipped. Selection by length, not position or frequency, favors rarer,
// more informative tokens per spec.md §9 — this never fails; worst case is
// an empty snippet.
func synthesizeSnippet(text, query string) string {
	if text == "" {
		return ""
	}

	terms := strings.Fields(query)
	lower := strings.ToLower(text)

	pos := 0
	bestLen := -1
	bestPos := -1
	for _, term := range terms {
		lt := strings.ToLower(term)
		if lt == "" {
			continue
		}
		idx := strings.Index(lower, lt)
		if idx < 0 {
			continue
		}
		if len(term) > bestLen || (len(term) == bestLen && idx < bestPos) {
			bestLen = len(term)
			bestPos = idx
		}
	}
	if bestPos >= 0 {
		pos = bestPos
	}

	start := pos - snippetBefore
	if start < 0 {
		start = 0
	}
	end := pos + snippetAfter
	if end > len(text) {
		end = len(text)
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[start:end])
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String()
}
