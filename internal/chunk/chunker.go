package chunk

import (
	"strings"
)

// Limits controls the title-bounded chunking pass.
type Limits struct {
	// CombineUnder merges a section into the next one while the running
	// text stays below this size.
	CombineUnder int

	// MaxSize is the hard upper bound of one chunk. Oversized sections
	// are split at whitespace near the bound.
	MaxSize int

	// Overlap is how many trailing characters of a split chunk are
	// repeated at the head of the next one.
	Overlap int
}

// splitElements separates table elements from the rest. Tables become
// standalone chunks and never enter the generic chunking pass, so a table
// is represented exactly once in the output.
func splitElements(elements []Element) (tables, flow []Element) {
	for _, el := range elements {
		if el.Category == elementTable {
			tables = append(tables, el)
		} else {
			flow = append(flow, el)
		}
	}
	return tables, flow
}

// chunkByTitle groups non-table elements into chunks bounded by headings.
// Each heading starts a new section; small sections are merged forward
// until CombineUnder, and sections beyond MaxSize are split with Overlap
// characters of carry-over.
func chunkByTitle(elements []Element, lim Limits) []string {
	sections := buildSections(elements)

	var merged []string
	var current strings.Builder
	for _, section := range sections {
		if current.Len() > 0 && current.Len() >= lim.CombineUnder {
			merged = append(merged, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(section)
	}
	if current.Len() > 0 {
		merged = append(merged, current.String())
	}

	var chunks []string
	for _, text := range merged {
		chunks = append(chunks, splitOversized(text, lim.MaxSize, lim.Overlap)...)
	}
	return chunks
}

// buildSections joins consecutive elements into heading-delimited blocks.
// Text before the first heading forms its own leading section.
func buildSections(elements []Element) []string {
	var sections []string
	var current []string

	flush := func() {
		if len(current) == 0 {
			return
		}
		sections = append(sections, strings.Join(current, "\n\n"))
		current = nil
	}

	for _, el := range elements {
		if el.Category == elementTitle {
			flush()
		}
		if el.Text != "" {
			current = append(current, el.Text)
		}
	}
	flush()

	return sections
}

// splitOversized cuts text into pieces of at most maxSize characters,
// preferring whitespace boundaries, with overlap characters repeated at
// the start of each continuation piece.
func splitOversized(text string, maxSize, overlap int) []string {
	if maxSize <= 0 || len(text) <= maxSize {
		return []string{text}
	}
	if overlap >= maxSize {
		overlap = 0
	}

	var pieces []string
	rest := text
	for len(rest) > maxSize {
		cut := lastBreak(rest, maxSize)
		pieces = append(pieces, strings.TrimSpace(rest[:cut]))

		// The next piece must start past zero or the loop cannot advance.
		start := cut - overlap
		if start <= 0 {
			start = cut
		}
		rest = rest[start:]
	}
	if trimmed := strings.TrimSpace(rest); trimmed != "" {
		pieces = append(pieces, trimmed)
	}
	return pieces
}

// lastBreak finds the rightmost whitespace at or before limit, falling
// back to a hard cut when the text has no break point.
func lastBreak(text string, limit int) int {
	for i := limit; i > limit/2; i-- {
		if text[i-1] == ' ' || text[i-1] == '\n' || text[i-1] == '\t' {
			return i
		}
	}
	return limit
}
