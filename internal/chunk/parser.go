package chunk

import (
	"strings"
)

// Element categories produced by the structural parse.
const (
	elementTitle    = "Title"
	elementText     = "Text"
	elementListItem = "ListItem"
	elementTable    = "Table"
)

// Element is one structural unit of a markdown document.
type Element struct {
	Category string

	// Text is the plain rendering: heading text without markers,
	// paragraph text, or table cells joined per row.
	Text string

	// Raw is the literal markdown block. Only kept for tables, which are
	// stored with both renderings.
	Raw string
}

// parseMarkdown partitions a markdown document into elements: headings,
// pipe tables, and flowing text blocks. Tables are detected here so they
// can bypass the generic chunking pass entirely.
func parseMarkdown(doc string) []Element {
	lines := strings.Split(doc, "\n")

	var elements []Element
	var para []string

	flushPara := func() {
		if len(para) == 0 {
			return
		}
		text := strings.TrimSpace(strings.Join(para, "\n"))
		if text != "" {
			elements = append(elements, Element{Category: elementText, Text: text})
		}
		para = para[:0]
	}

	for i := 0; i < len(lines); i++ {
		line := lines[i]
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			flushPara()

		case isHeading(trimmed):
			flushPara()
			elements = append(elements, Element{
				Category: elementTitle,
				Text:     strings.TrimSpace(strings.TrimLeft(trimmed, "#")),
			})

		case isTableLine(trimmed) && tableFollows(lines, i):
			flushPara()
			table, consumed := parseTable(lines, i)
			elements = append(elements, table)
			i += consumed - 1

		case isListLine(trimmed):
			flushPara()
			var items []string
			for i < len(lines) {
				l := strings.TrimSpace(lines[i])
				if !isListLine(l) {
					i--
					break
				}
				items = append(items, l)
				i++
			}
			elements = append(elements, Element{
				Category: elementListItem,
				Text:     strings.Join(items, "\n"),
			})

		default:
			para = append(para, line)
		}
	}
	flushPara()

	return elements
}

func isHeading(line string) bool {
	if !strings.HasPrefix(line, "#") {
		return false
	}
	rest := strings.TrimLeft(line, "#")
	return rest == "" || strings.HasPrefix(rest, " ")
}

// isListLine reports whether a line is a bullet or numbered list item.
func isListLine(line string) bool {
	for _, marker := range []string{"- ", "* ", "+ "} {
		if strings.HasPrefix(line, marker) {
			return true
		}
	}
	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	return i > 0 && i+1 < len(line) && line[i] == '.' && line[i+1] == ' '
}

// isTableLine reports whether a line looks like a pipe-table row.
func isTableLine(line string) bool {
	return strings.HasPrefix(line, "|") && strings.Count(line, "|") >= 2
}

// isSeparatorLine reports whether a line is the |---|---| header divider.
func isSeparatorLine(line string) bool {
	if !isTableLine(line) {
		return false
	}
	inner := strings.Trim(line, "|")
	for _, cell := range strings.Split(inner, "|") {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			return false
		}
		for _, r := range cell {
			if r != '-' && r != ':' {
				return false
			}
		}
	}
	return true
}

// tableFollows requires a separator row after the header line: a lone
// pipe-prefixed line is treated as text, not a one-row table.
func tableFollows(lines []string, i int) bool {
	return i+1 < len(lines) && isSeparatorLine(strings.TrimSpace(lines[i+1]))
}

// parseTable consumes consecutive table rows starting at index i and
// returns the table element plus the number of lines consumed. The plain
// text rendering drops the separator row and joins cells with single
// spaces; Raw keeps the literal markdown.
func parseTable(lines []string, i int) (Element, int) {
	var raw []string
	var plain []string

	consumed := 0
	for i+consumed < len(lines) {
		trimmed := strings.TrimSpace(lines[i+consumed])
		if !isTableLine(trimmed) {
			break
		}
		raw = append(raw, trimmed)
		if !isSeparatorLine(trimmed) {
			var cells []string
			for _, cell := range strings.Split(strings.Trim(trimmed, "|"), "|") {
				if c := strings.TrimSpace(cell); c != "" {
					cells = append(cells, c)
				}
			}
			plain = append(plain, strings.Join(cells, " "))
		}
		consumed++
	}

	return Element{
		Category: elementTable,
		Text:     strings.Join(plain, "\n"),
		Raw:      strings.Join(raw, "\n"),
	}, consumed
}
