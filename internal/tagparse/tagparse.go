// Package tagparse extracts delimited sections from model output.
//
// The pipeline's model calls wrap their payload in XML-like tags
// (<markdown_output>, <json_output>, <brands>, <models>). Responses are
// free text, so a section can be present, absent, or opened but never
// closed. Extract returns all three states explicitly; call sites must
// handle each rather than assume presence.
package tagparse

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Status describes the outcome of looking for a tagged section.
type Status int

const (
	// Absent means the opening tag was not found.
	Absent Status = iota

	// Malformed means the opening tag was found without a closing tag.
	Malformed

	// Present means a complete section was found.
	Present
)

func (s Status) String() string {
	switch s {
	case Absent:
		return "absent"
	case Malformed:
		return "malformed"
	case Present:
		return "present"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of Extract. Value is meaningful only when Status
// is Present.
type Result struct {
	Status Status
	Value  string
}

// Extract finds the first <tag>...</tag> section in text. The value is
// returned with surrounding whitespace trimmed. Matching spans newlines.
func Extract(text, tag string) Result {
	openTag := "<" + tag + ">"
	closeTag := "</" + tag + ">"

	start := strings.Index(text, openTag)
	if start < 0 {
		return Result{Status: Absent}
	}
	rest := text[start+len(openTag):]

	end := strings.Index(rest, closeTag)
	if end < 0 {
		return Result{Status: Malformed}
	}

	return Result{Status: Present, Value: strings.TrimSpace(rest[:end])}
}

// Values extracts a tagged section holding one value per line.
// The literal value "none" (case-insensitive) means "no matches", not
// "all": it yields an empty slice, as do Absent and Malformed sections.
func Values(text, tag string) []string {
	res := Extract(text, tag)
	if res.Status != Present {
		return nil
	}
	if strings.EqualFold(res.Value, "none") {
		return nil
	}

	var values []string
	for line := range strings.Lines(res.Value) {
		if v := strings.TrimSpace(line); v != "" {
			values = append(values, v)
		}
	}
	return values
}

// JSON extracts a tagged section and decodes it into v. A missing or
// unclosed section and invalid JSON all report their status; the caller
// decides the fallback. On any status other than Present, v is untouched.
func JSON(text, tag string, v any) (Status, error) {
	res := Extract(text, tag)
	if res.Status != Present {
		return res.Status, nil
	}
	if err := json.Unmarshal([]byte(res.Value), v); err != nil {
		return Malformed, fmt.Errorf("decoding <%s> section: %w", tag, err)
	}
	return Present, nil
}
