package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/wrenfold/kith/internal/llm"
	"github.com/wrenfold/kith/internal/relation"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseResponse parses and validates the model's raw output.
//
// Recovery ladder: strict JSON first, then a fenced code block, then the
// first balanced JSON object found in the text. Individual invalid
// entries are dropped with a warning rather than failing the whole
// response; structural failures come back as classified llm errors.
func ParseResponse(raw string) (*Response, []string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil, &llm.Error{
			Code:    llm.CodeInvalidResponse,
			Message: "model returned an empty response",
		}
	}

	var resp Response
	candidate, found := extractJSON(trimmed)
	if !found {
		return nil, nil, &llm.Error{
			Code:    llm.CodeValidationError,
			Message: fmt.Sprintf("no JSON object in model response: %s", snippet(trimmed)),
		}
	}
	if err := json.Unmarshal([]byte(candidate), &resp); err != nil {
		return nil, nil, &llm.Error{
			Code:    llm.CodeValidationError,
			Message: fmt.Sprintf("malformed JSON in model response: %v", err),
		}
	}

	warnings := validateResponse(&resp)
	return &resp, warnings, nil
}

// extractJSON pulls a JSON object out of raw, tolerating prose and code
// fences around it.
func extractJSON(raw string) (string, bool) {
	if strings.HasPrefix(raw, "{") && json.Valid([]byte(raw)) {
		return raw, true
	}
	if m := fencedJSON.FindStringSubmatch(raw); m != nil && json.Valid([]byte(m[1])) {
		return m[1], true
	}
	// Last resort: scan for the first balanced object.
	start := strings.Index(raw, "{")
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(raw); i++ {
			c := raw[i]
			switch {
			case escaped:
				escaped = false
			case c == '\\' && inString:
				escaped = true
			case c == '"':
				inString = !inString
			case inString:
			case c == '{':
				depth++
			case c == '}':
				depth--
				if depth == 0 {
					candidate := raw[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					i = len(raw)
				}
			}
		}
		start = indexFrom(raw, start+1, '{')
	}
	return "", false
}

func indexFrom(s string, from int, c byte) int {
	if from >= len(s) {
		return -1
	}
	idx := strings.IndexByte(s[from:], c)
	if idx < 0 {
		return -1
	}
	return from + idx
}

// validateResponse drops invalid entries in place and returns a warning
// per drop. Invalid optional enum values are blanked, not dropped.
func validateResponse(resp *Response) []string {
	var warnings []string

	people := resp.People[:0]
	for _, p := range resp.People {
		if strings.TrimSpace(p.Name) == "" {
			warnings = append(warnings, "dropped person mention with no name")
			continue
		}
		if !validPersonType(p.PersonType) {
			warnings = append(warnings, fmt.Sprintf(
				"cleared unknown person type %q on %s", p.PersonType, p.Name))
			p.PersonType = ""
		}
		p.Confidence = clamp01(p.Confidence)
		people = append(people, p)
	}
	resp.People = people

	relations := resp.Relations[:0]
	for _, r := range resp.Relations {
		if strings.TrimSpace(r.SubjectName) == "" {
			warnings = append(warnings, "dropped relation with no subject name")
			continue
		}
		if !relation.Valid(r.RelationType) {
			warnings = append(warnings, fmt.Sprintf(
				"dropped relation for %s: unknown relation type %q", r.SubjectName, r.RelationType))
			continue
		}
		if strings.TrimSpace(r.ObjectLabel) == "" {
			warnings = append(warnings, fmt.Sprintf(
				"dropped %s relation for %s: no object label", r.RelationType, r.SubjectName))
			continue
		}
		if !relation.ValidIntensity(r.Intensity) {
			warnings = append(warnings, fmt.Sprintf(
				"cleared unknown intensity %q on %s %s", r.Intensity, r.SubjectName, r.RelationType))
			r.Intensity = ""
		}
		if !relation.ValidStatus(r.Status) {
			warnings = append(warnings, fmt.Sprintf(
				"cleared unknown status %q on %s %s", r.Status, r.SubjectName, r.RelationType))
			r.Status = ""
		}
		if r.Status == "" {
			r.Status = relation.StatusCurrent
		}
		r.Confidence = clamp01(r.Confidence)
		relations = append(relations, r)
	}
	resp.Relations = relations

	matches := resp.AmbiguousMatches[:0]
	for _, m := range resp.AmbiguousMatches {
		if strings.TrimSpace(m.NameInStory) == "" {
			warnings = append(warnings, "dropped ambiguous match with no name")
			continue
		}
		matches = append(matches, m)
	}
	resp.AmbiguousMatches = matches

	return warnings
}

// validPersonType reports whether t is a known person type. Empty is
// allowed; it defaults to mentioned downstream.
func validPersonType(t string) bool {
	switch t {
	case "", "primary", "mentioned", "placeholder":
		return true
	}
	return false
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func snippet(s string) string {
	if len(s) > 120 {
		return s[:120] + "..."
	}
	return s
}
