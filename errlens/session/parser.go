package session

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// resultParser salvages a structured analysis from narrative text when the
// provider emitted no structured call. Small models frequently inline the
// JSON object into the response instead of routing it through the
// capability; salvaging keeps those analyses instead of degrading them to
// all-default fields.
type resultParser struct {
	object *regexp.Regexp
}

func newResultParser() *resultParser {
	return &resultParser{
		// First {...} block, non-greedy across lines.
		object: regexp.MustCompile(`(?s)\{.*?\}`),
	}
}

// Salvage extracts a structured result from text, or nil when no usable
// JSON object with at least one known analysis field is present.
func (p *resultParser) Salvage(text string) *ports.StructuredResult {
	match := p.object.FindString(text)
	if match == "" {
		return nil
	}

	raw := match
	if !json.Valid([]byte(raw)) {
		raw = p.fixJSON(raw)
		if !json.Valid([]byte(raw)) {
			return nil
		}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil
	}

	known := map[string]bool{
		fieldErrorType:       true,
		fieldSeverity:        true,
		fieldRootCause:       true,
		fieldSuggestedFix:    true,
		fieldCodeExample:     true,
		fieldAdditionalNotes: true,
	}

	fields := make(map[string]string)
	for k, v := range obj {
		if !known[k] {
			continue
		}
		switch t := v.(type) {
		case string:
			fields[k] = t
		case float64, bool:
			fields[k] = fmt.Sprint(t)
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ports.StructuredResult{Fields: fields}
}

// fixJSON repairs the JSON mistakes small models make most often.
func (p *resultParser) fixJSON(s string) string {
	// Trailing commas before closing braces/brackets.
	s = regexp.MustCompile(`,\s*([}\]])`).ReplaceAllString(s, "$1")
	// Unquoted keys.
	s = regexp.MustCompile(`([{,]\s*)([a-zA-Z_][a-zA-Z0-9_]*)\s*:`).ReplaceAllString(s, `$1"$2":`)
	// Single quotes.
	s = strings.ReplaceAll(s, "'", `"`)
	return s
}
