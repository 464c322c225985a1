package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

func TestParseSeverity(t *testing.T) {
	cases := map[string]Severity{
		"low":      SeverityLow,
		"MEDIUM":   SeverityMedium,
		" high ":   SeverityHigh,
		"critical": SeverityCritical,
		"":         SeverityMedium,
		"extreme":  SeverityMedium,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseSeverity(in), "input %q", in)
	}
}

func TestAnalysisFromNilResultIsFullyDefaulted(t *testing.T) {
	a := analysisFromResult(nil)

	assert.Equal(t, "Unknown Error", a.ErrorType)
	assert.Equal(t, SeverityMedium, a.Severity)
	assert.Empty(t, a.RootCause)
	assert.Empty(t, a.SuggestedFix)
	assert.Empty(t, a.CodeExample)
	assert.Empty(t, a.AdditionalNotes)
}

func TestAnalysisFieldsDefaultIndependently(t *testing.T) {
	res := &ports.StructuredResult{Fields: map[string]string{
		"severity":  "critical",
		"rootCause": "dangling pointer",
		"errorType": "  ", // blank counts as absent
	}}
	a := analysisFromResult(res)

	assert.Equal(t, "Unknown Error", a.ErrorType)
	assert.Equal(t, SeverityCritical, a.Severity)
	assert.Equal(t, "dangling pointer", a.RootCause)
	assert.Empty(t, a.SuggestedFix)
}

func TestStructuredResultGet(t *testing.T) {
	var nilRes *ports.StructuredResult
	assert.Equal(t, "fallback", nilRes.Get("anything", "fallback"))

	res := &ports.StructuredResult{Fields: map[string]string{"a": "x", "b": "   "}}
	assert.Equal(t, "x", res.Get("a", "d"))
	assert.Equal(t, "d", res.Get("b", "d"))
	assert.Equal(t, "d", res.Get("missing", "d"))
}
