package session

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportEmptyLog(t *testing.T) {
	l := NewLog()

	out := l.Export("")
	assert.True(t, strings.HasPrefix(out, "Debugging Session Report\n"))
	assert.Equal(t, 1, strings.Count(out, exportDelimiter))
}

func TestExportRendersTurnsInOrder(t *testing.T) {
	l := NewLog()
	l.AppendUser("TypeError: x is undefined")
	id := l.AppendAssistantPlaceholder()
	l.ReplaceAt(id, "It is a reference problem.", &ErrorAnalysis{
		ErrorType:       "TypeError",
		Severity:        SeverityHigh,
		RootCause:       "x was never assigned",
		SuggestedFix:    "declare x before use",
		CodeExample:     "let x = 0;",
		AdditionalNotes: "common in minified bundles",
	})

	out := l.Export("")

	// One header delimiter plus one per turn.
	assert.Equal(t, 3, strings.Count(out, exportDelimiter))
	assert.Contains(t, out, "USER\nTypeError: x is undefined")
	assert.Contains(t, out, "ASSISTANT\nIt is a reference problem.")

	// All six analysis fields appear with their labels.
	for _, label := range []string{
		"Error Type: TypeError",
		"Severity: high",
		"Root Cause: x was never assigned",
		"Suggested Fix: declare x before use",
		"Code Example:\nlet x = 0;",
		"Notes: common in minified bundles",
	} {
		assert.Contains(t, out, label)
	}

	// User turn carries no analysis block.
	userSection := out[:strings.Index(out, "ASSISTANT")]
	assert.NotContains(t, userSection, "Error Type:")
}

func TestExportLocaleControlsTimestampLayout(t *testing.T) {
	l := NewLog()
	l.AppendUser("some error")
	created := l.Snapshot()[0].CreatedAt.Local()

	// A known locale reorders the header timestamp; unknown locales and the
	// empty default render ISO order.
	assert.Contains(t, l.Export("en-US"), "["+created.Format("01/02/2006 03:04:05 PM")+"]")
	iso := "[" + created.Format("2006-01-02 15:04:05") + "]"
	assert.Contains(t, l.Export(""), iso)
	assert.Contains(t, l.Export("xx-XX"), iso)
}

func TestExportIsDeterministic(t *testing.T) {
	l := NewLog()
	l.AppendUser("some error")
	id := l.AppendAssistant("some answer")
	l.ReplaceAt(id, "some answer", &ErrorAnalysis{ErrorType: "Unknown Error", Severity: SeverityMedium})

	first := l.Export("")
	second := l.Export("")
	require.Equal(t, first, second)
}
