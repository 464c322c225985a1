package session

import (
	"fmt"
	"strings"
)

const (
	exportTimeLayout = "2006-01-02 15:04:05"
	exportDelimiter  = "--------------------------------------------------"
)

// exportLayouts maps report locales to header timestamp layouts. Unlisted
// locales fall back to ISO date order.
var exportLayouts = map[string]string{
	"en-US": "01/02/2006 03:04:05 PM",
	"en-GB": "02/01/2006 15:04:05",
	"de-DE": "02.01.2006 15:04:05",
}

func exportLayout(locale string) string {
	if layout, ok := exportLayouts[locale]; ok {
		return layout
	}
	return exportTimeLayout
}

// Export renders the whole log as a deterministic, human-readable report in
// timestamp order: a header line per turn with a locale-formatted local
// timestamp and uppercased role, the content, and a fixed-format analysis
// block when the turn carries one. The format is stable for human diffing,
// not meant to be machine round-trippable.
func (l *Log) Export(locale string) string {
	turns := l.Snapshot()
	layout := exportLayout(locale)

	var b strings.Builder
	b.WriteString("Debugging Session Report\n")
	b.WriteString(exportDelimiter + "\n")

	for _, t := range turns {
		b.WriteString("\n")
		fmt.Fprintf(&b, "[%s] %s\n", t.CreatedAt.Local().Format(layout), strings.ToUpper(string(t.Role)))
		b.WriteString(t.Content + "\n")

		if t.Analysis != nil {
			a := t.Analysis
			b.WriteString("\n")
			fmt.Fprintf(&b, "Error Type: %s\n", a.ErrorType)
			fmt.Fprintf(&b, "Severity: %s\n", a.Severity)
			fmt.Fprintf(&b, "Root Cause: %s\n", a.RootCause)
			fmt.Fprintf(&b, "Suggested Fix: %s\n", a.SuggestedFix)
			fmt.Fprintf(&b, "Code Example:\n%s\n", a.CodeExample)
			fmt.Fprintf(&b, "Notes: %s\n", a.AdditionalNotes)
		}

		b.WriteString("\n" + exportDelimiter + "\n")
	}

	return b.String()
}
