package session

import (
	"strings"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// Severity classifies how serious an analyzed error is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity maps a free-text severity onto the enum. Absent or
// unrecognized values fall back to medium.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityLow:
		return SeverityLow
	case SeverityHigh:
		return SeverityHigh
	case SeverityCritical:
		return SeverityCritical
	case SeverityMedium:
		return SeverityMedium
	default:
		return SeverityMedium
	}
}

// ErrorAnalysis is the structured result of one analysis. It is only ever
// attached to assistant turns.
type ErrorAnalysis struct {
	ErrorType       string   `json:"error_type"`
	Severity        Severity `json:"severity"`
	RootCause       string   `json:"root_cause"`
	SuggestedFix    string   `json:"suggested_fix"`
	CodeExample     string   `json:"code_example"`
	AdditionalNotes string   `json:"additional_notes"`
}

// Structured field names emitted through the analyze_error capability.
const (
	fieldErrorType       = "errorType"
	fieldSeverity        = "severity"
	fieldRootCause       = "rootCause"
	fieldSuggestedFix    = "suggestedFix"
	fieldCodeExample     = "codeExample"
	fieldAdditionalNotes = "additionalNotes"
)

// analysisFromResult extracts an ErrorAnalysis from a structured result.
// Every field defaults independently; partial output is valid, not an
// error. A nil result yields a fully defaulted analysis.
func analysisFromResult(res *ports.StructuredResult) *ErrorAnalysis {
	return &ErrorAnalysis{
		ErrorType:       res.Get(fieldErrorType, "Unknown Error"),
		Severity:        ParseSeverity(res.Get(fieldSeverity, "")),
		RootCause:       res.Get(fieldRootCause, ""),
		SuggestedFix:    res.Get(fieldSuggestedFix, ""),
		CodeExample:     res.Get(fieldCodeExample, ""),
		AdditionalNotes: res.Get(fieldAdditionalNotes, ""),
	}
}

// analyzeDirective is the fixed system directive for the structured
// analysis round trip. The model is instructed to answer through exactly
// one structured call, which bounds latency and avoids multi-step tool
// loops.
const analyzeDirective = `You are an expert debugging assistant.
Analyze the error the user pastes and respond through a single analyze_error structured call.

For the error you must:
1. Identify the error type (e.g. "TypeError", "NullPointerException").
2. Assess severity as one of: low, medium, high, critical.
3. Explain the root cause in plain language.
4. Provide a concrete suggested fix.
5. Give a short code example demonstrating the fix.

Emit the answer through one structured call only. Do not chain further calls.`
