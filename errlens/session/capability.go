package session

import (
	"encoding/json"
	"fmt"
	"strings"

	ports "github.com/errlens/errlens/errlens/session/ports"
	"github.com/xeipuuv/gojsonschema"
)

// analyzeErrorSchema constrains the structured fields of one analysis. All
// fields are optional on the wire; absence is handled by per-field defaults,
// the schema only rejects wrong shapes.
const analyzeErrorSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "properties": {
    "errorType":       { "type": "string" },
    "severity":        { "type": "string", "enum": ["low", "medium", "high", "critical"] },
    "rootCause":       { "type": "string" },
    "suggestedFix":    { "type": "string" },
    "codeExample":     { "type": "string" },
    "additionalNotes": { "type": "string" }
  },
  "additionalProperties": false
}`

// AnalyzeErrorCapability builds the structured-output capability descriptor
// for error analysis. The controller constructs it once and passes it into
// each generation call; its lifetime is the controller's, nothing is
// registered globally.
func AnalyzeErrorCapability() *ports.CapabilitySpec {
	return &ports.CapabilitySpec{
		Name:        "analyze_error",
		Description: "Report a structured analysis of one programming error.",
		JSONSchema:  []byte(analyzeErrorSchema),
	}
}

// validateStructured checks a structured result against the capability
// schema. The outcome is advisory: a failing result is traced, then still
// consumed through per-field defaults, because partial or mildly malformed
// structured output is not an error condition.
func validateStructured(res *ports.StructuredResult, spec *ports.CapabilitySpec) error {
	if res == nil || len(spec.JSONSchema) == 0 {
		return nil
	}

	doc, err := json.Marshal(res.Fields)
	if err != nil {
		return fmt.Errorf("marshal structured fields: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(spec.JSONSchema),
		gojsonschema.NewBytesLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		var msgs []string
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("schema validation errors: %s", strings.Join(msgs, "; "))
	}
	return nil
}
