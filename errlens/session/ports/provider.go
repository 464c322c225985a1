package sessionports

import (
	"context"
	"strings"
)

// CapabilitySpec describes a structured-output capability the model is asked
// to fill. The controller constructs the spec once at initialization and
// passes it by reference into each generation call; nothing is registered
// globally and the spec's lifetime is tied to the controller's.
type CapabilitySpec struct {
	Name        string // unique logical name, e.g. "analyze_error"
	Description string // concise doc for model selection
	JSONSchema  []byte // JSON schema for the structured fields
}

// GenerateInput aggregates everything the provider needs for one completion.
type GenerateInput struct {
	System     string   // fixed system directive
	Prompt     string   // raw user input
	Hints      []string // optional context snippets prepended to the prompt
	Capability *CapabilitySpec
}

// Options controls sampling, limits, and determinism.
type Options struct {
	MaxNewTokens int
	Temperature  float32
	TopP         float32
	Seed         int
	TimeoutMs    int // applies to the provider call only
}

// StructuredResult carries the named string fields produced through the
// capability. Any subset of fields may be absent; consumers default
// per-field rather than fail.
type StructuredResult struct {
	Fields map[string]string
}

// Get returns the named field, or fallback when it is absent or blank.
func (r *StructuredResult) Get(name, fallback string) string {
	if r == nil {
		return fallback
	}
	if v, ok := r.Fields[name]; ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return fallback
}

// Generation is the provider's non-streaming response.
type Generation struct {
	Text       string            // narrative text, may be empty
	Structured *StructuredResult // nil when the model emitted no structured call
}

// Chunk is the provider's streaming delta.
type Chunk struct {
	DeltaText string
	Done      bool
}

// Generator is the abstraction for the structured-generation collaborator.
type Generator interface {
	Generate(ctx context.Context, in GenerateInput, opts Options) (Generation, error)
	Stream(ctx context.Context, in GenerateInput, opts Options) (<-chan Chunk, error)
}
