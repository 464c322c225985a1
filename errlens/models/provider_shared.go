package models

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// ProviderConfig holds the settings shared by the llama-backed providers.
type ProviderConfig struct {
	ModelPath   string
	ContextSize int
	Threads     int
	GPULayers   int
	UseMMAP     bool
}

// DefaultProviderConfig returns sane defaults for a quantized GGUF model.
func DefaultProviderConfig(modelPath string) ProviderConfig {
	return ProviderConfig{
		ModelPath:   modelPath,
		ContextSize: 4096,
		Threads:     8,
		GPULayers:   -1,
		UseMMAP:     true,
	}
}

func (c ProviderConfig) validate() error {
	if c.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if c.ContextSize <= 0 {
		return fmt.Errorf("context size must be positive, got %d", c.ContextSize)
	}
	return nil
}

// modelFileExists reports whether the configured model file is present, so
// load failures surface before llama touches the path.
func modelFileExists(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("model file %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("model path %s is a directory", path)
	}
	return nil
}

// buildPrompt assembles the full prompt for one generation: system
// directive, classifier hints, the user's input, and a structured-output
// directive when a capability is requested.
func buildPrompt(in ports.GenerateInput) string {
	var b strings.Builder

	if in.System != "" {
		b.WriteString(in.System)
		b.WriteString("\n\n")
	}
	for _, h := range in.Hints {
		b.WriteString("Hint: ")
		b.WriteString(h)
		b.WriteString("\n")
	}
	if len(in.Hints) > 0 {
		b.WriteString("\n")
	}
	b.WriteString(in.Prompt)

	if in.Capability != nil {
		b.WriteString("\n\nRespond with a short narrative followed by a JSON object named ")
		b.WriteString(in.Capability.Name)
		b.WriteString(" conforming to this schema:\n")
		b.Write(in.Capability.JSONSchema)
	}

	return b.String()
}

// providerHealth tracks call outcomes for status displays.
type providerHealth struct {
	mu           sync.Mutex
	totalCalls   int64
	failureCalls int64
	lastUsed     time.Time
	lastError    string
}

func (h *providerHealth) recordSuccess() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalCalls++
	h.lastUsed = time.Now()
}

func (h *providerHealth) recordFailure(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.totalCalls++
	h.failureCalls++
	h.lastUsed = time.Now()
	h.lastError = msg
}

// Snapshot returns the counters as a plain struct.
func (h *providerHealth) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return HealthSnapshot{
		TotalCalls:   h.totalCalls,
		FailureCalls: h.failureCalls,
		LastUsed:     h.lastUsed,
		LastError:    h.lastError,
	}
}

// HealthSnapshot is a point-in-time view of provider health.
type HealthSnapshot struct {
	TotalCalls   int64
	FailureCalls int64
	LastUsed     time.Time
	LastError    string
}
