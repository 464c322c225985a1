// Package session implements the multi-modal debugging session controller:
// a mode manager, an append-only conversation log, and the orchestrators
// that drive text, vision, and voice exchanges through external on-device
// inference collaborators.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// Mode is the active input mode. Exactly one mode is active at a time.
type Mode string

const (
	ModeText   Mode = "text"
	ModeVision Mode = "vision"
	ModeVoice  Mode = "voice"
)

// VoiceSettings carries the voice-loop tunables the controller needs.
type VoiceSettings struct {
	// MinSegmentSamples is the hard gate below which a detected speech
	// segment is discarded as noise. 1600 samples at 16 kHz is 100 ms.
	MinSegmentSamples int
	SpeakResponses    bool
	Voice             string
}

// Deps wires the controller to its external collaborators. Generator and
// Loader are required; the rest default to no-ops through the factory.
type Deps struct {
	Generator ports.Generator
	Vision    ports.Vision
	Pipeline  ports.VoicePipeline
	Detector  ports.ActivityDetector
	Loader    ports.ModelLoader
	Capture   ports.CaptureDevice
	Tracer    ports.Tracer
	Store     ports.TranscriptStore
	Logger    zerolog.Logger

	GenOptions   ports.Options
	Voice        VoiceSettings
	ExportLocale string
}

// Controller owns one debugging session: its mode, its conversation log,
// and the single-flight processing gate shared by all three orchestrators.
type Controller struct {
	id  string
	log *Log

	generator ports.Generator
	vision    ports.Vision
	pipeline  ports.VoicePipeline
	detector  ports.ActivityDetector
	loader    ports.ModelLoader
	capture   ports.CaptureDevice
	tracer    ports.Tracer
	store     ports.TranscriptStore
	logger    zerolog.Logger

	capability   *ports.CapabilitySpec
	classify     *classifier
	salvage      *resultParser
	genOpts      ports.Options
	voiceCfg     VoiceSettings
	exportLocale string

	mu          sync.Mutex
	mode        Mode
	processing  bool
	voiceState  VoiceState
	voiceStatus string
	voiceEx     *voiceExchange
}

// View is a read-only snapshot of session state for presentation layers.
type View struct {
	ID          string
	Mode        Mode
	Processing  bool
	Turns       []Turn
	VoiceState  VoiceState
	VoiceStatus string
}

// NewController creates a session controller in text mode with an empty log.
func NewController(deps Deps) (*Controller, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator collaborator is required")
	}
	if deps.Loader == nil {
		return nil, fmt.Errorf("model loader collaborator is required")
	}

	c := &Controller{
		id:           uuid.NewString(),
		log:          NewLog(),
		generator:    deps.Generator,
		vision:       deps.Vision,
		pipeline:     deps.Pipeline,
		detector:     deps.Detector,
		loader:       deps.Loader,
		capture:      deps.Capture,
		tracer:       deps.Tracer,
		store:        deps.Store,
		logger:       deps.Logger,
		capability:   AnalyzeErrorCapability(),
		classify:     newClassifier(),
		salvage:      newResultParser(),
		genOpts:      deps.GenOptions,
		voiceCfg:     deps.Voice,
		exportLocale: deps.ExportLocale,
		mode:         ModeText,
		voiceState:   VoiceIdle,
	}
	if c.tracer == nil {
		c.tracer = noopTracer{}
	}
	if c.store == nil {
		c.store = noopStore{}
	}
	if c.voiceCfg.MinSegmentSamples == 0 {
		c.voiceCfg.MinSegmentSamples = 1600
	}
	return c, nil
}

// ID returns the session identity used by the transcript archive.
func (c *Controller) ID() string { return c.id }

// Mode returns the active input mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode switches the active input mode. The request is ignored while an
// operation is in flight so an in-flight operation is never orphaned
// against a stale mode. Transitions are fully reversible.
func (c *Controller) SetMode(next Mode) {
	switch next {
	case ModeText, ModeVision, ModeVoice:
	default:
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return
	}
	c.mode = next
}

// Processing reports whether any orchestrator has an in-flight operation.
func (c *Controller) Processing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// Snapshot returns a copy of the session state for rendering.
func (c *Controller) Snapshot() View {
	c.mu.Lock()
	mode, processing := c.mode, c.processing
	vstate, vstatus := c.voiceState, c.voiceStatus
	c.mu.Unlock()

	return View{
		ID:          c.id,
		Mode:        mode,
		Processing:  processing,
		Turns:       c.log.Snapshot(),
		VoiceState:  vstate,
		VoiceStatus: vstatus,
	}
}

// SubmitText runs one structured analysis of raw error text. It blocks
// until the round trip settles; presentation layers call it from their own
// goroutine.
func (c *Controller) SubmitText(ctx context.Context, errorText string) {
	c.Analyze(ctx, errorText)
}

// Analyze drives a single round trip through the structured-generation
// collaborator. Blank input or an in-flight operation is silently refused.
// When the chat model is not ready its load is triggered and the analysis
// is aborted without submitting; callers re-invoke after a successful load.
func (c *Controller) Analyze(ctx context.Context, errorText string) {
	if strings.TrimSpace(errorText) == "" {
		return
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return
	}
	if !c.loader.IsReady(ports.CategoryChat) {
		c.mu.Unlock()
		ctx, finish := c.tracer.StartSpan(ctx, "chat_model_load", nil)
		err := c.loader.EnsureLoaded(ctx, ports.CategoryChat)
		finish(err)
		if err != nil {
			c.logger.Warn().Err(err).Msg("chat model load failed")
		}
		return
	}

	// Both turns land before any inference call so observers see immediate
	// feedback instead of a transient gap.
	userID := c.log.AppendUser(errorText)
	placeholderID := c.log.AppendAssistantPlaceholder()
	c.processing = true
	c.mu.Unlock()

	c.archiveTurn(ctx, userID)

	// The flag clears on every path, faults included; the session must
	// never get stuck refusing input after an error.
	defer func() {
		c.mu.Lock()
		c.processing = false
		c.mu.Unlock()
	}()

	ctx, finish := c.tracer.StartSpan(ctx, "analyze", map[string]any{
		"session_id": c.id,
		"input_len":  len(errorText),
	})

	in := ports.GenerateInput{
		System:     analyzeDirective,
		Prompt:     errorText,
		Capability: c.capability,
	}
	if hint := c.classify.Hint(errorText); hint != "" {
		in.Hints = []string{hint}
	}

	gen, err := c.generator.Generate(ctx, in, c.genOpts)
	if err != nil {
		finish(err)
		c.log.ReplaceAt(placeholderID, fmt.Sprintf("Sorry, the analysis failed: %s", err.Error()), nil)
		c.archiveTurn(ctx, placeholderID)
		return
	}
	finish(nil)

	structured := gen.Structured
	if structured == nil {
		if structured = c.salvage.Salvage(gen.Text); structured != nil {
			c.tracer.Event(ctx, "structured_salvaged", nil)
		}
	}
	if verr := validateStructured(structured, c.capability); verr != nil {
		// Advisory only: partial or malformed structured output still
		// degrades to per-field defaults.
		c.tracer.Event(ctx, "structured_invalid", map[string]any{"error": verr.Error()})
	}

	narrative := strings.TrimSpace(gen.Text)
	if narrative == "" {
		narrative = "Analysis complete."
	}
	c.log.ReplaceAt(placeholderID, narrative, analysisFromResult(structured))
	c.archiveTurn(ctx, placeholderID)
}

// ClearHistory empties the conversation log unconditionally. Any user
// confirmation happens in the presentation layer.
func (c *Controller) ClearHistory() {
	c.log.Clear()
}

// ExportReport renders the conversation log as a deterministic
// human-readable report with timestamps in the configured locale.
func (c *Controller) ExportReport() string {
	return c.log.Export(c.exportLocale)
}

// archiveTurn hands one turn to the transcript archive. Archiving is
// best-effort: failures are traced and never surfaced.
func (c *Controller) archiveTurn(ctx context.Context, id TurnID) {
	turn, ok := c.log.Get(id)
	if !ok {
		return
	}

	var analysis []byte
	if turn.Analysis != nil {
		analysis, _ = json.Marshal(turn.Analysis)
	}

	err := c.store.SaveTurn(ctx, ports.TurnRecord{
		SessionID: c.id,
		TurnID:    string(turn.ID),
		Role:      string(turn.Role),
		Content:   turn.Content,
		Analysis:  analysis,
		CreatedAt: turn.CreatedAt,
	})
	if err != nil {
		c.tracer.Event(ctx, "archive_error", map[string]any{"error": err.Error()})
	}
}

// noopTracer and noopStore are the controller-level fallbacks when tracing
// or archiving is not wired.
type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string, _ map[string]any) (context.Context, func(error)) {
	return ctx, func(error) {}
}
func (noopTracer) Event(context.Context, string, map[string]any) {}

type noopStore struct{}

func (noopStore) SaveTurn(context.Context, ports.TurnRecord) error { return nil }

var (
	_ ports.Tracer          = noopTracer{}
	_ ports.TranscriptStore = noopStore{}
)
