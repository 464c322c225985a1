package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/panics"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// VoiceState is the voice turn orchestrator's state over one spoken
// exchange. Error is reachable from any non-idle state and behaves like
// Idle for the purpose of accepting a new start request.
type VoiceState string

const (
	VoiceIdle          VoiceState = "idle"
	VoiceLoadingModels VoiceState = "loading-models"
	VoiceListening     VoiceState = "listening"
	VoiceTranscribing  VoiceState = "transcribing"
	VoiceResponding    VoiceState = "responding"
	VoiceSynthesizing  VoiceState = "synthesizing"
	VoiceError         VoiceState = "error"
)

// voiceRequiredCategories gate the Listening transition. All four must be
// ready before any audio is captured.
var voiceRequiredCategories = []ports.Category{
	ports.CategoryActivityDetection,
	ports.CategoryTranscription,
	ports.CategoryChat,
	ports.CategorySynthesis,
}

// voiceExchange tracks the resources of one listening session and spoken
// exchange. Capture release and exchange finalization each happen exactly
// once regardless of which path (completion, fault, stop) gets there first.
type voiceExchange struct {
	release     sync.Once
	finish      sync.Once
	unsubscribe func()
	cancel      context.CancelFunc // guarded by Controller.mu
	done        bool               // guarded by Controller.mu; set once finalized
	assistantID TurnID             // assistant turn of this exchange, created lazily on first token
}

// StartVoice begins one voice interaction. The start is two-phase: when any
// required model category is unready the models are loaded and the state
// returns to idle with a retry message, keeping each phase independently
// retryable and observable. A failed load never proceeds to capture audio.
// When everything is ready the orchestrator acquires the capture stream and
// listens until the activity detector reports a qualifying speech segment.
func (c *Controller) StartVoice(ctx context.Context) error {
	if c.pipeline == nil || c.detector == nil || c.capture == nil {
		return fmt.Errorf("voice collaborators are not wired")
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return nil
	}
	switch c.voiceState {
	case VoiceIdle, VoiceError:
	default:
		c.mu.Unlock()
		return nil
	}

	var missing []ports.Category
	for _, cat := range voiceRequiredCategories {
		if !c.loader.IsReady(cat) {
			missing = append(missing, cat)
		}
	}

	if len(missing) > 0 {
		c.voiceState = VoiceLoadingModels
		c.voiceStatus = "Loading voice models..."
		c.mu.Unlock()
		return c.loadVoiceModels(ctx, missing)
	}

	c.detector.Reset()
	ex := &voiceExchange{}
	ex.unsubscribe = c.detector.OnActivity(func(a ports.Activity) {
		c.onActivity(ctx, ex, a)
	})

	if err := c.capture.Start(c.detector.ProcessSamples, nil); err != nil {
		ex.unsubscribe()
		c.voiceState = VoiceError
		c.voiceStatus = fmt.Sprintf("Microphone unavailable: %s", err.Error())
		c.mu.Unlock()
		return err
	}

	c.voiceEx = ex
	c.voiceState = VoiceListening
	c.voiceStatus = "Listening..."
	c.mu.Unlock()
	return nil
}

func (c *Controller) loadVoiceModels(ctx context.Context, missing []ports.Category) error {
	for _, cat := range missing {
		ctx, finish := c.tracer.StartSpan(ctx, "voice_model_load", map[string]any{"category": string(cat)})
		err := c.loader.EnsureLoaded(ctx, cat)
		finish(err)
		if err != nil {
			c.mu.Lock()
			c.voiceState = VoiceError
			c.voiceStatus = fmt.Sprintf("Failed to load %s model: %s", cat, err.Error())
			c.mu.Unlock()
			return err
		}
	}

	c.mu.Lock()
	c.voiceState = VoiceIdle
	c.voiceStatus = "Voice models loaded. Start voice again to begin listening."
	c.mu.Unlock()
	return nil
}

// onActivity handles detector events while listening. Only a speech-ended
// event with a segment above the minimum-duration gate leaves Listening.
func (c *Controller) onActivity(ctx context.Context, ex *voiceExchange, a ports.Activity) {
	if a != ports.ActivitySpeechEnd {
		return
	}

	seg, ok := c.detector.PopSegment()
	if !ok {
		return
	}
	if len(seg) <= c.voiceCfg.MinSegmentSamples {
		// Spurious noise trigger; stay listening.
		c.tracer.Event(ctx, "segment_discarded", map[string]any{"samples": len(seg)})
		return
	}

	c.mu.Lock()
	if ex.done || c.voiceState != VoiceListening || c.processing {
		c.mu.Unlock()
		return
	}
	c.processing = true
	c.voiceState = VoiceTranscribing
	c.voiceStatus = "Transcribing..."
	turnCtx, cancel := context.WithCancel(ctx)
	ex.cancel = cancel
	c.mu.Unlock()

	// Release capture before processing so at most one segment is handled
	// per listening session and no turn can overlap another. Outside the
	// lock: stopping capture joins the feed goroutine, which may be mid
	// callback.
	c.releaseListening(ex)

	go func() {
		var catcher panics.Catcher
		catcher.Try(func() { c.runVoiceTurn(turnCtx, ex, seg) })
		if r := catcher.Recovered(); r != nil {
			c.finishVoiceTurn(ex, VoiceError, fmt.Sprintf("voice turn panicked: %v", r.Value))
		}
	}()
}

// runVoiceTurn drives one combined transcribe/respond/synthesize call and
// mirrors its callbacks into the conversation log.
func (c *Controller) runVoiceTurn(ctx context.Context, ex *voiceExchange, seg []float32) {
	var acc strings.Builder

	cb := ports.TurnCallbacks{
		OnTranscription: func(text string) {
			id := c.log.AppendUser(text)
			c.archiveTurn(ctx, id)
			c.setTurnState(ex, VoiceResponding, "Responding...")
		},
		OnResponseToken: func(tok string) {
			acc.WriteString(tok)
			c.mu.Lock()
			id := ex.assistantID
			if id == "" {
				ex.assistantID = c.log.AppendAssistant(acc.String())
				c.mu.Unlock()
				return
			}
			c.mu.Unlock()
			// Replacement targets the exchange's own assistant turn by ID,
			// never "the last turn".
			c.log.ReplaceAt(id, acc.String(), nil)
		},
		OnResponseComplete: func(full string) {
			c.mu.Lock()
			id := ex.assistantID
			if id == "" {
				id = c.log.AppendAssistant(full)
				ex.assistantID = id
			}
			if !ex.done {
				c.voiceState = VoiceSynthesizing
				c.voiceStatus = "Speaking..."
			}
			c.mu.Unlock()
			if full != "" {
				c.log.ReplaceAt(id, full, nil)
			}
			c.archiveTurn(ctx, id)
		},
		OnSynthesisComplete: func() {
			c.finishVoiceTurn(ex, VoiceIdle, "")
		},
	}

	opts := ports.TurnOptions{
		SpeakResponse: c.voiceCfg.SpeakResponses,
		Voice:         c.voiceCfg.Voice,
	}
	if err := c.pipeline.ProcessTurn(ctx, seg, opts, cb); err != nil {
		c.finishVoiceTurn(ex, VoiceError, err.Error())
		return
	}
	// Pipelines normally settle through OnSynthesisComplete; this is a
	// no-op when that already ran.
	c.finishVoiceTurn(ex, VoiceIdle, "")
}

// StopVoice is the explicit user cancellation, permitted from Listening or
// later. It stops accepting new audio and releases the capture device and
// detector subscription; turns already appended to the log stay.
func (c *Controller) StopVoice() {
	c.mu.Lock()
	ex := c.voiceEx
	switch c.voiceState {
	case VoiceListening, VoiceTranscribing, VoiceResponding, VoiceSynthesizing:
	default:
		c.mu.Unlock()
		return
	}
	// Mark the exchange done and read its cancel under the lock: a
	// speech-ended transition racing this stop either observes done and
	// refuses to start the turn, or has already published its cancel.
	var cancel context.CancelFunc
	if ex != nil {
		ex.done = true
		cancel = ex.cancel
	}
	c.mu.Unlock()

	if ex == nil {
		return
	}
	c.releaseListening(ex)
	if cancel != nil {
		cancel()
	}
	c.finishVoiceTurn(ex, VoiceIdle, "")
}

// releaseListening stops capture and unsubscribes from detector events
// exactly once, on every path out of active listening, so no microphone
// stream is ever leaked.
func (c *Controller) releaseListening(ex *voiceExchange) {
	ex.release.Do(func() {
		c.capture.Stop()
		if ex.unsubscribe != nil {
			ex.unsubscribe()
		}
	})
}

// setTurnState records a mid-turn state transition. Late pipeline callbacks
// arriving after the exchange was finalized must not touch voice state, or a
// stopped session would be stranded outside Idle and refuse every restart.
func (c *Controller) setTurnState(ex *voiceExchange, state VoiceState, status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ex.done {
		return
	}
	c.voiceState = state
	c.voiceStatus = status
}

// finishVoiceTurn finalizes the exchange exactly once: clears the in-flight
// flag and records the terminal state and status.
func (c *Controller) finishVoiceTurn(ex *voiceExchange, state VoiceState, status string) {
	ex.finish.Do(func() {
		c.releaseListening(ex)
		c.mu.Lock()
		ex.done = true
		c.processing = false
		c.voiceState = state
		c.voiceStatus = status
		if c.voiceEx == ex {
			c.voiceEx = nil
		}
		c.mu.Unlock()
	})
}

// VoiceStatus returns the current voice status message.
func (c *Controller) VoiceStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceStatus
}

// CurrentVoiceState returns the voice orchestrator's state.
func (c *Controller) CurrentVoiceState() VoiceState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.voiceState
}
