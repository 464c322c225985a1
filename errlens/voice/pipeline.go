package voice

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// Transcriber converts mono 16 kHz float32 PCM into text.
type Transcriber interface {
	TranscribePCM(ctx context.Context, pcm []float32) (string, error)
}

// Synthesizer speaks text aloud, blocking until playback finishes.
type Synthesizer interface {
	Speak(ctx context.Context, text, voice string) error
}

const respondSystemPrompt = "You are a debugging assistant. The user describes an error " +
	"out loud. Reply briefly and conversationally with the likely cause and a concrete next step."

// PipelineConfig tunes the voice pipeline.
type PipelineConfig struct {
	SampleRate int
	DumpDir    string // when set, captured segments are written here as WAV
	GenOptions ports.Options
}

// Pipeline chains transcription, response generation, and synthesis into
// one spoken exchange. It implements the VoicePipeline port: each stage
// reports through the turn callbacks so the session controller can mirror
// progress into its log.
type Pipeline struct {
	stt    Transcriber
	gen    ports.Generator
	synth  Synthesizer
	cfg    PipelineConfig
	logger zerolog.Logger
}

// NewPipeline creates a pipeline. All three stages are required.
func NewPipeline(stt Transcriber, gen ports.Generator, synth Synthesizer, cfg PipelineConfig, logger zerolog.Logger) (*Pipeline, error) {
	if stt == nil || gen == nil || synth == nil {
		return nil, fmt.Errorf("pipeline requires transcriber, generator and synthesizer")
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	return &Pipeline{
		stt:    stt,
		gen:    gen,
		synth:  synth,
		cfg:    cfg,
		logger: logger.With().Str("component", "voice-pipeline").Logger(),
	}, nil
}

// ProcessTurn runs one spoken exchange over the captured samples.
func (p *Pipeline) ProcessTurn(ctx context.Context, samples []float32, opts ports.TurnOptions, cb ports.TurnCallbacks) error {
	if len(samples) == 0 {
		return fmt.Errorf("no audio samples")
	}

	if p.cfg.DumpDir != "" {
		name := filepath.Join(p.cfg.DumpDir, fmt.Sprintf("segment-%d.wav", time.Now().UnixMilli()))
		if err := WriteWAV(name, samples, p.cfg.SampleRate); err != nil {
			p.logger.Warn().Err(err).Str("path", name).Msg("segment dump failed")
		}
	}

	text, err := p.stt.TranscribePCM(ctx, samples)
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return fmt.Errorf("no speech recognized")
	}
	if cb.OnTranscription != nil {
		cb.OnTranscription(text)
	}

	full, err := p.respond(ctx, text, cb)
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}
	if cb.OnResponseComplete != nil {
		cb.OnResponseComplete(full)
	}

	if opts.SpeakResponse {
		if err := p.synth.Speak(ctx, full, opts.Voice); err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}
	}
	if cb.OnSynthesisComplete != nil {
		cb.OnSynthesisComplete()
	}
	return nil
}

// respond streams the model's reply, forwarding tokens as they arrive.
func (p *Pipeline) respond(ctx context.Context, text string, cb ports.TurnCallbacks) (string, error) {
	in := ports.GenerateInput{
		System: respondSystemPrompt,
		Prompt: text,
	}
	ch, err := p.gen.Stream(ctx, in, p.cfg.GenOptions)
	if err != nil {
		return "", err
	}

	var acc strings.Builder
	for chunk := range ch {
		if chunk.Done {
			break
		}
		acc.WriteString(chunk.DeltaText)
		if cb.OnResponseToken != nil {
			cb.OnResponseToken(chunk.DeltaText)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	full := strings.TrimSpace(acc.String())
	if full == "" {
		return "", fmt.Errorf("empty response")
	}
	return full, nil
}

var _ ports.VoicePipeline = (*Pipeline)(nil)
