//go:build whisper && !no_whisper

package voice

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// TranscribeOptions tune whisper transcription.
type TranscribeOptions struct {
	Language      string // "auto", "en", ...
	Threads       int    // <=0 uses NumCPU
	InitialPrompt string
}

// WhisperTranscriber transcribes 16 kHz mono PCM through whisper.cpp. The
// model loads via Load so readiness can be gated.
type WhisperTranscriber struct {
	modelPath string
	opts      TranscribeOptions

	mu    sync.Mutex
	model whisper.Model
}

// NewWhisperTranscriber creates an unloaded transcriber.
func NewWhisperTranscriber(modelPath string, opts TranscribeOptions) (*WhisperTranscriber, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper model path is required")
	}
	if opts.Language == "" {
		opts.Language = "auto"
	}
	return &WhisperTranscriber{modelPath: modelPath, opts: opts}, nil
}

// Load loads the whisper model. Safe to call more than once.
func (t *WhisperTranscriber) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model != nil {
		return nil
	}
	m, err := whisper.New(t.modelPath)
	if err != nil {
		return fmt.Errorf("load whisper model: %w", err)
	}
	t.model = m
	return nil
}

// Close frees the model.
func (t *WhisperTranscriber) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.model == nil {
		return nil
	}
	err := t.model.Close()
	t.model = nil
	return err
}

// TranscribePCM transcribes mono 16 kHz float32 samples in [-1, 1].
func (t *WhisperTranscriber) TranscribePCM(ctx context.Context, pcm []float32) (string, error) {
	t.mu.Lock()
	model := t.model
	t.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("whisper model is not loaded")
	}
	if len(pcm) == 0 {
		return "", fmt.Errorf("no audio samples provided")
	}

	wctx, err := model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new whisper context: %w", err)
	}

	if err := wctx.SetLanguage(t.opts.Language); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	threads := t.opts.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))
	if t.opts.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opts.InitialPrompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper process: %w", err)
	}

	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		seg, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString(strings.TrimSpace(seg.Text))
	}

	return b.String(), nil
}

var _ Transcriber = (*WhisperTranscriber)(nil)
