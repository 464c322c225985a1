//go:build !whisper || no_whisper

package voice

import (
	"context"
	"fmt"
	"sync"
)

// TranscribeOptions tune whisper transcription.
type TranscribeOptions struct {
	Language      string
	Threads       int
	InitialPrompt string
}

// WhisperTranscriber is the non-CGO placeholder. Load succeeds and
// transcription returns a fixed string, keeping the pipeline exercisable.
type WhisperTranscriber struct {
	modelPath string
	opts      TranscribeOptions

	mu     sync.Mutex
	loaded bool
}

// NewWhisperTranscriber creates an unloaded transcriber.
func NewWhisperTranscriber(modelPath string, opts TranscribeOptions) (*WhisperTranscriber, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper model path is required")
	}
	return &WhisperTranscriber{modelPath: modelPath, opts: opts}, nil
}

// Load marks the placeholder ready.
func (t *WhisperTranscriber) Load(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.loaded = true
	return nil
}

// Close is a no-op.
func (t *WhisperTranscriber) Close() error { return nil }

// TranscribePCM returns a fixed placeholder transcript.
func (t *WhisperTranscriber) TranscribePCM(ctx context.Context, pcm []float32) (string, error) {
	t.mu.Lock()
	loaded := t.loaded
	t.mu.Unlock()
	if !loaded {
		return "", fmt.Errorf("whisper model is not loaded")
	}
	if len(pcm) == 0 {
		return "", fmt.Errorf("no audio samples provided")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return "transcription unavailable in this build", nil
}

var _ Transcriber = (*WhisperTranscriber)(nil)
