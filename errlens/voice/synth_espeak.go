package voice

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// EspeakSynthesizer speaks text by rendering it to WAV with the espeak-ng
// binary and playing the result through the default audio output.
type EspeakSynthesizer struct {
	binary       string
	defaultVoice string

	speakerOnce sync.Once
	speakerErr  error
}

// NewEspeakSynthesizer creates a synthesizer using the espeak-ng binary on
// PATH. defaultVoice applies when a turn does not name one.
func NewEspeakSynthesizer(defaultVoice string) *EspeakSynthesizer {
	return &EspeakSynthesizer{binary: "espeak-ng", defaultVoice: defaultVoice}
}

// Probe checks that the espeak-ng binary is available, for readiness gating.
func (s *EspeakSynthesizer) Probe(ctx context.Context) error {
	if _, err := exec.LookPath(s.binary); err != nil {
		return fmt.Errorf("espeak-ng not found: %w", err)
	}
	return nil
}

// Speak renders and plays the text, blocking until playback completes or
// the context is cancelled.
func (s *EspeakSynthesizer) Speak(ctx context.Context, text, voice string) error {
	if text == "" {
		return nil
	}
	if voice == "" {
		voice = s.defaultVoice
	}

	tmp, err := os.CreateTemp("", "errlens-tts-*.wav")
	if err != nil {
		return fmt.Errorf("create temp wav: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	args := []string{"-w", tmpPath}
	if voice != "" {
		args = append(args, "-v", voice)
	}
	args = append(args, text)

	cmd := exec.CommandContext(ctx, s.binary, args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("espeak-ng: %w: %s", err, out)
	}

	return s.play(ctx, tmpPath)
}

func (s *EspeakSynthesizer) play(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open rendered wav: %w", err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode rendered wav: %w", err)
	}
	defer streamer.Close()

	// The speaker is a process-wide singleton; initialize it once with the
	// first stream's sample rate and resample everything after.
	s.speakerOnce.Do(func() {
		s.speakerErr = speaker.Init(format.SampleRate, format.SampleRate.N(time.Second/10))
	})
	if s.speakerErr != nil {
		return fmt.Errorf("init speaker: %w", s.speakerErr)
	}

	done := make(chan struct{})
	speaker.Play(beep.Seq(streamer, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

var _ Synthesizer = (*EspeakSynthesizer)(nil)
