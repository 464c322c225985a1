package voice

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) TranscribePCM(ctx context.Context, pcm []float32) (string, error) {
	return f.text, f.err
}

type fakeGenerator struct {
	tokens []string
	err    error
}

func (f *fakeGenerator) Generate(ctx context.Context, in ports.GenerateInput, _ ports.Options) (ports.Generation, error) {
	if f.err != nil {
		return ports.Generation{}, f.err
	}
	var text string
	for _, tok := range f.tokens {
		text += tok
	}
	return ports.Generation{Text: text}, nil
}

func (f *fakeGenerator) Stream(ctx context.Context, in ports.GenerateInput, _ ports.Options) (<-chan ports.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := make(chan ports.Chunk, len(f.tokens)+1)
	for _, tok := range f.tokens {
		out <- ports.Chunk{DeltaText: tok}
	}
	out <- ports.Chunk{Done: true}
	close(out)
	return out, nil
}

type fakeSynth struct {
	spoken []string
	voices []string
	err    error
}

func (f *fakeSynth) Speak(ctx context.Context, text, voice string) error {
	if f.err != nil {
		return f.err
	}
	f.spoken = append(f.spoken, text)
	f.voices = append(f.voices, voice)
	return nil
}

func newTestPipeline(t *testing.T, stt *fakeTranscriber, gen *fakeGenerator, synth *fakeSynth) *Pipeline {
	t.Helper()
	p, err := NewPipeline(stt, gen, synth, PipelineConfig{SampleRate: 16000}, zerolog.Nop())
	require.NoError(t, err)
	return p
}

func collectCallbacks(order *[]string, transcript, response *string) ports.TurnCallbacks {
	return ports.TurnCallbacks{
		OnTranscription: func(text string) {
			*order = append(*order, "transcription")
			*transcript = text
		},
		OnResponseToken: func(string) {
			*order = append(*order, "token")
		},
		OnResponseComplete: func(full string) {
			*order = append(*order, "complete")
			*response = full
		},
		OnSynthesisComplete: func() {
			*order = append(*order, "synthesis")
		},
	}
}

func TestProcessTurnHappyPath(t *testing.T) {
	stt := &fakeTranscriber{text: " my app crashed "}
	gen := &fakeGenerator{tokens: []string{"Try ", "a ", "null check."}}
	synth := &fakeSynth{}
	p := newTestPipeline(t, stt, gen, synth)

	var order []string
	var transcript, response string
	cb := collectCallbacks(&order, &transcript, &response)

	err := p.ProcessTurn(context.Background(), make([]float32, 3200),
		ports.TurnOptions{SpeakResponse: true, Voice: "en"}, cb)
	require.NoError(t, err)

	assert.Equal(t, []string{"transcription", "token", "token", "token", "complete", "synthesis"}, order)
	assert.Equal(t, "my app crashed", transcript)
	assert.Equal(t, "Try a null check.", response)
	assert.Equal(t, []string{"Try a null check."}, synth.spoken)
	assert.Equal(t, []string{"en"}, synth.voices)
}

func TestProcessTurnSkipsSynthesisWhenMuted(t *testing.T) {
	stt := &fakeTranscriber{text: "hello"}
	gen := &fakeGenerator{tokens: []string{"hi"}}
	synth := &fakeSynth{}
	p := newTestPipeline(t, stt, gen, synth)

	var order []string
	var transcript, response string
	cb := collectCallbacks(&order, &transcript, &response)

	err := p.ProcessTurn(context.Background(), make([]float32, 3200), ports.TurnOptions{}, cb)
	require.NoError(t, err)

	assert.Empty(t, synth.spoken)
	// The turn still settles through the synthesis-complete callback.
	assert.Equal(t, "synthesis", order[len(order)-1])
}

func TestProcessTurnEmptyAudio(t *testing.T) {
	p := newTestPipeline(t, &fakeTranscriber{text: "x"}, &fakeGenerator{tokens: []string{"y"}}, &fakeSynth{})

	err := p.ProcessTurn(context.Background(), nil, ports.TurnOptions{}, ports.TurnCallbacks{})
	assert.Error(t, err)
}

func TestProcessTurnTranscriptionFailure(t *testing.T) {
	stt := &fakeTranscriber{err: errors.New("model busted")}
	p := newTestPipeline(t, stt, &fakeGenerator{tokens: []string{"y"}}, &fakeSynth{})

	var order []string
	var transcript, response string
	cb := collectCallbacks(&order, &transcript, &response)

	err := p.ProcessTurn(context.Background(), make([]float32, 3200), ports.TurnOptions{}, cb)
	require.Error(t, err)
	assert.Empty(t, order)
}

func TestProcessTurnBlankTranscriptionIsError(t *testing.T) {
	stt := &fakeTranscriber{text: "   "}
	p := newTestPipeline(t, stt, &fakeGenerator{tokens: []string{"y"}}, &fakeSynth{})

	err := p.ProcessTurn(context.Background(), make([]float32, 3200), ports.TurnOptions{}, ports.TurnCallbacks{})
	assert.Error(t, err)
}

func TestProcessTurnSynthesisFailure(t *testing.T) {
	stt := &fakeTranscriber{text: "hello"}
	gen := &fakeGenerator{tokens: []string{"hi"}}
	synth := &fakeSynth{err: errors.New("no audio device")}
	p := newTestPipeline(t, stt, gen, synth)

	var order []string
	var transcript, response string
	cb := collectCallbacks(&order, &transcript, &response)

	err := p.ProcessTurn(context.Background(), make([]float32, 3200),
		ports.TurnOptions{SpeakResponse: true}, cb)
	require.Error(t, err)

	// The response completed before synthesis failed.
	assert.Contains(t, order, "complete")
	assert.NotContains(t, order, "synthesis")
}

func TestNewPipelineRequiresAllStages(t *testing.T) {
	_, err := NewPipeline(nil, &fakeGenerator{}, &fakeSynth{}, PipelineConfig{}, zerolog.Nop())
	assert.Error(t, err)
}
