package session

import (
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/errlens/errlens/errlens/config"
	adapters "github.com/errlens/errlens/errlens/session/adapters"
	ports "github.com/errlens/errlens/errlens/session/ports"
)

// Factory wires a session controller from configuration. Inference-specific
// collaborators (generator, vision, voice pipeline, loader) are injected;
// ambient concerns (tracing, archive, capture, detection) come from config
// with no-op fallbacks.
type Factory struct {
	cfg    *config.Config
	logger zerolog.Logger
	db     *sql.DB // optional, enables the transcript archive
}

// NewFactory creates a controller factory.
func NewFactory(cfg *config.Config, logger zerolog.Logger, db *sql.DB) *Factory {
	return &Factory{cfg: cfg, logger: logger, db: db}
}

// CreateController builds a fully wired controller.
func (f *Factory) CreateController(
	gen ports.Generator,
	vis ports.Vision,
	pipe ports.VoicePipeline,
	loader ports.ModelLoader,
) (*Controller, error) {
	deps := Deps{
		Generator: gen,
		Vision:    vis,
		Pipeline:  pipe,
		Loader:    loader,
		Logger:    f.logger,
		Tracer:    f.createTracer(),
		Store:     f.createStore(),
		Detector: adapters.NewEnergyDetector(adapters.EnergyDetectorConfig{
			SampleRate:        f.cfg.Voice.SampleRate,
			FrameSize:         f.cfg.Voice.FrameSize,
			NoiseFloorFactor:  f.cfg.Voice.NoiseFloorFactor,
			HangoverFrames:    f.cfg.Voice.HangoverFrames,
			MaxSegmentSamples: maxSegmentSamples(f.cfg.Voice),
		}),
		Capture: adapters.NewPortAudioCapture(f.cfg.Voice.SampleRate, f.cfg.Voice.FrameSize),
		GenOptions: ports.Options{
			MaxNewTokens: f.cfg.Models.MaxNewTokens,
			Temperature:  f.cfg.Models.Temperature,
			TopP:         f.cfg.Models.TopP,
		},
		Voice: VoiceSettings{
			MinSegmentSamples: f.cfg.Voice.MinSegmentSamples,
			SpeakResponses:    f.cfg.Voice.SpeakResponses,
			Voice:             f.cfg.Models.SynthesisVoice,
		},
		ExportLocale: f.cfg.Session.ExportLocale,
	}

	return NewController(deps)
}

// maxSegmentSamples converts the configured capture time cap into a sample
// count for the detector. A zero or negative cap disables it.
func maxSegmentSamples(v config.VoiceConfig) int {
	if v.MaxCapture <= 0 {
		return 0
	}
	return int(v.MaxCapture.Seconds() * float64(v.SampleRate))
}

func (f *Factory) createTracer() ports.Tracer {
	if !f.cfg.Session.EnableTracing {
		return noopTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

func (f *Factory) createStore() ports.TranscriptStore {
	if f.db == nil {
		return noopStore{}
	}
	return adapters.NewLibSQLTranscriptStore(f.db)
}
