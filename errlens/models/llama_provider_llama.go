//go:build llama && !no_llama

package models

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// LlamaGenerator runs chat-style generation on a local GGUF model through
// llama.cpp. The model is loaded lazily via Load so the manager can gate
// readiness.
type LlamaGenerator struct {
	cfg    ProviderConfig
	logger zerolog.Logger

	mu     sync.Mutex
	model  *llama.LLama
	health providerHealth
}

// NewLlamaGenerator creates an unloaded generator.
func NewLlamaGenerator(cfg ProviderConfig, logger zerolog.Logger) (*LlamaGenerator, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}
	return &LlamaGenerator{
		cfg:    cfg,
		logger: logger.With().Str("component", "llama-generator").Str("model_path", cfg.ModelPath).Logger(),
	}, nil
}

// Load loads the model weights. Safe to call more than once.
func (p *LlamaGenerator) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return nil
	}
	if err := modelFileExists(p.cfg.ModelPath); err != nil {
		return err
	}

	model, err := llama.New(p.cfg.ModelPath,
		llama.SetContext(p.cfg.ContextSize),
		llama.SetGPULayers(p.cfg.GPULayers),
	)
	if err != nil {
		return fmt.Errorf("llama.New: %w", err)
	}
	p.model = model
	p.logger.Info().Msg("chat model loaded")
	return nil
}

// Close frees the model.
func (p *LlamaGenerator) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

// Generate runs one blocking completion.
func (p *LlamaGenerator) Generate(ctx context.Context, in ports.GenerateInput, opts ports.Options) (ports.Generation, error) {
	text, err := p.predict(ctx, buildPrompt(in), opts, nil)
	if err != nil {
		p.health.recordFailure(err.Error())
		return ports.Generation{}, err
	}
	p.health.recordSuccess()
	return ports.Generation{Text: text}, nil
}

// Stream runs one completion, emitting tokens on the returned channel. The
// channel closes after a final chunk with Done set.
func (p *LlamaGenerator) Stream(ctx context.Context, in ports.GenerateInput, opts ports.Options) (<-chan ports.Chunk, error) {
	out := make(chan ports.Chunk, 16)

	go func() {
		defer close(out)
		_, err := p.predict(ctx, buildPrompt(in), opts, func(tok string) bool {
			select {
			case out <- ports.Chunk{DeltaText: tok}:
				return true
			case <-ctx.Done():
				return false
			}
		})
		if err != nil {
			p.health.recordFailure(err.Error())
		} else {
			p.health.recordSuccess()
		}
		out <- ports.Chunk{Done: true}
	}()

	return out, nil
}

func (p *LlamaGenerator) predict(ctx context.Context, prompt string, opts ports.Options, onToken func(string) bool) (string, error) {
	p.mu.Lock()
	model := p.model
	p.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("chat model is not loaded")
	}

	if opts.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.TimeoutMs)*time.Millisecond)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	predictOpts := []llama.PredictOption{
		llama.SetTemperature(effectiveTemperature(opts)),
		llama.SetTopP(effectiveTopP(opts)),
		llama.SetTokens(effectiveMaxTokens(opts)),
	}
	if onToken != nil {
		predictOpts = append(predictOpts, llama.SetTokenCallback(onToken))
	}

	start := time.Now()
	result, err := model.Predict(prompt, predictOpts...)
	if err != nil {
		return "", fmt.Errorf("prediction failed: %w", err)
	}
	p.logger.Debug().
		Dur("duration", time.Since(start)).
		Int("output_length", len(result)).
		Msg("generation complete")
	return result, nil
}

// Health returns call counters.
func (p *LlamaGenerator) Health() HealthSnapshot { return p.health.Snapshot() }

var _ ports.Generator = (*LlamaGenerator)(nil)

// LlamaVision describes images using a vision-tuned GGUF model. The current
// binding feeds the model an image summary rather than pixel tensors.
type LlamaVision struct {
	cfg    ProviderConfig
	logger zerolog.Logger

	mu     sync.Mutex
	model  *llama.LLama
	health providerHealth
}

// NewLlamaVision creates an unloaded vision provider.
func NewLlamaVision(cfg ProviderConfig, logger zerolog.Logger) (*LlamaVision, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid vision config: %w", err)
	}
	return &LlamaVision{
		cfg:    cfg,
		logger: logger.With().Str("component", "llama-vision").Str("model_path", cfg.ModelPath).Logger(),
	}, nil
}

// Load loads the vision model weights. Safe to call more than once.
func (p *LlamaVision) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		return nil
	}
	if err := modelFileExists(p.cfg.ModelPath); err != nil {
		return err
	}

	model, err := llama.New(p.cfg.ModelPath,
		llama.SetContext(p.cfg.ContextSize),
		llama.SetGPULayers(p.cfg.GPULayers),
	)
	if err != nil {
		return fmt.Errorf("llama.New: %w", err)
	}
	p.model = model
	p.logger.Info().Msg("vision model loaded")
	return nil
}

// Close frees the model.
func (p *LlamaVision) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.model != nil {
		p.model.Free()
		p.model = nil
	}
	return nil
}

// DescribeImage returns a textual description of the image. The image must
// decode as PNG or JPEG.
func (p *LlamaVision) DescribeImage(ctx context.Context, img []byte, prompt string) (string, error) {
	p.mu.Lock()
	model := p.model
	p.mu.Unlock()
	if model == nil {
		return "", fmt.Errorf("vision model is not loaded")
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(img))
	if err != nil {
		p.health.recordFailure(err.Error())
		return "", fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fullPrompt := fmt.Sprintf("The user provided a %dx%d %s image.\n%s", cfg.Width, cfg.Height, format, prompt)
	result, err := model.Predict(fullPrompt,
		llama.SetTemperature(0.2),
		llama.SetTopP(0.9),
		llama.SetTokens(512),
	)
	if err != nil {
		p.health.recordFailure(err.Error())
		return "", fmt.Errorf("vision prediction failed: %w", err)
	}
	p.health.recordSuccess()
	return result, nil
}

// Health returns call counters.
func (p *LlamaVision) Health() HealthSnapshot { return p.health.Snapshot() }

var _ ports.Vision = (*LlamaVision)(nil)

func effectiveTemperature(o ports.Options) float64 {
	if o.Temperature <= 0 {
		return 0.7
	}
	return float64(o.Temperature)
}

func effectiveTopP(o ports.Options) float64 {
	if o.TopP <= 0 {
		return 0.9
	}
	return float64(o.TopP)
}

func effectiveMaxTokens(o ports.Options) int {
	if o.MaxNewTokens <= 0 {
		return 512
	}
	return o.MaxNewTokens
}
