//go:build !llama || no_llama

package models

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sync"

	"github.com/rs/zerolog"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

const noLlamaResponse = "Local inference is not available in this build."

// LlamaGenerator is the non-CGO placeholder. Load succeeds and generation
// returns a fixed response, keeping the rest of the session usable.
type LlamaGenerator struct {
	cfg    ProviderConfig
	logger zerolog.Logger

	mu     sync.Mutex
	loaded bool
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

// Load marks the placeholder ready.
func (p *LlamaGenerator) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true
	p.logger.Info().Msg("chat model loaded (no-op)")
	return nil
}

// Close is a no-op.
func (p *LlamaGenerator) Close() error { return nil }

// Generate returns the fixed placeholder response.
func (p *LlamaGenerator) Generate(ctx context.Context, in ports.GenerateInput, opts ports.Options) (ports.Generation, error) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
		return ports.Generation{}, fmt.Errorf("chat model is not loaded")
	}
	if err := ctx.Err(); err != nil {
		return ports.Generation{}, err
	}
	p.health.recordSuccess()
	return ports.Generation{Text: noLlamaResponse}, nil
}

// Stream emits the placeholder response as a single chunk.
func (p *LlamaGenerator) Stream(ctx context.Context, in ports.GenerateInput, opts ports.Options) (<-chan ports.Chunk, error) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
		return nil, fmt.Errorf("chat model is not loaded")
	}

	out := make(chan ports.Chunk, 2)
	go func() {
		defer close(out)
		select {
		case out <- ports.Chunk{DeltaText: noLlamaResponse}:
		case <-ctx.Done():
		}
		out <- ports.Chunk{Done: true}
	}()
	p.health.recordSuccess()
	return out, nil
}

// Health returns call counters.
func (p *LlamaGenerator) Health() HealthSnapshot { return p.health.Snapshot() }

var _ ports.Generator = (*LlamaGenerator)(nil)

// LlamaVision is the non-CGO placeholder vision provider. It still decodes
// the image header so malformed input fails the same way in both builds.
type LlamaVision struct {
	cfg    ProviderConfig
	logger zerolog.Logger

	mu     sync.Mutex
	loaded bool
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

// Load marks the placeholder ready.
func (p *LlamaVision) Load(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.loaded = true
	p.logger.Info().Msg("vision model loaded (no-op)")
	return nil
}

// Close is a no-op.
func (p *LlamaVision) Close() error { return nil }

// DescribeImage validates the image and returns a dimension summary.
func (p *LlamaVision) DescribeImage(ctx context.Context, img []byte, prompt string) (string, error) {
	p.mu.Lock()
	loaded := p.loaded
	p.mu.Unlock()
	if !loaded {
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
	p.health.recordSuccess()
	return fmt.Sprintf("A %dx%d %s image. %s", cfg.Width, cfg.Height, format, noLlamaResponse), nil
}

// Health returns call counters.
func (p *LlamaVision) Health() HealthSnapshot { return p.health.Snapshot() }

var _ ports.Vision = (*LlamaVision)(nil)
