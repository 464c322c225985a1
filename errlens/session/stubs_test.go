package session

import (
	"context"
	"sync"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// stubGenerator returns a canned generation, optionally blocking until
// release is closed so tests can hold the processing gate open.
type stubGenerator struct {
	mu      sync.Mutex
	calls   int
	last    ports.GenerateInput
	gen     ports.Generation
	err     error
	release chan struct{}
}

func (s *stubGenerator) Generate(ctx context.Context, in ports.GenerateInput, _ ports.Options) (ports.Generation, error) {
	s.mu.Lock()
	s.calls++
	s.last = in
	release := s.release
	s.mu.Unlock()

	if release != nil {
		<-release
	}
	if s.err != nil {
		return ports.Generation{}, s.err
	}
	return s.gen, nil
}

func (s *stubGenerator) Stream(ctx context.Context, in ports.GenerateInput, opts ports.Options) (<-chan ports.Chunk, error) {
	out := make(chan ports.Chunk, 2)
	gen, err := s.Generate(ctx, in, opts)
	if err != nil {
		close(out)
		return out, err
	}
	out <- ports.Chunk{DeltaText: gen.Text}
	out <- ports.Chunk{Done: true}
	close(out)
	return out, nil
}

func (s *stubGenerator) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func (s *stubGenerator) lastInput() ports.GenerateInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// stubLoader tracks which categories were loaded. EnsureLoaded marks the
// category ready unless err is set.
type stubLoader struct {
	mu    sync.Mutex
	ready map[ports.Category]bool
	loads []ports.Category
	err   error
}

func newStubLoader(ready ...ports.Category) *stubLoader {
	l := &stubLoader{ready: make(map[ports.Category]bool)}
	for _, cat := range ready {
		l.ready[cat] = true
	}
	return l
}

func allReadyLoader() *stubLoader {
	return newStubLoader(
		ports.CategoryChat,
		ports.CategoryVision,
		ports.CategoryTranscription,
		ports.CategorySynthesis,
		ports.CategoryActivityDetection,
	)
}

func (l *stubLoader) IsReady(cat ports.Category) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready[cat]
}

func (l *stubLoader) EnsureLoaded(ctx context.Context, cat ports.Category) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.loads = append(l.loads, cat)
	if l.err != nil {
		return l.err
	}
	l.ready[cat] = true
	return nil
}

func (l *stubLoader) loaded() []ports.Category {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ports.Category, len(l.loads))
	copy(out, l.loads)
	return out
}

// stubVision returns a canned description.
type stubVision struct {
	mu    sync.Mutex
	calls int
	desc  string
	err   error
}

func (v *stubVision) DescribeImage(ctx context.Context, image []byte, prompt string) (string, error) {
	v.mu.Lock()
	v.calls++
	v.mu.Unlock()
	if v.err != nil {
		return "", v.err
	}
	return v.desc, nil
}

// stubDetector lets tests hand-deliver activity events and segments.
type stubDetector struct {
	mu       sync.Mutex
	handlers []func(ports.Activity)
	segment  []float32
	resets   int
}

func (d *stubDetector) ProcessSamples([]float32) {}

func (d *stubDetector) OnActivity(h func(ports.Activity)) func() {
	d.mu.Lock()
	d.handlers = append(d.handlers, h)
	d.mu.Unlock()
	return func() {}
}

func (d *stubDetector) PopSegment() ([]float32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.segment == nil {
		return nil, false
	}
	seg := d.segment
	d.segment = nil
	return seg, true
}

func (d *stubDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
}

// emit delivers an event to every subscriber, like a capture feed would.
func (d *stubDetector) emit(a ports.Activity) {
	d.mu.Lock()
	handlers := make([]func(ports.Activity), len(d.handlers))
	copy(handlers, d.handlers)
	d.mu.Unlock()
	for _, h := range handlers {
		h(a)
	}
}

func (d *stubDetector) setSegment(n int) {
	d.mu.Lock()
	d.segment = make([]float32, n)
	d.mu.Unlock()
}

// stubCapture counts starts and stops.
type stubCapture struct {
	mu       sync.Mutex
	started  int
	stopped  int
	startErr error
}

func (c *stubCapture) Start(onChunk func([]float32), onLevel func(float64)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startErr != nil {
		return c.startErr
	}
	c.started++
	return nil
}

func (c *stubCapture) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopped++
}

func (c *stubCapture) counts() (started, stopped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started, c.stopped
}

// stubPipeline drives the turn callbacks synchronously. When started and
// release are set, ProcessTurn signals entry and then blocks until release
// closes, so tests can interleave controller calls with an in-flight turn.
type stubPipeline struct {
	mu         sync.Mutex
	calls      int
	transcript string
	tokens     []string
	response   string
	err        error
	started    chan struct{}
	release    chan struct{}
}

func (p *stubPipeline) ProcessTurn(ctx context.Context, samples []float32, opts ports.TurnOptions, cb ports.TurnCallbacks) error {
	p.mu.Lock()
	p.calls++
	started, release := p.started, p.release
	p.mu.Unlock()

	if started != nil {
		close(started)
	}
	if release != nil {
		<-release
	}
	if p.err != nil {
		return p.err
	}
	if cb.OnTranscription != nil {
		cb.OnTranscription(p.transcript)
	}
	// A cancelled turn still reports the transcription it already had, like
	// a real pipeline whose whisper pass finished before the cancel landed.
	if ctx.Err() != nil {
		return ctx.Err()
	}
	for _, tok := range p.tokens {
		if cb.OnResponseToken != nil {
			cb.OnResponseToken(tok)
		}
	}
	if cb.OnResponseComplete != nil {
		cb.OnResponseComplete(p.response)
	}
	if cb.OnSynthesisComplete != nil {
		cb.OnSynthesisComplete()
	}
	return nil
}

func (p *stubPipeline) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

var (
	_ ports.Generator        = (*stubGenerator)(nil)
	_ ports.ModelLoader      = (*stubLoader)(nil)
	_ ports.Vision           = (*stubVision)(nil)
	_ ports.ActivityDetector = (*stubDetector)(nil)
	_ ports.CaptureDevice    = (*stubCapture)(nil)
	_ ports.VoicePipeline    = (*stubPipeline)(nil)
)
