package adapters

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// PortAudioCapture streams microphone audio through PortAudio. Start opens
// the default input device and feeds fixed-size sample chunks to the given
// callback from a dedicated goroutine until Stop is called.
type PortAudioCapture struct {
	sampleRate int
	frameSize  int

	mu      sync.Mutex
	running bool
	stopped atomic.Bool
}

// NewPortAudioCapture creates a capture device for the given stream shape.
func NewPortAudioCapture(sampleRate, frameSize int) *PortAudioCapture {
	return &PortAudioCapture{sampleRate: sampleRate, frameSize: frameSize}
}

// Start opens the input stream and begins delivering chunks. onLevel, when
// non-nil, receives the peak amplitude of each chunk.
func (p *PortAudioCapture) Start(onChunk func([]float32), onLevel func(float64)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return fmt.Errorf("capture already running")
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}

	buf := make([]float32, p.frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(p.sampleRate), len(buf), buf)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start input stream: %w", err)
	}

	p.running = true
	p.stopped.Store(false)

	go p.feed(stream, buf, onChunk, onLevel)
	return nil
}

// feed reads chunks until Stop flags shutdown. The goroutine owns the
// stream: it stops and closes it on the way out, so Stop never races a
// blocked Read and stays safe to call from inside an onChunk callback.
func (p *PortAudioCapture) feed(stream *portaudio.Stream, buf []float32, onChunk func([]float32), onLevel func(float64)) {
	defer func() {
		stream.Stop()
		stream.Close()
		portaudio.Terminate()
	}()

	for !p.stopped.Load() {
		if err := stream.Read(); err != nil {
			return
		}
		if p.stopped.Load() {
			return
		}
		chunk := make([]float32, len(buf))
		copy(chunk, buf)
		if onLevel != nil {
			onLevel(peak(chunk))
		}
		onChunk(chunk)
	}
}

// Stop flags the feed goroutine to shut down. It does not wait, so it is
// safe to call from the chunk callback itself; the stream is torn down by
// the goroutine shortly after.
func (p *PortAudioCapture) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.running = false
	p.stopped.Store(true)
}

func peak(chunk []float32) float64 {
	var m float64
	for _, s := range chunk {
		v := float64(s)
		if v < 0 {
			v = -v
		}
		if v > m {
			m = v
		}
	}
	return m
}

var _ ports.CaptureDevice = (*PortAudioCapture)(nil)
