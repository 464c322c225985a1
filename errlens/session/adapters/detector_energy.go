package adapters

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/stat"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// EnergyDetectorConfig tunes the RMS-based activity detector.
type EnergyDetectorConfig struct {
	SampleRate        int
	FrameSize         int     // samples per analysis frame
	NoiseFloorFactor  float64 // threshold = mean + factor*stddev of recent non-speech frame RMS
	HangoverFrames    int     // silent frames before speech-ended fires
	MaxSegmentSamples int     // force speech-ended at this segment length; 0 disables the cap
}

const (
	// fallbackThreshold applies until enough non-speech frames are
	// observed to estimate the noise floor.
	fallbackThreshold = 0.015
	noiseHistorySize  = 100
	minNoiseSamples   = 10
)

// EnergyDetector is a frame-RMS voice-activity detector with an adaptive
// noise floor. It implements the ActivityDetector port: callers feed raw
// samples, subscribe to activity events, and pop the buffered segment
// after a speech-ended event.
type EnergyDetector struct {
	cfg EnergyDetectorConfig

	mu       sync.Mutex
	handlers map[int]func(ports.Activity)
	nextID   int

	pending  []float32 // partial frame carried between ProcessSamples calls
	noise    []float64 // recent non-speech frame RMS, ring-buffered
	speaking bool
	silent   int
	segment  []float32 // samples of the in-progress speech segment
	finished []float32 // completed segment awaiting PopSegment
}

// NewEnergyDetector creates a detector with the given tuning.
func NewEnergyDetector(cfg EnergyDetectorConfig) *EnergyDetector {
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = 320
	}
	if cfg.NoiseFloorFactor <= 0 {
		cfg.NoiseFloorFactor = 2.5
	}
	if cfg.HangoverFrames <= 0 {
		cfg.HangoverFrames = 30
	}
	return &EnergyDetector{
		cfg:      cfg,
		handlers: make(map[int]func(ports.Activity)),
	}
}

// OnActivity subscribes to activity events. The returned unsubscribe is
// idempotent.
func (d *EnergyDetector) OnActivity(handler func(ports.Activity)) func() {
	d.mu.Lock()
	id := d.nextID
	d.nextID++
	d.handlers[id] = handler
	d.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			d.mu.Lock()
			delete(d.handlers, id)
			d.mu.Unlock()
		})
	}
}

// ProcessSamples feeds capture samples into the detector. Events fire
// synchronously on the calling goroutine, outside the detector lock.
func (d *EnergyDetector) ProcessSamples(chunk []float32) {
	var events []ports.Activity

	d.mu.Lock()
	d.pending = append(d.pending, chunk...)
	for len(d.pending) >= d.cfg.FrameSize {
		frame := d.pending[:d.cfg.FrameSize]
		d.pending = d.pending[d.cfg.FrameSize:]
		if evt, fired := d.processFrame(frame); fired {
			events = append(events, evt)
		}
	}
	handlers := make([]func(ports.Activity), 0, len(d.handlers))
	for _, h := range d.handlers {
		handlers = append(handlers, h)
	}
	d.mu.Unlock()

	for _, evt := range events {
		for _, h := range handlers {
			h(evt)
		}
	}
}

// processFrame classifies one frame. Caller holds the lock.
func (d *EnergyDetector) processFrame(frame []float32) (ports.Activity, bool) {
	rms := frameRMS(frame)
	threshold := d.threshold()

	if rms > threshold {
		d.silent = 0
		d.segment = append(d.segment, frame...)
		if !d.speaking {
			d.speaking = true
			return ports.ActivitySpeechStart, true
		}
		if d.capReached() {
			d.endSegment()
			return ports.ActivitySpeechEnd, true
		}
		return 0, false
	}

	d.recordNoise(rms)
	if !d.speaking {
		return 0, false
	}

	// Keep trailing silence inside the segment so transcription gets a
	// natural tail.
	d.segment = append(d.segment, frame...)
	d.silent++
	if d.silent < d.cfg.HangoverFrames && !d.capReached() {
		return 0, false
	}

	d.endSegment()
	return ports.ActivitySpeechEnd, true
}

// capReached reports whether the buffered segment hit the capture cap, which
// force-ends speech so a noisy stream cannot buffer audio without bound.
func (d *EnergyDetector) capReached() bool {
	return d.cfg.MaxSegmentSamples > 0 && len(d.segment) >= d.cfg.MaxSegmentSamples
}

// endSegment publishes the buffered segment for PopSegment. Caller holds the
// lock.
func (d *EnergyDetector) endSegment() {
	d.speaking = false
	d.silent = 0
	d.finished = d.segment
	d.segment = nil
}

// threshold derives the speech threshold from the observed noise floor.
func (d *EnergyDetector) threshold() float64 {
	if len(d.noise) < minNoiseSamples {
		return fallbackThreshold
	}
	mean, std := stat.MeanStdDev(d.noise, nil)
	t := mean + d.cfg.NoiseFloorFactor*std
	if t < fallbackThreshold {
		t = fallbackThreshold
	}
	return t
}

func (d *EnergyDetector) recordNoise(rms float64) {
	d.noise = append(d.noise, rms)
	if len(d.noise) > noiseHistorySize {
		d.noise = d.noise[len(d.noise)-noiseHistorySize:]
	}
}

// PopSegment removes and returns the completed speech segment, if any.
func (d *EnergyDetector) PopSegment() ([]float32, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.finished == nil {
		return nil, false
	}
	seg := d.finished
	d.finished = nil
	return seg, true
}

// Reset clears all detection state and buffered audio. Subscriptions stay.
func (d *EnergyDetector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.pending = nil
	d.noise = nil
	d.speaking = false
	d.silent = 0
	d.segment = nil
	d.finished = nil
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(f)))
}

var _ ports.ActivityDetector = (*EnergyDetector)(nil)
