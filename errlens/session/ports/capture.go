package sessionports

// CaptureDevice is the abstraction for the audio input device. Start begins
// delivering sample chunks until Stop; Stop is idempotent and must release
// the underlying device so no stream is left open.
type CaptureDevice interface {
	Start(onChunk func(samples []float32), onLevel func(rms float64)) error
	Stop()
}
