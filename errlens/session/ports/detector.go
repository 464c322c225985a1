package sessionports

// Activity is a voice-activity classification event.
type Activity int

const (
	ActivitySpeechStart Activity = iota
	ActivitySpeechEnd
)

// ActivityDetector classifies a stream of audio samples into speech and
// non-speech and buffers the most recent speech segment. The detector owns
// its internal segment buffer; the orchestrator owns the subscription.
type ActivityDetector interface {
	// ProcessSamples feeds raw capture samples into the detector.
	ProcessSamples(chunk []float32)
	// OnActivity subscribes to activity events and returns an unsubscribe
	// function. Unsubscribe is idempotent.
	OnActivity(handler func(Activity)) (unsubscribe func())
	// PopSegment removes and returns the buffered speech segment, if any.
	PopSegment() ([]float32, bool)
	// Reset clears the segment buffer and detection state.
	Reset()
}
