package sessionports

import "context"

// TurnOptions configures one spoken exchange.
type TurnOptions struct {
	SpeakResponse bool   // synthesize and play the response aloud
	Voice         string // synthesis voice identifier
}

// TurnCallbacks observes the phases of one ProcessTurn call. Any callback
// may be nil. Callbacks are invoked sequentially per phase but possibly
// from a pipeline-owned goroutine.
type TurnCallbacks struct {
	OnTranscription     func(text string)  // final transcript of the captured segment
	OnResponseToken     func(token string) // each generated token, in order
	OnResponseComplete  func(full string)  // full response text once generation settles
	OnSynthesisComplete func()             // playback finished (or skipped)
}

// VoicePipeline is the abstraction for the combined
// transcribe/respond/synthesize collaborator driving one spoken exchange.
type VoicePipeline interface {
	ProcessTurn(ctx context.Context, samples []float32, opts TurnOptions, cb TurnCallbacks) error
}
