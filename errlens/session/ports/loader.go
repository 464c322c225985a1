package sessionports

import "context"

// Category names one loadable model family.
type Category string

const (
	CategoryChat              Category = "chat"
	CategoryVision            Category = "vision"
	CategoryTranscription     Category = "transcription"
	CategorySynthesis         Category = "synthesis"
	CategoryActivityDetection Category = "activity-detection"
)

// ModelLoader reports and drives readiness of model categories. The loader
// serializes concurrent loads of the same category; callers only check
// readiness before submitting work.
type ModelLoader interface {
	IsReady(cat Category) bool
	EnsureLoaded(ctx context.Context, cat Category) error
}
