package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/errlens/errlens/errlens/config"
)

func TestMaxSegmentSamples(t *testing.T) {
	assert.Equal(t, 240000, maxSegmentSamples(config.VoiceConfig{SampleRate: 16000, MaxCapture: 15 * time.Second}))
	assert.Equal(t, 8000, maxSegmentSamples(config.VoiceConfig{SampleRate: 8000, MaxCapture: time.Second}))

	// A zero or negative cap disables the limit.
	assert.Zero(t, maxSegmentSamples(config.VoiceConfig{SampleRate: 16000}))
	assert.Zero(t, maxSegmentSamples(config.VoiceConfig{SampleRate: 16000, MaxCapture: -time.Second}))
}
