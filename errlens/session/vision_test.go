package session

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

func newVisionController(t *testing.T, gen *stubGenerator, vis *stubVision, loader *stubLoader) *Controller {
	t.Helper()
	c, err := NewController(Deps{
		Generator: gen,
		Vision:    vis,
		Loader:    loader,
	})
	require.NoError(t, err)
	return c
}

func TestUploadImageFunnelsDescriptionIntoAnalysis(t *testing.T) {
	gen := &stubGenerator{gen: ports.Generation{Text: "analysis done"}}
	vis := &stubVision{desc: "TypeError: undefined is not a function at app.js:42"}
	c := newVisionController(t, gen, vis, allReadyLoader())

	c.UploadImage(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47})

	turns := c.Snapshot().Turns
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.True(t, strings.HasPrefix(turns[0].Content, ProvenanceUpload))
	assert.Contains(t, turns[0].Content, "app.js:42")
	assert.Equal(t, "analysis done", turns[1].Content)
}

func TestCaptureFromDeviceUsesScreenshotProvenance(t *testing.T) {
	gen := &stubGenerator{gen: ports.Generation{Text: "ok"}}
	vis := &stubVision{desc: "a stack trace"}
	c := newVisionController(t, gen, vis, allReadyLoader())

	c.CaptureFromDevice(context.Background(), []byte{0xff, 0xd8})

	turns := c.Snapshot().Turns
	require.NotEmpty(t, turns)
	assert.True(t, strings.HasPrefix(turns[0].Content, ProvenanceScreenshot))
}

func TestUploadImageEmptyPayloadRefused(t *testing.T) {
	gen := &stubGenerator{}
	vis := &stubVision{desc: "unused"}
	c := newVisionController(t, gen, vis, allReadyLoader())

	c.UploadImage(context.Background(), nil)
	c.UploadImage(context.Background(), []byte{})

	assert.Empty(t, c.Snapshot().Turns)
	assert.Zero(t, vis.calls)
}

func TestUploadImageTriggersVisionLoadWhenUnready(t *testing.T) {
	gen := &stubGenerator{gen: ports.Generation{Text: "ok"}}
	vis := &stubVision{desc: "some error"}
	loader := newStubLoader(ports.CategoryChat)
	c := newVisionController(t, gen, vis, loader)

	c.UploadImage(context.Background(), []byte{1})

	assert.Empty(t, c.Snapshot().Turns)
	assert.Zero(t, vis.calls)
	assert.Contains(t, loader.loaded(), ports.CategoryVision)

	// Retry after the load goes through.
	c.UploadImage(context.Background(), []byte{1})
	assert.Len(t, c.Snapshot().Turns, 2)
}

func TestUploadImageFaultAppendsApology(t *testing.T) {
	gen := &stubGenerator{}
	vis := &stubVision{err: errors.New("unreadable image")}
	c := newVisionController(t, gen, vis, allReadyLoader())

	c.UploadImage(context.Background(), []byte{1, 2, 3})

	turns := c.Snapshot().Turns
	require.Len(t, turns, 1)
	assert.Equal(t, RoleAssistant, turns[0].Role)
	assert.Equal(t, "Sorry, I couldn't read the image: unreadable image", turns[0].Content)
	assert.False(t, c.Processing())

	// The session recovers; a later upload works.
	vis.err = nil
	vis.desc = "now readable"
	gen.gen = ports.Generation{Text: "ok"}
	c.UploadImage(context.Background(), []byte{1, 2, 3})
	assert.Len(t, c.Snapshot().Turns, 3)
}

func TestExifNoteOnNonExifImage(t *testing.T) {
	assert.Empty(t, exifNote([]byte("not an image at all")))
}
