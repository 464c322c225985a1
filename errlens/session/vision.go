package session

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/rwcarlsen/goexif/exif"

	ports "github.com/errlens/errlens/errlens/session/ports"
)

// Provenance tags prefixed onto vision-derived text before it funnels into
// Analyze, so the conversation log records where the error text came from.
const (
	ProvenanceScreenshot = "[From Screenshot]"
	ProvenanceUpload     = "[From Uploaded Image]"
)

// visionPrompt asks the vision collaborator to read the error off the image.
const visionPrompt = `Describe the error message or stack trace visible in this image.
Transcribe the error text as accurately as possible, including file names and line numbers.
If no error is visible, describe what the image shows instead.`

// UploadImage describes an uploaded image through the vision collaborator
// and funnels the description into Analyze with an upload provenance tag.
func (c *Controller) UploadImage(ctx context.Context, image []byte) {
	c.describeAndAnalyze(ctx, image, ProvenanceUpload)
}

// CaptureFromDevice is the camera-capture variant of UploadImage.
func (c *Controller) CaptureFromDevice(ctx context.Context, image []byte) {
	c.describeAndAnalyze(ctx, image, ProvenanceScreenshot)
}

func (c *Controller) describeAndAnalyze(ctx context.Context, image []byte, provenance string) {
	if len(image) == 0 || c.vision == nil {
		return
	}

	c.mu.Lock()
	if c.processing {
		c.mu.Unlock()
		return
	}
	if !c.loader.IsReady(ports.CategoryVision) {
		c.mu.Unlock()
		ctx, finish := c.tracer.StartSpan(ctx, "vision_model_load", nil)
		err := c.loader.EnsureLoaded(ctx, ports.CategoryVision)
		finish(err)
		if err != nil {
			c.logger.Warn().Err(err).Msg("vision model load failed")
		}
		return
	}
	c.processing = true
	c.mu.Unlock()

	ctx, finish := c.tracer.StartSpan(ctx, "describe_image", map[string]any{
		"session_id": c.id,
		"bytes":      len(image),
	})
	desc, err := c.vision.DescribeImage(ctx, image, visionPrompt)
	finish(err)

	c.mu.Lock()
	c.processing = false
	c.mu.Unlock()

	if err != nil {
		// Vision faults surface as an assistant turn; the session stays
		// usable and the mode stays selectable.
		id := c.log.AppendAssistant(fmt.Sprintf("Sorry, I couldn't read the image: %s", err.Error()))
		c.archiveTurn(ctx, id)
		return
	}

	text := provenance
	if note := exifNote(image); note != "" {
		text += " " + note
	}
	text += " " + strings.TrimSpace(desc)

	c.Analyze(ctx, text)
}

// exifNote extracts a short capture-time note from image metadata, or empty
// when the image carries none. Metadata errors are not worth reporting.
func exifNote(image []byte) string {
	x, err := exif.Decode(bytes.NewReader(image))
	if err != nil {
		return ""
	}

	var parts []string
	if t, err := x.DateTime(); err == nil {
		parts = append(parts, "taken "+t.Format("2006-01-02 15:04"))
	}
	if tag, err := x.Get(exif.Model); err == nil {
		if model, err := tag.StringVal(); err == nil && model != "" {
			parts = append(parts, "on "+model)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "(" + strings.Join(parts, " ") + ")"
}
