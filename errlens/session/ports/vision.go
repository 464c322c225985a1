package sessionports

import "context"

// Vision is the abstraction for the image-description collaborator. The
// image is passed as encoded bytes (PNG/JPEG); decoding and the
// vision-language model itself live behind this port.
type Vision interface {
	DescribeImage(ctx context.Context, image []byte, prompt string) (string, error)
}
