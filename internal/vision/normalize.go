package vision

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // registers the WebP decoder with image.Decode
)

const (
	DefaultMaxDimension = 1568
	DefaultJPEGQuality  = 85

	// NormalizedMimeType is the format every image is re-encoded to
	NormalizedMimeType = "image/jpeg"
)

// Normalize decodes data, bounds the longer edge to maxDim while keeping the
// aspect ratio, and re-encodes as JPEG. Smaller images are never upscaled.
func Normalize(data []byte, maxDim, quality int) ([]byte, error) {
	if maxDim <= 0 {
		maxDim = DefaultMaxDimension
	}
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	if longerEdge(img) > maxDim {
		img = imaging.Fit(img, maxDim, maxDim, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(quality)); err != nil {
		return nil, fmt.Errorf("encode to jpeg: %w", err)
	}

	return buf.Bytes(), nil
}

func longerEdge(img image.Image) int {
	b := img.Bounds()
	return max(b.Dx(), b.Dy())
}
