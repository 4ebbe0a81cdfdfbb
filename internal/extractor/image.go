package extractor

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// minFrameDim is the minimum width/height the face detector handles reliably.
// Smaller frames are upscaled before extraction.
const minFrameDim = 400

// ErrBadFrame is returned when the frame bytes are not a decodable image.
// The input came from the caller, so this is recoverable, not a server fault.
var ErrBadFrame = errors.New("frame is not a decodable image")

// NormalizeFrame upscales frames whose smaller dimension is below minFrameDim,
// keeping aspect ratio, and re-encodes as JPEG. Larger frames pass through
// unchanged. Accepts JPEG, PNG and WebP.
func NormalizeFrame(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadFrame, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	minDim := width
	if height < minDim {
		minDim = height
	}
	if minDim >= minFrameDim {
		return data, nil
	}

	scale := float64(minFrameDim) / float64(minDim)
	newWidth := int(float64(width) * scale)
	newHeight := int(float64(height) * scale)

	scaled := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.CatmullRom.Scale(scaled, scaled.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode scaled image: %w", err)
	}
	return buf.Bytes(), nil
}
