package export

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/nfnt/resize"
)

const thumbnailJPEGQuality = 85

// Downscale shrinks a JPEG still to maxWidth, keeping aspect ratio.
// Images already narrower than maxWidth (or maxWidth == 0) come back unchanged.
func Downscale(data []byte, maxWidth uint) ([]byte, error) {
	if maxWidth == 0 {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode thumbnail: %w", err)
	}

	if uint(img.Bounds().Dx()) <= maxWidth {
		return data, nil
	}

	small := resize.Resize(maxWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, small, &jpeg.Options{Quality: thumbnailJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
