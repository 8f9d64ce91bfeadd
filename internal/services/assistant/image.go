package assistant

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"

	"github.com/nfnt/resize"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

var ErrInvalidImage = errors.New("invalid image")

const jpegQuality = 90

// PrepareImage decodes data (JPEG, PNG, GIF, WebP or BMP) and re-encodes it as JPEG, shrinking it so that
// neither side exceeds maxSide. maxSide <= 0 keeps the original size.
func PrepareImage(data []byte, maxSide int) (*Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	if maxSide > 0 {
		bounds := img.Bounds()
		if bounds.Dx() > maxSide || bounds.Dy() > maxSide {
			img = resize.Thumbnail(uint(maxSide), uint(maxSide), img, resize.Lanczos3)
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	return &Image{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}
