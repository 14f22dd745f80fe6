package pixgrid

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	"github.com/opencontainers/go-digest"
	_ "golang.org/x/image/bmp"  // register BMP decoder
	_ "golang.org/x/image/webp" // register WebP decoder
)

// DefaultMaxPixels bounds the declared width*height of a decoded image.
const DefaultMaxPixels = 64 << 20

// Decode turns a raw payload into an Image for index, rejecting images
// larger than DefaultMaxPixels.
// Empty or malformed payloads return an error wrapping ErrDecode.
func Decode(index int, data []byte) (*Image, error) {
	return DecodeLimit(index, data, DefaultMaxPixels)
}

// DecodeLimit is Decode with an explicit pixel bound. The header is checked
// before any pixel data is allocated. A bound <= 0 disables the check.
func DecodeLimit(index int, data []byte, maxPixels int64) (*Image, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("index %d: empty payload: %w", index, ErrDecode)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("index %d: %w: %w", index, ErrDecode, err)
	}
	if maxPixels > 0 && int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, fmt.Errorf("index %d: %dx%d exceeds %d pixels: %w",
			index, cfg.Width, cfg.Height, maxPixels, ErrDecode)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("index %d: %w: %w", index, ErrDecode, err)
	}
	bounds := img.Bounds()
	return &Image{
		Index:  index,
		Image:  img,
		Format: format,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Size:   int64(len(data)),
		Digest: digest.FromBytes(data),
	}, nil
}
