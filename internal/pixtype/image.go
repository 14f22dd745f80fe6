// Package pixtype holds the value types and sentinel errors shared by the
// fetcher, the cache and the loader.
package pixtype

import (
	"image"

	"github.com/opencontainers/go-digest"
)

// Image is a decoded catalog image. It is immutable once constructed and is
// shared by every cache reader, so callers must not draw into Image.
type Image struct {
	// Index is the logical catalog index the payload was fetched for.
	Index int

	// Image holds the decoded pixels.
	Image image.Image

	// Format is the codec name reported by image.Decode ("jpeg", "png", ...).
	Format string

	// Width and Height are the decoded dimensions in pixels.
	Width  int
	Height int

	// Size is the raw payload length in bytes.
	Size int64

	// Digest is the sha256 digest of the raw payload.
	Digest digest.Digest
}

// Bounds returns the pixel bounds of the decoded image.
func (img *Image) Bounds() image.Rectangle {
	if img == nil || img.Image == nil {
		return image.Rectangle{}
	}
	return img.Image.Bounds()
}
