package grid

import (
	"context"

	"github.com/meigma/pixgrid/internal/pixtype"
)

// Display is the visual element a Slot draws into.
//
// Methods may be called from a background goroutine while the slot's lock is
// held; implementations must not call back into the Slot.
type Display interface {
	// SetImage shows img.
	SetImage(img *pixtype.Image)

	// Clear removes any shown image.
	Clear()
}

// ErrorDisplay is implemented by displays that can show a load failure.
type ErrorDisplay interface {
	Display

	// ShowError reports that loading index failed with err.
	ShowError(index int, err error)
}

// Placer is implemented by displays that lay themselves out. Place is
// called with the cell center each time the slot is claimed for a position.
type Placer interface {
	Place(center Vec2)
}

// DisplayFactory creates the Display for a newly pooled slot.
type DisplayFactory func(slotID int) Display

// ImageLoader loads the image for a logical index.
type ImageLoader interface {
	Load(ctx context.Context, index int) (*pixtype.Image, error)
}

// Peeker is implemented by loaders that can serve a cached image without
// suspending. Slot.Bind uses it to show cached content synchronously.
type Peeker interface {
	Peek(index int) (*pixtype.Image, bool)
}

// NopDisplay discards everything. It is used when no factory is supplied.
type NopDisplay struct{}

// SetImage implements Display.
func (NopDisplay) SetImage(*pixtype.Image) {}

// Clear implements Display.
func (NopDisplay) Clear() {}
