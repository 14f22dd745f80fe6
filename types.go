package pixgrid

import (
	"context"

	"github.com/meigma/pixgrid/internal/pixtype"
)

// Image is a decoded catalog image.
type Image = pixtype.Image

// Fetcher retrieves the raw payload for one logical index.
//
// *http.Source is the production implementation. Implementations must be
// safe for concurrent use and must bound their own concurrency.
type Fetcher interface {
	Fetch(ctx context.Context, index int) ([]byte, error)
}
