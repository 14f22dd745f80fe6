package pixgrid

import "github.com/meigma/pixgrid/internal/pixtype"

// Errors re-exported from the shared types package.
var (
	// ErrOutOfRange is returned when an index is outside [1, MaxIndex].
	ErrOutOfRange = pixtype.ErrOutOfRange

	// ErrNetwork is returned when an image transfer fails.
	ErrNetwork = pixtype.ErrNetwork

	// ErrDecode is returned when a payload is not a decodable image.
	ErrDecode = pixtype.ErrDecode

	// ErrNotFound is returned by a direct cache Get for an uncached index.
	ErrNotFound = pixtype.ErrNotFound
)
