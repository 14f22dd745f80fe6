package pixtype

import "errors"

// Sentinel errors for image loading.
var (
	// ErrOutOfRange is returned when an index is outside the catalog domain.
	ErrOutOfRange = errors.New("pixgrid: index out of range")

	// ErrNetwork is returned when an image transfer fails.
	ErrNetwork = errors.New("pixgrid: network transfer failed")

	// ErrDecode is returned when a payload cannot be decoded into an image.
	ErrDecode = errors.New("pixgrid: image decode failed")

	// ErrNotFound is returned by a cache lookup for an index that is not cached.
	ErrNotFound = errors.New("pixgrid: image not cached")
)
