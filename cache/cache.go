// Package cache provides the in-memory image store consulted by the loader.
//
// A Cache maps a logical index to the decoded image fetched for it. Entries
// are immutable: the first Put for an index wins and later Puts for the same
// index are silent no-ops, which makes duplicate fetch completions harmless.
package cache

import "github.com/meigma/pixgrid/internal/pixtype"

// Cache stores decoded images by logical index.
//
// Implementations must be safe for concurrent use. Once Put returns, every
// subsequent Has and Get for that index observes the entry until it is
// evicted.
type Cache interface {
	// Has reports whether an image is cached for index.
	Has(index int) bool

	// Get returns the cached image for index.
	// Returns an error wrapping ErrNotFound if nothing is cached; callers are
	// expected to check Has first.
	Get(index int) (*pixtype.Image, error)

	// Put stores img for index unless an entry already exists.
	Put(index int, img *pixtype.Image)

	// Len returns the number of cached entries.
	Len() int
}

// ErrNotFound is returned by Get when the index is not cached.
var ErrNotFound = pixtype.ErrNotFound
