// Package grid virtualizes a large scrollable grid of catalog images onto a
// small pool of reusable slots.
//
// A [Virtualizer] turns viewport geometry into the inclusive range of grid
// positions that should be on screen, recycles [Slot] values so exactly that
// range is represented, and notifies its owner about every newly assigned
// slot. A [Controller] is the usual owner: it maps a grid position to a
// logical catalog index through a selection [Mode] and binds the slot to the
// image loaded for that index.
//
// # Coordinates
//
// Viewport rectangles are expressed in content-local coordinates. The
// content's top-left corner is the origin, X grows to the right and Y grows
// upward, so rows extend into negative Y as the user scrolls down.
//
// # Concurrency
//
// Virtualizer and Controller are driven from a single goroutine (the UI
// loop) and are not safe for concurrent use. Slot content waits complete on
// background goroutines; Slot guards its own state, and a completion that
// belongs to an earlier assignment is discarded.
package grid
