package grid

import (
	"errors"
	"fmt"
	"math"
)

// Vec2 is a 2D vector in content units.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle in content-local coordinates.
type Rect struct {
	Min, Max Vec2
}

// Range is the inclusive range of grid positions [Start, End].
type Range struct {
	Start, End int
}

// Contains reports whether position lies inside r.
func (r Range) Contains(position int) bool {
	return position >= r.Start && position <= r.End
}

// Len returns the number of positions in r.
func (r Range) Len() int {
	if r.End < r.Start {
		return 0
	}
	return r.End - r.Start + 1
}

func (r Range) String() string {
	return fmt.Sprintf("[%d,%d]", r.Start, r.End)
}

// Geometry describes the grid layout.
type Geometry struct {
	Columns    int
	Rows       int
	CellSize   Vec2
	Spacing    Vec2
	Padding    Vec2
	BufferSize int
}

// DefaultGeometry returns a 2x3 grid of 100x100 cells with 10 unit spacing
// and padding and a buffer of 2.
func DefaultGeometry() Geometry {
	return Geometry{
		Columns:    2,
		Rows:       3,
		CellSize:   Vec2{X: 100, Y: 100},
		Spacing:    Vec2{X: 10, Y: 10},
		Padding:    Vec2{X: 10, Y: 10},
		BufferSize: 2,
	}
}

// Validate reports whether g describes a usable grid.
func (g Geometry) Validate() error {
	switch {
	case g.Columns < 1:
		return errors.New("grid: columns must be >= 1")
	case g.Rows < 1:
		return errors.New("grid: rows must be >= 1")
	case g.CellSize.X <= 0 || g.CellSize.Y <= 0:
		return errors.New("grid: cell size must be > 0")
	case g.Spacing.X < 0 || g.Spacing.Y < 0:
		return errors.New("grid: spacing must be >= 0")
	case g.Padding.X < 0 || g.Padding.Y < 0:
		return errors.New("grid: padding must be >= 0")
	case g.BufferSize < 0:
		return errors.New("grid: buffer size must be >= 0")
	}
	return nil
}

// PoolSize returns the number of slots created up front.
func (g Geometry) PoolSize() int {
	return g.Columns*g.Rows + 2*g.BufferSize
}

// PageSize returns the number of positions in one full page.
func (g Geometry) PageSize() int {
	return g.Columns * g.Rows
}

// ContentSize returns the size of the content area holding total items.
func (g Geometry) ContentSize(total int) Vec2 {
	rows := 0
	if total > 0 {
		rows = (total + g.Columns - 1) / g.Columns
	}
	width := g.CellSize.X*float64(g.Columns) + g.Spacing.X*float64(g.Columns-1) + g.Padding.X*2
	height := g.Padding.Y * 2
	if rows > 0 {
		height += g.CellSize.Y*float64(rows) + g.Spacing.Y*float64(rows-1)
	}
	return Vec2{X: width, Y: height}
}

// CellCenter returns the content-local center of the cell at position.
// The virtualizer hands it to displays that implement Placer.
func (g Geometry) CellCenter(position int) Vec2 {
	row := position / g.Columns
	col := position % g.Columns
	return Vec2{
		X: g.Padding.X + (g.CellSize.X+g.Spacing.X)*float64(col) + g.CellSize.X*0.5,
		Y: -g.Padding.Y - (g.CellSize.Y+g.Spacing.Y)*float64(row) - g.CellSize.Y*0.5,
	}
}

// Viewport returns the viewport rectangle of the given size scrolled down by
// offset units from the top of the content.
func (g Geometry) Viewport(offset, width, height float64) Rect {
	return Rect{
		Min: Vec2{X: 0, Y: -offset - height},
		Max: Vec2{X: width, Y: -offset},
	}
}

// VisibleRange computes the positions that must be represented for view.
//
// The range always spans at least one full page: the first column and row
// are never negative, the last column is never before Columns-1 and the last
// row never ends less than Rows-1 rows after the first. Columns past the
// grid's width are clamped so a wide viewport cannot spill into the next row.
func (g Geometry) VisibleRange(view Rect) Range {
	minX := math.Min(view.Min.X, view.Max.X)
	maxX := math.Max(view.Min.X, view.Max.X)
	minY := math.Min(view.Min.Y, view.Max.Y)
	maxY := math.Max(view.Min.Y, view.Max.Y)

	stepX := g.CellSize.X + g.Spacing.X
	stepY := g.CellSize.Y + g.Spacing.Y

	minCol := min(0, floorDiv(math.Max(0, minX-g.Padding.X), stepX))
	maxCol := max(g.Columns-1, floorDiv(maxX-g.Padding.X, stepX))
	maxCol = min(maxCol, g.Columns-1)

	minRow := max(0, floorDiv(math.Max(0, -maxY-g.Padding.Y), stepY))
	maxRow := max(g.Rows-1, floorDiv(-minY-g.Padding.Y, stepY))
	maxRow = max(maxRow, minRow+g.Rows-1)

	return Range{
		Start: max(0, minRow*g.Columns+minCol),
		End:   maxRow*g.Columns + maxCol,
	}
}

func floorDiv(v, step float64) int {
	return int(math.Floor(v / step))
}
