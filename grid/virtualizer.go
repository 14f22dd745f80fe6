package grid

import (
	"log/slog"
	"maps"
	"slices"
	"time"
)

// Visibility is a visualize handler's verdict for a position.
type Visibility int

const (
	// Show keeps the slot assigned to the position.
	Show Visibility = iota
	// Hide releases the slot; the position stays empty until it leaves the
	// visible range or the next Recalculate.
	Hide
)

// AddedHandler is notified the first time a position is ever assigned a slot.
type AddedHandler func(slot *Slot, position int)

// VisualizeHandler is notified every time a slot is assigned a position and
// for every visible slot on Recalculate.
type VisualizeHandler func(slot *Slot, position int) Visibility

// Unbounded disables the content bound.
const Unbounded = -1

// Virtualizer maps the visible range of a grid onto a pool of slots.
type Virtualizer struct {
	geom        Geometry
	factory     DisplayFactory
	onAdded     AddedHandler
	onVisualize VisualizeHandler
	bound       int
	waitTimeout time.Duration
	logger      *slog.Logger

	slots    []*Slot
	visible  map[int]*Slot
	hidden   map[int]struct{}
	seen     map[int]struct{}
	viewport Rect
	rng      Range
}

// Option configures a Virtualizer.
type Option func(*Virtualizer)

// WithOnAdded sets the one-shot added handler.
func WithOnAdded(fn AddedHandler) Option {
	return func(v *Virtualizer) {
		v.onAdded = fn
	}
}

// WithOnVisualize sets the recurring visualize handler.
func WithOnVisualize(fn VisualizeHandler) Option {
	return func(v *Virtualizer) {
		v.onVisualize = fn
	}
}

// WithContentBound limits positions to [0, n). Unbounded disables the limit.
func WithContentBound(n int) Option {
	return func(v *Virtualizer) {
		v.bound = n
	}
}

// WithWaitTimeout bounds each slot content wait. Zero disables the bound.
func WithWaitTimeout(d time.Duration) Option {
	return func(v *Virtualizer) {
		v.waitTimeout = d
	}
}

// WithLogger sets the logger for range and pool events.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Virtualizer) {
		v.logger = logger
	}
}

// New creates a Virtualizer with a pool of geom.PoolSize() inactive slots.
// A nil factory gives every slot a NopDisplay.
func New(geom Geometry, factory DisplayFactory, opts ...Option) (*Virtualizer, error) {
	if err := geom.Validate(); err != nil {
		return nil, err
	}
	v := &Virtualizer{
		geom:        geom,
		factory:     factory,
		bound:       Unbounded,
		waitTimeout: DefaultWaitTimeout,
		visible:     make(map[int]*Slot),
		hidden:      make(map[int]struct{}),
		seen:        make(map[int]struct{}),
		rng:         Range{Start: 0, End: -1},
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.logger == nil {
		v.logger = slog.New(slog.DiscardHandler)
	}
	v.growTo(geom.PoolSize())
	return v, nil
}

// Geometry returns the current layout.
func (v *Virtualizer) Geometry() Geometry {
	return v.geom
}

// Range returns the range computed by the last update.
func (v *Virtualizer) Range() Range {
	return v.rng
}

// ContentBound returns the number of valid positions, or Unbounded.
func (v *Virtualizer) ContentBound() int {
	return v.bound
}

// PoolLen returns the number of pooled slots.
func (v *Virtualizer) PoolLen() int {
	return len(v.slots)
}

// Slots returns every pooled slot ordered by ID.
func (v *Virtualizer) Slots() []*Slot {
	return slices.Clone(v.slots)
}

// Visible returns a copy of the position to slot mapping.
func (v *Virtualizer) Visible() map[int]*Slot {
	return maps.Clone(v.visible)
}

// VisiblePositions returns the positions currently holding a slot, ascending.
func (v *Virtualizer) VisiblePositions() []int {
	return slices.Sorted(maps.Keys(v.visible))
}

// SlotAt returns the slot assigned to position.
func (v *Virtualizer) SlotAt(position int) (*Slot, bool) {
	s, ok := v.visible[position]
	return s, ok
}

// Update recomputes the visible range for view and reconciles the pool.
//
// Slots whose position left the range are released; positions that entered
// it are assigned free slots, lowest ID first, growing the pool when every
// slot is in use. Each new assignment fires the added handler (first time
// only) and the visualize handler.
func (v *Virtualizer) Update(view Rect) Range {
	v.viewport = view
	r := v.geom.VisibleRange(view)
	v.apply(r, false)
	return r
}

// Recalculate re-walks the last viewport, firing the visualize handler for
// every visible slot, including unchanged ones, and releasing slots the
// handler now hides.
func (v *Virtualizer) Recalculate() Range {
	r := v.geom.VisibleRange(v.viewport)
	v.apply(r, true)
	return r
}

// SetContentBound changes the number of valid positions and reflows.
func (v *Virtualizer) SetContentBound(n int) {
	if n < 0 {
		n = Unbounded
	}
	v.bound = n
	v.Recalculate()
}

// SetGeometry changes the layout and reflows. The pool grows to the new
// PoolSize if needed but never shrinks.
func (v *Virtualizer) SetGeometry(geom Geometry) error {
	if err := geom.Validate(); err != nil {
		return err
	}
	v.geom = geom
	v.growTo(geom.PoolSize())
	v.Recalculate()
	return nil
}

// Close releases every slot, cancelling pending content waits.
func (v *Virtualizer) Close() {
	for _, pos := range v.VisiblePositions() {
		v.release(pos)
	}
	clear(v.hidden)
	v.rng = Range{Start: 0, End: -1}
}

func (v *Virtualizer) apply(r Range, reflow bool) {
	if r != v.rng {
		v.logger.Debug("visible range", "from", v.rng.String(), "to", r.String())
	}
	v.rng = r

	for _, pos := range v.VisiblePositions() {
		if !r.Contains(pos) || !v.inBounds(pos) {
			v.release(pos)
		}
	}
	for pos := range v.hidden {
		if reflow || !r.Contains(pos) {
			delete(v.hidden, pos)
		}
	}

	for pos := max(r.Start, 0); pos <= r.End; pos++ {
		if !v.inBounds(pos) {
			break
		}
		if _, ok := v.hidden[pos]; ok {
			continue
		}
		if s, ok := v.visible[pos]; ok {
			if reflow && v.visualize(s, pos) == Hide {
				v.hide(pos)
			}
			continue
		}

		s := v.acquire()
		s.activate(pos, v.geom.CellCenter(pos))
		v.visible[pos] = s

		if _, ok := v.seen[pos]; !ok {
			v.seen[pos] = struct{}{}
			if v.onAdded != nil {
				v.onAdded(s, pos)
			}
		}
		if v.visualize(s, pos) == Hide {
			v.hide(pos)
		}
	}
}

func (v *Virtualizer) visualize(s *Slot, pos int) Visibility {
	if v.onVisualize == nil {
		return Show
	}
	return v.onVisualize(s, pos)
}

func (v *Virtualizer) inBounds(pos int) bool {
	return v.bound < 0 || pos < v.bound
}

// acquire returns the lowest-ID inactive slot, growing the pool if needed.
func (v *Virtualizer) acquire() *Slot {
	for _, s := range v.slots {
		if !s.IsActive() {
			return s
		}
	}
	v.growTo(len(v.slots) + 1)
	v.logger.Debug("pool grew", "size", len(v.slots))
	return v.slots[len(v.slots)-1]
}

func (v *Virtualizer) release(pos int) {
	s, ok := v.visible[pos]
	if !ok {
		return
	}
	s.SetActive(false)
	delete(v.visible, pos)
}

func (v *Virtualizer) hide(pos int) {
	v.release(pos)
	v.hidden[pos] = struct{}{}
}

func (v *Virtualizer) growTo(n int) {
	for id := len(v.slots); id < n; id++ {
		var d Display
		if v.factory != nil {
			d = v.factory(id)
		}
		v.slots = append(v.slots, newSlot(id, d, v.waitTimeout, v.logger))
	}
}
