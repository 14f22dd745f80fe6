package grid

import (
	"context"
	"log/slog"
	"time"
)

// ImageSource is the catalog a Controller draws from. *pixgrid.Loader
// implements it.
type ImageSource interface {
	ImageLoader
	IsIndexAvailable(index int) bool
	MaxIndex() int
}

// Controller fills a virtualized grid with catalog images.
//
// Grid position p is display position p+1, which the selection mode maps to
// a logical index. Positions whose index is outside the catalog are hidden.
// Like the Virtualizer it drives, a Controller is used from one goroutine.
type Controller struct {
	ctx     context.Context
	src     ImageSource
	mode    Mode
	loading bool
	onAdded AddedHandler
	logger  *slog.Logger
	timeout time.Duration
	grid    *Virtualizer
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithMode sets the initial selection mode.
func WithMode(m Mode) ControllerOption {
	return func(c *Controller) {
		c.mode = m
	}
}

// WithLoading toggles content loading. When disabled slots are assigned
// their logical index but never bound.
func WithLoading(enabled bool) ControllerOption {
	return func(c *Controller) {
		c.loading = enabled
	}
}

// WithAddedHandler sets a handler for first-time slot assignments.
func WithAddedHandler(fn AddedHandler) ControllerOption {
	return func(c *Controller) {
		c.onAdded = fn
	}
}

// WithControllerLogger sets the logger passed down to the grid.
func WithControllerLogger(logger *slog.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithSlotTimeout bounds each slot content wait.
func WithSlotTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

// NewController builds a Controller and its Virtualizer. ctx scopes every
// content wait the controller starts.
func NewController(ctx context.Context, src ImageSource, geom Geometry, factory DisplayFactory, opts ...ControllerOption) (*Controller, error) {
	c := &Controller{
		ctx:     ctx,
		src:     src,
		mode:    All,
		loading: true,
		timeout: DefaultWaitTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}

	grid, err := New(geom, factory,
		WithOnAdded(c.onAdded),
		WithOnVisualize(c.visualize),
		WithContentBound(c.mode.LastElement(src.MaxIndex())),
		WithWaitTimeout(c.timeout),
		WithLogger(c.logger),
	)
	if err != nil {
		return nil, err
	}
	c.grid = grid
	return c, nil
}

// Grid returns the underlying Virtualizer.
func (c *Controller) Grid() *Virtualizer {
	return c.grid
}

// Mode returns the current selection mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// LastElement returns the number of displayable positions, or Unbounded.
func (c *Controller) LastElement() int {
	return c.mode.LastElement(c.src.MaxIndex())
}

// LogicalAt returns the logical index shown at grid position.
func (c *Controller) LogicalAt(position int) int {
	return c.mode.Logical(position + 1)
}

// SetMode switches the selection mode and refreshes every visible slot.
func (c *Controller) SetMode(m Mode) {
	if m == c.mode {
		return
	}
	c.logger.Debug("mode changed", "from", c.mode.String(), "to", m.String())
	c.mode = m
	c.grid.SetContentBound(c.LastElement())
}

// Update forwards a viewport change to the grid.
func (c *Controller) Update(view Rect) Range {
	return c.grid.Update(view)
}

// Close releases every slot.
func (c *Controller) Close() {
	c.grid.Close()
}

func (c *Controller) visualize(s *Slot, position int) Visibility {
	index := c.LogicalAt(position)
	if !c.mode.Accepts(index) || !c.src.IsIndexAvailable(index) {
		return Hide
	}
	s.Assign(index)
	if c.loading {
		s.Bind(c.ctx, c.src)
	}
	return Show
}
