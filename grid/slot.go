package grid

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// NoIndex marks a slot without an assigned position or logical index.
const NoIndex = -1

// DefaultWaitTimeout bounds how long a slot waits for its content.
const DefaultWaitTimeout = 30 * time.Second

// Slot is a reusable grid element.
//
// A slot is either inactive (pooled) or active and standing in for one grid
// position. While active it may hold a logical index and at most one pending
// content wait. Deactivating or reassigning the slot cancels the wait and
// clears the display before returning, so a recycled slot never shows
// content from an earlier assignment.
type Slot struct {
	id          int
	display     Display
	waitTimeout time.Duration
	logger      *slog.Logger

	mu       sync.Mutex
	active   bool
	position int
	index    int
	shown    int
	gen      uint64
	cancel   context.CancelFunc
	waiting  int
	lastErr  error
}

func newSlot(id int, display Display, waitTimeout time.Duration, logger *slog.Logger) *Slot {
	if display == nil {
		display = NopDisplay{}
	}
	return &Slot{
		id:          id,
		display:     display,
		waitTimeout: waitTimeout,
		logger:      logger,
		position:    NoIndex,
		index:       NoIndex,
		shown:       NoIndex,
		waiting:     NoIndex,
	}
}

// ID returns the slot's pool identifier.
func (s *Slot) ID() int {
	return s.id
}

// Display returns the visual element the slot draws into.
func (s *Slot) Display() Display {
	return s.display
}

// Position returns the grid position the slot stands in for, or NoIndex.
func (s *Slot) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

// Index returns the assigned logical index, or NoIndex.
func (s *Slot) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Shown returns the logical index of the image on display, or NoIndex.
func (s *Slot) Shown() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shown
}

// IsActive reports whether the slot is in use.
func (s *Slot) IsActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Pending reports whether a content wait is outstanding.
func (s *Slot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Err returns the error of the last failed content wait for the current
// assignment, if any.
func (s *Slot) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// SetActive activates or deactivates the slot.
//
// Deactivation cancels any pending wait, clears the display and forgets the
// assignment. Activation alone does not assign an index.
func (s *Slot) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if active {
		s.active = true
		return
	}
	s.resetLocked()
	s.active = false
	s.position = NoIndex
	s.index = NoIndex
}

// Assign sets the logical index the slot represents.
// Assigning a different index cancels the pending wait and clears the display.
func (s *Slot) Assign(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == index {
		return
	}
	s.resetLocked()
	s.index = index
}

// Bind starts waiting for the content of the assigned index.
//
// If loader can serve the image without suspending it is shown before Bind
// returns. Otherwise the load runs on a background goroutine and its result
// is shown only if the slot still holds the same assignment. Bind is a no-op
// for inactive or unassigned slots and while a wait for the same index is
// already pending.
func (s *Slot) Bind(ctx context.Context, loader ImageLoader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active || s.index == NoIndex {
		return
	}
	if s.cancel != nil && s.waiting == s.index {
		return
	}

	if p, ok := loader.(Peeker); ok {
		if img, ok := p.Peek(s.index); ok {
			s.cancelLocked()
			s.gen++
			s.display.SetImage(img)
			s.shown = s.index
			s.lastErr = nil
			return
		}
	}

	s.cancelLocked()
	s.gen++
	gen, index := s.gen, s.index

	var waitCtx context.Context
	var cancel context.CancelFunc
	if s.waitTimeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, s.waitTimeout)
	} else {
		waitCtx, cancel = context.WithCancel(ctx)
	}
	s.cancel = cancel
	s.waiting = index

	go s.wait(waitCtx, cancel, loader, gen, index)
}

func (s *Slot) wait(ctx context.Context, cancel context.CancelFunc, loader ImageLoader, gen uint64, index int) {
	defer cancel()
	img, err := loader.Load(ctx, index)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.active {
		// Reassigned or recycled while loading.
		return
	}
	s.cancel = nil
	s.waiting = NoIndex

	if errors.Is(err, context.Canceled) {
		// The owner's context ended; nothing failed.
		return
	}
	if err != nil {
		s.lastErr = err
		if s.logger != nil {
			s.logger.Warn("slot content failed", "slot", s.id, "index", index, "error", err)
		}
		if ed, ok := s.display.(ErrorDisplay); ok {
			ed.ShowError(index, err)
		}
		return
	}
	s.display.SetImage(img)
	s.shown = index
	s.lastErr = nil
}

// activate claims the slot for position. Called by the virtualizer.
func (s *Slot) activate(position int, center Vec2) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.active = true
	s.position = position
	s.index = NoIndex
	if p, ok := s.display.(Placer); ok {
		p.Place(center)
	}
}

// resetLocked cancels the pending wait and clears the display.
func (s *Slot) resetLocked() {
	s.cancelLocked()
	s.gen++
	s.lastErr = nil
	s.shown = NoIndex
	s.display.Clear()
}

func (s *Slot) cancelLocked() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.waiting = NoIndex
}
