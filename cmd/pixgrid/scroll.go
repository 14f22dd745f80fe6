package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/meigma/pixgrid/grid"
	"github.com/meigma/pixgrid/internal/pixtype"
)

// cellDisplay remembers what its slot last showed.
type cellDisplay struct {
	mu    sync.Mutex
	shown int
	err   error
}

func (d *cellDisplay) SetImage(img *pixtype.Image) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown, d.err = img.Index, nil
}

func (d *cellDisplay) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown, d.err = grid.NoIndex, nil
}

func (d *cellDisplay) ShowError(_ int, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *cellDisplay) state() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.shown, d.err
}

type scrollOptions struct {
	width, height float64
	step          float64
	steps         int
	settle        time.Duration
	noLoad        bool
	switchMode    grid.Mode
	switchAt      int
}

func scrollCommand(c *common) runFunc {
	var o scrollOptions
	c.fs.Float64Var(&o.width, "width", 220, "viewport width")
	c.fs.Float64Var(&o.height, "height", 300, "viewport height")
	c.fs.Float64Var(&o.step, "step", 110, "scroll distance per step")
	c.fs.IntVar(&o.steps, "steps", 0, "number of steps (default: until the end of the content)")
	c.fs.DurationVar(&o.settle, "settle", 5*time.Second, "how long to wait for visible cells per step")
	c.fs.BoolVar(&o.noLoad, "no-load", false, "assign cells without loading content")
	c.fs.Var(&o.switchMode, "switch-mode", "selection mode to switch to at --switch-at")
	c.fs.IntVar(&o.switchAt, "switch-at", -1, "step at which to switch mode")
	return func(ctx context.Context, args []string, stdout io.Writer) error {
		if len(args) > 0 {
			return fmt.Errorf("unexpected arguments %v", args)
		}
		return runScroll(ctx, c, o, stdout)
	}
}

func runScroll(ctx context.Context, c *common, o scrollOptions, stdout io.Writer) error {
	if o.step <= 0 || o.width <= 0 || o.height <= 0 {
		return errors.New("width, height and step must be positive")
	}
	s, err := c.open(false)
	if err != nil {
		return err
	}
	defer s.Close()

	displays := make(map[int]*cellDisplay)
	factory := func(id int) grid.Display {
		d := &cellDisplay{shown: grid.NoIndex}
		displays[id] = d
		return d
	}
	geom := s.cfg.Geometry()
	ctrl, err := grid.NewController(ctx, s.loader, geom, factory,
		grid.WithMode(s.cfg.SelectionMode()),
		grid.WithLoading(!o.noLoad),
		grid.WithSlotTimeout(time.Duration(s.cfg.WaitTimeout)),
		grid.WithControllerLogger(s.logger.With("component", "grid")),
	)
	if err != nil {
		return err
	}
	defer ctrl.Close()

	steps := o.steps
	if steps <= 0 {
		last := ctrl.LastElement()
		if last < 0 {
			return errors.New("catalog is unbounded; set --steps")
		}
		content := geom.ContentSize(last).Y
		for offset := 0.0; offset+o.height < content; offset += o.step {
			steps++
		}
		steps++
	}

	start := time.Now()
	for step := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if step == o.switchAt && c.fs.Changed("switch-mode") {
			ctrl.SetMode(o.switchMode)
			fmt.Fprintf(stdout, "step=%d mode=%s last=%d\n", step, ctrl.Mode(), ctrl.LastElement())
		}
		offset := float64(step) * o.step
		r := ctrl.Update(geom.Viewport(offset, o.width, o.height))
		if !o.noLoad {
			settle(ctx, ctrl.Grid(), displays, o.settle)
		}
		fmt.Fprintf(stdout, "step=%d offset=%.0f range=%s pool=%d cells=%s\n",
			step, offset, r, ctrl.Grid().PoolLen(), describe(ctrl.Grid(), displays))
	}

	fmt.Fprintf(stdout, "steps=%d pool=%d transfers=%d cached=%d elapsed=%s\n",
		steps, ctrl.Grid().PoolLen(), s.source.Fetches(), s.loader.Cache().Len(),
		time.Since(start).Round(time.Millisecond))
	return nil
}

// settle waits until every visible slot shows its image or has failed.
func settle(ctx context.Context, v *grid.Virtualizer, displays map[int]*cellDisplay, timeout time.Duration) {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(5 * time.Millisecond)
	defer tick.Stop()

	for {
		done := true
		for _, slot := range v.Visible() {
			shown, err := displays[slot.ID()].state()
			if shown != slot.Index() && err == nil {
				done = false
				break
			}
		}
		if done {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-deadline.C:
			return
		case <-tick.C:
		}
	}
}

// describe renders visible cells as position:index, marking pending cells
// with "?" and failed ones with "!".
func describe(v *grid.Virtualizer, displays map[int]*cellDisplay) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, pos := range v.VisiblePositions() {
		slot, _ := v.SlotAt(pos)
		if i > 0 {
			b.WriteByte(' ')
		}
		shown, err := displays[slot.ID()].state()
		mark := ""
		switch {
		case err != nil:
			mark = "!"
		case shown != slot.Index():
			mark = "?"
		}
		fmt.Fprintf(&b, "%d:%d%s", pos, slot.Index(), mark)
	}
	b.WriteByte(']')
	return b.String()
}
