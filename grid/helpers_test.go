package grid_test

import (
	"context"
	"sync"

	"github.com/meigma/pixgrid/grid"
	"github.com/meigma/pixgrid/internal/pixtype"
)

// recorder is a Display that records what it was asked to show.
type recorder struct {
	mu     sync.Mutex
	shown  []int
	clears int
	errs   map[int]error
	center grid.Vec2
}

func (r *recorder) Place(center grid.Vec2) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.center = center
}

func (r *recorder) Center() grid.Vec2 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.center
}

func (r *recorder) SetImage(img *pixtype.Image) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, img.Index)
}

func (r *recorder) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clears++
}

func (r *recorder) ShowError(index int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errs == nil {
		r.errs = make(map[int]error)
	}
	r.errs[index] = err
}

func (r *recorder) Shown() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.shown...)
}

func (r *recorder) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}

func (r *recorder) Error(index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.errs[index]
}

// recorders hands out one recorder per slot ID.
type recorders struct {
	mu   sync.Mutex
	byID map[int]*recorder
}

func newRecorders() *recorders {
	return &recorders{byID: make(map[int]*recorder)}
}

func (rs *recorders) Factory(id int) grid.Display {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	r := &recorder{}
	rs.byID[id] = r
	return r
}

func (rs *recorders) Get(id int) *recorder {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.byID[id]
}

// gatedLoader blocks every Load on a per-index channel.
type gatedLoader struct {
	mu    sync.Mutex
	gates map[int]chan error
	calls map[int]int
}

func newGatedLoader() *gatedLoader {
	return &gatedLoader{gates: make(map[int]chan error), calls: make(map[int]int)}
}

func (g *gatedLoader) gate(index int) chan error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.gates[index]
	if !ok {
		ch = make(chan error, 1)
		g.gates[index] = ch
	}
	return ch
}

// Finish completes the pending load of index with err.
func (g *gatedLoader) Finish(index int, err error) {
	g.gate(index) <- err
}

func (g *gatedLoader) Calls(index int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[index]
}

func (g *gatedLoader) Load(ctx context.Context, index int) (*pixtype.Image, error) {
	g.mu.Lock()
	g.calls[index]++
	g.mu.Unlock()

	select {
	case err := <-g.gate(index):
		if err != nil {
			return nil, err
		}
		return &pixtype.Image{Index: index}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// peekLoader serves every index synchronously.
type peekLoader struct{}

func (peekLoader) Load(_ context.Context, index int) (*pixtype.Image, error) {
	return &pixtype.Image{Index: index}, nil
}

func (peekLoader) Peek(index int) (*pixtype.Image, bool) {
	return &pixtype.Image{Index: index}, true
}
