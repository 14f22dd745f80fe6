package grid_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/pixgrid"
	"github.com/meigma/pixgrid/grid"
	"github.com/meigma/pixgrid/internal/testutil"
)

func TestMode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		mode    grid.Mode
		logical []int
		last66  int
		last5   int
	}{
		{mode: grid.All, logical: []int{1, 2, 3, 4}, last66: 66, last5: 5},
		{mode: grid.Odd, logical: []int{1, 3, 5, 7}, last66: 33, last5: 3},
		{mode: grid.Even, logical: []int{2, 4, 6, 8}, last66: 33, last5: 2},
	}

	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			t.Parallel()

			for d, want := range tt.logical {
				got := tt.mode.Logical(d + 1)
				assert.Equal(t, want, got, "display %d", d+1)
				assert.True(t, tt.mode.Accepts(got))
			}
			assert.Equal(t, tt.last66, tt.mode.LastElement(66))
			assert.Equal(t, tt.last5, tt.mode.LastElement(5))
			assert.Equal(t, grid.Unbounded, tt.mode.LastElement(0))

			parsed, err := grid.ParseMode(tt.mode.String())
			require.NoError(t, err)
			assert.Equal(t, tt.mode, parsed)
		})
	}

	_, err := grid.ParseMode("prime")
	require.Error(t, err)

	var m grid.Mode
	require.NoError(t, m.Set("EVEN"))
	assert.Equal(t, grid.Even, m)
}

func newTestLoader(t *testing.T, maxIndex int) (*pixgrid.Loader, *testutil.Fetcher) {
	t.Helper()
	f := testutil.NewFetcher()
	l, err := pixgrid.New(
		pixgrid.WithFetcher(f),
		pixgrid.WithMaxIndex(maxIndex),
		pixgrid.WithLogger(slog.New(slog.DiscardHandler)),
	)
	require.NoError(t, err)
	return l, f
}

func indices(v *grid.Virtualizer) map[int]int {
	out := make(map[int]int)
	for pos, s := range v.Visible() {
		out[pos] = s.Index()
	}
	return out
}

func TestController_FillsGrid(t *testing.T) {
	t.Parallel()

	loader, f := newTestLoader(t, 66)
	rs := newRecorders()
	geom := grid.DefaultGeometry()
	c, err := grid.NewController(context.Background(), loader, geom, rs.Factory)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	assert.Equal(t, 66, c.LastElement())
	c.Update(geom.Viewport(0, 220, 300))

	assert.Equal(t, map[int]int{0: 1, 1: 2, 2: 3, 3: 4, 4: 5, 5: 6}, indices(c.Grid()))
	for pos, s := range c.Grid().Visible() {
		want := pos + 1
		require.Eventually(t, func() bool { return s.Shown() == want }, time.Second, time.Millisecond)
		assert.Equal(t, []int{want}, rs.Get(s.ID()).Shown())
	}
	assert.Equal(t, 6, f.Total())
}

func TestController_EvenMode(t *testing.T) {
	t.Parallel()

	loader, _ := newTestLoader(t, 66)
	geom := grid.DefaultGeometry()
	c, err := grid.NewController(context.Background(), loader, geom, nil, grid.WithMode(grid.Even), grid.WithLoading(false))
	require.NoError(t, err)

	assert.Equal(t, 6, c.LogicalAt(2))
	assert.Equal(t, 8, c.LogicalAt(3))

	c.Update(geom.Viewport(0, 220, 300))
	assert.Equal(t, map[int]int{0: 2, 1: 4, 2: 6, 3: 8, 4: 10, 5: 12}, indices(c.Grid()))
	for _, s := range c.Grid().Visible() {
		assert.False(t, s.Pending(), "loading disabled")
	}
}

func TestController_SetModeReassigns(t *testing.T) {
	t.Parallel()

	loader, _ := newTestLoader(t, 5)
	rs := newRecorders()
	geom := grid.DefaultGeometry()
	c, err := grid.NewController(context.Background(), loader, geom, rs.Factory)
	require.NoError(t, err)
	t.Cleanup(c.Close)

	c.Update(geom.Viewport(0, 220, 300))
	assert.Equal(t, map[int]int{0: 1, 1: 2, 2: 3, 3: 4, 4: 5}, indices(c.Grid()))

	c.SetMode(grid.Even)
	assert.Equal(t, grid.Even, c.Mode())
	assert.Equal(t, 2, c.Grid().ContentBound())
	assert.Equal(t, map[int]int{0: 2, 1: 4}, indices(c.Grid()))

	for pos, s := range c.Grid().Visible() {
		want := 2 * (pos + 1)
		require.Eventually(t, func() bool { return s.Shown() == want }, time.Second, time.Millisecond)
	}

	c.SetMode(grid.Odd)
	assert.Equal(t, map[int]int{0: 1, 1: 3, 2: 5}, indices(c.Grid()))
}

// sparseSource reports availability for a fixed set of indices.
type sparseSource struct {
	peekLoader
	available map[int]bool
}

func (s sparseSource) IsIndexAvailable(index int) bool { return s.available[index] }
func (s sparseSource) MaxIndex() int                   { return 0 }

func TestController_HidesUnavailable(t *testing.T) {
	t.Parallel()

	src := sparseSource{available: map[int]bool{1: true, 2: true, 4: true}}
	geom := grid.DefaultGeometry()
	var added []int
	c, err := grid.NewController(context.Background(), src, geom, nil,
		grid.WithAddedHandler(func(_ *grid.Slot, pos int) { added = append(added, pos) }))
	require.NoError(t, err)

	assert.Equal(t, grid.Unbounded, c.LastElement())
	c.Update(geom.Viewport(0, 220, 300))
	assert.Equal(t, map[int]int{0: 1, 1: 2, 3: 4}, indices(c.Grid()))
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5}, added)

	for pos, s := range c.Grid().Visible() {
		assert.Equal(t, pos+1, s.Shown(), "cached content is shown synchronously")
	}
}
