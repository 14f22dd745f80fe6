// Package testutil provides deterministic image payloads, an in-process image
// server and a scripted fetcher for tests.
package testutil

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"

	"github.com/meigma/pixgrid/internal/pixtype"
)

// ImagePNG returns a small PNG whose dimensions and fill color derive from
// index, so decoded results can be matched back to the index that produced them.
func ImagePNG(index int) []byte {
	w, h := ImageSize(index)
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	fill := color.NRGBA{R: uint8(index), G: uint8(index >> 8), B: 0x80, A: 0xff} //nolint:gosec // truncation intended
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, fill)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

// ImageSize returns the dimensions ImagePNG uses for index.
func ImageSize(index int) (int, int) {
	if index < 0 {
		index = -index
	}
	return 2 + index%7, 2 + index%3
}

// Fetcher is a scripted in-memory fetcher.
//
// Fetch returns ImagePNG(index) unless an error or payload override is set
// for the index. When Block is non-nil every Fetch waits on it before
// returning, which lets tests hold transfers open.
type Fetcher struct {
	Block chan struct{}

	mu       sync.Mutex
	calls    map[int]int
	errs     map[int]error
	payloads map[int][]byte
	started  chan int

	inFlight atomic.Int64
	peak     atomic.Int64
}

// NewFetcher returns an empty scripted fetcher.
func NewFetcher() *Fetcher {
	return &Fetcher{
		calls:    make(map[int]int),
		errs:     make(map[int]error),
		payloads: make(map[int][]byte),
		started:  make(chan int, 1024),
	}
}

// FailWith makes Fetch return err for index.
func (f *Fetcher) FailWith(index int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[index] = err
}

// Serve makes Fetch return payload for index.
func (f *Fetcher) Serve(index int, payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads[index] = payload
}

// Calls returns how many times Fetch ran for index.
func (f *Fetcher) Calls(index int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[index]
}

// Total returns the number of Fetch calls across all indices.
func (f *Fetcher) Total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// Started delivers the index of every Fetch as it begins.
func (f *Fetcher) Started() <-chan int {
	return f.started
}

// Peak returns the largest number of concurrent Fetch calls observed.
func (f *Fetcher) Peak() int {
	return int(f.peak.Load())
}

// Fetch implements the loader's fetcher contract.
func (f *Fetcher) Fetch(ctx context.Context, index int) ([]byte, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls[index]++
	err := f.errs[index]
	payload, ok := f.payloads[index]
	f.mu.Unlock()

	select {
	case f.started <- index:
	default:
	}

	if f.Block != nil {
		select {
		case <-f.Block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	if ok {
		return payload, nil
	}
	if index < 1 {
		return nil, pixtype.ErrOutOfRange
	}
	return ImagePNG(index), nil
}
