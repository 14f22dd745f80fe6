package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/meigma/pixgrid"
)

// recordingFetcher keeps every payload it fetched so it can be exported
// after decoding.
type recordingFetcher struct {
	pixgrid.Fetcher

	mu       sync.Mutex
	payloads map[int][]byte
}

func newRecordingFetcher(f pixgrid.Fetcher) *recordingFetcher {
	return &recordingFetcher{Fetcher: f, payloads: make(map[int][]byte)}
}

func (r *recordingFetcher) Fetch(ctx context.Context, index int) ([]byte, error) {
	data, err := r.Fetcher.Fetch(ctx, index)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.payloads[index] = data
	r.mu.Unlock()
	return data, nil
}

func (r *recordingFetcher) Payload(index int) ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, ok := r.payloads[index]
	return data, ok
}

type fetchResult struct {
	index int
	img   *pixgrid.Image
	err   error
}

func fetchCommand(c *common) runFunc {
	var outDir string
	c.fs.StringVarP(&outDir, "out", "o", "", "write payloads into this directory")
	return func(ctx context.Context, args []string, stdout io.Writer) error {
		return runFetch(ctx, c, args, outDir, stdout)
	}
}

func runFetch(ctx context.Context, c *common, args []string, outDir string, stdout io.Writer) error {
	s, err := c.open(outDir != "")
	if err != nil {
		return err
	}
	defer s.Close()

	indices, err := parseIndices(args, s.cfg.MaxIndex)
	if err != nil {
		return err
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return err
		}
	}

	start := time.Now()
	results := make([]fetchResult, len(indices))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(s.cfg.Concurrency * 2)
	for i, index := range indices {
		eg.Go(func() error {
			img, err := s.loader.Load(egCtx, index)
			results[i] = fetchResult{index: index, img: img, err: err}
			// Per-index failures are reported, not fatal.
			return egCtx.Err()
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	failed := 0
	var totalBytes int64
	for _, r := range results {
		if r.err != nil {
			failed++
			fmt.Fprintf(stdout, "index=%d error=%q\n", r.index, r.err.Error())
			continue
		}
		totalBytes += r.img.Size
		fmt.Fprintf(stdout, "index=%d format=%s size=%dx%d bytes=%d digest=%s\n",
			r.index, r.img.Format, r.img.Width, r.img.Height, r.img.Size, r.img.Digest)
		if outDir != "" {
			if err := export(outDir, s.fetcher, r.img); err != nil {
				return err
			}
		}
	}

	fmt.Fprintf(stdout, "fetched=%d failed=%d bytes=%d elapsed=%s peak_in_flight=%d transfers=%d\n",
		len(results)-failed, failed, totalBytes, elapsed.Round(time.Millisecond), s.source.Peak(), s.source.Fetches())
	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

// export writes the raw payload of img as <index>-<digest prefix>.<format>.
func export(dir string, rec *recordingFetcher, img *pixgrid.Image) error {
	data, ok := rec.Payload(img.Index)
	if !ok {
		return fmt.Errorf("no payload recorded for index %d", img.Index)
	}
	hex := img.Digest.Encoded()
	if len(hex) > 12 {
		hex = hex[:12]
	}
	name := fmt.Sprintf("%d-%s.%s", img.Index, hex, img.Format)
	return atomic.WriteFile(filepath.Join(dir, name), bytes.NewReader(data))
}

// parseIndices returns the requested indices, or the whole catalog when
// none are given.
func parseIndices(args []string, maxIndex int) ([]int, error) {
	if len(args) == 0 {
		if maxIndex <= 0 {
			return nil, errors.New("catalog is unbounded; name the indices to fetch")
		}
		all := make([]int, maxIndex)
		for i := range all {
			all[i] = i + 1
		}
		return all, nil
	}
	out := make([]int, 0, len(args))
	for _, arg := range args {
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, fmt.Errorf("invalid index %q", arg)
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}
