package pixgrid

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"slices"
	"strconv"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/pixgrid/cache"
	pixhttp "github.com/meigma/pixgrid/http"
	"github.com/meigma/pixgrid/internal/pixtype"
)

// Loader is the single entry point for image content.
//
// It serves cached images synchronously and fetches, decodes and caches
// missing ones. Concurrent Load calls for the same uncached index share one
// underlying fetch. A Loader is constructed once and shared by every
// consumer; it is safe for concurrent use.
type Loader struct {
	fetcher Fetcher
	cache   cache.Cache
	domain  pixtype.Domain
	logger  *slog.Logger

	progress ProgressFunc

	fetchGroup singleflight.Group
	loading    atomic.Int64

	// construction-time settings for the default fetcher and cache
	baseURL         string
	concurrency     int
	httpClient      *nethttp.Client
	httpOpts        []pixhttp.Option
	cacheSize       int
	prefetchWorkers int
	maxPixels       int64
}

// New creates a Loader.
//
// Without WithFetcher, a base URL is required and an http.Source is built
// from the HTTP options. Without WithCache, an unbounded in-memory cache is
// used unless WithCacheSize sets a bound.
func New(opts ...Option) (*Loader, error) {
	l := &Loader{
		concurrency: pixhttp.DefaultConcurrency,
		maxPixels:   DefaultMaxPixels,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	if l.logger == nil {
		l.logger = slog.New(slog.DiscardHandler)
	}

	if l.fetcher == nil {
		if l.baseURL == "" {
			return nil, errors.New("pixgrid: base URL or fetcher is required")
		}
		httpOpts := append([]pixhttp.Option{
			pixhttp.WithBaseURL(l.baseURL),
			pixhttp.WithMaxIndex(l.domain.Max),
			pixhttp.WithConcurrency(l.concurrency),
			pixhttp.WithClient(l.httpClient),
			pixhttp.WithLogger(l.logger.With("component", "fetcher")),
		}, l.httpOpts...)
		src, err := pixhttp.NewSource(httpOpts...)
		if err != nil {
			return nil, err
		}
		l.fetcher = src
	}

	if l.cache == nil {
		if l.cacheSize > 0 {
			c, err := cache.NewLRU(l.cacheSize, cache.WithEvictCallback(func(index int) {
				l.logger.Debug("cache evict", "index", index)
			}))
			if err != nil {
				return nil, err
			}
			l.cache = c
		} else {
			l.cache = cache.NewMemory()
		}
	}

	if l.prefetchWorkers < 1 {
		l.prefetchWorkers = l.concurrency
	}
	return l, nil
}

// Load returns the image for index.
//
// A cached image is returned without suspending. Otherwise the payload is
// fetched, decoded and cached; concurrent callers for the same index share
// that work. ErrOutOfRange, ErrNetwork and ErrDecode propagate unchanged.
//
// A ctx that is already done returns its error without starting a fetch.
// Cancelling ctx later releases the caller but never aborts the shared
// fetch, whose result still lands in the cache; the fetcher sees a context
// without cancellation, so waiting for a transfer permit is not cancelled
// either.
func (l *Loader) Load(ctx context.Context, index int) (*Image, error) {
	if err := l.domain.Check(index); err != nil {
		return nil, err
	}
	if img, ok := l.lookup(index); ok {
		l.logger.Debug("load cache hit", "index", index)
		return img, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fetchCtx := context.WithoutCancel(ctx)
	ch := l.fetchGroup.DoChan(strconv.Itoa(index), func() (any, error) {
		return l.fetch(fetchCtx, index)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		img, _ := res.Val.(*Image) //nolint:errcheck // type assertion always succeeds when err is nil
		return img, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// fetch runs inside the singleflight call for index.
func (l *Loader) fetch(ctx context.Context, index int) (*Image, error) {
	// Another caller may have populated the cache between our lookup and
	// entering the singleflight group.
	if img, ok := l.lookup(index); ok {
		return img, nil
	}

	l.loading.Add(1)
	defer l.loading.Add(-1)

	l.logger.Debug("load cache miss", "index", index)
	l.report(ProgressEvent{Stage: StageFetching, Index: index})
	data, err := l.fetcher.Fetch(ctx, index)
	if err != nil {
		l.report(ProgressEvent{Stage: StageFailed, Index: index, Err: err})
		return nil, err
	}
	l.report(ProgressEvent{Stage: StageDecoding, Index: index, Bytes: len(data)})
	img, err := DecodeLimit(index, data, l.maxPixels)
	if err != nil {
		l.logger.Warn("decode failed", "index", index, "bytes", len(data), "error", err)
		l.report(ProgressEvent{Stage: StageFailed, Index: index, Bytes: len(data), Err: err})
		return nil, err
	}
	l.cache.Put(index, img)
	l.report(ProgressEvent{Stage: StageCached, Index: index, Bytes: len(data)})
	l.logger.Debug("load stored", "index", index, "format", img.Format,
		"width", img.Width, "height", img.Height, "digest", img.Digest.String())

	// Return the resident entry so every caller observes the first writer.
	if stored, ok := l.lookup(index); ok {
		return stored, nil
	}
	return img, nil
}

func (l *Loader) report(ev ProgressEvent) {
	if l.progress != nil {
		l.progress(ev)
	}
}

func (l *Loader) lookup(index int) (*Image, bool) {
	if !l.cache.Has(index) {
		return nil, false
	}
	img, err := l.cache.Get(index)
	if err != nil {
		// Evicted between Has and Get.
		return nil, false
	}
	return img, true
}

// Peek returns the cached image for index without fetching.
func (l *Loader) Peek(index int) (*Image, bool) {
	if !l.domain.Contains(index) {
		return nil, false
	}
	return l.lookup(index)
}

// IsIndexAvailable reports whether index lies in [1, MaxIndex].
// It never triggers a fetch.
func (l *Loader) IsIndexAvailable(index int) bool {
	return l.domain.Contains(index)
}

// MaxIndex returns the upper bound of the catalog (0 means unbounded).
func (l *Loader) MaxIndex() int {
	return l.domain.Max
}

// LoadingCount returns the number of fetches currently in progress.
func (l *Loader) LoadingCount() int {
	return int(l.loading.Load())
}

// Cache returns the cache backing the loader.
func (l *Loader) Cache() cache.Cache {
	return l.cache
}

// Fetcher returns the fetcher backing the loader.
func (l *Loader) Fetcher() Fetcher {
	return l.fetcher
}

// Prefetch loads indices into the cache.
//
// Indices outside the catalog and duplicates are skipped. Prefetch returns
// the first load error; loads already running still complete and populate
// the cache, and queued indices are not fetched.
func (l *Loader) Prefetch(ctx context.Context, indices ...int) error {
	todo := make([]int, 0, len(indices))
	for _, index := range indices {
		if !l.domain.Contains(index) || l.cache.Has(index) {
			continue
		}
		todo = append(todo, index)
	}
	slices.Sort(todo)
	todo = slices.Compact(todo)
	if len(todo) == 0 {
		return nil
	}
	l.logger.Debug("prefetch", "requested", len(indices), "missing", len(todo))

	var done atomic.Int64
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(l.prefetchWorkers)
	for _, index := range todo {
		eg.Go(func() error {
			if _, err := l.Load(egCtx, index); err != nil {
				return err
			}
			l.report(ProgressEvent{Stage: StagePrefetch, Done: int(done.Add(1)), Total: len(todo)})
			return nil
		})
	}
	return eg.Wait()
}
