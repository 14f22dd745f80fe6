package pixgrid

import (
	"errors"
	"log/slog"
	nethttp "net/http"

	"github.com/meigma/pixgrid/cache"
	pixhttp "github.com/meigma/pixgrid/http"
	"github.com/meigma/pixgrid/internal/pixtype"
)

// Option configures a Loader.
type Option func(*Loader) error

// DefaultConcurrency is the transfer concurrency used when none is set.
const DefaultConcurrency = pixhttp.DefaultConcurrency

// --- Catalog Options ---

// WithMaxIndex sets the catalog bound: valid indices are [1, n].
// Zero leaves the catalog unbounded.
func WithMaxIndex(n int) Option {
	return func(l *Loader) error {
		if n < 0 {
			return errors.New("pixgrid: max index must be >= 0")
		}
		l.domain = pixtype.Domain{Max: n}
		return nil
	}
}

// --- Transport Options ---

// WithBaseURL sets the URL prefix images are fetched from.
// Images are requested at {base}/pics/{index}.jpg.
func WithBaseURL(url string) Option {
	return func(l *Loader) error {
		l.baseURL = url
		return nil
	}
}

// WithConcurrency sets the number of simultaneous transfers.
func WithConcurrency(n int) Option {
	return func(l *Loader) error {
		if n < 1 {
			return errors.New("pixgrid: concurrency must be >= 1")
		}
		l.concurrency = n
		return nil
	}
}

// WithHTTPClient sets the HTTP client used by the default fetcher.
func WithHTTPClient(client *nethttp.Client) Option {
	return func(l *Loader) error {
		l.httpClient = client
		return nil
	}
}

// WithHTTPOptions passes extra options to the default fetcher.
func WithHTTPOptions(opts ...pixhttp.Option) Option {
	return func(l *Loader) error {
		l.httpOpts = append(l.httpOpts, opts...)
		return nil
	}
}

// WithFetcher replaces the default HTTP fetcher.
// HTTP transport options are ignored when a fetcher is set.
func WithFetcher(f Fetcher) Option {
	return func(l *Loader) error {
		if f == nil {
			return errors.New("pixgrid: fetcher is nil")
		}
		l.fetcher = f
		return nil
	}
}

// --- Caching Options ---

// WithCache sets the cache backing the loader.
func WithCache(c cache.Cache) Option {
	return func(l *Loader) error {
		if c == nil {
			return errors.New("pixgrid: cache is nil")
		}
		l.cache = c
		return nil
	}
}

// WithCacheSize bounds the default cache to n entries with LRU eviction.
// Zero keeps the default unbounded cache. Ignored when WithCache is set.
func WithCacheSize(n int) Option {
	return func(l *Loader) error {
		if n < 0 {
			return errors.New("pixgrid: cache size must be >= 0")
		}
		l.cacheSize = n
		return nil
	}
}

// WithPrefetchConcurrency sets the number of loads Prefetch runs at once.
// Zero uses the transfer concurrency.
func WithPrefetchConcurrency(n int) Option {
	return func(l *Loader) error {
		l.prefetchWorkers = n
		return nil
	}
}

// WithMaxPixels bounds the declared width*height of decoded images.
// Larger images fail with ErrDecode before their pixels are allocated.
// Zero disables the bound.
func WithMaxPixels(n int64) Option {
	return func(l *Loader) error {
		if n < 0 {
			return errors.New("pixgrid: max pixels must be >= 0")
		}
		l.maxPixels = n
		return nil
	}
}

// --- Logging Options ---

// WithLogger sets the logger for loader and fetcher events.
// If not set, logging is disabled.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) error {
		l.logger = logger
		return nil
	}
}

// WithProgress sets a callback for load and prefetch progress.
// The callback is invoked from fetch goroutines.
func WithProgress(fn ProgressFunc) Option {
	return func(l *Loader) error {
		l.progress = fn
		return nil
	}
}
