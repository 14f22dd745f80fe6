// Package pixgrid loads catalog images by logical index and feeds them to a
// virtualized scrolling grid.
//
// A [Loader] is the single entry point for image content. It serves cached
// images without suspending, and fetches, decodes and caches missing ones.
// Concurrent requests for the same uncached index share one transfer, and
// at most a fixed number of transfers (12 by default) run at once.
//
// # Quick Start
//
//	l, err := pixgrid.New(
//	    pixgrid.WithBaseURL("http://data.example.com/catalog"),
//	    pixgrid.WithMaxIndex(66),
//	)
//	if err != nil {
//	    return err
//	}
//	img, err := l.Load(ctx, 12)
//
// Images are fetched from BaseURL/pics/{index}.jpg; the pattern, headers and
// HTTP client are configurable through [WithHTTPOptions] and
// [WithHTTPClient]. Any [Fetcher] may replace the HTTP transport.
//
// # Errors
//
// Load reports [ErrOutOfRange] for indices outside [1, MaxIndex] without
// touching the network, [ErrNetwork] for failed transfers and [ErrDecode]
// for payloads that are not images. Failures are never cached, so a later
// Load retries.
//
// # Grid
//
// The grid subpackage maps a scrolling viewport onto a small pool of
// reusable slots and binds each visible slot to a Loader. The config
// subpackage loads settings for both from a JSON-with-comments file.
package pixgrid
