// Package http provides the image Fetcher backed by plain HTTP GET requests.
package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"strings"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/pixgrid/internal/pixtype"
)

const (
	// DefaultConcurrency is the number of transfers allowed in flight at once.
	DefaultConcurrency = 12

	// DefaultURLPattern builds an image URL from the base URL and the index.
	DefaultURLPattern = "%s/pics/%d.jpg"

	// DefaultMaxPayload caps the size of a single image payload.
	DefaultMaxPayload int64 = 32 << 20
)

// Source fetches raw image payloads by logical index.
//
// At most Concurrency transfers run at any instant; further callers block
// until a permit is released. A permit is held until the transfer completes
// or fails, even if the caller stops waiting.
type Source struct {
	baseURL    string
	pattern    string
	domain     pixtype.Domain
	client     *nethttp.Client
	headers    nethttp.Header
	maxPayload int64
	permits    int64
	budget     *semaphore.Weighted
	logger     *slog.Logger

	inFlight atomic.Int64
	peak     atomic.Int64
	fetches  atomic.Int64
}

// Option configures a Source.
type Option func(*Source)

// WithBaseURL sets the URL prefix substituted into the URL pattern.
func WithBaseURL(url string) Option {
	return func(s *Source) {
		s.baseURL = strings.TrimRight(url, "/")
	}
}

// WithURLPattern sets the fmt pattern used to build a URL.
// The pattern receives the base URL and the index, in that order.
func WithURLPattern(pattern string) Option {
	return func(s *Source) {
		s.pattern = pattern
	}
}

// WithMaxIndex bounds the catalog to [1, max]. Zero disables the upper bound.
func WithMaxIndex(n int) Option {
	return func(s *Source) {
		s.domain = pixtype.Domain{Max: n}
	}
}

// WithConcurrency sets the number of simultaneous transfers.
// Values < 1 fall back to DefaultConcurrency.
func WithConcurrency(n int) Option {
	return func(s *Source) {
		s.permits = int64(n)
	}
}

// WithMaxPayload caps the payload size accepted for one image.
// Values <= 0 disable the cap.
func WithMaxPayload(n int64) Option {
	return func(s *Source) {
		s.maxPayload = n
	}
}

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeaders sets additional headers on each request.
func WithHeaders(headers nethttp.Header) Option {
	return func(s *Source) {
		if headers == nil {
			return
		}
		s.headers = headers.Clone()
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithLogger sets the logger for transfer events.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Source) {
		s.logger = logger
	}
}

// NewSource creates a Source. A base URL is required.
func NewSource(opts ...Option) (*Source, error) {
	s := &Source{
		pattern:    DefaultURLPattern,
		client:     nethttp.DefaultClient,
		maxPayload: DefaultMaxPayload,
		permits:    DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.baseURL == "" {
		return nil, errors.New("http source: base URL is empty")
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}
	if s.permits < 1 {
		s.permits = DefaultConcurrency
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.budget = semaphore.NewWeighted(s.permits)
	return s, nil
}

// URL returns the URL the payload for index is fetched from.
func (s *Source) URL(index int) string {
	return fmt.Sprintf(s.pattern, s.baseURL, index)
}

// Concurrency returns the permit count.
func (s *Source) Concurrency() int {
	return int(s.permits)
}

// InFlight returns the number of transfers currently holding a permit.
func (s *Source) InFlight() int {
	return int(s.inFlight.Load())
}

// Peak returns the largest number of transfers observed in flight at once.
func (s *Source) Peak() int {
	return int(s.peak.Load())
}

// Fetches returns the number of transfers started since construction.
func (s *Source) Fetches() int {
	return int(s.fetches.Load())
}

// Fetch downloads the payload for index.
//
// It fails with ErrOutOfRange before touching the network when index lies
// outside the catalog, and with ErrNetwork when the transfer fails. Waiting
// for a permit honors ctx; once a permit is held the transfer runs to
// completion regardless of ctx.
func (s *Source) Fetch(ctx context.Context, index int) ([]byte, error) {
	if err := s.domain.Check(index); err != nil {
		return nil, err
	}
	if err := s.budget.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer s.budget.Release(1)

	s.enter()
	defer s.inFlight.Add(-1)

	url := s.URL(index)
	s.logger.Debug("fetch start", "index", index, "url", url, "in_flight", s.InFlight())

	data, err := s.get(context.WithoutCancel(ctx), url)
	if err != nil {
		s.logger.Warn("fetch failed", "index", index, "error", err)
		return nil, fmt.Errorf("fetch %d: %w", index, err)
	}
	s.logger.Debug("fetch done", "index", index, "bytes", len(data))
	return data, nil
}

func (s *Source) enter() {
	s.fetches.Add(1)
	n := s.inFlight.Add(1)
	for {
		peak := s.peak.Load()
		if n <= peak || s.peak.CompareAndSwap(peak, n) {
			return
		}
	}
}

func (s *Source) get(ctx context.Context, url string) ([]byte, error) {
	req, err := s.newRequest(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pixtype.ErrNetwork, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pixtype.ErrNetwork, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", pixtype.ErrNetwork, resp.Status)
	}

	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pixtype.ErrNetwork, err)
	}
	defer body.Close()

	var r io.Reader = body
	if s.maxPayload > 0 {
		r = io.LimitReader(body, s.maxPayload+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pixtype.ErrNetwork, err)
	}
	if s.maxPayload > 0 && int64(len(data)) > s.maxPayload {
		return nil, fmt.Errorf("%w: payload exceeds %d bytes", pixtype.ErrNetwork, s.maxPayload)
	}
	return data, nil
}

func (s *Source) newRequest(ctx context.Context, url string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequestWithContext(ctx, nethttp.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "zstd, gzip")
	}
	return req, nil
}

// decodeBody unwraps the response body according to Content-Encoding.
// Setting Accept-Encoding disables the transport's transparent gzip handling,
// so both encodings are handled here.
func decodeBody(resp *nethttp.Response) (io.ReadCloser, error) {
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
		return io.NopCloser(resp.Body), nil
	case "gzip":
		zr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		return zr, nil
	case "zstd":
		zr, err := zstd.NewReader(resp.Body, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, fmt.Errorf("zstd body: %w", err)
		}
		return zr.IOReadCloser(), nil
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
}
