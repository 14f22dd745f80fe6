package http_test

import (
	"bytes"
	"context"
	nethttp "net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pixhttp "github.com/meigma/pixgrid/http"
	"github.com/meigma/pixgrid/internal/pixtype"
	"github.com/meigma/pixgrid/internal/testutil"
)

func TestSource_Fetch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		encoding string
	}{
		{name: "identity"},
		{name: "gzip", encoding: "gzip"},
		{name: "zstd", encoding: "zstd"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := testutil.NewImageServer(t, testutil.WithEncoding(tt.encoding))
			src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL), pixhttp.WithMaxIndex(66))
			require.NoError(t, err)

			data, err := src.Fetch(context.Background(), 7)
			require.NoError(t, err)
			assert.True(t, bytes.Equal(testutil.ImagePNG(7), data), "payload mismatch")
			assert.Equal(t, 1, srv.Requests(7))
		})
	}
}

func TestSource_FetchOutOfRange(t *testing.T) {
	t.Parallel()

	srv := testutil.NewImageServer(t)
	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL), pixhttp.WithMaxIndex(66))
	require.NoError(t, err)

	for _, index := range []int{-1, 0, 67, 1000} {
		_, err := src.Fetch(context.Background(), index)
		require.ErrorIs(t, err, pixtype.ErrOutOfRange, "index %d", index)
	}
	assert.Equal(t, 0, srv.TotalRequests(), "out-of-range indices must not reach the network")
	assert.Equal(t, 0, src.Fetches())
}

func TestSource_FetchNetworkError(t *testing.T) {
	t.Parallel()

	srv := testutil.NewImageServer(t)
	srv.Fail(3, nethttp.StatusInternalServerError)
	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), 3)
	require.ErrorIs(t, err, pixtype.ErrNetwork)
	assert.Equal(t, 0, src.InFlight(), "permit must be released after failure")

	// The released permit is reusable.
	_, err = src.Fetch(context.Background(), 4)
	require.NoError(t, err)
}

func TestSource_FetchTransportError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(nethttp.NotFoundHandler())
	url := server.URL
	server.Close()

	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(url), pixhttp.WithConcurrency(1))
	require.NoError(t, err)

	for range 3 {
		_, err = src.Fetch(context.Background(), 1)
		require.ErrorIs(t, err, pixtype.ErrNetwork)
	}
}

func TestSource_ConcurrencyBudget(t *testing.T) {
	t.Parallel()

	const budget = 3
	release := make(chan struct{})
	srv := testutil.NewImageServer(t, testutil.WithGate(release))
	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL), pixhttp.WithConcurrency(budget))
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, budget+1)
	for i := 1; i <= budget+1; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			_, err := src.Fetch(context.Background(), index)
			errs <- err
		}(i)
	}

	require.Eventually(t, func() bool { return srv.InFlight() == budget }, 5*time.Second, 5*time.Millisecond)
	// Give the extra fetch a chance to sneak through if the budget were broken.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, budget, srv.InFlight())
	assert.Equal(t, budget, src.InFlight())

	release <- struct{}{}
	require.Eventually(t, func() bool { return srv.TotalRequests() == budget+1 }, 5*time.Second, 5*time.Millisecond)

	close(release)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, budget, src.Peak())
}

func TestSource_PermitWaitHonorsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := testutil.NewImageServer(t, testutil.WithGate(release))
	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL), pixhttp.WithConcurrency(1))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := src.Fetch(context.Background(), 1)
		done <- err
	}()
	require.Eventually(t, func() bool { return srv.InFlight() == 1 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = src.Fetch(ctx, 2)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, srv.Requests(2))

	close(release)
	require.NoError(t, <-done)
}

func TestSource_TransferSurvivesCallerCancel(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := testutil.NewImageServer(t, testutil.WithGate(release))
	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := src.Fetch(ctx, 5)
		done <- err
	}()
	require.Eventually(t, func() bool { return srv.InFlight() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	close(release)
	require.NoError(t, <-done)
}

func TestSource_Headers(t *testing.T) {
	t.Parallel()

	var got nethttp.Header
	server := httptest.NewServer(nethttp.HandlerFunc(func(w nethttp.ResponseWriter, r *nethttp.Request) {
		got = r.Header.Clone()
		_, _ = w.Write(testutil.ImagePNG(1))
	}))
	t.Cleanup(server.Close)

	src, err := pixhttp.NewSource(
		pixhttp.WithBaseURL(server.URL+"/"),
		pixhttp.WithHeaders(nethttp.Header{"X-Team": []string{"grid"}}),
		pixhttp.WithHeader("User-Agent", "pixgrid-test"),
	)
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/pics/9.jpg", src.URL(9))

	_, err = src.Fetch(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "grid", got.Get("X-Team"))
	assert.Equal(t, "pixgrid-test", got.Get("User-Agent"))
	assert.Equal(t, "zstd, gzip", got.Get("Accept-Encoding"))
}

func TestSource_MaxPayload(t *testing.T) {
	t.Parallel()

	srv := testutil.NewImageServer(t)
	src, err := pixhttp.NewSource(pixhttp.WithBaseURL(srv.URL), pixhttp.WithMaxPayload(8))
	require.NoError(t, err)

	_, err = src.Fetch(context.Background(), 1)
	require.ErrorIs(t, err, pixtype.ErrNetwork)
}

func TestNewSource_RequiresBaseURL(t *testing.T) {
	t.Parallel()

	_, err := pixhttp.NewSource()
	require.Error(t, err)
}
