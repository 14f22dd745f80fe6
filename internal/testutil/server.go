package testutil

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// ImageServer serves ImagePNG payloads at /pics/{index}.jpg.
type ImageServer struct {
	*httptest.Server

	maxIndex int
	encoding string
	release  chan struct{}

	mu       sync.Mutex
	requests map[int]int
	failing  map[int]int
	garbage  map[int]bool

	inFlight atomic.Int64
	peak     atomic.Int64
}

// ServerOption configures an ImageServer.
type ServerOption func(*ImageServer)

// WithServerMaxIndex makes indices above n answer 404.
func WithServerMaxIndex(n int) ServerOption {
	return func(s *ImageServer) {
		s.maxIndex = n
	}
}

// WithEncoding compresses every response body with "gzip" or "zstd".
func WithEncoding(encoding string) ServerOption {
	return func(s *ImageServer) {
		s.encoding = encoding
	}
}

// WithGate holds every request open until release is closed or receives.
func WithGate(release chan struct{}) ServerOption {
	return func(s *ImageServer) {
		s.release = release
	}
}

// NewImageServer starts an ImageServer that is closed when the test ends.
func NewImageServer(tb testing.TB, opts ...ServerOption) *ImageServer {
	tb.Helper()

	s := StartImageServer(opts...)
	tb.Cleanup(s.Close)
	return s
}

// StartImageServer starts an ImageServer outside of a test. The caller must
// Close it.
func StartImageServer(opts ...ServerOption) *ImageServer {
	s := &ImageServer{
		requests: make(map[int]int),
		failing:  make(map[int]int),
		garbage:  make(map[int]bool),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Fail makes the server answer status for index.
func (s *ImageServer) Fail(index, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing[index] = status
}

// Garbage makes the server answer 200 with a payload that is not an image.
func (s *ImageServer) Garbage(index int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.garbage[index] = true
}

// Requests returns the number of requests received for index.
func (s *ImageServer) Requests(index int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[index]
}

// TotalRequests returns the number of image requests received.
func (s *ImageServer) TotalRequests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.requests {
		n += c
	}
	return n
}

// InFlight returns the number of requests currently being served.
func (s *ImageServer) InFlight() int {
	return int(s.inFlight.Load())
}

// Peak returns the largest number of requests served at once.
func (s *ImageServer) Peak() int {
	return int(s.peak.Load())
}

func (s *ImageServer) serve(w http.ResponseWriter, r *http.Request) {
	name, ok := strings.CutPrefix(r.URL.Path, "/pics/")
	if !ok {
		http.NotFound(w, r)
		return
	}
	index, err := strconv.Atoi(strings.TrimSuffix(name, ".jpg"))
	if err != nil {
		http.NotFound(w, r)
		return
	}

	n := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}

	s.mu.Lock()
	s.requests[index]++
	status := s.failing[index]
	garbage := s.garbage[index]
	s.mu.Unlock()

	if s.release != nil {
		select {
		case <-s.release:
		case <-r.Context().Done():
			return
		}
	}

	if status != 0 {
		w.WriteHeader(status)
		return
	}
	if index < 1 || (s.maxIndex > 0 && index > s.maxIndex) {
		http.NotFound(w, r)
		return
	}

	payload := ImagePNG(index)
	if garbage {
		payload = []byte("definitely not an image")
	}
	body, err := encode(s.encoding, payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if s.encoding != "" {
		w.Header().Set("Content-Encoding", s.encoding)
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	_, _ = w.Write(body)
}

func encode(encoding string, payload []byte) ([]byte, error) {
	var buf bytes.Buffer
	switch encoding {
	case "gzip":
		zw := gzip.NewWriter(&buf)
		if _, err := zw.Write(payload); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	case "zstd":
		zw, err := zstd.NewWriter(&buf)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(payload); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
	default:
		return payload, nil
	}
	return buf.Bytes(), nil
}
