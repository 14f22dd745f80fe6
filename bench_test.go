package pixgrid

import (
	"context"
	"os"
	"runtime"
	"strconv"
	"testing"

	"github.com/meigma/pixgrid/internal/testutil"
)

var (
	benchSinkImage *Image
	errBenchSink   error //nolint:errname // not a sentinel error, just a sink variable
)

func init() {
	if os.Getenv("PIXGRID_PROFILE_BLOCK") == "1" {
		runtime.SetBlockProfileRate(1)
	}
	if os.Getenv("PIXGRID_PROFILE_MUTEX") == "1" {
		runtime.SetMutexProfileFraction(1)
	}
}

func BenchmarkLoaderCacheHit(b *testing.B) {
	for _, cacheSize := range []int{0, 64} {
		b.Run("cache="+strconv.Itoa(cacheSize), func(b *testing.B) {
			l, err := New(WithFetcher(testutil.NewFetcher()), WithMaxIndex(66), WithCacheSize(cacheSize))
			if err != nil {
				b.Fatal(err)
			}
			ctx := context.Background()
			for index := 1; index <= 66; index++ {
				if _, err := l.Load(ctx, index); err != nil {
					b.Fatal(err)
				}
			}

			b.ReportAllocs()
			b.ResetTimer()
			b.RunParallel(func(pb *testing.PB) {
				i := 0
				for pb.Next() {
					benchSinkImage, errBenchSink = l.Load(ctx, i%66+1)
					i++
				}
			})
		})
	}
}

func BenchmarkLoaderColdHTTP(b *testing.B) {
	srv := testutil.NewImageServer(b)
	ctx := context.Background()

	b.ReportAllocs()
	for b.Loop() {
		l, err := New(WithBaseURL(srv.URL), WithMaxIndex(66))
		if err != nil {
			b.Fatal(err)
		}
		for index := 1; index <= 12; index++ {
			benchSinkImage, errBenchSink = l.Load(ctx, index)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	payload := testutil.ImagePNG(42)
	b.SetBytes(int64(len(payload)))
	b.ReportAllocs()
	for b.Loop() {
		benchSinkImage, errBenchSink = Decode(42, payload)
	}
}
