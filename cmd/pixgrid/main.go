// Command pixgrid exercises the image loader and grid virtualizer headlessly.
//
// Usage:
//
//	pixgrid fetch  [flags] [index...]
//	pixgrid scroll [flags]
//	pixgrid config [flags]
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"time"

	"github.com/felixge/fgprof"
	"github.com/spf13/pflag"

	"github.com/meigma/pixgrid"
	"github.com/meigma/pixgrid/config"
	"github.com/meigma/pixgrid/grid"
	pixhttp "github.com/meigma/pixgrid/http"
	"github.com/meigma/pixgrid/internal/testutil"
)

const usage = `usage: pixgrid <command> [flags]

commands:
  fetch   download and decode images
  scroll  scroll a virtual grid over the catalog
  config  print or write the effective configuration
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var build func(*common) runFunc
	switch args[0] {
	case "fetch":
		build = fetchCommand
	case "scroll":
		build = scrollCommand
	case "config":
		build = configCommand
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "pixgrid: unknown command %q\n%s", args[0], usage)
		return 2
	}

	c := newCommon(args[0], stderr)
	cmd := build(c)
	if err := c.fs.Parse(args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if err := cmd(ctx, c.fs.Args(), stdout); err != nil {
		fmt.Fprintf(stderr, "pixgrid %s: %v\n", args[0], err)
		return 1
	}
	return 0
}

// runFunc runs a command once its flags are parsed.
type runFunc func(ctx context.Context, args []string, stdout io.Writer) error

// common holds the flags shared by every command.
type common struct {
	fs     *pflag.FlagSet
	stderr io.Writer

	configPath  string
	baseURL     string
	maxIndex    int
	concurrency int
	cacheSize   int
	mode        grid.Mode
	waitTimeout time.Duration
	local       bool
	latency     time.Duration
	bps         string
	logLevel    string
	fgProfile   string
}

func newCommon(name string, stderr io.Writer) *common {
	c := &common{stderr: stderr}
	fs := pflag.NewFlagSet("pixgrid "+name, pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVarP(&c.configPath, "config", "c", "", "config file (default ./"+config.FileName+" if present)")
	fs.StringVar(&c.baseURL, "base-url", "", "catalog base URL")
	fs.IntVar(&c.maxIndex, "max-index", 0, "highest logical index (0 = unbounded)")
	fs.IntVar(&c.concurrency, "concurrency", 0, "simultaneous transfers")
	fs.IntVar(&c.cacheSize, "cache-size", 0, "bound the image cache (0 = unbounded)")
	fs.Var(&c.mode, "mode", "selection mode: all, odd or even")
	fs.DurationVar(&c.waitTimeout, "wait-timeout", 0, "per-slot content wait bound")
	fs.BoolVar(&c.local, "local", false, "serve generated images from an in-process server")
	fs.DurationVar(&c.latency, "latency", 0, "added latency per request")
	fs.StringVar(&c.bps, "bps", "", "throttle response bodies (e.g. 512k, 2mb)")
	fs.StringVar(&c.logLevel, "log-level", "warn", "debug, info, warn or error")
	fs.StringVar(&c.fgProfile, "fgprof", "", "write a wall-clock profile to this file")
	c.fs = fs
	return c
}

// settings loads the config file and applies explicitly set flags on top.
func (c *common) settings() (config.Config, error) {
	path, mustExist := c.configPath, true
	if path == "" {
		path, mustExist = config.FileName, false
	}
	cfg, err := config.Load(path, mustExist)
	if err != nil {
		return config.Config{}, err
	}

	if c.fs.Changed("base-url") {
		cfg.BaseURL = c.baseURL
	}
	if c.fs.Changed("max-index") {
		cfg.MaxIndex = c.maxIndex
	}
	if c.fs.Changed("concurrency") {
		cfg.Concurrency = c.concurrency
	}
	if c.fs.Changed("cache-size") {
		cfg.CacheSize = c.cacheSize
	}
	if c.fs.Changed("mode") {
		cfg.Mode = c.mode.String()
	}
	if c.fs.Changed("wait-timeout") {
		cfg.WaitTimeout = config.Duration(c.waitTimeout)
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func (c *common) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.logLevel)
	}
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: level})), nil
}

// session is the wired stack a command runs against.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	source  *pixhttp.Source
	fetcher *recordingFetcher
	loader  *pixgrid.Loader
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func (c *common) open(record bool) (*session, error) {
	cfg, err := c.settings()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	s := &session{cfg: cfg, logger: logger}

	if c.fgProfile != "" {
		stopProfile, err := startProfile(c.fgProfile)
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, func() {
			if err := stopProfile(); err != nil {
				logger.Warn("fgprof stop", "error", err)
			}
		})
	}

	if c.local {
		srv := testutil.StartImageServer(testutil.WithServerMaxIndex(cfg.MaxIndex))
		s.closers = append(s.closers, srv.Close)
		s.cfg.BaseURL = srv.URL
		logger.Info("serving generated images", "url", srv.URL)
	}

	client, err := newHTTPClient(c.latency, c.bps)
	if err != nil {
		s.Close()
		return nil, err
	}
	src, err := pixhttp.NewSource(append(s.cfg.SourceOptions(),
		pixhttp.WithClient(client),
		pixhttp.WithLogger(logger.With("component", "fetcher")),
	)...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.source = src

	var fetcher pixgrid.Fetcher = src
	if record {
		s.fetcher = newRecordingFetcher(src)
		fetcher = s.fetcher
	}
	loader, err := pixgrid.New(append(s.cfg.LoaderOptions(),
		pixgrid.WithFetcher(fetcher),
		pixgrid.WithLogger(logger.With("component", "loader")),
		pixgrid.WithProgress(func(ev pixgrid.ProgressEvent) {
			logger.Debug("progress", "stage", ev.Stage.String(), "index", ev.Index, "bytes", ev.Bytes)
		}),
	)...)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.loader = loader
	return s, nil
}

func startProfile(path string) (func() error, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	stop := fgprof.Start(f, fgprof.FormatPprof)
	return func() error {
		err := stop()
		return errors.Join(err, f.Close())
	}, nil
}

func newHTTPClient(latency time.Duration, bps string) (*nethttp.Client, error) {
	var rate int64
	if bps != "" {
		var err error
		if rate, err = parseBytesPerSecond(bps); err != nil {
			return nil, err
		}
	}
	transport := nethttp.DefaultTransport
	if base, ok := transport.(*nethttp.Transport); ok {
		transport = base.Clone()
	}
	if latency > 0 || rate > 0 {
		transport = &throttleRoundTripper{
			base:           transport,
			latency:        latency,
			bytesPerSecond: rate,
		}
	}
	return &nethttp.Client{Transport: transport}, nil
}
