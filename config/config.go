// Package config loads and saves pixgrid settings.
//
// Files are JSON with comments and trailing commas allowed. Values present in
// a file override the defaults; absent values keep them.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	"github.com/tailscale/hujson"

	"github.com/meigma/pixgrid"
	"github.com/meigma/pixgrid/grid"
	pixhttp "github.com/meigma/pixgrid/http"
)

// FileName is the default config file name.
const FileName = "pixgrid.json"

// Defaults.
const (
	DefaultBaseURL  = "http://data.ikppbb.com/test-task-unity-data"
	DefaultMaxIndex = 66
)

var (
	// ErrNotFound is returned when an explicit config file does not exist.
	ErrNotFound = errors.New("config file not found")
	// ErrInvalid is returned for unparsable or inconsistent settings.
	ErrInvalid = errors.New("invalid config")
)

// Config holds every setting the CLI and library consumers need.
type Config struct {
	BaseURL     string            `json:"base_url"`
	URLPattern  string            `json:"url_pattern,omitempty"`
	MaxIndex    int               `json:"max_index"`
	Concurrency int               `json:"concurrency"`
	CacheSize   int               `json:"cache_size"`
	Headers     map[string]string `json:"headers,omitempty"`
	Mode        string            `json:"mode"`
	WaitTimeout Duration          `json:"wait_timeout"`
	Grid        Grid              `json:"grid"`
}

// Grid is the serialized form of grid.Geometry.
type Grid struct {
	Columns    int     `json:"columns"`
	Rows       int     `json:"rows"`
	CellWidth  float64 `json:"cell_width"`
	CellHeight float64 `json:"cell_height"`
	SpacingX   float64 `json:"spacing_x"`
	SpacingY   float64 `json:"spacing_y"`
	PaddingX   float64 `json:"padding_x"`
	PaddingY   float64 `json:"padding_y"`
	Buffer     int     `json:"buffer"`
}

// Duration is a time.Duration encoded as a Go duration string ("30s").
type Duration time.Duration

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Default returns the built-in configuration.
func Default() Config {
	g := grid.DefaultGeometry()
	return Config{
		BaseURL:     DefaultBaseURL,
		MaxIndex:    DefaultMaxIndex,
		Concurrency: pixgrid.DefaultConcurrency,
		Mode:        grid.All.String(),
		WaitTimeout: Duration(grid.DefaultWaitTimeout),
		Grid: Grid{
			Columns:    g.Columns,
			Rows:       g.Rows,
			CellWidth:  g.CellSize.X,
			CellHeight: g.CellSize.Y,
			SpacingX:   g.Spacing.X,
			SpacingY:   g.Spacing.Y,
			PaddingX:   g.Padding.X,
			PaddingY:   g.Padding.Y,
			Buffer:     g.BufferSize,
		},
	}
}

// Load reads path over the defaults. A missing file yields the defaults
// unless mustExist is set.
func Load(path string, mustExist bool) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if mustExist {
				return Config{}, fmt.Errorf("%w: %s", ErrNotFound, path)
			}
			return Default(), nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes data over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Save writes cfg to path atomically.
func Save(path string, cfg Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

// Marshal returns cfg as indented JSON.
func (c Config) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	var errs []string
	if c.BaseURL == "" {
		errs = append(errs, "base_url is required")
	}
	if c.MaxIndex < 0 {
		errs = append(errs, "max_index must be >= 0")
	}
	if c.Concurrency < 1 {
		errs = append(errs, "concurrency must be >= 1")
	}
	if c.CacheSize < 0 {
		errs = append(errs, "cache_size must be >= 0")
	}
	if c.WaitTimeout < 0 {
		errs = append(errs, "wait_timeout must be >= 0")
	}
	if _, err := grid.ParseMode(c.Mode); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Geometry().Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(errs, "; "))
	}
	return nil
}

// Geometry converts the grid section.
func (c Config) Geometry() grid.Geometry {
	return grid.Geometry{
		Columns:    c.Grid.Columns,
		Rows:       c.Grid.Rows,
		CellSize:   grid.Vec2{X: c.Grid.CellWidth, Y: c.Grid.CellHeight},
		Spacing:    grid.Vec2{X: c.Grid.SpacingX, Y: c.Grid.SpacingY},
		Padding:    grid.Vec2{X: c.Grid.PaddingX, Y: c.Grid.PaddingY},
		BufferSize: c.Grid.Buffer,
	}
}

// SelectionMode parses the mode setting. Invalid values fall back to All;
// Validate reports them.
func (c Config) SelectionMode() grid.Mode {
	m, err := grid.ParseMode(c.Mode)
	if err != nil {
		return grid.All
	}
	return m
}

// LoaderOptions converts the catalog, cache and transport settings.
func (c Config) LoaderOptions() []pixgrid.Option {
	opts := []pixgrid.Option{
		pixgrid.WithBaseURL(c.BaseURL),
		pixgrid.WithMaxIndex(c.MaxIndex),
		pixgrid.WithConcurrency(c.Concurrency),
		pixgrid.WithCacheSize(c.CacheSize),
	}
	if httpOpts := c.sourceExtras(); len(httpOpts) > 0 {
		opts = append(opts, pixgrid.WithHTTPOptions(httpOpts...))
	}
	return opts
}

// SourceOptions converts the transport settings for building an
// http.Source directly.
func (c Config) SourceOptions() []pixhttp.Option {
	return append([]pixhttp.Option{
		pixhttp.WithBaseURL(c.BaseURL),
		pixhttp.WithMaxIndex(c.MaxIndex),
		pixhttp.WithConcurrency(c.Concurrency),
	}, c.sourceExtras()...)
}

func (c Config) sourceExtras() []pixhttp.Option {
	var opts []pixhttp.Option
	if c.URLPattern != "" {
		opts = append(opts, pixhttp.WithURLPattern(c.URLPattern))
	}
	for k, v := range c.Headers {
		opts = append(opts, pixhttp.WithHeader(k, v))
	}
	return opts
}
