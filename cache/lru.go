package cache

import (
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meigma/pixgrid/internal/pixtype"
)

// LRU is a Cache bounded to a fixed number of entries.
//
// When full, Put evicts the least recently used entry. First-writer-wins
// holds while an entry is resident; once evicted, the next Put for that
// index stores a fresh entry.
type LRU struct {
	entries *lru.Cache[int, *pixtype.Image]
	size    int
	onEvict func(index int)
}

var _ Cache = (*LRU)(nil)

// LRUOption configures an LRU cache.
type LRUOption func(*LRU)

// WithEvictCallback registers fn to run after an entry is evicted.
// fn runs synchronously inside Put and must not call back into the cache.
func WithEvictCallback(fn func(index int)) LRUOption {
	return func(c *LRU) {
		c.onEvict = fn
	}
}

// NewLRU returns a cache holding at most size entries.
func NewLRU(size int, opts ...LRUOption) (*LRU, error) {
	if size <= 0 {
		return nil, errors.New("lru cache: size must be > 0")
	}
	c := &LRU{size: size}
	for _, opt := range opts {
		opt(c)
	}
	entries, err := lru.NewWithEvict(size, func(index int, _ *pixtype.Image) {
		if c.onEvict != nil {
			c.onEvict(index)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("lru cache: %w", err)
	}
	c.entries = entries
	return c, nil
}

// Has reports whether an image is cached for index without touching recency.
func (c *LRU) Has(index int) bool {
	return c.entries.Contains(index)
}

// Get returns the cached image for index and marks it recently used.
func (c *LRU) Get(index int) (*pixtype.Image, error) {
	img, ok := c.entries.Get(index)
	if !ok {
		return nil, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	return img, nil
}

// Put stores img for index unless the index is already resident.
func (c *LRU) Put(index int, img *pixtype.Image) {
	if img == nil {
		return
	}
	c.entries.ContainsOrAdd(index, img)
}

// Len returns the number of resident entries.
func (c *LRU) Len() int {
	return c.entries.Len()
}

// Size returns the configured capacity.
func (c *LRU) Size() int {
	return c.size
}
