package cache

import (
	"fmt"
	"sync"

	"github.com/meigma/pixgrid/internal/pixtype"
)

// Memory is an unbounded Cache. Entries live for the lifetime of the Memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[int]*pixtype.Image
}

var _ Cache = (*Memory)(nil)

// NewMemory returns an empty unbounded cache.
func NewMemory() *Memory {
	return &Memory{entries: make(map[int]*pixtype.Image)}
}

// Has reports whether an image is cached for index.
func (m *Memory) Has(index int) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.entries[index]
	return ok
}

// Get returns the cached image for index.
func (m *Memory) Get(index int) (*pixtype.Image, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	img, ok := m.entries[index]
	if !ok {
		return nil, fmt.Errorf("index %d: %w", index, ErrNotFound)
	}
	return img, nil
}

// Put stores img for index. An existing entry is kept.
func (m *Memory) Put(index int, img *pixtype.Image) {
	if img == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[index]; ok {
		return
	}
	m.entries[index] = img
}

// Len returns the number of cached entries.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
