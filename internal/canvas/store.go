// Package canvas holds the client-side pixel store the sync core writes into.
//
// The rendering layer reads the store; the network code only writes to it.
package canvas

import (
	"sync"

	"github.com/rickgao/canvas-sync/internal/model"
)

// Store is the sink for pixel changes. A missing key means white.
type Store interface {
	Set(c model.Coord, color model.Color)
	Remove(c model.Coord)
}

// Memory is a concurrency-safe in-memory Store.
type Memory struct {
	mu     sync.RWMutex
	pixels map[model.Coord]model.Color
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{pixels: make(map[model.Coord]model.Color)}
}

// Set paints one pixel.
func (m *Memory) Set(c model.Coord, color model.Color) {
	m.mu.Lock()
	m.pixels[c] = color
	m.mu.Unlock()
}

// Remove erases one pixel.
func (m *Memory) Remove(c model.Coord) {
	m.mu.Lock()
	delete(m.pixels, c)
	m.mu.Unlock()
}

// Get returns the color at c, or false if the pixel is unpainted.
func (m *Memory) Get(c model.Coord) (model.Color, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	color, ok := m.pixels[c]
	return color, ok
}

// Len returns the number of painted pixels.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pixels)
}

// Apply writes an edit: nil color removes, anything else sets.
func Apply(s Store, e model.Edit) {
	if e.Color == nil {
		s.Remove(e.Coord)
		return
	}
	s.Set(e.Coord, *e.Color)
}
