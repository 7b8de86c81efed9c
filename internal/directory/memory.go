package directory

import (
	"context"
	"sync"
)

// Memory is an in-memory directory used in tests and local
// development.
type Memory struct {
	mu       sync.RWMutex
	entities map[string]*Entity
}

// NewMemory creates an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{entities: make(map[string]*Entity)}
}

// Put adds or replaces an entity.
func (m *Memory) Put(e *Entity) {
	m.mu.Lock()
	m.entities[RoomID(e.Kind, e.ID)] = e
	m.mu.Unlock()
}

// Remove deletes an entity.
func (m *Memory) Remove(kind Kind, id string) {
	m.mu.Lock()
	delete(m.entities, RoomID(kind, id))
	m.mu.Unlock()
}

// Invalidate implements Directory. Memory holds no cache, so there is
// nothing to discard.
func (m *Memory) Invalidate(Kind, string) {}

// Resolve implements Directory.
func (m *Memory) Resolve(_ context.Context, kind Kind, id string) (*Entity, error) {
	m.mu.RLock()
	e, ok := m.entities[RoomID(kind, id)]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}
