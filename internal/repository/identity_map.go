package repository

import (
	"reflect"
	"sync"

	"github.com/google/uuid"
)

type identityKey struct {
	typ reflect.Type
	id  uuid.UUID
}

// IdentityMap tracks the entities a unit of work loaded or added so repeated
// lookups by id return the same instance.
type IdentityMap struct {
	mu      sync.Mutex
	items   map[identityKey]any
	onEvict []func()
}

func NewIdentityMap() *IdentityMap {
	return &IdentityMap{items: make(map[identityKey]any)}
}

func (m *IdentityMap) put(typ reflect.Type, id uuid.UUID, v any) {
	if m == nil || id == uuid.Nil {
		return
	}
	m.mu.Lock()
	m.items[identityKey{typ, id}] = v
	m.mu.Unlock()
}

func (m *IdentityMap) get(typ reflect.Type, id uuid.UUID) (any, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[identityKey{typ, id}]
	return v, ok
}

func (m *IdentityMap) remove(typ reflect.Type, id uuid.UUID) {
	if m == nil {
		return
	}
	m.mu.Lock()
	delete(m.items, identityKey{typ, id})
	m.mu.Unlock()
}

func (m *IdentityMap) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// OnEvict registers fn to run after the map is cleared.
func (m *IdentityMap) OnEvict(fn func()) {
	m.mu.Lock()
	m.onEvict = append(m.onEvict, fn)
	m.mu.Unlock()
}

// Evict forgets every tracked entity, then runs the eviction hooks.
// A panicking hook propagates to the caller.
func (m *IdentityMap) Evict() {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.items = make(map[identityKey]any)
	hooks := m.onEvict
	m.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}
}
