package core

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// IDTable hands out small integer ids for owners, reusing released slots.
// Id 0 is never handed out so callers can use it as the null value.
type IDTable[T any] struct {
	mu     sync.Mutex
	owners []*T
}

func NewIDTable[T any]() *IDTable[T] {
	return &IDTable[T]{
		owners: make([]*T, 1, 100),
	}
}

func (t *IDTable[T]) Acquire(owner T) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := 1; i < len(t.owners); i++ {
		// Existing free spot. Take it.
		if t.owners[i] == nil {
			t.owners[i] = &owner
			return uint64(i)
		}
	}
	// If here, no existing free slots. Need a new id, so push one.
	t.owners = append(t.owners, &owner)
	return uint64(len(t.owners) - 1)
}

func (t *IDTable[T]) Get(id uint64) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	if id == 0 || id >= uint64(len(t.owners)) || t.owners[id] == nil {
		return zero, false
	}
	return *t.owners[id], true
}

func (t *IDTable[T]) Release(id uint64) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var zero T
	if id == 0 || id >= uint64(len(t.owners)) {
		return zero, errors.Wrapf(ErrNotFound, "id '%d' out of range (max=%d)", id, len(t.owners))
	}
	owner := t.owners[id]
	if owner == nil {
		return zero, errors.Wrapf(ErrNotFound, "id '%d' already released", id)
	}
	// Just zero out the entry, making it available for use.
	t.owners[id] = nil
	return *owner, nil
}

// Live returns the number of ids currently held.
func (t *IDTable[T]) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, o := range t.owners[1:] {
		if o != nil {
			n++
		}
	}
	return n
}

// Registry maps names to values. Each entry is stamped with a uuid when added.
type Registry[T any] struct {
	mu      sync.RWMutex
	entries map[string]registryEntry[T]
	order   []string
}

type registryEntry[T any] struct {
	id    uuid.UUID
	value T
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[string]registryEntry[T]),
	}
}

// Put stores value under name, replacing any previous entry, and returns its id.
func (r *Registry[T]) Put(name string, value T) uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[name]; !ok {
		r.order = append(r.order, name)
	}
	id := uuid.New()
	r.entries[name] = registryEntry[T]{id: id, value: value}
	return id
}

// Get returns the value stored under name, or false when absent.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.value, ok
}

func (r *Registry[T]) ID(name string) (uuid.UUID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[name]
	return e.id, ok
}

func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Each visits entries in insertion order.
func (r *Registry[T]) Each(fn func(name string, value T)) {
	r.mu.RLock()
	names := append([]string(nil), r.order...)
	r.mu.RUnlock()
	for _, n := range names {
		if v, ok := r.Get(n); ok {
			fn(n, v)
		}
	}
}
