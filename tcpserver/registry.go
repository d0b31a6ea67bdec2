package tcpserver

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRegistryFull is returned by Register when the registry is at capacity.
var ErrRegistryFull = errors.New("connection registry full")

// Registry is an ordered, capacity-bounded set of live connection handles.
// Handles keep their insertion order; removing one shifts the later handles
// left. It is safe for concurrent use.
type Registry[H comparable] struct {
	mu       sync.Mutex
	handles  []H
	capacity int
}

// NewRegistry creates an empty Registry holding at most capacity handles.
// A capacity below 1 is treated as 1.
func NewRegistry[H comparable](capacity int) *Registry[H] {
	if capacity < 1 {
		capacity = 1
	}

	return &Registry[H]{
		handles:  make([]H, 0, capacity),
		capacity: capacity,
	}
}

// Register appends h.
//
// Returns:
//   - ErrRegistryFull if the registry already holds capacity handles
func (r *Registry[H]) Register(h H) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.handles) >= r.capacity {
		return fmt.Errorf("%w: %d of %d connections in use", ErrRegistryFull, len(r.handles), r.capacity)
	}

	r.handles = append(r.handles, h)
	return nil
}

// Deregister removes the first occurrence of h, preserving the order of the
// remaining handles.
//
// Returns:
//   - true if h was found and removed, false if it was not registered
func (r *Registry[H]) Deregister(h H) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, v := range r.handles {
		if v == h {
			copy(r.handles[i:], r.handles[i+1:])
			var zero H
			r.handles[len(r.handles)-1] = zero
			r.handles = r.handles[:len(r.handles)-1]
			return true
		}
	}

	return false
}

// Len returns the number of registered handles.
func (r *Registry[H]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handles)
}

// Capacity returns the maximum number of handles.
func (r *Registry[H]) Capacity() int {
	return r.capacity
}

// Snapshot returns a copy of the registered handles in order.
func (r *Registry[H]) Snapshot() []H {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]H, len(r.handles))
	copy(out, r.handles)
	return out
}
