// Package sequence provides monotonically increasing counters used to number
// session IDs and error log entries. Counters are either held in memory for the
// lifetime of the process or persisted in Redis so numbering survives restarts.
package sequence

import (
	"context"
	"sync/atomic"
)

// Counter hands out strictly increasing sequence numbers. Each call to Next
// returns the previous value plus one; a value is never handed out twice even
// if the caller fails to use it.
type Counter interface {
	// Next returns the next sequence number.
	//
	// Parameters:
	//   - ctx: Context for cancellation of backends that perform I/O
	//
	// Returns:
	//   - The next sequence number
	//   - An error if the backend could not produce a number
	Next(ctx context.Context) (uint64, error)
}

// MemoryCounter is an in-memory Counter backed by an atomic integer. It is
// safe for concurrent use and its state is lost when the process exits.
type MemoryCounter struct {
	value atomic.Uint64
}

// NewMemoryCounter creates a MemoryCounter whose first Next returns
// startValue+1.
//
// Parameters:
//   - startValue: The value to initialize the counter to
//
// Returns:
//   - A new MemoryCounter instance
func NewMemoryCounter(startValue uint64) *MemoryCounter {
	c := &MemoryCounter{}
	c.value.Store(startValue)
	return c
}

// Next implements Counter. It never fails.
func (c *MemoryCounter) Next(_ context.Context) (uint64, error) {
	return c.Id(), nil
}

// Id atomically increments the counter and returns the new value.
func (c *MemoryCounter) Id() uint64 {
	return c.value.Add(1)
}

// Current returns the most recently issued value, or the start value if
// nothing has been issued yet.
func (c *MemoryCounter) Current() uint64 {
	return c.value.Load()
}
