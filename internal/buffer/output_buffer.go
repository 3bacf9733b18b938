// Package buffer provides the bounded pending-output buffer that sits between
// a session's PTY read loop and the poll endpoint.
package buffer

import (
	"sync"
)

// OutputBuffer is a thread-safe bounded byte buffer. The PTY read loop appends
// to it; each poll drains it. When more data arrives than the buffer can hold
// before the next poll, the oldest bytes are discarded so a slow poller sees
// the most recent output rather than blocking the read loop.
type OutputBuffer struct {
	data     []byte
	capacity int
	mu       sync.Mutex
}

// NewOutputBuffer creates an OutputBuffer with the given capacity.
// A capacity below 1 defaults to 1.
func NewOutputBuffer(capacity int) *OutputBuffer {
	if capacity <= 0 {
		capacity = 1
	}
	return &OutputBuffer{
		data:     make([]byte, 0, capacity),
		capacity: capacity,
	}
}

// Write appends data, discarding the oldest bytes once the capacity is
// exceeded. It implements io.Writer and never fails.
func (b *OutputBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(p) >= b.capacity {
		b.data = append(b.data[:0], p[len(p)-b.capacity:]...)
		return len(p), nil
	}

	if overflow := len(b.data) + len(p) - b.capacity; overflow > 0 {
		b.data = append(b.data[:0], b.data[overflow:]...)
	}
	b.data = append(b.data, p...)
	return len(p), nil
}

// Drain returns everything currently buffered and empties the buffer.
// Returns nil when the buffer is empty.
func (b *OutputBuffer) Drain() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.data) == 0 {
		return nil
	}

	out := make([]byte, len(b.data))
	copy(out, b.data)
	b.data = b.data[:0]
	return out
}

// Len returns the current number of buffered bytes.
func (b *OutputBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.data)
}

// Cap returns the buffer capacity.
func (b *OutputBuffer) Cap() int {
	return b.capacity
}
