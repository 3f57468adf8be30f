package general

import "sync"

// RollingBuffer is a bounded FIFO buffer. Appending past capacity evicts
// the oldest element. Used for transaction and value-over-time histories,
// which the rest of the system expects to stay capped.
type RollingBuffer[T any] struct {
	buffer []T
	size   int
	mutex  sync.RWMutex
}

func NewRollingBuffer[T any](size int) *RollingBuffer[T] {
	if size <= 0 {
		size = 1
	}
	return &RollingBuffer[T]{
		buffer: make([]T, 0, size),
		size:   size,
	}
}

func (rb *RollingBuffer[T]) Add(element T) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	if len(rb.buffer) >= rb.size {
		rb.buffer = rb.buffer[1:]
	}
	rb.buffer = append(rb.buffer, element)
}

// All returns a copy of the buffered elements, oldest first.
func (rb *RollingBuffer[T]) All() []T {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	out := make([]T, len(rb.buffer))
	copy(out, rb.buffer)
	return out
}

func (rb *RollingBuffer[T]) Latest() (T, bool) {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	var zero T
	if len(rb.buffer) == 0 {
		return zero, false
	}
	return rb.buffer[len(rb.buffer)-1], true
}

func (rb *RollingBuffer[T]) Len() int {
	rb.mutex.RLock()
	defer rb.mutex.RUnlock()
	return len(rb.buffer)
}

func (rb *RollingBuffer[T]) Cap() int {
	return rb.size
}

// Replace swaps the buffer contents for the given elements, keeping only
// the most recent ones when the input exceeds capacity. Used when
// restoring a persisted session.
func (rb *RollingBuffer[T]) Replace(elements []T) {
	rb.mutex.Lock()
	defer rb.mutex.Unlock()
	if len(elements) > rb.size {
		elements = elements[len(elements)-rb.size:]
	}
	rb.buffer = make([]T, len(elements))
	copy(rb.buffer, elements)
}
