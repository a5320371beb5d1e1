package webui

import "sync"

// CircularBuffer is a fixed-capacity FIFO that overwrites its oldest entry
// when full. It keeps the most recent completed runs for clients that
// connect after they finished.
//
// Thread-safe for concurrent use.
type CircularBuffer[T any] struct {
	mu       sync.RWMutex
	data     []T
	capacity int
	size     int
	head     int // next write
	tail     int // oldest
}

// NewCircularBuffer creates a buffer holding up to capacity items.
// Panics if capacity < 1.
func NewCircularBuffer[T any](capacity int) *CircularBuffer[T] {
	if capacity < 1 {
		panic("CircularBuffer capacity must be at least 1")
	}
	return &CircularBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends item, evicting the oldest entry if the buffer is full.
func (b *CircularBuffer[T]) Push(item T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[b.head] = item
	b.head = (b.head + 1) % b.capacity

	if b.size < b.capacity {
		b.size++
	} else {
		b.tail = (b.tail + 1) % b.capacity
	}
}

// GetAll returns the items oldest first.
func (b *CircularBuffer[T]) GetAll() []T {
	return b.GetLast(b.Capacity())
}

// GetLast returns up to n of the newest items, oldest first.
func (b *CircularBuffer[T]) GetLast(n int) []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if n <= 0 || b.size == 0 {
		return []T{}
	}
	if n > b.size {
		n = b.size
	}

	result := make([]T, n)
	start := b.size - n
	for i := 0; i < n; i++ {
		result[i] = b.data[(b.tail+start+i)%b.capacity]
	}
	return result
}

// Size returns the number of items stored.
func (b *CircularBuffer[T]) Size() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.size
}

// Capacity returns the maximum number of items.
func (b *CircularBuffer[T]) Capacity() int {
	return b.capacity
}
