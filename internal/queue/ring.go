package queue

import "errors"

// ErrZeroCapacity is returned when a ring is constructed without room for a single item.
var ErrZeroCapacity = errors.New("ring capacity must be positive")

// Ring is a fixed-capacity circular buffer. Once full, each Push overwrites the oldest item.
// It is not safe for concurrent use; rings belong to a single goroutine.
type Ring[T any] struct {
	buf   []T
	first int // index of the oldest item
	size  int
}

// NewRing allocates a ring holding at most capacity items.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, ErrZeroCapacity
	}
	return &Ring[T]{buf: make([]T, capacity)}, nil
}

// Push appends v, evicting the oldest item when the ring is full. O(1).
func (r *Ring[T]) Push(v T) {
	last := (r.first + r.size) % len(r.buf)
	r.buf[last] = v
	if r.size == len(r.buf) {
		r.first = (r.first + 1) % len(r.buf)
		return
	}
	r.size++
}

// At returns the item at position i counted from the oldest (0) to the newest (Len()-1).
func (r *Ring[T]) At(i int) (T, bool) {
	if i < 0 || i >= r.size {
		var zero T
		return zero, false
	}
	return r.buf[(r.first+i)%len(r.buf)], true
}

// Back returns the item offset pushes behind the newest one. Offset 0 is the newest.
func (r *Ring[T]) Back(offset int) (T, bool) {
	return r.At(r.size - 1 - offset)
}

// Len returns the number of retained items.
func (r *Ring[T]) Len() int {
	return r.size
}

// Cap returns the fixed capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Full reports whether the next Push will evict.
func (r *Ring[T]) Full() bool {
	return r.size == len(r.buf)
}

// Reset forgets every item without reallocating.
func (r *Ring[T]) Reset() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.first = 0
	r.size = 0
}
