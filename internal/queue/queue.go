package queue

import (
	"sync"
)

// Queue is a thread-safe FIFO used to batch records between a producer and a writer goroutine.
// When a limit is set, pushes beyond it are dropped and counted instead of growing memory.
type Queue[T any] struct {
	mu      sync.Mutex
	items   []T
	limit   int
	dropped uint64
}

// New creates an empty queue. limit <= 0 means unbounded.
func New[T any](limit int) *Queue[T] {
	return &Queue[T]{
		items: make([]T, 0),
		limit: limit,
	}
}

// Push appends items and returns how many were dropped because the queue was full.
func (q *Queue[T]) Push(items ...T) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.limit <= 0 {
		q.items = append(q.items, items...)
		return 0
	}

	room := q.limit - len(q.items)
	if room < 0 {
		room = 0
	}
	if len(items) <= room {
		q.items = append(q.items, items...)
		return 0
	}
	q.items = append(q.items, items[:room]...)
	dropped := len(items) - room
	q.dropped += uint64(dropped)
	return dropped
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Empty returns true if nothing is queued.
func (q *Queue[T]) Empty() bool {
	return q.Len() == 0
}

// Dropped returns the total number of items rejected by Push.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Drain returns all queued items in push order and empties the queue.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	result := q.items
	q.items = make([]T, 0, cap(q.items))
	return result
}
