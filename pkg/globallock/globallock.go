// Package globallock guards a sequential ring buffer with one mutex.
package globallock

import (
	"sync"

	"github.com/i5heu/GoQueueSweep/pkg/sequential"
)

// Queue serializes every operation behind a single lock.
type Queue[T any] struct {
	mu    sync.Mutex
	inner *sequential.Queue[T]
}

// New returns a queue holding at most capacity values.
func New[T any](capacity uint64) *Queue[T] {
	return &Queue[T]{inner: sequential.New[T](capacity)}
}

// TryEnqueue appends val unless the queue is full.
func (q *Queue[T]) TryEnqueue(val T) bool {
	q.mu.Lock()
	ok := q.inner.TryEnqueue(val)
	q.mu.Unlock()
	return ok
}

// Dequeue removes the oldest value; ok is false when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.mu.Lock()
	val, ok := q.inner.Dequeue()
	q.mu.Unlock()
	return val, ok
}

// UsedSlots returns how many values the queue holds.
func (q *Queue[T]) UsedSlots() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.inner.UsedSlots()
}
