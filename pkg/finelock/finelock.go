// Package finelock implements the two-lock linked queue: producers contend
// only on the tail lock, consumers only on the head lock.
package finelock

import (
	"sync"
	"sync/atomic"
)

type node[T any] struct {
	value T
	next  *node[T]
}

// Queue is an unbounded MPMC FIFO queue with a dummy head node.
type Queue[T any] struct {
	headMu sync.Mutex
	head   *node[T]
	_      [56]byte // keep the two locks on separate cache lines
	tailMu sync.Mutex
	tail   *node[T]
	size   atomic.Int64
}

// New creates an empty Queue. capacity is accepted for symmetry with the
// bounded queues and ignored.
func New[T any](capacity uint64) *Queue[T] {
	dummy := &node[T]{}
	return &Queue[T]{head: dummy, tail: dummy}
}

// TryEnqueue appends val; it never reports full.
func (q *Queue[T]) TryEnqueue(val T) bool {
	n := &node[T]{value: val}
	q.tailMu.Lock()
	q.tail.next = n
	q.tail = n
	q.size.Add(1)
	q.tailMu.Unlock()
	return true
}

// Dequeue removes the oldest element.
func (q *Queue[T]) Dequeue() (T, bool) {
	q.headMu.Lock()
	// head.next is written under tailMu; the size counter orders it for us
	if q.size.Load() == 0 {
		q.headMu.Unlock()
		var zero T
		return zero, false
	}
	next := q.head.next
	val := next.value
	var zero T
	next.value = zero
	q.head = next
	q.size.Add(-1)
	q.headMu.Unlock()
	return val, true
}

// UsedSlots returns the number of queued elements.
func (q *Queue[T]) UsedSlots() uint64 {
	n := q.size.Load()
	if n < 0 {
		return 0
	}
	return uint64(n)
}
