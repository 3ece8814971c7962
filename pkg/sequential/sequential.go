// Package sequential provides an unsynchronized FIFO queue. It is only safe
// for a single goroutine and serves as the single-thread reference.
package sequential

// Queue is a growable ring buffer.
type Queue[T any] struct {
	buf  []T
	head int
	size int
}

// New creates a Queue with room for capacity elements before it grows.
func New[T any](capacity uint64) *Queue[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue[T]{buf: make([]T, capacity)}
}

// TryEnqueue appends val. The queue grows, so it never reports full.
func (q *Queue[T]) TryEnqueue(val T) bool {
	if q.size == len(q.buf) {
		q.grow()
	}
	q.buf[(q.head+q.size)%len(q.buf)] = val
	q.size++
	return true
}

// Dequeue removes the oldest element.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.size == 0 {
		return zero, false
	}
	val := q.buf[q.head]
	q.buf[q.head] = zero
	q.head = (q.head + 1) % len(q.buf)
	q.size--
	return val, true
}

// UsedSlots returns the number of queued elements.
func (q *Queue[T]) UsedSlots() uint64 {
	return uint64(q.size)
}

func (q *Queue[T]) grow() {
	next := make([]T, len(q.buf)*2)
	n := copy(next, q.buf[q.head:])
	copy(next[n:], q.buf[:q.head])
	q.buf = next
	q.head = 0
}
