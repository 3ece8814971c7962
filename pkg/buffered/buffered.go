// Package buffered adapts a buffered channel to the non-blocking queue API.
package buffered

// Queue wraps a buffered Go channel as a non-blocking queue.
type Queue[T any] struct {
	ch chan T
}

// New returns a queue whose channel buffers bufferSize values.
func New[T any](bufferSize uint64) *Queue[T] {
	// A zero-capacity Go channel is an unbuffered synchronization primitive,
	// not an empty buffer, so enforce a minimum of 1.
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Queue[T]{
		ch: make(chan T, bufferSize),
	}
}

func (q *Queue[T]) TryEnqueue(val T) bool {
	select {
	case q.ch <- val:
		return true
	default:
		return false
	}
}

func (q *Queue[T]) Dequeue() (val T, ok bool) {
	select {
	case val = <-q.ch:
		return val, true
	default:
		return val, false
	}
}

// FreeSlots returns how many more values fit in the buffer.
func (q *Queue[T]) FreeSlots() uint64 {
	return uint64(cap(q.ch) - len(q.ch))
}

func (q *Queue[T]) UsedSlots() uint64 {
	return uint64(len(q.ch))
}
