package lockfree

import (
	"runtime"
	"sync/atomic"
)

// cell represents one slot in the ring buffer.
type cell[T any] struct {
	sequence uint64
	value    T
}

// Queue is a bounded, lock‑free, multi‑producer/multi‑consumer ring.
// Each cell carries a sequence number telling producers and consumers
// whose turn it is, so neither side ever takes a lock.
type Queue[T any] struct {
	buffer     []cell[T]
	mask       uint64
	capacity   uint64
	enqueuePos uint64
	dequeuePos uint64
}

// New creates a Queue with the given capacity (rounded up to a power of 2).
func New[T any](capacity uint64) *Queue[T] {
	if capacity < 2 {
		capacity = 2
	}
	if capacity&(capacity-1) != 0 {
		capPow := uint64(1)
		for capPow < capacity {
			capPow <<= 1
		}
		capacity = capPow
	}
	q := &Queue[T]{
		buffer:   make([]cell[T], capacity),
		mask:     capacity - 1,
		capacity: capacity,
	}
	for i := uint64(0); i < capacity; i++ {
		q.buffer[i].sequence = i
	}
	return q
}

// TryEnqueue inserts val and reports false if the ring is full.
func (q *Queue[T]) TryEnqueue(val T) bool {
	for {
		pos := atomic.LoadUint64(&q.enqueuePos)
		c := &q.buffer[pos&q.mask]
		seq := atomic.LoadUint64(&c.sequence)
		diff := int64(seq) - int64(pos)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.enqueuePos, pos, pos+1) {
				c.value = val
				atomic.StoreUint64(&c.sequence, pos+1)
				return true
			}
		case diff < 0:
			// the slot still holds an element from the previous lap
			return false
		default:
			runtime.Gosched()
		}
	}
}

// Dequeue removes and returns the oldest value, or false if the ring is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	for {
		pos := atomic.LoadUint64(&q.dequeuePos)
		c := &q.buffer[pos&q.mask]
		seq := atomic.LoadUint64(&c.sequence)
		diff := int64(seq) - int64(pos+1)
		switch {
		case diff == 0:
			if atomic.CompareAndSwapUint64(&q.dequeuePos, pos, pos+1) {
				ret := c.value
				var zero T
				c.value = zero
				// free the cell for the producer one lap ahead
				atomic.StoreUint64(&c.sequence, pos+q.capacity)
				return ret, true
			}
		case diff < 0:
			var zero T
			return zero, false
		default:
			runtime.Gosched()
		}
	}
}

// FreeSlots returns how many slots are free.
func (q *Queue[T]) FreeSlots() uint64 {
	return q.capacity - q.UsedSlots()
}

// UsedSlots returns an approximate count of used slots.
func (q *Queue[T]) UsedSlots() uint64 {
	deq := atomic.LoadUint64(&q.dequeuePos)
	enq := atomic.LoadUint64(&q.enqueuePos)
	if enq < deq {
		return 0
	}
	return enq - deq
}
