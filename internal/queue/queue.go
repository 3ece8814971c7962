package queue

import (
	"sort"

	"github.com/i5heu/GoQueueSweep/pkg/buffered"
	"github.com/i5heu/GoQueueSweep/pkg/finelock"
	"github.com/i5heu/GoQueueSweep/pkg/globallock"
	"github.com/i5heu/GoQueueSweep/pkg/lockfree"
	"github.com/i5heu/GoQueueSweep/pkg/sequential"
)

// Queue is the interface every benchmarked queue satisfies.
type Queue[T any] interface {
	// TryEnqueue adds an element and reports false if the queue refused it
	// because it is full. It never blocks.
	TryEnqueue(T) bool

	// Dequeue removes and returns the oldest element.
	// If the queue is empty it returns an empty T and false.
	Dequeue() (T, bool)

	// UsedSlots returns how many elements are currently queued.
	UsedSlots() uint64
}

// Value is the element type the benchmark engine pushes through queues.
type Value = int64

// DefaultCapacity is used for the bounded queues. It holds a full
// one_enqueuer round of 64 threads with batch 1000.
const DefaultCapacity = 1 << 17

// Kind describes one queue implementation known to the engine.
type Kind struct {
	Name        string
	Description string
	// Concurrent is false for queues that may only be used by one goroutine.
	Concurrent bool
	Bounded    bool
	New        func(capacity uint64) Queue[Value]
}

var kinds = map[string]Kind{
	"sequential": {
		Name:        "sequential",
		Description: "Unsynchronized growable ring buffer, single thread only.",
		New: func(capacity uint64) Queue[Value] {
			return sequential.New[Value](capacity)
		},
	},
	"global_lock": {
		Name:        "global_lock",
		Description: "Growable ring buffer behind one mutex.",
		Concurrent:  true,
		New: func(capacity uint64) Queue[Value] {
			return globallock.New[Value](capacity)
		},
	},
	"fine_lock": {
		Name:        "fine_lock",
		Description: "Two-lock linked queue with separate head and tail locks.",
		Concurrent:  true,
		New: func(capacity uint64) Queue[Value] {
			return finelock.New[Value](capacity)
		},
	},
	"lock_free": {
		Name:        "lock_free",
		Description: "Bounded lock-free MPMC ring with per-cell sequence numbers.",
		Concurrent:  true,
		Bounded:     true,
		New: func(capacity uint64) Queue[Value] {
			return lockfree.New[Value](capacity)
		},
	},
	"channel": {
		Name:        "channel",
		Description: "Buffered Go channel with non-blocking send and receive.",
		Concurrent:  true,
		Bounded:     true,
		New: func(capacity uint64) Queue[Value] {
			return buffered.New[Value](capacity)
		},
	},
}

// Lookup returns the Kind registered under name.
func Lookup(name string) (Kind, bool) {
	k, ok := kinds[name]
	return k, ok
}

// Kinds returns every registered Kind sorted by name.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
