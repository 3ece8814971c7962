package queue

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// progressWatchdog fails the test if no progress is made for 15 seconds.
type progressWatchdog struct {
	t            *testing.T
	label        string
	lastProgress atomic.Int64
	done         chan struct{}
}

func newWatchdog(t *testing.T, label string) *progressWatchdog {
	wd := &progressWatchdog{
		t:     t,
		label: label,
		done:  make(chan struct{}),
	}
	wd.lastProgress.Store(time.Now().UnixNano())
	return wd
}

func (wd *progressWatchdog) Start() {
	go func() {
		ticker := time.NewTicker(500 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				last := wd.lastProgress.Load()
				if time.Since(time.Unix(0, last)) > 15*time.Second {
					wd.t.Errorf("No progress in the last 15 seconds (%s test likely stuck).", wd.label)
					return
				}
			case <-wd.done:
				return
			}
		}
	}()
}

func (wd *progressWatchdog) Progress() {
	wd.lastProgress.Store(time.Now().UnixNano())
}

func (wd *progressWatchdog) Stop() {
	close(wd.done)
}

// withAllQueues runs fn once per registered queue kind. Concurrent-only
// scenarios skip the sequential queue.
func withAllQueues(t *testing.T, concurrentOnly bool, fn func(t *testing.T, kind Kind)) {
	t.Helper()
	for _, kind := range Kinds() {
		kind := kind
		t.Run(kind.Name, func(t *testing.T) {
			if concurrentOnly && !kind.Concurrent {
				t.Skipf("Skipping: %s is not safe for concurrent use", kind.Name)
			}
			fn(t, kind)
		})
	}
}

func TestLookup(t *testing.T) {
	for _, name := range []string{"sequential", "global_lock", "fine_lock", "lock_free", "channel"} {
		k, ok := Lookup(name)
		require.True(t, ok, name)
		assert.Equal(t, name, k.Name)
	}
	_, ok := Lookup("nope")
	assert.False(t, ok)

	seq, _ := Lookup("sequential")
	assert.False(t, seq.Concurrent)
}

func TestBasicFIFO(t *testing.T) {
	withAllQueues(t, false, func(t *testing.T, kind Kind) {
		q := kind.New(1024)
		const N = 1024

		for i := 0; i < N; i++ {
			require.True(t, q.TryEnqueue(Value(i)))
		}
		assert.Equal(t, uint64(N), q.UsedSlots())

		for i := 0; i < N; i++ {
			v, ok := q.Dequeue()
			require.True(t, ok)
			require.Equal(t, Value(i), v, "index %d", i)
		}
		assert.Equal(t, uint64(0), q.UsedSlots())
	})
}

func TestEmptyQueue(t *testing.T) {
	withAllQueues(t, false, func(t *testing.T, kind Kind) {
		q := kind.New(16)
		for i := 0; i < 100; i++ {
			_, ok := q.Dequeue()
			require.False(t, ok)
		}
	})
}

func TestWrapAround(t *testing.T) {
	withAllQueues(t, false, func(t *testing.T, kind Kind) {
		q := kind.New(8)
		next := Value(0)
		expect := Value(0)
		for round := 0; round < 100; round++ {
			for i := 0; i < 5; i++ {
				require.True(t, q.TryEnqueue(next))
				next++
			}
			for i := 0; i < 5; i++ {
				v, ok := q.Dequeue()
				require.True(t, ok)
				require.Equal(t, expect, v)
				expect++
			}
		}
	})
}

func TestBoundedQueueReportsFull(t *testing.T) {
	withAllQueues(t, false, func(t *testing.T, kind Kind) {
		if !kind.Bounded {
			t.Skip("unbounded queue")
		}
		q := kind.New(8)
		accepted := 0
		for i := 0; i < 32; i++ {
			if q.TryEnqueue(Value(i)) {
				accepted++
			}
		}
		assert.Equal(t, 8, accepted)
		_, ok := q.Dequeue()
		require.True(t, ok)
		assert.True(t, q.TryEnqueue(99))
	})
}

func TestUsedFreeSlots(t *testing.T) {
	withAllQueues(t, false, func(t *testing.T, kind Kind) {
		q := kind.New(8)
		free, hasFree := q.(interface{ FreeSlots() uint64 })

		for i := 0; i < 3; i++ {
			require.True(t, q.TryEnqueue(Value(i)))
		}
		assert.Equal(t, uint64(3), q.UsedSlots())
		if hasFree {
			assert.Equal(t, uint64(5), free.FreeSlots())
		}

		_, ok := q.Dequeue()
		require.True(t, ok)
		assert.Equal(t, uint64(2), q.UsedSlots())
		if hasFree {
			assert.Equal(t, uint64(6), free.FreeSlots())
		}

		if !kind.Bounded {
			return
		}
		for i := 0; i < 16; i++ {
			q.TryEnqueue(Value(i))
		}
		assert.Equal(t, uint64(8), q.UsedSlots())
		if hasFree {
			assert.Zero(t, free.FreeSlots())
		}
	})
}

func TestUnboundedQueueGrows(t *testing.T) {
	withAllQueues(t, false, func(t *testing.T, kind Kind) {
		if kind.Bounded {
			t.Skip("bounded queue")
		}
		q := kind.New(2)
		for i := 0; i < 10000; i++ {
			require.True(t, q.TryEnqueue(Value(i)))
		}
		assert.Equal(t, uint64(10000), q.UsedSlots())
	})
}

func TestNoLostMessagesHighContention(t *testing.T) {
	withAllQueues(t, true, func(t *testing.T, kind Kind) {
		q := kind.New(1024)

		wd := newWatchdog(t, "NoLostMessagesHighContention")
		wd.Start()
		defer wd.Stop()

		const (
			numProducers        = 16
			numConsumers        = 16
			messagesPerProducer = 5000
		)
		total := int64(numProducers * messagesPerProducer)

		var sentSum, receivedSum, received atomic.Int64

		var prodWg sync.WaitGroup
		prodWg.Add(numProducers)
		for p := 0; p < numProducers; p++ {
			go func(p int) {
				defer prodWg.Done()
				for j := 0; j < messagesPerProducer; j++ {
					v := Value(p*messagesPerProducer + j)
					for !q.TryEnqueue(v) {
						time.Sleep(time.Microsecond)
					}
					sentSum.Add(v)
					wd.Progress()
				}
			}(p)
		}

		var consWg sync.WaitGroup
		consWg.Add(numConsumers)
		for c := 0; c < numConsumers; c++ {
			go func() {
				defer consWg.Done()
				for received.Load() < total {
					v, ok := q.Dequeue()
					if !ok {
						time.Sleep(time.Microsecond)
						continue
					}
					receivedSum.Add(v)
					received.Add(1)
					wd.Progress()
				}
			}()
		}

		prodWg.Wait()
		consWg.Wait()

		assert.Equal(t, total, received.Load())
		assert.Equal(t, sentSum.Load(), receivedSum.Load())
		assert.Equal(t, uint64(0), q.UsedSlots())
	})
}

func TestPerProducerOrderingSingleConsumer(t *testing.T) {
	withAllQueues(t, true, func(t *testing.T, kind Kind) {
		q := kind.New(1024)
		wd := newWatchdog(t, "PerProducerOrderingSingleConsumer")
		wd.Start()
		defer wd.Stop()

		const (
			numProducers     = 8
			itemsPerProducer = 10000
		)
		total := numProducers * itemsPerProducer

		// value = producerID*1_000_000 + seq
		var prodWg sync.WaitGroup
		prodWg.Add(numProducers)
		for p := 0; p < numProducers; p++ {
			go func(p int) {
				defer prodWg.Done()
				for seq := 0; seq < itemsPerProducer; seq++ {
					for !q.TryEnqueue(Value(p*1_000_000 + seq)) {
						time.Sleep(time.Microsecond)
					}
					wd.Progress()
				}
			}(p)
		}

		lastSeen := make([]int64, numProducers)
		for i := range lastSeen {
			lastSeen[i] = -1
		}
		for received := 0; received < total; {
			v, ok := q.Dequeue()
			if !ok {
				time.Sleep(time.Microsecond)
				continue
			}
			wd.Progress()
			p, seq := v/1_000_000, v%1_000_000
			require.True(t, p >= 0 && p < numProducers, "bad producer id in %d", v)
			require.Greater(t, seq, lastSeen[p], "producer %d reordered", p)
			lastSeen[p] = seq
			received++
		}
		prodWg.Wait()

		for p, last := range lastSeen {
			assert.Equal(t, int64(itemsPerProducer-1), last, "producer %d", p)
		}
	})
}
