package testbench

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/i5heu/GoQueueSweep/internal/queue"
	"github.com/i5heu/GoQueueSweep/pkg/config"
	"github.com/i5heu/GoQueueSweep/pkg/results"
)

// ErrNotCollected is returned by Collect before a successful Run.
var ErrNotCollected = errors.New("testbench: no results, Run has not completed")

// ChecksumError reports values lost or invented by a queue during a run.
type ChecksumError struct {
	QueueType  string
	Repetition int
	Pushed     int64
	Popped     int64
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("testbench: %s repetition %d: pushed value sum %d != popped value sum %d",
		e.QueueType, e.Repetition, e.Pushed, e.Popped)
}

// counter is the per-thread tally of one repetition, padded to its own
// cache line.
type counter struct {
	succeededPush int64
	succeededPop  int64
	totalPush     int64
	totalPop      int64
	pushedSum     int64
	poppedSum     int64
	elapsed       time.Duration
	timeout       time.Duration
	_             [64]byte
}

// Bench runs one benchmark configuration. It is the engine handle: build it
// with New, call Run once, then Collect.
type Bench struct {
	cfg      config.BenchmarkConfig
	capacity uint64
	summary  results.Summary
	done     bool
}

// Engine constructs Bench handles.
type Engine struct {
	// Capacity sizes the bounded queues; zero means queue.DefaultCapacity.
	Capacity uint64
}

// New validates cfg and returns a handle for it.
func (e Engine) New(cfg config.BenchmarkConfig) (*Bench, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("testbench: refusing configuration: %w", err)
	}
	capacity := e.Capacity
	if capacity == 0 {
		capacity = queue.DefaultCapacity
	}
	return &Bench{cfg: cfg, capacity: capacity}, nil
}

// New is Engine{}.New.
func New(cfg config.BenchmarkConfig) (*Bench, error) {
	return Engine{}.New(cfg)
}

// Run executes cfg.Repetitions trials against the named queue. In timed mode
// every thread loops until MaxTimeInS has passed; with Sets > 0 every thread
// runs exactly Sets rounds. A round enqueues the thread's enqueue batch and
// then attempts its dequeue batch. Leftovers are drained after the workers
// stop and counted as successful dequeues.
func (b *Bench) Run(ctx context.Context, queueType string) error {
	kind, ok := queue.Lookup(queueType)
	if !ok {
		return fmt.Errorf("testbench: unknown queue type %q", queueType)
	}
	if !kind.Concurrent && b.cfg.NumThreads > 1 {
		return fmt.Errorf("testbench: queue type %q is single-threaded, got num_threads=%d",
			queueType, b.cfg.NumThreads)
	}

	b.done = false
	var acc results.Summary
	var totalTime, totalTimeout time.Duration
	counters := make([]counter, b.cfg.NumThreads)

	for rep := 0; rep < b.cfg.Repetitions; rep++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		runtime.GC()
		q := kind.New(b.capacity)
		for i := range counters {
			counters[i] = counter{}
		}

		if err := b.runRepetition(ctx, q, counters); err != nil {
			return err
		}

		drained, drainedSum := drain(q)

		var pushed, popped int64
		for i := range counters {
			c := &counters[i]
			acc.SuccEnq += c.succeededPush
			acc.SuccDeq += c.succeededPop
			acc.TotalEnq += c.totalPush
			acc.TotalDeq += c.totalPop
			totalTime += c.elapsed
			totalTimeout += c.timeout
			pushed += c.pushedSum
			popped += c.poppedSum
		}
		acc.SuccDeq += drained
		acc.TotalDeq += drained
		popped += drainedSum

		if pushed != popped {
			return &ChecksumError{QueueType: queueType, Repetition: rep, Pushed: pushed, Popped: popped}
		}
	}

	reps := int64(b.cfg.Repetitions)
	perThread := float64(reps) * float64(b.cfg.NumThreads)
	b.summary = results.Summary{
		AvgTime:    totalTime.Seconds() / perThread,
		AvgTimeout: totalTimeout.Seconds() / perThread,
		SuccEnq:    acc.SuccEnq / reps,
		SuccDeq:    acc.SuccDeq / reps,
		TotalEnq:   acc.TotalEnq / reps,
		TotalDeq:   acc.TotalDeq / reps,
	}
	b.summary.TotalOps = b.summary.TotalEnq + b.summary.TotalDeq
	b.done = true
	return nil
}

// Collect returns the summary of the last Run: times are per-thread means,
// counts are per-repetition totals over all threads.
func (b *Bench) Collect() (results.Summary, error) {
	if !b.done {
		return results.Summary{}, ErrNotCollected
	}
	return b.summary, nil
}

func (b *Bench) runRepetition(ctx context.Context, q queue.Queue[queue.Value], counters []counter) error {
	var stop int32
	start := make(chan struct{})

	var ready, wg sync.WaitGroup
	ready.Add(b.cfg.NumThreads)
	wg.Add(b.cfg.NumThreads)

	for id := 0; id < b.cfg.NumThreads; id++ {
		go func(id int) {
			defer wg.Done()
			c := &counters[id]
			enqBatch := b.cfg.BatchEnque[id]
			deqBatch := b.cfg.BatchDeque[id]
			rng := newRand(b.cfg.Seed + int64(id) + 1)
			batch := make([]queue.Value, enqBatch)

			ready.Done()
			<-start

			tStart := time.Now()
			for round := 0; ; round++ {
				if atomic.LoadInt32(&stop) == 1 {
					break
				}
				if b.cfg.Sets > 0 && round >= b.cfg.Sets {
					break
				}

				t0 := time.Now()
				fillShuffled(batch, rng)
				c.timeout += time.Since(t0)

				for _, v := range batch {
					if q.TryEnqueue(v) {
						c.succeededPush++
						c.pushedSum += v
					}
				}
				c.totalPush += int64(enqBatch)

				for i := 0; i < deqBatch; i++ {
					if v, ok := q.Dequeue(); ok {
						c.succeededPop++
						c.poppedSum += v
					}
				}
				c.totalPop += int64(deqBatch)

				if enqBatch == 0 && deqBatch == 0 {
					runtime.Gosched()
				}
			}
			c.elapsed = time.Since(tStart)
		}(id)
	}

	ready.Wait()

	// Timed runs stop on the deadline; fixed-set runs only on cancellation.
	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if b.cfg.Sets == 0 {
		runCtx, cancel = context.WithTimeout(ctx, b.cfg.Duration())
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()

	close(start)

	select {
	case <-finished:
	case <-runCtx.Done():
		atomic.StoreInt32(&stop, 1)
		<-finished
	}

	// A cancelled parent context means the caller gave up, not a deadline.
	return ctx.Err()
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// fillShuffled writes a random permutation of 0..len(batch)-1 into batch.
func fillShuffled(batch []queue.Value, rng *rand.Rand) {
	for i := range batch {
		batch[i] = queue.Value(i)
	}
	rng.Shuffle(len(batch), func(i, j int) {
		batch[i], batch[j] = batch[j], batch[i]
	})
}

func drain(q queue.Queue[queue.Value]) (count, sum int64) {
	for {
		v, ok := q.Dequeue()
		if !ok {
			return count, sum
		}
		count++
		sum += v
	}
}
