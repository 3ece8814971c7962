// Package layout distributes the enqueue and dequeue work of one benchmark
// cell across its threads.
package layout

import (
	"fmt"
	"strings"
)

// Strategy is a policy for spreading enqueue/dequeue work over threads.
type Strategy uint8

const (
	// Balanced gives every thread the same enqueue and dequeue batch.
	Balanced Strategy = iota
	// OneEnqueuer puts all enqueues on thread 0; every thread dequeues.
	OneEnqueuer
	// HalfEnqueuer splits threads into an enqueuing and a dequeuing half.
	HalfEnqueuer
	// EvenOdd lets even threads enqueue and odd threads dequeue.
	EvenOdd
	// SeqRun labels the single-threaded runs of the sequential queue.
	SeqRun
)

var strategyNames = [...]string{
	Balanced:     "balanced",
	OneEnqueuer:  "one_enqueuer",
	HalfEnqueuer: "half_enqueuer",
	EvenOdd:      "even_odd",
	SeqRun:       "seq_run",
}

// Strategies returns every known strategy in declaration order.
func Strategies() []Strategy {
	return []Strategy{Balanced, OneEnqueuer, HalfEnqueuer, EvenOdd, SeqRun}
}

func (s Strategy) String() string {
	if int(s) < len(strategyNames) {
		return strategyNames[s]
	}
	return fmt.Sprintf("strategy(%d)", uint8(s))
}

// Valid reports whether s is one of the declared strategies.
func (s Strategy) Valid() bool {
	return int(s) < len(strategyNames)
}

// ParseStrategy maps a strategy name to its Strategy.
func ParseStrategy(name string) (Strategy, error) {
	n := strings.TrimSpace(name)
	for i, known := range strategyNames {
		if known == n {
			return Strategy(i), nil
		}
	}
	return 0, &ConfigurationError{Strategy: name, Reason: "unknown strategy"}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, &ConfigurationError{Strategy: s.String(), Reason: "unknown strategy"}
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	parsed, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// ConfigurationError reports a strategy or layout request that cannot be
// planned.
type ConfigurationError struct {
	Strategy string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Strategy == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %q", e.Reason, e.Strategy)
}

// Layout holds per-thread enqueue and dequeue batch sizes.
type Layout struct {
	Enq []int
	Deq []int
}

// EnqTotal is the enqueue volume of one round over all threads.
func (l Layout) EnqTotal() int { return sum(l.Enq) }

// DeqTotal is the dequeue volume of one round over all threads.
func (l Layout) DeqTotal() int { return sum(l.Deq) }

// Balanced reports whether both sides have the same length and volume.
func (l Layout) Balanced() bool {
	return len(l.Enq) == len(l.Deq) && l.EnqTotal() == l.DeqTotal()
}

// Layout plans the per-thread batches for numThreads threads.
//
// The unequal halves of HalfEnqueuer and EvenOdd with an odd thread count
// are corrected unconditionally by moving the difference onto a single
// enqueuing thread, so the result is always balanced even when that thread
// ends up with zero or an outsized batch.
func (s Strategy) Layout(numThreads, batchSize int) (Layout, error) {
	if numThreads < 1 {
		return Layout{}, &ConfigurationError{
			Strategy: s.String(),
			Reason:   fmt.Sprintf("num_threads must be >= 1, got %d", numThreads),
		}
	}
	if batchSize < 0 {
		return Layout{}, &ConfigurationError{
			Strategy: s.String(),
			Reason:   fmt.Sprintf("batch size must be >= 0, got %d", batchSize),
		}
	}

	enq := make([]int, numThreads)
	deq := make([]int, numThreads)

	switch s {
	case Balanced, SeqRun:
		fill(enq, batchSize)
		fill(deq, batchSize)

	case OneEnqueuer:
		enq[0] = batchSize * numThreads
		fill(deq, batchSize)

	case HalfEnqueuer:
		half := numThreads / 2
		fill(enq[:half], batchSize)
		fill(deq[half:], batchSize)
		// half == 0 wraps to the last thread
		target := half - 1
		if target < 0 {
			target += numThreads
		}
		enq[target] += sum(deq) - sum(enq)

	case EvenOdd:
		for i := range enq {
			if i%2 == 0 {
				enq[i] = batchSize
			} else {
				deq[i] = batchSize
			}
		}
		enq[0] += sum(deq) - sum(enq)

	default:
		return Layout{}, &ConfigurationError{Strategy: s.String(), Reason: "unknown strategy"}
	}

	return Layout{Enq: enq, Deq: deq}, nil
}

// BatchSize recovers the per-thread batch size a layout was planned with.
// It reports false when the layout no longer carries it, which happens for
// EvenOdd on a single thread where the correction zeroes both sides.
func (s Strategy) BatchSize(l Layout) (int, bool) {
	n := len(l.Enq)
	if n == 0 || len(l.Deq) != n {
		return 0, false
	}
	switch s {
	case Balanced, SeqRun:
		return l.Enq[0], true
	case OneEnqueuer:
		return l.Deq[0], true
	case HalfEnqueuer:
		return l.Deq[n-1], true
	case EvenOdd:
		if n < 2 {
			return 0, false
		}
		return l.Deq[1], true
	}
	return 0, false
}

func fill(xs []int, v int) {
	for i := range xs {
		xs[i] = v
	}
}

func sum(xs []int) int {
	total := 0
	for _, x := range xs {
		total += x
	}
	return total
}
