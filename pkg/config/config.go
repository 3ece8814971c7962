// Package config holds the experiment axes and the per-cell benchmark
// configuration handed to the engine.
package config

import (
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/i5heu/GoQueueSweep/pkg/layout"
)

// SequentialQueue is the queue type that only runs single-threaded.
const SequentialQueue = "sequential"

// Engine limits, mirrored from the engine's own config check.
const (
	MaxTimeInS     = 100
	MaxRepetitions = 100
)

// ValidationError reports an invalid axis set or benchmark configuration.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// AxisSet is the immutable set of experiment axes. Build one with
// DefaultAxes, NewAxes or LoadAxes; the accessors hand out copies.
type AxisSet struct {
	queueTypes       []string
	threads          []int
	batchSizes       []int
	strategies       []layout.Strategy
	repetitions      int
	seed             int64
	seqDurations     []float64
	concurrentDurSec float64
}

// Axes is the mutable, serializable form of an AxisSet.
type Axes struct {
	QueueTypes          []string  `json:"queue_types" yaml:"queue_types"`
	Threads             []int     `json:"threads" yaml:"threads"`
	BatchSizes          []int     `json:"batch_sizes" yaml:"batch_sizes"`
	Strategies          []string  `json:"strategies" yaml:"strategies"`
	Repetitions         int       `json:"repetitions" yaml:"repetitions"`
	Seed                int64     `json:"seed" yaml:"seed"`
	SequentialDurations []float64 `json:"sequential_durations_s" yaml:"sequential_durations_s"`
	ConcurrentDuration  float64   `json:"concurrent_duration_s" yaml:"concurrent_duration_s"`
}

// DefaultAxesSpec returns the axes of the large benchmark sweep.
func DefaultAxesSpec() Axes {
	return Axes{
		QueueTypes:          []string{SequentialQueue, "global_lock", "fine_lock", "lock_free"},
		Threads:             []int{1, 2, 8, 10, 20, 32, 45, 64},
		BatchSizes:          []int{1, 1000},
		Strategies:          []string{"balanced", "one_enqueuer", "half_enqueuer", "even_odd"},
		Repetitions:         10,
		Seed:                42,
		SequentialDurations: []float64{1, 5},
		ConcurrentDuration:  1,
	}
}

// DefaultAxes returns the validated default AxisSet.
func DefaultAxes() AxisSet {
	axes, err := NewAxes(DefaultAxesSpec())
	if err != nil {
		panic(err)
	}
	return axes
}

// LoadAxes reads a YAML axes file. Keys missing from the file keep their
// default values.
func LoadAxes(path string) (AxisSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return AxisSet{}, fmt.Errorf("read axes file %s: %w", path, err)
	}
	spec := DefaultAxesSpec()
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return AxisSet{}, fmt.Errorf("parse axes file %s: %w", path, err)
	}
	return NewAxes(spec)
}

// NewAxes validates spec and freezes it into an AxisSet.
func NewAxes(spec Axes) (AxisSet, error) {
	if len(spec.QueueTypes) == 0 {
		return AxisSet{}, &ValidationError{Field: "queue_types", Reason: "must not be empty"}
	}
	if len(spec.BatchSizes) == 0 {
		return AxisSet{}, &ValidationError{Field: "batch_sizes", Reason: "must not be empty"}
	}
	for _, b := range spec.BatchSizes {
		if b < 0 {
			return AxisSet{}, &ValidationError{Field: "batch_sizes", Reason: fmt.Sprintf("negative batch size %d", b)}
		}
	}
	if spec.Repetitions < 1 || spec.Repetitions > MaxRepetitions {
		return AxisSet{}, &ValidationError{
			Field:  "repetitions",
			Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxRepetitions, spec.Repetitions),
		}
	}

	hasSequential := slices.Contains(spec.QueueTypes, SequentialQueue)
	hasConcurrent := slices.ContainsFunc(spec.QueueTypes, func(q string) bool { return q != SequentialQueue })

	if hasConcurrent {
		if len(spec.Threads) == 0 {
			return AxisSet{}, &ValidationError{Field: "threads", Reason: "must not be empty"}
		}
		if len(spec.Strategies) == 0 {
			return AxisSet{}, &ValidationError{Field: "strategies", Reason: "must not be empty"}
		}
		if err := checkDuration("concurrent_duration_s", spec.ConcurrentDuration); err != nil {
			return AxisSet{}, err
		}
	}
	for _, n := range spec.Threads {
		if n < 1 {
			return AxisSet{}, &ValidationError{Field: "threads", Reason: fmt.Sprintf("thread count %d < 1", n)}
		}
	}

	strategies := make([]layout.Strategy, 0, len(spec.Strategies))
	for _, name := range spec.Strategies {
		s, err := layout.ParseStrategy(name)
		if err != nil {
			return AxisSet{}, err
		}
		strategies = append(strategies, s)
	}

	if hasSequential && len(spec.SequentialDurations) == 0 {
		return AxisSet{}, &ValidationError{Field: "sequential_durations_s", Reason: "must not be empty"}
	}
	for _, d := range spec.SequentialDurations {
		if err := checkDuration("sequential_durations_s", d); err != nil {
			return AxisSet{}, err
		}
	}

	return AxisSet{
		queueTypes:       slices.Clone(spec.QueueTypes),
		threads:          slices.Clone(spec.Threads),
		batchSizes:       slices.Clone(spec.BatchSizes),
		strategies:       strategies,
		repetitions:      spec.Repetitions,
		seed:             spec.Seed,
		seqDurations:     slices.Clone(spec.SequentialDurations),
		concurrentDurSec: spec.ConcurrentDuration,
	}, nil
}

func checkDuration(field string, seconds float64) error {
	if seconds <= 0 || seconds > MaxTimeInS {
		return &ValidationError{Field: field, Reason: fmt.Sprintf("must be in (0, %d] seconds, got %g", MaxTimeInS, seconds)}
	}
	return nil
}

// QueueTypes returns the queue kinds to sweep, in run order.
func (a AxisSet) QueueTypes() []string { return slices.Clone(a.queueTypes) }

// Threads returns the thread counts of the concurrent cells.
func (a AxisSet) Threads() []int { return slices.Clone(a.threads) }

// BatchSizes returns the per-thread operation counts.
func (a AxisSet) BatchSizes() []int { return slices.Clone(a.batchSizes) }

// Strategies returns the work-distribution strategies.
func (a AxisSet) Strategies() []layout.Strategy { return slices.Clone(a.strategies) }

// Repetitions returns how often every cell is run.
func (a AxisSet) Repetitions() int { return a.repetitions }

// Seed returns the seed the sweep's randomness is derived from.
func (a AxisSet) Seed() int64 { return a.seed }

// SequentialDurations returns the time limits, in seconds, of the
// sequential baseline runs.
func (a AxisSet) SequentialDurations() []float64 { return slices.Clone(a.seqDurations) }

// ConcurrentDuration returns the time limit of a concurrent cell in seconds.
func (a AxisSet) ConcurrentDuration() float64 { return a.concurrentDurSec }

// Spec converts the AxisSet back to its serializable form.
func (a AxisSet) Spec() Axes {
	names := make([]string, len(a.strategies))
	for i, s := range a.strategies {
		names[i] = s.String()
	}
	return Axes{
		QueueTypes:          a.QueueTypes(),
		Threads:             a.Threads(),
		BatchSizes:          a.BatchSizes(),
		Strategies:          names,
		Repetitions:         a.repetitions,
		Seed:                a.seed,
		SequentialDurations: a.SequentialDurations(),
		ConcurrentDuration:  a.concurrentDurSec,
	}
}

// BenchmarkConfig is the engine configuration of one matrix cell.
type BenchmarkConfig struct {
	NumThreads  int     `json:"num_threads"`
	MaxTimeInS  float64 `json:"max_time_in_s"`
	Repetitions int     `json:"repetitions"`
	Seed        int64   `json:"seed"`
	BatchEnque  []int   `json:"batch_enque"`
	BatchDeque  []int   `json:"batch_deque"`
	// Sets switches from timed runs to a fixed number of rounds per thread.
	Sets int `json:"sets,omitempty"`
}

// Duration is MaxTimeInS as a time.Duration.
func (c BenchmarkConfig) Duration() time.Duration {
	return time.Duration(c.MaxTimeInS * float64(time.Second))
}

// Validate checks c the way the engine does before it accepts a job.
func (c BenchmarkConfig) Validate() error {
	if c.NumThreads < 1 {
		return &ValidationError{Field: "num_threads", Reason: fmt.Sprintf("must be >= 1, got %d", c.NumThreads)}
	}
	if len(c.BatchEnque) != c.NumThreads {
		return &ValidationError{Field: "batch_enque", Reason: fmt.Sprintf("length %d != num_threads %d", len(c.BatchEnque), c.NumThreads)}
	}
	if len(c.BatchDeque) != c.NumThreads {
		return &ValidationError{Field: "batch_deque", Reason: fmt.Sprintf("length %d != num_threads %d", len(c.BatchDeque), c.NumThreads)}
	}
	l := layout.Layout{Enq: c.BatchEnque, Deq: c.BatchDeque}
	for i := range l.Enq {
		if l.Enq[i] < 0 || l.Deq[i] < 0 {
			return &ValidationError{Field: "batch", Reason: fmt.Sprintf("negative batch on thread %d", i)}
		}
	}
	if !l.Balanced() {
		return &ValidationError{
			Field:  "batch",
			Reason: fmt.Sprintf("unbalanced batches: enqueue %d, dequeue %d", l.EnqTotal(), l.DeqTotal()),
		}
	}
	if err := checkDuration("max_time_in_s", c.MaxTimeInS); err != nil {
		return err
	}
	if c.Repetitions < 1 || c.Repetitions > MaxRepetitions {
		return &ValidationError{Field: "repetitions", Reason: fmt.Sprintf("must be in [1, %d], got %d", MaxRepetitions, c.Repetitions)}
	}
	if c.Sets < 0 {
		return &ValidationError{Field: "sets", Reason: fmt.Sprintf("must be >= 0, got %d", c.Sets)}
	}
	return nil
}
