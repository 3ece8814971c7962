// Package matrix enumerates the benchmark cells of an experiment sweep.
package matrix

import (
	"fmt"

	"github.com/i5heu/GoQueueSweep/pkg/config"
	"github.com/i5heu/GoQueueSweep/pkg/layout"
)

// Cell is one point of the experiment matrix.
type Cell struct {
	QueueType  string
	Strategy   layout.Strategy
	BatchSize  int
	Sequential bool
	Config     config.BenchmarkConfig
}

func (c Cell) String() string {
	return fmt.Sprintf("queue=%s threads=%d batch=%d strategy=%s",
		c.QueueType, c.Config.NumThreads, c.BatchSize, c.Strategy)
}

// Build enumerates the matrix in execution order: queue types in axis order;
// the sequential type iterates durations then batch sizes on one thread,
// every other type iterates threads, batch sizes, then strategies.
func Build(axes config.AxisSet) ([]Cell, error) {
	cells := make([]Cell, 0, Count(axes))

	for _, queueType := range axes.QueueTypes() {
		if queueType == config.SequentialQueue {
			for _, seconds := range axes.SequentialDurations() {
				for _, batch := range axes.BatchSizes() {
					cell, err := newCell(axes, queueType, layout.SeqRun, 1, batch, seconds)
					if err != nil {
						return nil, err
					}
					cell.Sequential = true
					cells = append(cells, cell)
				}
			}
			continue
		}

		for _, threads := range axes.Threads() {
			for _, batch := range axes.BatchSizes() {
				for _, strategy := range axes.Strategies() {
					cell, err := newCell(axes, queueType, strategy, threads, batch, axes.ConcurrentDuration())
					if err != nil {
						return nil, err
					}
					cells = append(cells, cell)
				}
			}
		}
	}

	return cells, nil
}

// Count returns how many cells Build produces for axes.
func Count(axes config.AxisSet) int {
	n := 0
	for _, queueType := range axes.QueueTypes() {
		if queueType == config.SequentialQueue {
			n += len(axes.SequentialDurations()) * len(axes.BatchSizes())
		} else {
			n += len(axes.Threads()) * len(axes.BatchSizes()) * len(axes.Strategies())
		}
	}
	return n
}

func newCell(axes config.AxisSet, queueType string, strategy layout.Strategy, threads, batch int, seconds float64) (Cell, error) {
	l, err := strategy.Layout(threads, batch)
	if err != nil {
		return Cell{}, fmt.Errorf("plan queue=%s threads=%d batch=%d: %w", queueType, threads, batch, err)
	}
	return Cell{
		QueueType: queueType,
		Strategy:  strategy,
		BatchSize: batch,
		Config: config.BenchmarkConfig{
			NumThreads:  threads,
			MaxTimeInS:  seconds,
			Repetitions: axes.Repetitions(),
			Seed:        axes.Seed(),
			BatchEnque:  l.Enq,
			BatchDeque:  l.Deq,
		},
	}, nil
}
