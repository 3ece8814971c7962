// Package runner drives an experiment matrix through a benchmark engine and
// persists one record per cell.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/i5heu/GoQueueSweep/internal/testbench"
	"github.com/i5heu/GoQueueSweep/pkg/config"
	"github.com/i5heu/GoQueueSweep/pkg/matrix"
	"github.com/i5heu/GoQueueSweep/pkg/results"
)

// Handle is a prepared benchmark for one configuration.
type Handle interface {
	Run(ctx context.Context, queueType string) error
	Collect() (results.Summary, error)
}

// Engine prepares handles.
type Engine interface {
	Prepare(config.BenchmarkConfig) (Handle, error)
}

// TestbenchEngine adapts testbench.Engine to Engine.
type TestbenchEngine struct {
	testbench.Engine
}

func (e TestbenchEngine) Prepare(cfg config.BenchmarkConfig) (Handle, error) {
	b, err := e.New(cfg)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Progress receives one tick per finished cell.
type Progress interface {
	Add(int) error
}

// ExecutionInvariantError reports a concurrent cell whose successful
// enqueues and dequeues disagree. The results of such a cell are invalid.
type ExecutionInvariantError struct {
	Cell    matrix.Cell
	SuccEnq int64
	SuccDeq int64
}

func (e *ExecutionInvariantError) Error() string {
	return fmt.Sprintf("succeeded enqueues %d != succeeded dequeues %d", e.SuccEnq, e.SuccDeq)
}

// CellError identifies the cell a failure belongs to.
type CellError struct {
	Cell matrix.Cell
	Err  error
}

func (e *CellError) Error() string {
	return fmt.Sprintf("cell %s: %v", e.Cell, e.Err)
}

func (e *CellError) Unwrap() error { return e.Err }

// Runner executes cells one after another.
type Runner struct {
	engine   Engine
	sink     results.Sink
	logger   *slog.Logger
	progress Progress
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithProgress reports every finished cell to p.
func WithProgress(p Progress) Option {
	return func(r *Runner) { r.progress = p }
}

// New returns a Runner that measures with engine and appends to sink.
func New(engine Engine, sink results.Sink, opts ...Option) *Runner {
	r := &Runner{engine: engine, sink: sink, logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RunCell measures one cell. It does not touch the sink.
func (r *Runner) RunCell(ctx context.Context, cell matrix.Cell) (results.ResultRecord, error) {
	rec, err := r.measure(ctx, cell)
	if err != nil {
		return results.ResultRecord{}, &CellError{Cell: cell, Err: err}
	}
	return rec, nil
}

func (r *Runner) measure(ctx context.Context, cell matrix.Cell) (results.ResultRecord, error) {
	h, err := r.engine.Prepare(cell.Config)
	if err != nil {
		return results.ResultRecord{}, err
	}
	if err := h.Run(ctx, cell.QueueType); err != nil {
		return results.ResultRecord{}, err
	}
	sum, err := h.Collect()
	if err != nil {
		return results.ResultRecord{}, err
	}
	if !cell.Sequential && sum.SuccEnq != sum.SuccDeq {
		return results.ResultRecord{}, &ExecutionInvariantError{Cell: cell, SuccEnq: sum.SuccEnq, SuccDeq: sum.SuccDeq}
	}
	return results.NewRecord(cell.QueueType, cell.Config.NumThreads,
		cell.Config.BatchEnque, cell.Config.BatchDeque, cell.Strategy.String(), sum), nil
}

// Run executes cells in order. Each record is appended to the sink before
// the next cell starts; the first error aborts the sweep.
func (r *Runner) Run(ctx context.Context, cells []matrix.Cell) error {
	for i, cell := range cells {
		if err := ctx.Err(); err != nil {
			return &CellError{Cell: cell, Err: err}
		}

		log := r.logger.With(
			slog.String("queue", cell.QueueType),
			slog.Int("threads", cell.Config.NumThreads),
			slog.Int("batch", cell.BatchSize),
			slog.String("strategy", cell.Strategy.String()),
		)
		log.Info("cell started", slog.Int("index", i+1), slog.Int("of", len(cells)))

		start := time.Now()
		rec, err := r.RunCell(ctx, cell)
		if err != nil {
			log.Error("cell failed", slog.String("error", err.Error()))
			return err
		}
		if err := r.sink.Append(rec); err != nil {
			return &CellError{Cell: cell, Err: fmt.Errorf("persist result: %w", err)}
		}

		log.Info("cell finished",
			slog.Duration("wall_time", time.Since(start)),
			slog.Int64("total_ops", rec.TotalOps),
			slog.Float64("avg_time", rec.AvgTime),
		)
		if r.progress != nil {
			_ = r.progress.Add(1)
		}
	}
	return nil
}
