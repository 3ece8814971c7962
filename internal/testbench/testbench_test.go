package testbench

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoQueueSweep/internal/queue"
	"github.com/i5heu/GoQueueSweep/pkg/config"
	"github.com/i5heu/GoQueueSweep/pkg/layout"
)

func configFor(t *testing.T, s layout.Strategy, threads, batch int) config.BenchmarkConfig {
	t.Helper()
	l, err := s.Layout(threads, batch)
	require.NoError(t, err)
	return config.BenchmarkConfig{
		NumThreads:  threads,
		MaxTimeInS:  0.05,
		Repetitions: 2,
		Seed:        42,
		BatchEnque:  l.Enq,
		BatchDeque:  l.Deq,
	}
}

func TestFixedSetsAreExact(t *testing.T) {
	for _, kind := range queue.Kinds() {
		kind := kind
		t.Run(kind.Name, func(t *testing.T) {
			threads := 4
			if !kind.Concurrent {
				threads = 1
			}
			cfg := configFor(t, layout.Balanced, threads, 50)
			cfg.Sets = 20

			b, err := New(cfg)
			require.NoError(t, err)
			require.NoError(t, b.Run(context.Background(), kind.Name))

			s, err := b.Collect()
			require.NoError(t, err)

			want := int64(threads * 50 * 20)
			assert.Equal(t, want, s.TotalEnq)
			assert.Equal(t, want, s.SuccEnq)
			assert.Equal(t, s.SuccEnq, s.SuccDeq)
			assert.GreaterOrEqual(t, s.TotalDeq, want)
			assert.Equal(t, s.TotalEnq+s.TotalDeq, s.TotalOps)
			assert.Greater(t, s.AvgTime, 0.0)
			assert.GreaterOrEqual(t, s.AvgTime, s.AvgTimeout)
		})
	}
}

func TestTimedRunBalancesForEveryStrategy(t *testing.T) {
	for _, s := range []layout.Strategy{layout.Balanced, layout.OneEnqueuer, layout.HalfEnqueuer, layout.EvenOdd} {
		s := s
		t.Run(s.String(), func(t *testing.T) {
			b, err := New(configFor(t, s, 3, 100))
			require.NoError(t, err)

			start := time.Now()
			require.NoError(t, b.Run(context.Background(), "lock_free"))
			assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

			sum, err := b.Collect()
			require.NoError(t, err)
			assert.Equal(t, sum.SuccEnq, sum.SuccDeq)
			assert.Greater(t, sum.TotalOps, int64(0))
			assert.Greater(t, sum.AvgTime, 0.0)
			assert.Less(t, sum.AvgTime, 5.0)
		})
	}
}

func TestSingleThreadEvenOddIdles(t *testing.T) {
	b, err := New(configFor(t, layout.EvenOdd, 1, 100))
	require.NoError(t, err)
	require.NoError(t, b.Run(context.Background(), "fine_lock"))

	s, err := b.Collect()
	require.NoError(t, err)
	assert.Equal(t, int64(0), s.TotalOps)
	assert.Greater(t, s.AvgTime, 0.0)
}

func TestRejectsInvalidConfig(t *testing.T) {
	cfg := configFor(t, layout.Balanced, 2, 10)
	cfg.BatchEnque = []int{20, 10}
	_, err := New(cfg)
	var vErr *config.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestRejectsUnknownQueue(t *testing.T) {
	b, err := New(configFor(t, layout.Balanced, 1, 10))
	require.NoError(t, err)
	assert.Error(t, b.Run(context.Background(), "skiplist"))

	_, err = b.Collect()
	assert.ErrorIs(t, err, ErrNotCollected)
}

func TestSequentialQueueIsSingleThreaded(t *testing.T) {
	b, err := New(configFor(t, layout.Balanced, 2, 10))
	require.NoError(t, err)
	assert.Error(t, b.Run(context.Background(), "sequential"))
}

func TestRunHonoursCancellation(t *testing.T) {
	cfg := configFor(t, layout.Balanced, 2, 10)
	cfg.MaxTimeInS = 30

	b, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err = b.Run(ctx, "global_lock")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestSeededBatchesAreReproducible(t *testing.T) {
	a := make([]queue.Value, 16)
	b := make([]queue.Value, 16)
	fillShuffled(a, newRand(7))
	fillShuffled(b, newRand(7))
	assert.Equal(t, a, b)
	assert.ElementsMatch(t, []queue.Value{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}, a)
}
