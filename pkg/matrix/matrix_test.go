package matrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/i5heu/GoQueueSweep/pkg/config"
	"github.com/i5heu/GoQueueSweep/pkg/layout"
)

func TestBuildDefaultMatrix(t *testing.T) {
	axes := config.DefaultAxes()
	cells, err := Build(axes)
	require.NoError(t, err)

	// 2 durations x 2 batches for sequential, 8 x 2 x 4 for each of 3 concurrent types
	require.Len(t, cells, 2*2+3*8*2*4)
	assert.Equal(t, len(cells), Count(axes))

	for _, c := range cells {
		require.NoError(t, c.Config.Validate(), c.String())
		assert.Equal(t, 10, c.Config.Repetitions)
		assert.Equal(t, int64(42), c.Config.Seed)
	}
}

func TestBuildOrder(t *testing.T) {
	spec := config.DefaultAxesSpec()
	spec.Threads = []int{1, 2}
	spec.Strategies = []string{"balanced", "even_odd"}
	spec.QueueTypes = []string{"sequential", "lock_free"}
	axes, err := config.NewAxes(spec)
	require.NoError(t, err)

	cells, err := Build(axes)
	require.NoError(t, err)

	type key struct {
		queue    string
		threads  int
		batch    int
		strategy layout.Strategy
		seconds  float64
	}
	var got []key
	for _, c := range cells {
		got = append(got, key{c.QueueType, c.Config.NumThreads, c.BatchSize, c.Strategy, c.Config.MaxTimeInS})
	}

	want := []key{
		{"sequential", 1, 1, layout.SeqRun, 1},
		{"sequential", 1, 1000, layout.SeqRun, 1},
		{"sequential", 1, 1, layout.SeqRun, 5},
		{"sequential", 1, 1000, layout.SeqRun, 5},
		{"lock_free", 1, 1, layout.Balanced, 1},
		{"lock_free", 1, 1, layout.EvenOdd, 1},
		{"lock_free", 1, 1000, layout.Balanced, 1},
		{"lock_free", 1, 1000, layout.EvenOdd, 1},
		{"lock_free", 2, 1, layout.Balanced, 1},
		{"lock_free", 2, 1, layout.EvenOdd, 1},
		{"lock_free", 2, 1000, layout.Balanced, 1},
		{"lock_free", 2, 1000, layout.EvenOdd, 1},
	}
	assert.Equal(t, want, got)
}

func TestSequentialCells(t *testing.T) {
	cells, err := Build(config.DefaultAxes())
	require.NoError(t, err)

	seq := 0
	for _, c := range cells {
		if c.QueueType != config.SequentialQueue {
			assert.False(t, c.Sequential)
			continue
		}
		seq++
		assert.True(t, c.Sequential)
		assert.Equal(t, layout.SeqRun, c.Strategy)
		assert.Equal(t, 1, c.Config.NumThreads)
		assert.Equal(t, []int{c.BatchSize}, c.Config.BatchEnque)
		assert.Equal(t, []int{c.BatchSize}, c.Config.BatchDeque)
	}
	assert.Equal(t, 4, seq)
}

func TestBuildIsDeterministic(t *testing.T) {
	a, err := Build(config.DefaultAxes())
	require.NoError(t, err)
	b, err := Build(config.DefaultAxes())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCellString(t *testing.T) {
	c := Cell{
		QueueType: "fine_lock",
		Strategy:  layout.HalfEnqueuer,
		BatchSize: 1000,
		Config:    config.BenchmarkConfig{NumThreads: 5},
	}
	assert.Equal(t, "queue=fine_lock threads=5 batch=1000 strategy=half_enqueuer", c.String())
}
