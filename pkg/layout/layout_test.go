package layout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLayoutExamples(t *testing.T) {
	cases := []struct {
		name     string
		strategy Strategy
		threads  int
		batch    int
		enq      []int
		deq      []int
	}{
		{"balanced", Balanced, 4, 1000, []int{1000, 1000, 1000, 1000}, []int{1000, 1000, 1000, 1000}},
		{"one_enqueuer", OneEnqueuer, 4, 1000, []int{4000, 0, 0, 0}, []int{1000, 1000, 1000, 1000}},
		{"half_enqueuer odd", HalfEnqueuer, 5, 1000, []int{1000, 2000, 0, 0, 0}, []int{0, 0, 1000, 1000, 1000}},
		{"half_enqueuer even", HalfEnqueuer, 4, 10, []int{10, 10, 0, 0}, []int{0, 0, 10, 10}},
		{"even_odd odd", EvenOdd, 5, 1000, []int{0, 0, 1000, 0, 1000}, []int{0, 1000, 0, 1000, 0}},
		{"even_odd even", EvenOdd, 4, 7, []int{7, 0, 7, 0}, []int{0, 7, 0, 7}},
		{"seq_run", SeqRun, 1, 1000, []int{1000}, []int{1000}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, err := tc.strategy.Layout(tc.threads, tc.batch)
			require.NoError(t, err)
			assert.Equal(t, tc.enq, l.Enq)
			assert.Equal(t, tc.deq, l.Deq)
			assert.True(t, l.Balanced())
		})
	}
}

func TestLayoutAlwaysBalanced(t *testing.T) {
	for _, s := range Strategies() {
		for threads := 1; threads <= 65; threads++ {
			for _, batch := range []int{0, 1, 2, 3, 7, 1000} {
				l, err := s.Layout(threads, batch)
				require.NoError(t, err)
				require.Len(t, l.Enq, threads)
				require.Len(t, l.Deq, threads)
				require.Equalf(t, l.EnqTotal(), l.DeqTotal(),
					"%s threads=%d batch=%d enq=%v deq=%v", s, threads, batch, l.Enq, l.Deq)
				for i := range l.Enq {
					require.GreaterOrEqual(t, l.Enq[i], 0)
					require.GreaterOrEqual(t, l.Deq[i], 0)
				}
			}
		}
	}
}

// The single-thread corrections are kept exactly as planned: half_enqueuer
// wraps onto the only thread, even_odd cancels its own enqueue batch.
func TestLayoutSingleThreadBoundary(t *testing.T) {
	l, err := HalfEnqueuer.Layout(1, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{1000}, l.Enq)
	assert.Equal(t, []int{1000}, l.Deq)

	l, err = EvenOdd.Layout(1, 1000)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, l.Enq)
	assert.Equal(t, []int{0}, l.Deq)

	l, err = EvenOdd.Layout(3, 1)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 0, 1}, l.Enq)
	assert.Equal(t, []int{0, 1, 0}, l.Deq)
}

func TestUnknownStrategy(t *testing.T) {
	_, err := ParseStrategy("round_robin")
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "round_robin", cfgErr.Strategy)

	l, err := Strategy(42).Layout(4, 10)
	require.True(t, errors.As(err, &cfgErr))
	assert.Nil(t, l.Enq)
	assert.Nil(t, l.Deq)
}

func TestInvalidLayoutInput(t *testing.T) {
	var cfgErr *ConfigurationError

	_, err := Balanced.Layout(0, 10)
	assert.True(t, errors.As(err, &cfgErr))

	_, err = Balanced.Layout(2, -1)
	assert.True(t, errors.As(err, &cfgErr))
}

func TestParseStrategyRoundTrip(t *testing.T) {
	for _, s := range Strategies() {
		parsed, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)

		text, err := s.MarshalText()
		require.NoError(t, err)
		var back Strategy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
}

func TestBatchSizeInverse(t *testing.T) {
	for _, s := range Strategies() {
		for _, threads := range []int{2, 5, 8} {
			l, err := s.Layout(threads, 1000)
			require.NoError(t, err)
			batch, ok := s.BatchSize(l)
			require.True(t, ok, "%s threads=%d", s, threads)
			assert.Equal(t, 1000, batch, "%s threads=%d", s, threads)
		}
	}

	l, err := EvenOdd.Layout(1, 1000)
	require.NoError(t, err)
	_, ok := EvenOdd.BatchSize(l)
	assert.False(t, ok)
}
