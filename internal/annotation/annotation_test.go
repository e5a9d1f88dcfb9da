package annotation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBuildsMask(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: 1, End: 2.5}, {Start: 4, End: 5}}, 2, 12)
	require.NoError(t, err)

	want := []bool{
		false, false, true, true, true, false,
		false, false, true, true, false, false,
	}
	assert.Equal(t, want, a.Mask())
	assert.Equal(t, 2, a.Len())
	assert.Equal(t, 5, a.TrueCount())
	assert.InDelta(t, 6.0, a.Duration(), 1e-12)
}

func TestNewRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		events     []Event
		fs         float64
		numSamples int
		wantErr    error
	}{
		{"zero rate", nil, 0, 10, ErrInvalidGrid},
		{"zero samples", nil, 1, 0, ErrInvalidGrid},
		{"reversed event", []Event{{Start: 3, End: 2}}, 1, 10, ErrInvalidEvent},
		{"empty event", []Event{{Start: 2, End: 2}}, 1, 10, ErrInvalidEvent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := New(tt.events, tt.fs, tt.numSamples)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestMaskClampsToRecording(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: -3, End: 1}, {Start: 8, End: 20}}, 1, 10)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false, false, false, false, false, false, true, true}, a.Mask())
}

func TestMaskRoundsHalfToEven(t *testing.T) {
	t.Parallel()

	// 0.5*5 = 2.5 rounds to 2, 1.5*5 = 7.5 rounds to 8.
	a, err := New([]Event{{Start: 0.5, End: 1.5}}, 5, 10)
	require.NoError(t, err)
	assert.Equal(t, []Interval{{Start: 2, End: 8}}, a.Intervals())
}

func TestRoundTripThroughMask(t *testing.T) {
	t.Parallel()

	events := []Event{{Start: 0, End: 1.5}, {Start: 3, End: 4}, {Start: 9.5, End: 10}}
	a, err := New(events, 2, 20)
	require.NoError(t, err)

	b, err := FromMask(a.Mask(), a.SamplingRate())
	require.NoError(t, err)

	if diff := cmp.Diff(events, b.Events()); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	assert.True(t, a.SameGrid(b))
}

func TestAccessorsReturnCopies(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: 0, End: 1}}, 1, 3)
	require.NoError(t, err)

	m := a.Mask()
	m[2] = true
	ev := a.Events()
	ev[0].End = 3

	assert.Equal(t, []bool{true, false, false}, a.Mask())
	assert.Equal(t, []Event{{Start: 0, End: 1}}, a.Events())
}

func TestMergeNeighbouring(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: 0, End: 5}, {Start: 5.5, End: 10}}, 10, 200)
	require.NoError(t, err)

	t.Run("gap below minimum merges", func(t *testing.T) {
		t.Parallel()
		got := a.MergeNeighbouring(1)
		assert.Equal(t, []Event{{Start: 0, End: 10}}, got.Events())
		assert.Equal(t, 100, got.TrueCount())
	})

	t.Run("gap above minimum stays split", func(t *testing.T) {
		t.Parallel()
		got := a.MergeNeighbouring(0.1)
		assert.Equal(t, a.Events(), got.Events())
	})

	t.Run("original is untouched", func(t *testing.T) {
		t.Parallel()
		_ = a.MergeNeighbouring(100)
		assert.Equal(t, 2, a.Len())
	})
}

func TestMergeNeighbouringCascades(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: 0, End: 1}, {Start: 2, End: 3}, {Start: 4, End: 5}, {Start: 20, End: 21}}, 1, 30)
	require.NoError(t, err)

	got := a.MergeNeighbouring(1.5)
	assert.Equal(t, []Event{{Start: 0, End: 5}, {Start: 20, End: 21}}, got.Events())
}

func TestSplitLong(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: 0, End: 10}}, 1, 20)
	require.NoError(t, err)

	got := a.SplitLong(4)
	assert.Equal(t, []Event{{Start: 0, End: 4}, {Start: 4, End: 8}, {Start: 8, End: 10}}, got.Events())
	assert.Equal(t, a.Mask(), got.Mask())

	even := a.SplitLong(5)
	assert.Equal(t, []Event{{Start: 0, End: 5}, {Start: 5, End: 10}}, even.Events())

	unchanged := a.SplitLong(0)
	assert.Equal(t, a.Events(), unchanged.Events())
}

func TestSplitLongInexactSteps(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		end         float64
		fs          float64
		numSamples  int
		maxDuration float64
		wantPieces  int
	}{
		{"1.5s by 0.3s", 1.5, 2, 20, 0.3, 5},
		{"7s by 0.7s", 7, 10, 100, 0.7, 10},
		{"1s by 0.1s", 1, 10, 20, 0.1, 10},
		{"remainder kept", 1.6, 10, 20, 0.3, 6},
		{"shorter than max", 0.2, 10, 20, 0.3, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			a, err := New([]Event{{Start: 0, End: tt.end}}, tt.fs, tt.numSamples)
			require.NoError(t, err)

			got := a.SplitLong(tt.maxDuration).Events()
			require.Len(t, got, tt.wantPieces)
			assert.Equal(t, 0.0, got[0].Start)
			assert.Equal(t, tt.end, got[len(got)-1].End)
			for i, e := range got {
				assert.Less(t, e.Start, e.End, "piece %d is empty", i)
				assert.LessOrEqual(t, e.Duration(), tt.maxDuration+1e-9, "piece %d", i)
				if i > 0 {
					assert.Equal(t, got[i-1].End, e.Start, "piece %d is not contiguous", i)
				}
			}
		})
	}
}

func TestExtendClampsToRecording(t *testing.T) {
	t.Parallel()

	a, err := New([]Event{{Start: 2, End: 4}, {Start: 8, End: 9}}, 1, 10)
	require.NoError(t, err)

	got := a.Extend(3, 2)
	assert.Equal(t, []Event{{Start: 0, End: 6}, {Start: 5, End: 10}}, got.Events())
	assert.Equal(t, 10, got.TrueCount())
}

func TestRuns(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mask []bool
		want []Interval
	}{
		{"empty", nil, nil},
		{"all false", []bool{false, false}, nil},
		{"all true", []bool{true, true, true}, []Interval{{0, 3}}},
		{"edges", []bool{true, false, false, true}, []Interval{{0, 1}, {3, 4}}},
		{"middle", []bool{false, true, true, false}, []Interval{{1, 3}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Runs(tt.mask))
		})
	}
}

func TestFromIntervalsDropsEmpty(t *testing.T) {
	t.Parallel()

	a, err := FromIntervals([]Interval{{2, 2}, {3, 5}}, 2, 10)
	require.NoError(t, err)
	assert.Equal(t, []Event{{Start: 1.5, End: 2.5}}, a.Events())
}
