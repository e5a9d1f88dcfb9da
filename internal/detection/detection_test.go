package detection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
)

func series(values ...float64) []float64 { return values }

func TestDetect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		series []float64
		fs     float64
		params Parameters
		want   []annotation.Interval
	}{
		{
			name:   "never crosses threshold",
			series: series(1, 2, 3, 2, 1),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 1},
			want:   nil,
		},
		{
			name:   "run of exactly min samples",
			series: series(0, 9, 9, 9, 0, 0),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 3},
			want:   []annotation.Interval{{Start: 4, End: 4}},
		},
		{
			name:   "longer run reports onset after min duration",
			series: series(0, 9, 9, 9, 9, 9, 0),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 2},
			want:   []annotation.Interval{{Start: 3, End: 6}},
		},
		{
			name:   "short runs are discarded",
			series: series(9, 0, 9, 9, 9, 0, 9),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 2},
			want:   []annotation.Interval{{Start: 4, End: 5}},
		},
		{
			name:   "runs touching both edges",
			series: series(9, 9, 9, 0, 9, 9, 9),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 1},
			want:   []annotation.Interval{{Start: 1, End: 3}, {Start: 5, End: 7}},
		},
		{
			name:   "min duration uses sampling rate",
			series: series(0, 9, 9, 9, 9, 9, 9, 0),
			fs:     2,
			params: Parameters{Threshold: 5, MinDuration: 1.9},
			want:   []annotation.Interval{{Start: 4, End: 7}},
		},
		{
			name:   "NaN is not above threshold",
			series: series(9, math.NaN(), 9, 9),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 2},
			want:   []annotation.Interval{{Start: 4, End: 4}},
		},
		{
			name:   "threshold is strict",
			series: series(5, 5, 5),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 0},
			want:   nil,
		},
		{
			name:   "min samples longer than series",
			series: series(9, 9, 9),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 4},
			want:   nil,
		},
		{
			name:   "detection start offsets indices",
			series: series(9, 9, 9, 0, 9, 9, 9, 9),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 2, DetectionStartIdx: 3},
			want:   []annotation.Interval{{Start: 6, End: 8}},
		},
		{
			name:   "detection start past end",
			series: series(9, 9),
			fs:     1,
			params: Parameters{Threshold: 5, MinDuration: 1, DetectionStartIdx: 5},
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Detect(tt.series, tt.fs, tt.params))
		})
	}
}

func TestDetectLengthIndependentOfStartIdx(t *testing.T) {
	t.Parallel()

	base := series(0, 0, 0, 9, 9, 9, 9, 9, 9, 0)
	const minDuration = 2
	for _, start := range []int{0, 1, 2, 3} {
		got := Detect(base, 1, Parameters{Threshold: 5, MinDuration: minDuration, DetectionStartIdx: start})
		require.Len(t, got, 1, "start=%d", start)
		assert.Equal(t, 6-minDuration, got[0].Len(), "start=%d", start)
	}
}

func TestHypothesis(t *testing.T) {
	t.Parallel()

	// Two runs separated by a short gap, the second ending at the edge.
	s := make([]float64, 40)
	for i := 5; i < 15; i++ {
		s[i] = 10
	}
	for i := 18; i < 40; i++ {
		s[i] = 10
	}

	t.Run("merge neighbours then split", func(t *testing.T) {
		t.Parallel()
		hyp, err := Hypothesis(s, 1, len(s), Parameters{Threshold: 1, MinDuration: 2},
			PostProcessing{MinDurationBetweenEvents: 10, MaxEventDuration: 20})
		require.NoError(t, err)
		assert.Equal(t, []annotation.Event{{Start: 7, End: 27}, {Start: 27, End: 40}}, hyp.Events())
	})

	t.Run("no post processing", func(t *testing.T) {
		t.Parallel()
		hyp, err := Hypothesis(s, 1, len(s), Parameters{Threshold: 1, MinDuration: 2}, PostProcessing{})
		require.NoError(t, err)
		assert.Equal(t, []annotation.Event{{Start: 7, End: 15}, {Start: 20, End: 40}}, hyp.Events())
	})

	t.Run("empty detection drops zero length events", func(t *testing.T) {
		t.Parallel()
		hyp, err := Hypothesis(series(0, 9, 9, 0), 1, 4, Parameters{Threshold: 5, MinDuration: 2}, PostProcessing{})
		require.NoError(t, err)
		assert.Zero(t, hyp.Len())
	})
}

func TestMinSamples(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 4, Parameters{MinDuration: 2}.MinSamples(2))
	assert.Equal(t, 2, Parameters{MinDuration: 1.49}.MinSamples(2))
	assert.Equal(t, 0, Parameters{MinDuration: -1}.MinSamples(2))
}
