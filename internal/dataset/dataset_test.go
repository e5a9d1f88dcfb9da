package dataset

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/metric"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
)

func init() {
	monitoring.SetLogger(nil)
}

const cohortJSON = `{
  "sampling_rate": 2,
  "num_samples": 20,
  "recordings": [
    {
      "id": "p1",
      "metric": [0, 0, 0, 0, 0, 0, 9, 9, 9, 9, 9, 9, 0, 0, 0, 0],
      "seizures": {"count": 1, "times": [3, 8, 5]},
      "spikes": {"reference": [40, 120], "detected": [41, 90]}
    },
    {
      "id": "ctl",
      "metric": [0, null, 0, 0],
      "seizures": {"count": 0}
    },
    {
      "id": "derived",
      "amplitude": [1, 1, 1, 2, 1, 1, 4, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1],
      "frequency": [1, 1, 1, 2, 1, 1, 4, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1],
      "seizures": {"count": 0}
    }
  ]
}`

func testOptions() Options {
	return Options{
		Metric:            metric.Parameters{FgSize: 1, BgSize: 2, BaselineStartIdx: 0, BaselineEndIdx: 4},
		MinOverlap:        0.1,
		ToleranceEnd:      3,
		SpikeSamplingRate: 20,
		SpikeTolerance:    0.1,
	}
}

func writeDataset(t *testing.T, body string) *fsutil.MemoryFileSystem {
	t.Helper()
	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.WriteFile("/data/cohort.json", []byte(body), 0644))
	return mfs
}

func TestLoad(t *testing.T) {
	t.Parallel()

	ds, err := Load(writeDataset(t, cohortJSON), "/data/cohort.json", testOptions())
	require.NoError(t, err)
	assert.Equal(t, 2.0, ds.SamplingRate)
	assert.Equal(t, 16, ds.NumSamples)
	require.Len(t, ds.Recordings, 3)

	p1 := ds.Recordings[0]
	assert.Equal(t, "p1", p1.ID)
	assert.Equal(t, []annotation.Event{{Start: 3, End: 6}}, p1.Reference.Events())
	assert.Equal(t, 16, p1.Reference.NumSamples())
	assert.Equal(t, scoring.Parameters{
		MinOverlap:               0.1,
		MinDurationBetweenEvents: 0,
		MaxEventDuration:         math.Inf(1),
		ToleranceStart:           2,
		ToleranceEnd:             3,
	}, p1.Scoring)
	require.NotNil(t, p1.Spikes)
	assert.Equal(t, scoring.SpikeParams{Tolerance: 2, RecordingLength: 200, StartLoc: 0}, p1.Spikes.Params)
	assert.Equal(t, []int{41, 90}, p1.Spikes.Detected)

	ctl := ds.Recordings[1]
	assert.Equal(t, 0, ctl.Reference.Len())
	assert.Equal(t, 0.0, ctl.Scoring.ToleranceStart)
	assert.True(t, math.IsNaN(ctl.Metric[1]))
	assert.Nil(t, ctl.Spikes)

	derived := ds.Recordings[2]
	assert.Len(t, derived.Metric, 16)

	sweepRecs := ds.SweepRecordings()
	require.Len(t, sweepRecs, 3)
	assert.Equal(t, "derived", sweepRecs[2].ID)
}

func TestLoadErrors(t *testing.T) {
	t.Parallel()

	replace := func(old, new string) string {
		return strings.Replace(cohortJSON, old, new, 1)
	}
	testCases := []struct {
		name   string
		body   string
		target error
		substr string
	}{
		{"two seizures", replace(`{"count": 0}`, `{"count": 2, "times": [1, 2, 3]}`), ErrUnsupportedSeizureCount, ""},
		{"missing metric", replace(`"metric": [0, null, 0, 0],`, ``), ErrNoMetric, ""},
		{"duplicate id", replace(`"id": "ctl"`, `"id": "p1"`), nil, "duplicate recording id"},
		{"short phase table", replace(`"times": [3, 8, 5]`, `"times": [3, 8]`), nil, "3 phase times"},
		{"inverted seizure", replace(`"times": [3, 8, 5]`, `"times": [3, 4, 5]`), annotation.ErrInvalidEvent, ""},
		{"no sampling rate", replace(`"sampling_rate": 2`, `"sampling_rate": 0`), nil, "positive sampling_rate"},
		{"bad json", `{"recordings": [`, nil, "failed to parse dataset JSON"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := Load(writeDataset(t, tc.body), "/data/cohort.json", testOptions())
			require.Error(t, err)
			if tc.target != nil {
				assert.ErrorIs(t, err, tc.target)
			}
			if tc.substr != "" {
				assert.Contains(t, err.Error(), tc.substr)
			}
		})
	}

	_, err := Load(fsutil.NewMemoryFileSystem(), "/data/cohort.yaml", testOptions())
	assert.ErrorContains(t, err, ".json extension")
	_, err = Load(fsutil.NewMemoryFileSystem(), "/data/missing.json", testOptions())
	assert.Error(t, err)
}

func TestSeriesNullIsNaN(t *testing.T) {
	t.Parallel()

	var s Series
	require.NoError(t, json.Unmarshal([]byte(`[1.5, null, -2]`), &s))
	require.Len(t, s, 3)
	assert.Equal(t, 1.5, s[0])
	assert.True(t, math.IsNaN(s[1]))
	assert.Equal(t, -2.0, s[2])

	assert.Error(t, json.Unmarshal([]byte(`["x"]`), &s))
}

func TestSeizureTableReference(t *testing.T) {
	t.Parallel()

	ref, tol, err := SeizureTable{Count: 1, Times: []float64{100, 400, 250}}.Reference(2, 1000, 50)
	require.NoError(t, err)
	assert.Equal(t, []annotation.Event{{Start: 200, End: 350}}, ref.Events())
	assert.Equal(t, 150.0, tol)

	_, _, err = SeizureTable{Count: -1}.Reference(2, 1000, 0)
	assert.ErrorIs(t, err, ErrUnsupportedSeizureCount)
}
