package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seizure-classifier/internal/config"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/store"
	"github.com/banshee-data/seizure-classifier/internal/timeutil"
)

func init() {
	monitoring.SetLogger(nil)
}

const testConfig = `{
  "thresholds": "2,5,50",
  "min_durations": "0,1",
  "min_duration_between_events": 0,
  "max_event_duration": 0,
  "tolerance_end": 2,
  "fg_size": 1,
  "bg_size": 2,
  "baseline_start_idx": 0,
  "baseline_end_idx": 4,
  "workers": 2,
  "write_plots": false
}`

// Three recordings on a 14-sample grid; the first four samples are the
// metric baseline, leaving a 10-sample test grid.
const testDataset = `{
  "sampling_rate": 1,
  "num_samples": 14,
  "recordings": [
    {"id": "a", "metric": [1, 1, 10, 10, 10, 1, 1, 1, 1, 1], "seizures": {"count": 1, "times": [5, 9, 6]}},
    {"id": "b", "metric": [1, 1, 1, 1, 1, 10, 10, 1, 1, 1], "seizures": {"count": 1, "times": [8, 11, 9]}},
    {"id": "c", "metric": [1, 1, 1, 1, 1, 1, 1, 1, 1, 1], "seizures": {"count": 0}}
  ]
}`

func testFS(t *testing.T) *fsutil.MemoryFileSystem {
	t.Helper()
	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile("cfg/classify.json", []byte(testConfig), 0644))
	require.NoError(t, fsys.WriteFile("data/cohort.json", []byte(testDataset), 0644))
	return fsys
}

func testClock() timeutil.Clock {
	return timeutil.NewMockClock(time.Date(2025, 6, 2, 14, 5, 0, 0, time.UTC))
}

func TestRun(t *testing.T) {
	t.Parallel()

	fsys := testFS(t)
	dbPath := filepath.Join(t.TempDir(), "runs.db")
	written, err := run(context.Background(), fsys, testClock(), options{
		ConfigPath:  "cfg/classify.json",
		DatasetPath: "data/cohort.json",
		OutputDir:   "out",
		DBPath:      dbPath,
	})
	require.NoError(t, err)

	prefix := filepath.Join("out", "classification_2025-06-02_14-05")
	assert.Equal(t, []string{prefix + ".csv", prefix + "_fronts.csv", prefix + ".html"}, written)
	for _, name := range written {
		assert.True(t, fsys.Exists(name), name)
	}

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()
	ids, err := st.ListRuns(context.Background())
	require.NoError(t, err)
	require.Len(t, ids, 1)
	folds, err := st.FoldResults(context.Background(), ids[0])
	require.NoError(t, err)
	assert.Len(t, folds, 3)
}

func TestRunFlagsDisableOutputs(t *testing.T) {
	t.Parallel()

	fsys := testFS(t)
	written, err := run(context.Background(), fsys, testClock(), options{
		ConfigPath:  "cfg/classify.json",
		DatasetPath: "data/cohort.json",
		OutputDir:   "out",
		NoHTML:      true,
	})
	require.NoError(t, err)
	assert.Len(t, written, 2)
}

func TestRunErrors(t *testing.T) {
	t.Parallel()

	single := `{"sampling_rate": 1, "num_samples": 14, "recordings": [
	  {"id": "a", "metric": [1, 1, 1], "seizures": {"count": 0}}]}`

	tests := []struct {
		name string
		opts options
	}{
		{"missing config", options{ConfigPath: "cfg/missing.json", DatasetPath: "data/cohort.json"}},
		{"missing dataset", options{ConfigPath: "cfg/classify.json", DatasetPath: "data/missing.json"}},
		{"single recording", options{ConfigPath: "cfg/classify.json", DatasetPath: "data/single.json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			fsys := testFS(t)
			require.NoError(t, fsys.WriteFile("data/single.json", []byte(single), 0644))
			tt.opts.OutputDir = "out"
			_, err := run(context.Background(), fsys, testClock(), tt.opts)
			require.Error(t, err)
			assert.False(t, fsys.Exists("out"), "nothing is written on failure")
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(fsutil.NewMemoryFileSystem(), "")
	require.NoError(t, err)
	assert.Equal(t, config.DefaultClassifierConfig(), cfg)

	fsys := fsutil.NewMemoryFileSystem()
	require.NoError(t, fsys.WriteFile(config.DefaultConfigPath, []byte(`{"workers": 3}`), 0644))
	cfg, err = loadConfig(fsys, "")
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.GetWorkers())
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "results", *outputDir)
	assert.Equal(t, 0, *workers)
	assert.False(t, *noPlots)
	assert.False(t, *noHTML)
}
