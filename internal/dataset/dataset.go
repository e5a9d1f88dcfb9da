// Package dataset loads a recording cohort: per-recording metric inputs,
// reference seizure tables and optional spike locations.
package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/metric"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
)

// MaxFileSize caps dataset files.
const MaxFileSize = 256 * 1024 * 1024

var (
	// ErrUnsupportedSeizureCount is returned for recordings with a seizure
	// count other than 0 or 1.
	ErrUnsupportedSeizureCount = errors.New("dataset: unsupported number of seizures")
	// ErrNoMetric is returned when a recording has neither a metric nor
	// amplitude and frequency series.
	ErrNoMetric = errors.New("dataset: recording has no metric input")
)

// Series is a float series whose JSON nulls decode as NaN.
type Series []float64

// UnmarshalJSON decodes an array of numbers or nulls.
func (s *Series) UnmarshalJSON(b []byte) error {
	var raw []*float64
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(Series, len(raw))
	for i, v := range raw {
		if v == nil {
			out[i] = math.NaN()
		} else {
			out[i] = *v
		}
	}
	*s = out
	return nil
}

// SeizureTable lists reference seizure phase times in seconds from the start
// of the recording. Times holds the onsets of phases I1 (injection), I5
// (recovery) and I2 (seizure), in that order.
type SeizureTable struct {
	Count int       `json:"count"`
	Times []float64 `json:"times"`
}

// Reference builds the reference annotation on the test grid, which starts
// offset seconds into the recording and spans numSamples samples at fs. It
// returns the tolerance that stretches the window back to the injection.
func (st SeizureTable) Reference(fs float64, numSamples int, offset float64) (*annotation.Annotation, float64, error) {
	switch st.Count {
	case 0:
		ref, err := annotation.Empty(fs, numSamples)
		return ref, 0, err
	case 1:
		if len(st.Times) < 3 {
			return nil, 0, fmt.Errorf("seizure table needs 3 phase times, got %d", len(st.Times))
		}
		injection, recovery, onset := st.Times[0]-offset, st.Times[1]-offset, st.Times[2]-offset
		ref, err := annotation.New([]annotation.Event{{Start: onset, End: recovery}}, fs, numSamples)
		if err != nil {
			return nil, 0, err
		}
		return ref, onset - injection, nil
	}
	return nil, 0, fmt.Errorf("%w: %d", ErrUnsupportedSeizureCount, st.Count)
}

// SpikeFile holds spike sample locations on the spike detector's grid.
type SpikeFile struct {
	Reference []int `json:"reference"`
	Detected  []int `json:"detected"`
}

// RecordingFile is one recording as stored on disk.
type RecordingFile struct {
	ID string `json:"id"`
	// Metric is the ready-made detection metric on the test grid.
	Metric Series `json:"metric,omitempty"`
	// Amplitude and Frequency are full-length per-buffer series from which
	// the metric is derived when Metric is absent.
	Amplitude Series       `json:"amplitude,omitempty"`
	Frequency Series       `json:"frequency,omitempty"`
	Seizures  SeizureTable `json:"seizures"`
	Spikes    *SpikeFile   `json:"spikes,omitempty"`
}

// File is the on-disk dataset.
type File struct {
	SamplingRate float64         `json:"sampling_rate"`
	NumSamples   int             `json:"num_samples"`
	Recordings   []RecordingFile `json:"recordings"`
}

// Options carries the analysis settings that shape the loaded cohort.
type Options struct {
	Metric       metric.Parameters
	MinOverlap   float64
	ToleranceEnd float64
	// SpikeSamplingRate and SpikeTolerance (seconds) place spike locations.
	SpikeSamplingRate float64
	SpikeTolerance    float64
}

// Spikes is a recording's spike input with its scoring grid.
type Spikes struct {
	Reference []int
	Detected  []int
	Params    scoring.SpikeParams
}

// Recording is a loaded recording ready for the sweep.
type Recording struct {
	sweep.Recording
	// Spikes is nil when the recording has no spike data.
	Spikes *Spikes
}

// Dataset is a loaded cohort.
type Dataset struct {
	SamplingRate float64
	// NumSamples is the test grid length, after the baseline interval.
	NumSamples int
	Recordings []Recording
}

// SweepRecordings returns the sweep inputs in dataset order.
func (d *Dataset) SweepRecordings() []sweep.Recording {
	out := make([]sweep.Recording, len(d.Recordings))
	for i, r := range d.Recordings {
		out[i] = r.Recording
	}
	return out
}

// Load reads and builds the dataset at path.
func Load(fsys fsutil.FileSystem, path string, opts Options) (*Dataset, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("dataset file must have .json extension, got %q", ext)
	}
	data, err := fsutil.ReadCapped(fsys, cleanPath, MaxFileSize)
	if err != nil {
		return nil, err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse dataset JSON: %w", err)
	}
	ds, err := Build(f, opts)
	if err != nil {
		return nil, err
	}
	monitoring.Logf("loaded %d recordings from %s (%d test samples at %g Hz)",
		len(ds.Recordings), cleanPath, ds.NumSamples, ds.SamplingRate)
	return ds, nil
}

// Build turns a decoded File into a Dataset.
func Build(f File, opts Options) (*Dataset, error) {
	if f.SamplingRate <= 0 || f.NumSamples <= 0 {
		return nil, fmt.Errorf("dataset needs positive sampling_rate and num_samples, got %g and %d", f.SamplingRate, f.NumSamples)
	}
	if len(f.Recordings) == 0 {
		return nil, errors.New("dataset has no recordings")
	}
	baselineEnd := opts.Metric.BaselineEndIdx
	if baselineEnd < 0 || baselineEnd >= f.NumSamples {
		return nil, fmt.Errorf("baseline end %d outside recording of %d samples", baselineEnd, f.NumSamples)
	}

	ds := &Dataset{SamplingRate: f.SamplingRate, NumSamples: f.NumSamples - baselineEnd}
	offset := float64(baselineEnd) / f.SamplingRate
	seen := make(map[string]bool, len(f.Recordings))
	for i, rf := range f.Recordings {
		if rf.ID == "" {
			rf.ID = fmt.Sprintf("recording-%d", i)
		}
		if seen[rf.ID] {
			return nil, fmt.Errorf("duplicate recording id %q", rf.ID)
		}
		seen[rf.ID] = true

		rec, err := buildRecording(rf, f, ds.NumSamples, offset, opts)
		if err != nil {
			return nil, fmt.Errorf("recording %q: %w", rf.ID, err)
		}
		ds.Recordings = append(ds.Recordings, rec)
	}
	return ds, nil
}

func buildRecording(rf RecordingFile, f File, testSamples int, offset float64, opts Options) (Recording, error) {
	ref, tolStart, err := rf.Seizures.Reference(f.SamplingRate, testSamples, offset)
	if err != nil {
		return Recording{}, err
	}

	series, err := metricSeries(rf, opts.Metric)
	if err != nil {
		return Recording{}, err
	}
	if len(series) > testSamples {
		return Recording{}, fmt.Errorf("metric has %d samples, test grid has %d", len(series), testSamples)
	}

	rec := Recording{Recording: sweep.Recording{
		ID:        rf.ID,
		Metric:    series,
		Reference: ref,
		// The reference is used as annotated: no merge and no split.
		Scoring: scoring.Parameters{
			MinOverlap:               opts.MinOverlap,
			MinDurationBetweenEvents: 0,
			MaxEventDuration:         math.Inf(1),
			ToleranceStart:           tolStart,
			ToleranceEnd:             opts.ToleranceEnd,
		},
	}}
	if rf.Spikes != nil {
		rec.Spikes = &Spikes{
			Reference: rf.Spikes.Reference,
			Detected:  rf.Spikes.Detected,
			Params:    spikeParams(f, opts),
		}
	}
	return rec, nil
}

func metricSeries(rf RecordingFile, p metric.Parameters) ([]float64, error) {
	if len(rf.Metric) > 0 {
		return rf.Metric, nil
	}
	if len(rf.Amplitude) == 0 || len(rf.Frequency) == 0 {
		return nil, ErrNoMetric
	}
	return metric.Compute(rf.Amplitude, rf.Frequency, p)
}

// spikeParams maps the metric grid's baseline start and duration onto the
// spike detector's grid.
func spikeParams(f File, opts Options) scoring.SpikeParams {
	ratio := opts.SpikeSamplingRate / f.SamplingRate
	duration := float64(f.NumSamples) / f.SamplingRate
	return scoring.SpikeParams{
		Tolerance:       int(math.RoundToEven(opts.SpikeTolerance * opts.SpikeSamplingRate)),
		RecordingLength: int(math.RoundToEven(duration * opts.SpikeSamplingRate)),
		StartLoc:        int(float64(opts.Metric.BaselineStartIdx) * ratio),
	}
}
