// Package detection applies two-stage thresholding to a scalar metric series
// to produce candidate event intervals.
package detection

import (
	"fmt"
	"math"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
)

// Parameters controls the two-stage threshold detector.
type Parameters struct {
	Threshold         float64 `json:"threshold"`
	MinDuration       float64 `json:"min_duration"` // seconds
	DetectionStartIdx int     `json:"detection_start_idx"`
}

// DefaultParameters returns the detector defaults.
func DefaultParameters() Parameters {
	return Parameters{
		Threshold:         20,
		MinDuration:       2,
		DetectionStartIdx: 2400,
	}
}

// MinSamples is the number of consecutive above-threshold samples required
// before an event is reported: floor(MinDuration * fs).
func (p Parameters) MinSamples(fs float64) int {
	n := math.Floor(p.MinDuration * fs)
	if n < 0 || math.IsNaN(n) {
		return 0
	}
	return int(n)
}

// PostProcessing holds the event merge/split constraints applied to detected
// events before scoring.
type PostProcessing struct {
	MinDurationBetweenEvents float64 `json:"min_duration_between_events"`
	MaxEventDuration         float64 `json:"max_event_duration"`
}

// Detect returns half-open sample intervals of detected events.
//
// Samples before DetectionStartIdx are ignored. A sample is above threshold
// when series[i] > Threshold (NaN never is). Every maximal above-threshold run
// at least MinSamples long yields [runStart+MinSamples, runEnd): the onset is
// reported only once the minimum duration has elapsed, so it carries the
// detector's latency. A run of exactly MinSamples yields an empty interval.
func Detect(series []float64, fs float64, p Parameters) []annotation.Interval {
	offset := p.DetectionStartIdx
	if offset < 0 {
		offset = 0
	}
	if offset >= len(series) {
		return nil
	}
	window := series[offset:]

	minSamples := p.MinSamples(fs)
	if minSamples > len(window) {
		return nil
	}

	above := make([]bool, len(window))
	for i, v := range window {
		above[i] = v > p.Threshold
	}

	var detected []annotation.Interval
	for _, run := range annotation.Runs(above) {
		if run.Len() < minSamples {
			continue
		}
		detected = append(detected, annotation.Interval{
			Start: offset + run.Start + minSamples,
			End:   offset + run.End,
		})
	}
	return detected
}

// Hypothesis runs Detect and turns the result into an Annotation on a grid of
// numSamples samples, then merges neighbouring events and splits long ones.
// Empty intervals cover no samples and are dropped.
func Hypothesis(series []float64, fs float64, numSamples int, p Parameters, post PostProcessing) (*annotation.Annotation, error) {
	hyp, err := annotation.FromIntervals(Detect(series, fs, p), fs, numSamples)
	if err != nil {
		return nil, fmt.Errorf("building hypothesis annotation: %w", err)
	}
	return hyp.MergeNeighbouring(post.MinDurationBetweenEvents).SplitLong(post.MaxEventDuration), nil
}
