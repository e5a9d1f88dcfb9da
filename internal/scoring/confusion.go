// Package scoring compares hypothesis annotations against reference
// annotations at event and sample granularity, and reduces per-recording
// confusion counts into cohort-level scores.
package scoring

import (
	"errors"
	"fmt"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
)

// ErrGridMismatch is returned when reference and hypothesis are defined over
// different sample grids.
var ErrGridMismatch = errors.New("scoring: reference and hypothesis sample grids differ")

// Parameters controls event scoring.
type Parameters struct {
	// MinOverlap is the fraction of a reference event that must be covered by
	// the hypothesis for a true positive. Zero means any overlap counts.
	MinOverlap float64 `json:"min_overlap"`
	// Hypothesis events closer than this (seconds) are merged before scoring.
	MinDurationBetweenEvents float64 `json:"min_duration_between_events"`
	// Hypothesis events longer than this (seconds) are split before scoring.
	// Non-positive disables splitting.
	MaxEventDuration float64 `json:"max_event_duration"`
	ToleranceStart   float64 `json:"tolerance_start"`
	ToleranceEnd     float64 `json:"tolerance_end"`
}

// ConfusionResult holds the confusion counts of one recording.
type ConfusionResult struct {
	TP      int
	FP      int
	RefTrue int
	// Duration is the recording length in seconds used for FP rates.
	Duration float64
	// TPMask marks hypothesis samples counted towards a true positive.
	TPMask []bool
	// Delays holds one detection delay (seconds) per true-positive reference
	// event. Only populated by ScoreEvents.
	Delays []float64
}

// Counts strips the masks, keeping only what reduction needs.
func (c ConfusionResult) Counts() Counts {
	return Counts{TP: c.TP, FP: c.FP, RefTrue: c.RefTrue, Duration: c.Duration}
}

// RecordingDuration returns the scoring duration in seconds of a recording of
// numSamples samples: the span from the first to the last sample.
func RecordingDuration(numSamples int, fs float64) float64 {
	if numSamples <= 1 || fs <= 0 {
		return 0
	}
	return float64(numSamples-1) / fs
}

func checkGrid(ref, hyp *annotation.Annotation) error {
	if !ref.SameGrid(hyp) {
		return fmt.Errorf("%w: ref %d@%gHz, hyp %d@%gHz", ErrGridMismatch,
			ref.NumSamples(), ref.SamplingRate(), hyp.NumSamples(), hyp.SamplingRate())
	}
	return nil
}

// ScoreEvents scores hyp against ref at event granularity.
//
// The hypothesis is first merged and split according to p. Each reference
// event is widened by the start/end tolerances (clamped to the recording) to
// form its scoring window. A reference event is a true positive when the
// hypothesis covers at least MinOverlap of its own length inside that window.
// A hypothesis event is a false positive when it overlaps no window.
func ScoreEvents(ref, hyp *annotation.Annotation, p Parameters) (ConfusionResult, error) {
	if err := checkGrid(ref, hyp); err != nil {
		return ConfusionResult{}, err
	}
	hyp = hyp.MergeNeighbouring(p.MinDurationBetweenEvents).SplitLong(p.MaxEventDuration)

	fs := ref.SamplingRate()
	n := ref.NumSamples()
	hypMask := hyp.Mask()
	refIntervals := ref.Intervals()
	extended := ref.Extend(p.ToleranceStart, p.ToleranceEnd)
	windows := extended.Intervals()

	res := ConfusionResult{
		RefTrue:  len(refIntervals),
		Duration: RecordingDuration(n, fs),
		TPMask:   make([]bool, n),
	}

	for k, refIv := range refIntervals {
		w := windows[k]
		overlap := 0
		for i := w.Start; i < w.End; i++ {
			if hypMask[i] {
				overlap++
			}
		}
		if !overlapQualifies(overlap, refIv.Len(), p.MinOverlap) {
			continue
		}
		res.TP++
		for i := w.Start; i < w.End; i++ {
			if hypMask[i] {
				res.TPMask[i] = true
			}
		}
		res.Delays = append(res.Delays, detectionDelay(hypMask, w, refIv.Start, fs))
	}

	windowEvents := extended.Events()
	for _, h := range hyp.Events() {
		hit := false
		for _, w := range windowEvents {
			if h.Start < w.End && w.Start < h.End {
				hit = true
				break
			}
		}
		if !hit {
			res.FP++
		}
	}

	return res, nil
}

// overlapQualifies decides whether overlap hypothesis samples inside a window
// make a true positive for a reference event of refLen samples.
func overlapQualifies(overlap, refLen int, minOverlap float64) bool {
	if overlap == 0 {
		return false
	}
	if minOverlap <= 0 || refLen <= 0 {
		return true
	}
	frac := float64(overlap) / float64(refLen)
	if frac > 1 {
		frac = 1
	}
	return frac >= minOverlap
}

// detectionDelay returns the time in seconds from the reference onset to the
// first rising edge of the hypothesis inside window w, or 0 when the
// hypothesis is already high at the start of the window.
func detectionDelay(hypMask []bool, w annotation.Interval, refStart int, fs float64) float64 {
	if w.Len() <= 0 || hypMask[w.Start] {
		return 0
	}
	for i := w.Start + 1; i < w.End; i++ {
		if hypMask[i] && !hypMask[i-1] {
			return float64(i-refStart) / fs
		}
	}
	return 0
}

// ScoreSamples scores hyp against ref sample by sample. RefTrue counts the
// reference's true samples.
func ScoreSamples(ref, hyp *annotation.Annotation) (ConfusionResult, error) {
	if err := checkGrid(ref, hyp); err != nil {
		return ConfusionResult{}, err
	}
	refMask := ref.Mask()
	hypMask := hyp.Mask()
	res := ConfusionResult{
		Duration: RecordingDuration(ref.NumSamples(), ref.SamplingRate()),
		TPMask:   make([]bool, len(refMask)),
	}
	for i, r := range refMask {
		h := hypMask[i]
		switch {
		case r && h:
			res.TP++
			res.TPMask[i] = true
		case h:
			res.FP++
		}
		if r {
			res.RefTrue++
		}
	}
	return res, nil
}
