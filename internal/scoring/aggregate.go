package scoring

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
)

const secondsPerDay = 24 * 3600

// Counts are the confusion counts of one recording at one granularity.
type Counts struct {
	TP       int     `json:"tp"`
	FP       int     `json:"fp"`
	RefTrue  int     `json:"ref_true"`
	Duration float64 `json:"duration"`
}

// Ratio holds the derived scores of a set of confusion counts. Undefined
// ratios are NaN.
type Ratio struct {
	Sensitivity float64 `json:"sensitivity"`
	Precision   float64 `json:"precision"`
	F1          float64 `json:"f1"`
	FPRate      float64 `json:"fp_rate"` // false positives per day
}

// Ratio computes sensitivity, precision, F1 and FP rate.
func (c Counts) Ratio() Ratio {
	return Ratios(c.TP, c.FP, c.RefTrue, c.Duration)
}

// Ratios computes the scores of one recording:
//
//	sensitivity = tp/refTrue          NaN when refTrue == 0
//	precision   = tp/(tp+fp)          NaN when tp+fp == 0
//	f1          = harmonic mean       NaN if either is NaN, 0 if both are 0
//	fpRate      = fp/(duration/86400) NaN when duration <= 0
func Ratios(tp, fp, refTrue int, duration float64) Ratio {
	r := Ratio{
		Sensitivity: math.NaN(),
		Precision:   math.NaN(),
		F1:          math.NaN(),
		FPRate:      math.NaN(),
	}
	if refTrue > 0 {
		r.Sensitivity = float64(tp) / float64(refTrue)
	}
	if tp+fp > 0 {
		r.Precision = float64(tp) / float64(tp+fp)
	}
	switch {
	case math.IsNaN(r.Sensitivity) || math.IsNaN(r.Precision):
	case r.Sensitivity+r.Precision == 0:
		r.F1 = 0
	default:
		r.F1 = 2 * r.Sensitivity * r.Precision / (r.Sensitivity + r.Precision)
	}
	if duration > 0 {
		r.FPRate = float64(fp) / (duration / secondsPerDay)
	}
	return r
}

// Recording is the score of one hypothesis against one reference.
type Recording struct {
	Event  Counts `json:"event"`
	Sample Counts `json:"sample"`
	// DetectionDelay is the mean delay over true-positive reference events,
	// NaN when there are none.
	DetectionDelay float64 `json:"detection_delay"`
}

// ScoreRecording runs event and sample scoring for one recording.
func ScoreRecording(ref, hyp *annotation.Annotation, p Parameters) (Recording, error) {
	ev, err := ScoreEvents(ref, hyp, p)
	if err != nil {
		return Recording{}, fmt.Errorf("event scoring: %w", err)
	}
	smp, err := ScoreSamples(ref, hyp)
	if err != nil {
		return Recording{}, fmt.Errorf("sample scoring: %w", err)
	}
	return Recording{
		Event:          ev.Counts(),
		Sample:         smp.Counts(),
		DetectionDelay: NanMean(ev.Delays),
	}, nil
}

// AggregateScore is the cohort-level reduction of per-recording scores.
type AggregateScore struct {
	EventSensitivity  float64 `json:"event_sensitivity"`
	EventPrecision    float64 `json:"event_precision"`
	EventF1           float64 `json:"event_f1"`
	EventFPRate       float64 `json:"event_fp_rate"`
	SampleSensitivity float64 `json:"sample_sensitivity"`
	SamplePrecision   float64 `json:"sample_precision"`
	SampleF1          float64 `json:"sample_f1"`
	SampleFPRate      float64 `json:"sample_fp_rate"`
	DetectionDelay    float64 `json:"detection_delay"`
}

// Reduce averages per-recording ratios with NanMean, field by field.
func Reduce(recordings []Recording) AggregateScore {
	n := len(recordings)
	cols := make([][]float64, numObjectives)
	for i := range cols {
		cols[i] = make([]float64, n)
	}
	for k, rec := range recordings {
		ev := rec.Event.Ratio()
		smp := rec.Sample.Ratio()
		cols[EventSensitivity][k] = ev.Sensitivity
		cols[EventPrecision][k] = ev.Precision
		cols[EventF1][k] = ev.F1
		cols[EventFPRate][k] = ev.FPRate
		cols[SampleSensitivity][k] = smp.Sensitivity
		cols[SamplePrecision][k] = smp.Precision
		cols[SampleF1][k] = smp.F1
		cols[SampleFPRate][k] = smp.FPRate
		cols[DetectionDelay][k] = rec.DetectionDelay
	}
	return AggregateScore{
		EventSensitivity:  NanMean(cols[EventSensitivity]),
		EventPrecision:    NanMean(cols[EventPrecision]),
		EventF1:           NanMean(cols[EventF1]),
		EventFPRate:       NanMean(cols[EventFPRate]),
		SampleSensitivity: NanMean(cols[SampleSensitivity]),
		SamplePrecision:   NanMean(cols[SamplePrecision]),
		SampleF1:          NanMean(cols[SampleF1]),
		SampleFPRate:      NanMean(cols[SampleFPRate]),
		DetectionDelay:    NanMean(cols[DetectionDelay]),
	}
}

// NanMean returns the mean of the non-NaN values of xs, or NaN when xs is
// empty or entirely NaN.
func NanMean(xs []float64) float64 {
	vals := make([]float64, 0, len(xs))
	for _, v := range xs {
		if !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}
