// Package report turns a cross-validated sweep into per-subject results:
// a CSV table, PNG plots and an HTML page of the Pareto fronts.
package report

import (
	"fmt"
	"math"

	"github.com/banshee-data/seizure-classifier/internal/dataset"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
)

// MeanSubject labels the cohort mean row.
const MeanSubject = "Mean"

// SubjectRow is the test result of one held-out recording.
type SubjectRow struct {
	Subject     string
	Threshold   float64 // NaN when the fold selected nothing
	MinDuration float64
	Spike       scoring.SpikeScore
	// RMSRatio is the event-to-baseline metric RMS ratio; RMSdB is the same
	// in decibels.
	RMSRatio float64
	RMSdB    float64
	Score    scoring.AggregateScore
	TestAUC  float64
}

// Summary is the per-subject table with its cohort mean.
type Summary struct {
	Rows []SubjectRow
	Mean SubjectRow
}

// noSpikes is the spike score of a recording without spike data.
var noSpikes = scoring.SpikeScore{Sensitivity: math.NaN(), Precision: math.NaN(), F1: math.NaN()}

// Summarise builds one row per fold, in fold order, from a run over ds.
func Summarise(res *sweep.Result, ds *dataset.Dataset) (*Summary, error) {
	if len(res.Recordings) != len(ds.Recordings) {
		return nil, fmt.Errorf("run has %d recordings, dataset has %d", len(res.Recordings), len(ds.Recordings))
	}
	s := &Summary{Rows: make([]SubjectRow, 0, len(res.Folds))}
	for _, fr := range res.Folds {
		rec := ds.Recordings[fr.Fold.Test]
		if rec.ID != res.Recordings[fr.Fold.Test] {
			return nil, fmt.Errorf("fold %d tests %q but dataset has %q", fr.Fold.ID, res.Recordings[fr.Fold.Test], rec.ID)
		}
		row := SubjectRow{
			Subject:     rec.ID,
			Threshold:   math.NaN(),
			MinDuration: math.NaN(),
			Spike:       noSpikes,
			Score:       fr.TestScore,
			TestAUC:     fr.TestAUC,
		}
		if fr.Selection.OK {
			row.Threshold, row.MinDuration = fr.Selected.Threshold, fr.Selected.MinDuration
		}
		if rec.Spikes != nil {
			row.Spike = scoring.ScoreSpikes(rec.Spikes.Reference, rec.Spikes.Detected, rec.Spikes.Params)
		}
		row.RMSRatio = scoring.RMSScore(rec.Metric, rec.Reference, rec.Scoring)
		row.RMSdB = scoring.Decibels(row.RMSRatio)
		s.Rows = append(s.Rows, row)
	}
	s.Mean = meanRow(s.Rows)
	return s, nil
}

// meanRow averages every column with NaN-skipping means. The RMS mean is
// taken over the ratios and then converted to decibels.
func meanRow(rows []SubjectRow) SubjectRow {
	col := func(f func(SubjectRow) float64) float64 {
		vals := make([]float64, len(rows))
		for i, r := range rows {
			vals[i] = f(r)
		}
		return scoring.NanMean(vals)
	}
	m := SubjectRow{
		Subject:     MeanSubject,
		Threshold:   col(func(r SubjectRow) float64 { return r.Threshold }),
		MinDuration: col(func(r SubjectRow) float64 { return r.MinDuration }),
		Spike: scoring.SpikeScore{
			Sensitivity: col(func(r SubjectRow) float64 { return r.Spike.Sensitivity }),
			Precision:   col(func(r SubjectRow) float64 { return r.Spike.Precision }),
			F1:          col(func(r SubjectRow) float64 { return r.Spike.F1 }),
		},
		RMSRatio: col(func(r SubjectRow) float64 { return r.RMSRatio }),
		TestAUC:  col(func(r SubjectRow) float64 { return r.TestAUC }),
	}
	m.RMSdB = scoring.Decibels(m.RMSRatio)
	for _, o := range scoring.Objectives() {
		setValue(&m.Score, o, col(func(r SubjectRow) float64 { return r.Score.Value(o) }))
	}
	return m
}

func setValue(s *scoring.AggregateScore, o scoring.Objective, v float64) {
	switch o {
	case scoring.EventSensitivity:
		s.EventSensitivity = v
	case scoring.EventPrecision:
		s.EventPrecision = v
	case scoring.EventF1:
		s.EventF1 = v
	case scoring.EventFPRate:
		s.EventFPRate = v
	case scoring.SampleSensitivity:
		s.SampleSensitivity = v
	case scoring.SamplePrecision:
		s.SamplePrecision = v
	case scoring.SampleF1:
		s.SampleF1 = v
	case scoring.SampleFPRate:
		s.SampleFPRate = v
	case scoring.DetectionDelay:
		s.DetectionDelay = v
	}
}
