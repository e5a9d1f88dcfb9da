package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
)

func mustAnnotation(t *testing.T, fs float64, n int, events ...annotation.Event) *annotation.Annotation {
	t.Helper()
	a, err := annotation.New(events, fs, n)
	require.NoError(t, err)
	return a
}

func ev(start, end float64) annotation.Event {
	return annotation.Event{Start: start, End: end}
}

func TestScoreAgainstItself(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 1, 100, ev(10, 20), ev(50, 60))
	rec, err := ScoreRecording(ref, ref, Parameters{})
	require.NoError(t, err)

	assert.Equal(t, Counts{TP: 2, FP: 0, RefTrue: 2, Duration: 99}, rec.Event)
	assert.Equal(t, Counts{TP: 20, FP: 0, RefTrue: 20, Duration: 99}, rec.Sample)
	assert.Equal(t, 0.0, rec.DetectionDelay)

	agg := Reduce([]Recording{rec})
	assert.Equal(t, 1.0, agg.EventSensitivity)
	assert.Equal(t, 1.0, agg.EventPrecision)
	assert.Equal(t, 1.0, agg.EventF1)
	assert.Equal(t, 0.0, agg.EventFPRate)
	assert.Equal(t, 1.0, agg.SampleF1)
}

func TestScoreEventsTolerance(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 1, 100, ev(50, 60))
	early := mustAnnotation(t, 1, 100, ev(45, 48))

	t.Run("inside tolerance window is a true positive", func(t *testing.T) {
		t.Parallel()
		res, err := ScoreEvents(ref, early, Parameters{ToleranceStart: 10})
		require.NoError(t, err)
		assert.Equal(t, 1, res.TP)
		assert.Equal(t, 0, res.FP)
		assert.Equal(t, 1, res.RefTrue)
		require.Len(t, res.Delays, 1)
		assert.Equal(t, -5.0, res.Delays[0])
		assert.True(t, res.TPMask[45])
		assert.False(t, res.TPMask[44])
		assert.False(t, res.TPMask[50])
	})

	t.Run("without tolerance it is a miss and a false alarm", func(t *testing.T) {
		t.Parallel()
		res, err := ScoreEvents(ref, early, Parameters{})
		require.NoError(t, err)
		assert.Equal(t, 0, res.TP)
		assert.Equal(t, 1, res.FP)
		assert.Empty(t, res.Delays)
	})
}

func TestDetectionDelay(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 2, 200, ev(50, 60))

	tests := []struct {
		name   string
		hyp    annotation.Event
		params Parameters
		want   float64
	}{
		{"late onset", ev(53, 70), Parameters{ToleranceEnd: 5}, 3},
		{"already high at window entry", ev(30, 70), Parameters{ToleranceStart: 5}, 0},
		{"early onset inside tolerance", ev(47.5, 52), Parameters{ToleranceStart: 5}, -2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			hyp := mustAnnotation(t, 2, 200, tt.hyp)
			res, err := ScoreEvents(ref, hyp, tt.params)
			require.NoError(t, err)
			require.Len(t, res.Delays, 1)
			assert.InDelta(t, tt.want, res.Delays[0], 1e-12)
		})
	}
}

func TestScoreEventsMinOverlap(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 1, 100, ev(50, 60))
	hyp := mustAnnotation(t, 1, 100, ev(58, 70))

	res, err := ScoreEvents(ref, hyp, Parameters{MinOverlap: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, res.TP)
	assert.Equal(t, 0, res.FP, "hypothesis still overlaps the window")

	res, err = ScoreEvents(ref, hyp, Parameters{MinOverlap: 0.2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TP)
}

func TestScoreEventsPostProcessesHypothesis(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 1, 100, ev(10, 20))
	hyp := mustAnnotation(t, 1, 100, ev(0, 100))

	res, err := ScoreEvents(ref, hyp, Parameters{MaxEventDuration: 25})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TP)
	assert.Equal(t, 3, res.FP)

	split := mustAnnotation(t, 1, 100, ev(10, 12), ev(13, 15), ev(80, 82))
	res, err = ScoreEvents(ref, split, Parameters{MinDurationBetweenEvents: 2})
	require.NoError(t, err)
	assert.Equal(t, 1, res.TP)
	assert.Equal(t, 1, res.FP)
}

func TestScoreEventsSplitCountsEveryPieceOnce(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		fs          float64
		n           int
		end         float64
		maxDuration float64
		wantFP      int
	}{
		{"1.5s by 0.3s", 2, 20, 1.5, 0.3, 5},
		{"7s by 0.7s", 10, 100, 7, 0.7, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ref, err := annotation.Empty(tt.fs, tt.n)
			require.NoError(t, err)
			hyp := mustAnnotation(t, tt.fs, tt.n, ev(0, tt.end))

			res, err := ScoreEvents(ref, hyp, Parameters{MaxEventDuration: tt.maxDuration})
			require.NoError(t, err)
			assert.Equal(t, 0, res.TP)
			assert.Equal(t, tt.wantFP, res.FP)
		})
	}
}

func TestScoreRejectsGridMismatch(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 1, 100)
	hyp := mustAnnotation(t, 2, 100)

	_, err := ScoreEvents(ref, hyp, Parameters{})
	assert.ErrorIs(t, err, ErrGridMismatch)
	_, err = ScoreSamples(ref, hyp)
	assert.ErrorIs(t, err, ErrGridMismatch)
	_, err = ScoreRecording(ref, hyp, Parameters{})
	assert.ErrorIs(t, err, ErrGridMismatch)
}

func TestScoreSamples(t *testing.T) {
	t.Parallel()

	ref := mustAnnotation(t, 1, 50, ev(10, 20))
	hyp := mustAnnotation(t, 1, 50, ev(15, 30))

	res, err := ScoreSamples(ref, hyp)
	require.NoError(t, err)
	assert.Equal(t, 5, res.TP)
	assert.Equal(t, 10, res.FP)
	assert.Equal(t, 10, res.RefTrue)
	assert.Equal(t, 49.0, res.Duration)
}

func TestRatios(t *testing.T) {
	t.Parallel()

	nan := math.NaN()
	tests := []struct {
		name                string
		tp, fp, refTrue     int
		duration            float64
		sens, prec, f1, fpr float64
	}{
		{"nothing to score", 0, 0, 0, 86400, nan, nan, nan, 0},
		{"all wrong", 0, 2, 3, 86400, 0, 0, 0, 2},
		{"half right", 2, 2, 4, 43200, 0.5, 0.5, 0.5, 4},
		{"no hypothesis", 0, 0, 2, 86400, 0, nan, nan, 0},
		{"no duration", 1, 1, 1, 0, 1, 0.5, 2.0 / 3.0, nan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := Ratios(tt.tp, tt.fp, tt.refTrue, tt.duration)
			assertNaNOrInDelta(t, tt.sens, r.Sensitivity, "sensitivity")
			assertNaNOrInDelta(t, tt.prec, r.Precision, "precision")
			assertNaNOrInDelta(t, tt.f1, r.F1, "f1")
			assertNaNOrInDelta(t, tt.fpr, r.FPRate, "fp rate")
		})
	}
}

func assertNaNOrInDelta(t *testing.T, want, got float64, field string) {
	t.Helper()
	if math.IsNaN(want) {
		assert.True(t, math.IsNaN(got), "%s = %v, want NaN", field, got)
		return
	}
	assert.InDelta(t, want, got, 1e-12, field)
}

func TestNanMean(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 0.7, NanMean([]float64{math.NaN(), 0.8, 0.6}), 1e-12)
	assert.True(t, math.IsNaN(NanMean([]float64{math.NaN(), math.NaN()})))
	assert.True(t, math.IsNaN(NanMean(nil)))
	assert.Equal(t, 2.0, NanMean([]float64{1, 3}))
}

func TestReduceSkipsUndefinedRecordings(t *testing.T) {
	t.Parallel()

	recs := []Recording{
		{Event: Counts{TP: 1, RefTrue: 1, Duration: 86400}, DetectionDelay: 2},
		{Event: Counts{Duration: 86400}, DetectionDelay: math.NaN()},
		{Event: Counts{FP: 2, Duration: 86400}, DetectionDelay: math.NaN()},
	}
	agg := Reduce(recs)
	assert.Equal(t, 1.0, agg.EventSensitivity)
	assert.Equal(t, 0.5, agg.EventPrecision)
	assert.Equal(t, 1.0, agg.EventF1)
	assert.InDelta(t, 2.0/3.0, agg.EventFPRate, 1e-12)
	assert.Equal(t, 2.0, agg.DetectionDelay)
	assert.True(t, math.IsNaN(agg.SampleSensitivity))

	empty := Reduce(nil)
	assert.True(t, math.IsNaN(empty.EventSensitivity))
}

func TestObjectives(t *testing.T) {
	t.Parallel()

	for _, o := range Objectives() {
		got, err := ParseObjective(o.String())
		require.NoError(t, err)
		assert.Equal(t, o, got)
	}

	camel := map[string]Objective{
		"eventSensitivity": EventSensitivity,
		"eventPrecision":   EventPrecision,
		"eventFPRate":      EventFPRate,
		"detectionDelay":   DetectionDelay,
		" sample_f1 ":      SampleF1,
	}
	for name, want := range camel {
		got, err := ParseObjective(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseObjective("auc")
	assert.Error(t, err)

	s := AggregateScore{EventPrecision: 0.25, DetectionDelay: 7}
	assert.Equal(t, 0.25, s.Value(EventPrecision))
	assert.Equal(t, 7.0, s.Value(DetectionDelay))
	assert.True(t, math.IsNaN(s.Value(Objective(99))))
	assert.Equal(t, "Objective(99)", Objective(99).String())

	text, err := SampleFPRate.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "sample_fp_rate", string(text))
	_, err = Objective(99).MarshalText()
	assert.Error(t, err)

	var o Objective
	require.NoError(t, o.UnmarshalText([]byte("eventF1")))
	assert.Equal(t, EventF1, o)
	assert.Error(t, o.UnmarshalText([]byte("auc")))
}

func TestRMSScore(t *testing.T) {
	t.Parallel()

	metric := []float64{1, 1, 1, 1, 3, 3, 1, math.NaN(), 1, 1}
	ref := mustAnnotation(t, 1, 10, ev(4, 6))
	p := Parameters{ToleranceStart: 1, ToleranceEnd: 1}

	baseline := BaselineMask(ref, p)
	assert.Equal(t, []bool{true, true, true, false, false, false, false, true, true, true}, baseline)
	assert.InDelta(t, 3.0, RMSScore(metric, ref, p), 1e-12)
	assert.InDelta(t, 20*math.Log10(3), Decibels(RMSScore(metric, ref, p)), 1e-12)

	none := mustAnnotation(t, 1, 10)
	assert.True(t, math.IsNaN(RMSScore(metric, none, p)))
	assert.True(t, math.IsNaN(Decibels(0)))
}

func TestScoreSpikes(t *testing.T) {
	t.Parallel()

	s := ScoreSpikes([]int{10, 50}, []int{11, 30, 51, 5}, SpikeParams{Tolerance: 2, RecordingLength: 100, StartLoc: 8})
	assert.Equal(t, 2, s.TP)
	assert.Equal(t, 1, s.FP)
	assert.Equal(t, 1.0, s.Sensitivity)
	assert.InDelta(t, 2.0/3.0, s.Precision, 1e-12)
	assert.InDelta(t, 0.8, s.F1, 1e-12)

	empty := ScoreSpikes(nil, nil, SpikeParams{RecordingLength: 10})
	assert.True(t, math.IsNaN(empty.Sensitivity))
	assert.True(t, math.IsNaN(empty.Precision))
}
