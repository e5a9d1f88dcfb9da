package scoring

import (
	"math"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
)

// BaselineMask marks the samples outside every tolerance-widened reference
// event. Reference extension here rounds the widened bounds directly onto the
// grid, clamped to the recording.
func BaselineMask(ref *annotation.Annotation, p Parameters) []bool {
	n := ref.NumSamples()
	fs := ref.SamplingRate()
	baseline := make([]bool, n)
	for i := range baseline {
		baseline[i] = true
	}
	for _, e := range ref.Events() {
		start := annotation.SampleIndex(e.Start-p.ToleranceStart, fs, n)
		end := annotation.SampleIndex(e.End+p.ToleranceEnd, fs, n)
		for i := start; i < end; i++ {
			baseline[i] = false
		}
	}
	return baseline
}

// RMSScore is the ratio of the metric's RMS over reference event samples to
// its RMS over baseline samples. NaN samples are skipped. The score is NaN
// when the recording has no reference events or either RMS is undefined.
func RMSScore(metric []float64, ref *annotation.Annotation, p Parameters) float64 {
	if ref.Len() == 0 {
		return math.NaN()
	}
	seizure := ref.Mask()
	baseline := BaselineMask(ref, p)

	rmsSeizure := maskedRMS(metric, seizure)
	rmsBaseline := maskedRMS(metric, baseline)
	if math.IsNaN(rmsSeizure) || math.IsNaN(rmsBaseline) || rmsBaseline == 0 {
		return math.NaN()
	}
	return rmsSeizure / rmsBaseline
}

// maskedRMS is sqrt(nanmean(x^2)) over the samples selected by mask.
func maskedRMS(x []float64, mask []bool) float64 {
	sq := make([]float64, 0, len(x))
	for i, sel := range mask {
		if sel && i < len(x) {
			sq = append(sq, x[i]*x[i])
		}
	}
	return math.Sqrt(NanMean(sq))
}

// Decibels converts an amplitude ratio to dB (20*log10). Non-positive or NaN
// ratios yield NaN.
func Decibels(ratio float64) float64 {
	if math.IsNaN(ratio) || ratio <= 0 {
		return math.NaN()
	}
	return 20 * math.Log10(ratio)
}
