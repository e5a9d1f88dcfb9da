// Package metric derives the seizure detection metric from per-buffer spike
// amplitude and firing-rate series.
//
// Each series is compared against its own recent history with two trailing
// windows: a short foreground window ending at the current sample and a long
// background window ending where the foreground starts. The resulting
// slopes are normalised by their spread over the baseline interval and
// combined multiplicatively, so the metric only rises when amplitude and
// firing rate increase together.
package metric

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/seizure-classifier/internal/scoring"
)

// ErrShortSeries is returned when the input does not reach the end of the
// baseline interval.
var ErrShortSeries = errors.New("metric: series shorter than baseline interval")

// Parameters sizes the sliding windows and locates the baseline interval.
type Parameters struct {
	FgSize           int `json:"fg_size"`
	BgSize           int `json:"bg_size"`
	BaselineStartIdx int `json:"baseline_start_idx"`
	BaselineEndIdx   int `json:"baseline_end_idx"`
}

// DefaultParameters returns windows of 20 and 180 samples over a baseline
// spanning samples [201, 700).
func DefaultParameters() Parameters {
	return Parameters{FgSize: 20, BgSize: 180, BaselineStartIdx: 201, BaselineEndIdx: 700}
}

// firstSlopeIdx is the first sample with both windows full.
func (p Parameters) firstSlopeIdx() int {
	return p.BaselineStartIdx + p.FgSize + p.BgSize
}

// Validate checks the window layout.
func (p Parameters) Validate() error {
	if p.FgSize <= 0 || p.BgSize <= 0 {
		return fmt.Errorf("metric windows must be positive, got fg=%d bg=%d", p.FgSize, p.BgSize)
	}
	if p.BaselineStartIdx < 0 {
		return fmt.Errorf("baseline start %d is negative", p.BaselineStartIdx)
	}
	if p.firstSlopeIdx() >= p.BaselineEndIdx {
		return fmt.Errorf("baseline [%d, %d) is too short for windows fg=%d bg=%d",
			p.BaselineStartIdx, p.BaselineEndIdx, p.FgSize, p.BgSize)
	}
	return nil
}

// Slopes holds the relative variation of each input series and the
// foreground window means. Samples before the first full window are 0.
type Slopes struct {
	Amplitude       []float64
	Frequency       []float64
	AmplitudeSmooth []float64
	FrequencySmooth []float64
}

// ComputeSlopes computes foreground/background NaN-mean ratios of amp and
// freq at every sample from the baseline start onwards.
func ComputeSlopes(amp, freq []float64, p Parameters) (Slopes, error) {
	if len(amp) != len(freq) {
		return Slopes{}, fmt.Errorf("metric: amplitude has %d samples, frequency has %d", len(amp), len(freq))
	}
	if err := p.Validate(); err != nil {
		return Slopes{}, err
	}
	n := len(amp)
	s := Slopes{
		Amplitude:       make([]float64, n),
		Frequency:       make([]float64, n),
		AmplitudeSmooth: make([]float64, n),
		FrequencySmooth: make([]float64, n),
	}
	for i := p.firstSlopeIdx(); i < n; i++ {
		bgLo, fgLo := i-p.FgSize-p.BgSize+1, i-p.FgSize+1
		fgAmp := scoring.NanMean(amp[fgLo : i+1])
		fgFreq := scoring.NanMean(freq[fgLo : i+1])
		s.Amplitude[i] = fgAmp / scoring.NanMean(amp[bgLo:fgLo])
		s.Frequency[i] = fgFreq / scoring.NanMean(freq[bgLo:fgLo])
		s.AmplitudeSmooth[i] = fgAmp
		s.FrequencySmooth[i] = fgFreq
	}
	return s, nil
}

// Compute returns the detection metric from the baseline end onwards: a
// series of len(amp)-BaselineEndIdx samples. Each slope is centred on 1 and
// scaled by its population standard deviation over
// [firstSlopeIdx, BaselineEndIdx); the metric is (a+1)*(f+1).
func Compute(amp, freq []float64, p Parameters) ([]float64, error) {
	slopes, err := ComputeSlopes(amp, freq, p)
	if err != nil {
		return nil, err
	}
	if len(amp) < p.BaselineEndIdx {
		return nil, fmt.Errorf("%w: %d samples, baseline ends at %d", ErrShortSeries, len(amp), p.BaselineEndIdx)
	}

	lo, hi := p.firstSlopeIdx(), p.BaselineEndIdx
	ampStd := stat.PopStdDev(slopes.Amplitude[lo:hi], nil)
	freqStd := stat.PopStdDev(slopes.Frequency[lo:hi], nil)

	out := make([]float64, len(amp)-hi)
	for k := range out {
		a := (slopes.Amplitude[hi+k] - 1) / ampStd
		f := (slopes.Frequency[hi+k] - 1) / freqStd
		out[k] = (a + 1) * (f + 1)
	}
	return out, nil
}
