package annotation

import "math"

// Interval is a half-open sample index range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Len returns the number of samples covered.
func (iv Interval) Len() int {
	return iv.End - iv.Start
}

// Overlaps reports whether the two intervals share at least one sample.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start < other.End && other.Start < iv.End
}

// SampleIndex converts a time in seconds to a sample index on a grid of
// numSamples samples at fs Hz. Halves round to even and the result is
// clamped to [0, numSamples].
func SampleIndex(t, fs float64, numSamples int) int {
	v := math.RoundToEven(t * fs)
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > float64(numSamples):
		return numSamples
	}
	return int(v)
}

// Runs returns the maximal runs of consecutive true values in mask. A run
// touching either end of the mask is still reported.
func Runs(mask []bool) []Interval {
	var runs []Interval
	start := -1
	for i, v := range mask {
		switch {
		case v && start < 0:
			start = i
		case !v && start >= 0:
			runs = append(runs, Interval{Start: start, End: i})
			start = -1
		}
	}
	if start >= 0 {
		runs = append(runs, Interval{Start: start, End: len(mask)})
	}
	return runs
}
