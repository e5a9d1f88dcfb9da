package sweep

import (
	"errors"
	"fmt"
	"math"
)

// ErrEmptyGrid is returned when a sweep dimension has no values.
var ErrEmptyGrid = errors.New("sweep grid has an empty dimension")

// Pair is one swept (threshold, minimum duration) combination.
type Pair struct {
	Threshold   float64 `json:"threshold"`
	MinDuration float64 `json:"min_duration"`
}

// Grid is the cartesian product of thresholds and minimum durations. Pairs
// are flattened row-major: index = i*len(MinDurations) + j.
type Grid struct {
	Thresholds   []float64 `json:"thresholds"`
	MinDurations []float64 `json:"min_durations"`
}

// Validate rejects empty dimensions and non-finite values.
func (g Grid) Validate() error {
	if len(g.Thresholds) == 0 || len(g.MinDurations) == 0 {
		return ErrEmptyGrid
	}
	if len(g.Thresholds)*len(g.MinDurations) > maxRangeValues {
		return fmt.Errorf("sweep grid has %d pairs, limit is %d", len(g.Thresholds)*len(g.MinDurations), maxRangeValues)
	}
	for _, v := range g.Thresholds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("threshold %v is not finite", v)
		}
	}
	for _, v := range g.MinDurations {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("minimum duration %v must be finite and non-negative", v)
		}
	}
	return nil
}

// Len is the number of pairs.
func (g Grid) Len() int {
	return len(g.Thresholds) * len(g.MinDurations)
}

// Index flattens threshold index i and duration index j.
func (g Grid) Index(i, j int) int {
	return i*len(g.MinDurations) + j
}

// Coords is the inverse of Index.
func (g Grid) Coords(k int) (i, j int) {
	nj := len(g.MinDurations)
	return k / nj, k % nj
}

// Pair returns the parameter values at flat index k.
func (g Grid) Pair(k int) Pair {
	i, j := g.Coords(k)
	return Pair{Threshold: g.Thresholds[i], MinDuration: g.MinDurations[j]}
}
