// Package testutil provides shared test utilities and fixtures.
//
// The float helpers treat two NaNs as equal, since NaN marks an undefined
// score throughout the classifier.
package testutil

import (
	"math"
	"testing"
)

// FloatTolerance is the default absolute tolerance of the float helpers.
const FloatTolerance = 1e-9

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t testing.TB, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// SameFloat reports whether a and b are both NaN, or equal within tol.
// Infinities compare equal only to the same infinity.
func SameFloat(a, b, tol float64) bool {
	switch {
	case math.IsNaN(a) || math.IsNaN(b):
		return math.IsNaN(a) && math.IsNaN(b)
	case math.IsInf(a, 0) || math.IsInf(b, 0):
		return a == b
	}
	return math.Abs(a-b) <= tol
}

// AssertFloat checks got against want within FloatTolerance.
func AssertFloat(t testing.TB, name string, got, want float64) {
	t.Helper()
	if !SameFloat(got, want, FloatTolerance) {
		t.Errorf("%s = %v, want %v", name, got, want)
	}
}

// AssertFloats checks two slices element-wise within FloatTolerance.
func AssertFloats(t testing.TB, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Errorf("len(%s) = %d, want %d", name, len(got), len(want))
		return
	}
	for i := range got {
		if !SameFloat(got[i], want[i], FloatTolerance) {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

// NaNs returns a slice of n NaNs.
func NaNs(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
