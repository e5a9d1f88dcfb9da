// Package annotation represents labelled event intervals over a fixed-length
// sample grid. An Annotation carries both the event list (in seconds) and the
// boolean sample mask derived from it; the two are built together and never
// mutated afterwards. Merge, split and extend return new values.
package annotation

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidGrid is returned when the sampling rate or sample count is not positive.
	ErrInvalidGrid = errors.New("annotation: sampling rate and sample count must be positive")
	// ErrInvalidEvent is returned for events whose start does not precede their end.
	ErrInvalidEvent = errors.New("annotation: event start must precede event end")
)

// Event is a labelled time interval in seconds, half-open: [Start, End).
type Event struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End-Start in seconds.
func (e Event) Duration() float64 {
	return e.End - e.Start
}

// Annotation is an immutable set of events over numSamples samples at fs Hz.
type Annotation struct {
	events     []Event
	fs         float64
	numSamples int
	mask       []bool
}

// New builds an Annotation from events. Events are expected to be ordered and
// non-overlapping; this is not enforced or repaired.
func New(events []Event, fs float64, numSamples int) (*Annotation, error) {
	if fs <= 0 || numSamples <= 0 || math.IsNaN(fs) || math.IsInf(fs, 0) {
		return nil, fmt.Errorf("%w: fs=%g numSamples=%d", ErrInvalidGrid, fs, numSamples)
	}
	for i, e := range events {
		if !(e.Start < e.End) {
			return nil, fmt.Errorf("%w: event %d is [%g, %g)", ErrInvalidEvent, i, e.Start, e.End)
		}
	}
	return build(events, fs, numSamples), nil
}

// Empty returns an Annotation with no events.
func Empty(fs float64, numSamples int) (*Annotation, error) {
	return New(nil, fs, numSamples)
}

// FromMask rebuilds an Annotation from a boolean sample mask. Each maximal run
// of true samples [a, b) becomes the event [a/fs, b/fs).
func FromMask(mask []bool, fs float64) (*Annotation, error) {
	return FromIntervals(Runs(mask), fs, len(mask))
}

// FromIntervals builds an Annotation from half-open sample index intervals.
// Intervals that cover no samples are dropped.
func FromIntervals(intervals []Interval, fs float64, numSamples int) (*Annotation, error) {
	if fs <= 0 {
		return nil, fmt.Errorf("%w: fs=%g numSamples=%d", ErrInvalidGrid, fs, numSamples)
	}
	events := make([]Event, 0, len(intervals))
	for _, iv := range intervals {
		if iv.Len() <= 0 {
			continue
		}
		events = append(events, Event{Start: float64(iv.Start) / fs, End: float64(iv.End) / fs})
	}
	return New(events, fs, numSamples)
}

// build derives the mask without validating events. Used internally for
// transforms whose output is valid by construction.
func build(events []Event, fs float64, numSamples int) *Annotation {
	a := &Annotation{
		events:     append([]Event(nil), events...),
		fs:         fs,
		numSamples: numSamples,
		mask:       make([]bool, numSamples),
	}
	for _, e := range a.events {
		iv := a.interval(e)
		for i := iv.Start; i < iv.End; i++ {
			a.mask[i] = true
		}
	}
	return a
}

// Events returns a copy of the event list.
func (a *Annotation) Events() []Event {
	return append([]Event(nil), a.events...)
}

// Len returns the number of events.
func (a *Annotation) Len() int {
	return len(a.events)
}

// Mask returns a copy of the sample mask.
func (a *Annotation) Mask() []bool {
	return append([]bool(nil), a.mask...)
}

// SamplingRate returns the sample grid rate in Hz.
func (a *Annotation) SamplingRate() float64 {
	return a.fs
}

// NumSamples returns the sample grid length.
func (a *Annotation) NumSamples() int {
	return a.numSamples
}

// Duration returns the recording length in seconds (numSamples/fs).
func (a *Annotation) Duration() float64 {
	return float64(a.numSamples) / a.fs
}

// Intervals returns the sample index interval of every event.
func (a *Annotation) Intervals() []Interval {
	out := make([]Interval, len(a.events))
	for i, e := range a.events {
		out[i] = a.interval(e)
	}
	return out
}

// TrueCount returns the number of true samples in the mask.
func (a *Annotation) TrueCount() int {
	n := 0
	for _, v := range a.mask {
		if v {
			n++
		}
	}
	return n
}

// SameGrid reports whether b is defined over the same sample grid as a.
func (a *Annotation) SameGrid(b *Annotation) bool {
	return a.fs == b.fs && a.numSamples == b.numSamples
}

func (a *Annotation) interval(e Event) Interval {
	return Interval{
		Start: SampleIndex(e.Start, a.fs, a.numSamples),
		End:   SampleIndex(e.End, a.fs, a.numSamples),
	}
}

// MergeNeighbouring merges consecutive events separated by a gap shorter than
// minGap seconds. The merged event spans the start of the first to the end of
// the second; merging repeats left to right until no pair qualifies.
func (a *Annotation) MergeNeighbouring(minGap float64) *Annotation {
	merged := append([]Event(nil), a.events...)
	i := 1
	for i < len(merged) {
		if merged[i].Start-merged[i-1].End < minGap {
			merged[i-1].End = merged[i].End
			merged = append(merged[:i], merged[i+1:]...)
			continue
		}
		i++
	}
	return build(merged, a.fs, a.numSamples)
}

// SplitLong splits every event longer than maxDuration seconds into
// consecutive sub-events of maxDuration, followed by the remainder.
// A non-positive or infinite maxDuration leaves the events unchanged.
func (a *Annotation) SplitLong(maxDuration float64) *Annotation {
	if maxDuration <= 0 || math.IsInf(maxDuration, 1) || math.IsNaN(maxDuration) {
		return build(a.events, a.fs, a.numSamples)
	}
	split := make([]Event, 0, len(a.events))
	for _, e := range a.events {
		n := splitCount(e.Duration(), maxDuration)
		start := e.Start
		for k := 1; k < n; k++ {
			next := e.Start + float64(k)*maxDuration
			split = append(split, Event{Start: start, End: next})
			start = next
		}
		split = append(split, Event{Start: start, End: e.End})
	}
	return build(split, a.fs, a.numSamples)
}

// splitEpsilon absorbs rounding in duration/maxDuration so an event that
// divides evenly never gets an empty trailing piece.
const splitEpsilon = 1e-9

// splitCount is the number of pieces SplitLong cuts an event of duration d
// into. It is at least 1.
func splitCount(d, maxDuration float64) int {
	n := int(math.Ceil(d/maxDuration - splitEpsilon))
	if n < 1 {
		return 1
	}
	return n
}

// Extend widens every event by before seconds at its start and after seconds
// at its end, clamped to the recording. Extended events may overlap.
func (a *Annotation) Extend(before, after float64) *Annotation {
	fileDuration := a.Duration()
	extended := make([]Event, len(a.events))
	for i, e := range a.events {
		extended[i] = Event{
			Start: math.Max(0, e.Start-before),
			End:   math.Min(fileDuration, e.End+after),
		}
	}
	return build(extended, a.fs, a.numSamples)
}
