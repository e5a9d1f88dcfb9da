package sweep

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
	"github.com/banshee-data/seizure-classifier/internal/detection"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
	"github.com/banshee-data/seizure-classifier/internal/timeutil"
)

// ErrNoRecordings is returned when a sweep is started without recordings.
var ErrNoRecordings = errors.New("sweep: no recordings")

// Recording is one subject's input to the sweep.
type Recording struct {
	ID string
	// Metric is the detection metric on the reference's sample grid.
	Metric    []float64
	Reference *annotation.Annotation
	// Scoring carries the recording's own tolerance window.
	Scoring scoring.Parameters
}

func (r Recording) validate() error {
	if r.Reference == nil {
		return fmt.Errorf("recording %q has no reference annotation", r.ID)
	}
	if len(r.Metric) > r.Reference.NumSamples() {
		return fmt.Errorf("recording %q: metric has %d samples, reference grid has %d",
			r.ID, len(r.Metric), r.Reference.NumSamples())
	}
	return nil
}

// Table holds the score of every (recording, pair) cell of a sweep. Cell
// (r, k) lives at index r*grid.Len() + k. A Table is immutable once built.
type Table struct {
	grid       Grid
	recordings int
	cells      []scoring.Recording
}

// Grid returns the swept grid.
func (t *Table) Grid() Grid { return t.grid }

// Recordings returns the number of recordings (rows).
func (t *Table) Recordings() int { return t.recordings }

// Cell returns the score of recording r at pair k.
func (t *Table) Cell(r, k int) scoring.Recording {
	return t.cells[r*t.grid.Len()+k]
}

// Aggregate reduces pair k over the given recordings.
func (t *Table) Aggregate(recordings []int, k int) scoring.AggregateScore {
	rows := make([]scoring.Recording, len(recordings))
	for i, r := range recordings {
		rows[i] = t.Cell(r, k)
	}
	return scoring.Reduce(rows)
}

// Scores aggregates every pair over the given recordings, in grid order.
func (t *Table) Scores(recordings []int) []scoring.AggregateScore {
	out := make([]scoring.AggregateScore, t.grid.Len())
	for k := range out {
		out[k] = t.Aggregate(recordings, k)
	}
	return out
}

// BuildTable detects and scores every (recording, pair) cell. Cells are
// independent and are computed on up to workers goroutines (GOMAXPROCS when
// workers <= 0), each writing only its own preallocated slot.
func BuildTable(ctx context.Context, recs []Recording, cfg Config) (*Table, error) {
	return buildTable(ctx, recs, cfg, timeutil.RealClock{})
}

func buildTable(ctx context.Context, recs []Recording, cfg Config, clock timeutil.Clock) (*Table, error) {
	if len(recs) == 0 {
		return nil, ErrNoRecordings
	}
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	for _, r := range recs {
		if err := r.validate(); err != nil {
			return nil, err
		}
	}

	pairs := cfg.Grid.Len()
	t := &Table{
		grid:       cfg.Grid,
		recordings: len(recs),
		cells:      make([]scoring.Recording, len(recs)*pairs),
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	progress := monitoring.NewProgress("sweep cells", len(t.cells), clock)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for r := range recs {
		for k := 0; k < pairs; k++ {
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				cell, err := scoreCell(recs[r], cfg.Grid.Pair(k), cfg)
				if err != nil {
					return fmt.Errorf("recording %q, pair %d: %w", recs[r].ID, k, err)
				}
				t.cells[r*pairs+k] = cell
				progress.Add(1)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func scoreCell(rec Recording, pair Pair, cfg Config) (scoring.Recording, error) {
	ref := rec.Reference
	params := detection.Parameters{
		Threshold:         pair.Threshold,
		MinDuration:       pair.MinDuration,
		DetectionStartIdx: cfg.DetectionStartIdx,
	}
	hyp, err := detection.Hypothesis(rec.Metric, ref.SamplingRate(), ref.NumSamples(), params, cfg.Post)
	if err != nil {
		return scoring.Recording{}, err
	}
	return scoring.ScoreRecording(ref, hyp, rec.Scoring)
}
