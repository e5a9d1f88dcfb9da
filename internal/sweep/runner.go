package sweep

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/seizure-classifier/internal/detection"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/pareto"
	"github.com/banshee-data/seizure-classifier/internal/scoring"
	"github.com/banshee-data/seizure-classifier/internal/timeutil"
)

// Config controls one sweep run.
type Config struct {
	Grid Grid
	// DetectionStartIdx suppresses detection before this sample.
	DetectionStartIdx int
	// Post is applied to every hypothesis before it is scored.
	Post     detection.PostProcessing
	Criteria pareto.Criteria
	// Workers bounds the goroutines used for the sweep; <= 0 uses GOMAXPROCS.
	Workers int
}

// Fold is one leave-one-out split.
type Fold struct {
	ID    int   `json:"id"`
	Test  int   `json:"test"`
	Train []int `json:"train"`
}

// LeaveOneOut returns n folds where fold i tests recording i and trains on
// all the others in ascending order.
func LeaveOneOut(n int) []Fold {
	folds := make([]Fold, n)
	for i := range folds {
		train := make([]int, 0, n-1)
		for j := 0; j < n; j++ {
			if j != i {
				train = append(train, j)
			}
		}
		folds[i] = Fold{ID: i, Test: i, Train: train}
	}
	return folds
}

// FoldResult is the outcome of training on a fold and testing the selection.
type FoldResult struct {
	Fold Fold `json:"fold"`
	// Training holds the aggregate training score of every pair, in grid order.
	Training  []scoring.AggregateScore `json:"-"`
	Selection pareto.Result            `json:"selection"`
	// Selected is meaningful only when Selection.OK.
	Selected Pair `json:"selected"`
	// Test is the raw score of the selected pair on the held-out recording.
	Test      scoring.Recording      `json:"test"`
	TestScore scoring.AggregateScore `json:"test_score"`
	// TestFront scores the training strict front on the held-out recording.
	TestFront []pareto.XY `json:"test_front"`
	TestAUC   float64     `json:"test_auc"`
}

// Result is a complete sweep run.
type Result struct {
	RunID      string          `json:"run_id"`
	CreatedAt  time.Time       `json:"created_at"`
	Elapsed    time.Duration   `json:"elapsed"`
	Grid       Grid            `json:"grid"`
	Criteria   pareto.Criteria `json:"criteria"`
	Recordings []string        `json:"recordings"`
	Table      *Table          `json:"-"`
	Config     Config          `json:"-"`
	Folds      []FoldResult    `json:"folds"`
}

// Runner executes sweeps.
type Runner struct {
	clock timeutil.Clock
	newID func() string
}

// NewRunner creates a runner stamping results with clock.
func NewRunner(clock timeutil.Clock) *Runner {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Runner{
		clock: clock,
		newID: func() string { return uuid.New().String() },
	}
}

// Run builds the sweep table and evaluates every leave-one-out fold. Fold
// construction is fixed before any parallel work starts. Selection only ever
// sees the fold's training rows.
func (r *Runner) Run(ctx context.Context, recs []Recording, cfg Config) (*Result, error) {
	start := r.clock.Now()
	res := &Result{
		RunID:     r.newID(),
		CreatedAt: start,
		Grid:      cfg.Grid,
		Criteria:  cfg.Criteria,
		Config:    cfg,
	}
	for _, rec := range recs {
		res.Recordings = append(res.Recordings, rec.ID)
	}
	monitoring.Logf("sweep %s: %d recordings, %d thresholds x %d durations",
		res.RunID, len(recs), len(cfg.Grid.Thresholds), len(cfg.Grid.MinDurations))

	table, err := buildTable(ctx, recs, cfg, r.clock)
	if err != nil {
		return nil, fmt.Errorf("building sweep table: %w", err)
	}
	res.Table = table

	folds := LeaveOneOut(len(recs))
	res.Folds = make([]FoldResult, len(folds))
	g, ctx := errgroup.WithContext(ctx)
	if cfg.Workers > 0 {
		g.SetLimit(cfg.Workers)
	}
	for i, f := range folds {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res.Folds[i] = EvaluateFold(table, f, cfg.Criteria)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, fr := range res.Folds {
		if !fr.Selection.OK {
			monitoring.Logf("fold %d (%s): empty training front, no pair selected", fr.Fold.ID, recs[fr.Fold.Test].ID)
			continue
		}
		monitoring.Logf("fold %d (%s): threshold=%g min_duration=%g test_auc=%.3f",
			fr.Fold.ID, recs[fr.Fold.Test].ID, fr.Selected.Threshold, fr.Selected.MinDuration, fr.TestAUC)
	}
	res.Elapsed = r.clock.Since(start)
	monitoring.Logf("sweep %s finished in %s", res.RunID, res.Elapsed.Round(time.Millisecond))
	return res, nil
}

// EvaluateFold selects a pair on the fold's training rows and scores it, and
// the training strict front, on the held-out recording.
func EvaluateFold(t *Table, f Fold, c pareto.Criteria) FoldResult {
	fr := FoldResult{
		Fold:     f,
		Training: t.Scores(f.Train),
		TestAUC:  math.NaN(),
	}
	fr.Selection = pareto.SelectScores(fr.Training, c)
	if !fr.Selection.OK {
		fr.TestScore = scoring.Reduce(nil)
		return fr
	}

	fr.Selected = t.Grid().Pair(fr.Selection.Selected)
	fr.Test = t.Cell(f.Test, fr.Selection.Selected)
	fr.TestScore = scoring.Reduce([]scoring.Recording{fr.Test})

	front := make([]scoring.AggregateScore, len(fr.Selection.StrictFront))
	for i, k := range fr.Selection.StrictFront {
		front[i] = t.Aggregate([]int{f.Test}, k)
	}
	fr.TestFront = pareto.XYs(c.Points(front))
	fr.TestAUC = pareto.AUC(fr.TestFront)
	return fr
}
