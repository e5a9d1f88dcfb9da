package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/banshee-data/seizure-classifier/internal/pareto"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
)

// CSVWriter wraps csv.Writer with methods for classification output.
// Summary receives one row per subject plus the mean; Fronts receives the
// training grid of every fold with its front membership.
type CSVWriter struct {
	Summary *csv.Writer
	Fronts  *csv.Writer
}

// NewCSVWriter creates a new CSVWriter with the given summary and fronts writers.
func NewCSVWriter(summary, fronts io.Writer) *CSVWriter {
	return &CSVWriter{
		Summary: csv.NewWriter(summary),
		Fronts:  csv.NewWriter(fronts),
	}
}

// SummaryHeader is the per-subject CSV header.
var SummaryHeader = []string{
	"subject", "threshold", "dot",
	"spike_sensitivity", "spike_precision", "spike_f1",
	"rms_score",
	"sample_sensitivity", "sample_precision", "sample_f1", "sample_fprate",
	"event_sensitivity", "event_precision", "event_f1", "event_fprate",
	"detection_delay", "test_auc",
}

// FrontsHeader is the per-fold training grid CSV header.
var FrontsHeader = []string{
	"fold", "test_subject", "pair", "threshold", "dot",
	"objective1", "objective2", "tie_breaker",
	"on_front", "on_strict_front", "selected",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func summaryRecord(r SubjectRow) []string {
	return []string{
		r.Subject,
		formatFloat(r.Threshold),
		formatFloat(r.MinDuration),
		formatFloat(r.Spike.Sensitivity),
		formatFloat(r.Spike.Precision),
		formatFloat(r.Spike.F1),
		formatFloat(r.RMSdB),
		formatFloat(r.Score.SampleSensitivity),
		formatFloat(r.Score.SamplePrecision),
		formatFloat(r.Score.SampleF1),
		formatFloat(r.Score.SampleFPRate),
		formatFloat(r.Score.EventSensitivity),
		formatFloat(r.Score.EventPrecision),
		formatFloat(r.Score.EventF1),
		formatFloat(r.Score.EventFPRate),
		formatFloat(r.Score.DetectionDelay),
		formatFloat(r.TestAUC),
	}
}

// WriteSummary writes the header, one row per subject and the mean row.
func (c *CSVWriter) WriteSummary(s *Summary) error {
	if err := c.Summary.Write(SummaryHeader); err != nil {
		return err
	}
	for _, r := range s.Rows {
		if err := c.Summary.Write(summaryRecord(r)); err != nil {
			return err
		}
	}
	if err := c.Summary.Write(summaryRecord(s.Mean)); err != nil {
		return err
	}
	c.Summary.Flush()
	return c.Summary.Error()
}

// WriteFronts writes every fold's training scores projected on the
// selection objectives. Folds without training scores are skipped.
func (c *CSVWriter) WriteFronts(res *sweep.Result) error {
	if err := c.Fronts.Write(FrontsHeader); err != nil {
		return err
	}
	for _, fr := range res.Folds {
		points := res.Criteria.Points(fr.Training)
		onFront := membership(fr.Selection.Front, len(points))
		onStrict := membership(fr.Selection.StrictFront, len(points))
		for k, p := range points {
			pair := res.Grid.Pair(k)
			row := []string{
				strconv.Itoa(fr.Fold.ID),
				res.Recordings[fr.Fold.Test],
				strconv.Itoa(k),
				formatFloat(pair.Threshold),
				formatFloat(pair.MinDuration),
				formatFloat(p.Obj1),
				formatFloat(p.Obj2),
				formatFloat(p.TieBreaker),
				strconv.FormatBool(onFront[k]),
				strconv.FormatBool(onStrict[k]),
				strconv.FormatBool(fr.Selection.OK && fr.Selection.Selected == k),
			}
			if err := c.Fronts.Write(row); err != nil {
				return fmt.Errorf("fold %d pair %d: %w", fr.Fold.ID, k, err)
			}
		}
	}
	c.Fronts.Flush()
	return c.Fronts.Error()
}

// Flush flushes both summary and fronts writers.
func (c *CSVWriter) Flush() {
	c.Summary.Flush()
	c.Fronts.Flush()
}

func membership(idx []int, n int) []bool {
	out := make([]bool, n)
	for _, k := range idx {
		if k >= 0 && k < n {
			out[k] = true
		}
	}
	return out
}

// frontPoints splits a fold's training points by role. Points with a NaN
// objective are left out.
func frontPoints(points []pareto.Point, sel pareto.Result) (all, front, strict, selected []pareto.XY) {
	onFront := membership(sel.Front, len(points))
	onStrict := membership(sel.StrictFront, len(points))
	for k, p := range points {
		xy := pareto.XY{X: p.Obj1, Y: p.Obj2}
		if math.IsNaN(xy.X) || math.IsNaN(xy.Y) {
			continue
		}
		all = append(all, xy)
		if onFront[k] {
			front = append(front, xy)
		}
		if onStrict[k] {
			strict = append(strict, xy)
		}
		if sel.OK && sel.Selected == k {
			selected = append(selected, xy)
		}
	}
	return all, front, strict, selected
}
