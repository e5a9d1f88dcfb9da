package report

import (
	"fmt"
	"math"
	"path/filepath"

	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
	"github.com/banshee-data/seizure-classifier/internal/dataset"
	"github.com/banshee-data/seizure-classifier/internal/detection"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/monitoring"
	"github.com/banshee-data/seizure-classifier/internal/security"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
	"github.com/banshee-data/seizure-classifier/internal/timeutil"
)

// Options selects the optional outputs.
type Options struct {
	Plots bool
	HTML  bool
}

// Writer writes the outputs of a run into one directory.
type Writer struct {
	fsys fsutil.FileSystem
	dir  string
	opts Options
}

// NewWriter creates a writer for dir.
func NewWriter(fsys fsutil.FileSystem, dir string, opts Options) *Writer {
	return &Writer{fsys: fsys, dir: dir, opts: opts}
}

// Prefix is the path prefix shared by every output of res.
func (w *Writer) Prefix(res *sweep.Result) string {
	return filepath.Join(w.dir, "classification_"+timeutil.FileStamp(res.CreatedAt))
}

// Write writes the CSV tables and, if enabled, the plots and the HTML page.
// It returns the written paths in order.
func (w *Writer) Write(res *sweep.Result, ds *dataset.Dataset, sum *Summary) ([]string, error) {
	if err := w.fsys.MkdirAll(w.dir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	prefix := w.Prefix(res)
	var written []string

	summaryPath, frontsPath := prefix+".csv", prefix+"_fronts.csv"
	if err := w.writeCSV(summaryPath, frontsPath, res, sum); err != nil {
		return written, err
	}
	written = append(written, summaryPath, frontsPath)

	if w.opts.Plots {
		paths, err := w.writePlots(prefix, res, ds)
		written = append(written, paths...)
		if err != nil {
			return written, err
		}
	}

	if w.opts.HTML {
		htmlPath := prefix + ".html"
		if err := w.writeHTML(htmlPath, res); err != nil {
			return written, err
		}
		written = append(written, htmlPath)
	}

	for _, p := range written {
		monitoring.Logf("wrote %s", p)
	}
	return written, nil
}

func (w *Writer) writeCSV(summaryPath, frontsPath string, res *sweep.Result, sum *Summary) (err error) {
	sf, err := w.fsys.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", summaryPath, err)
	}
	defer func() {
		if cerr := sf.Close(); err == nil {
			err = cerr
		}
	}()
	ff, err := w.fsys.Create(frontsPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", frontsPath, err)
	}
	defer func() {
		if cerr := ff.Close(); err == nil {
			err = cerr
		}
	}()

	c := NewCSVWriter(sf, ff)
	if err := c.WriteSummary(sum); err != nil {
		return fmt.Errorf("write %s: %w", summaryPath, err)
	}
	if err := c.WriteFronts(res); err != nil {
		return fmt.Errorf("write %s: %w", frontsPath, err)
	}
	return nil
}

func (w *Writer) writePlots(prefix string, res *sweep.Result, ds *dataset.Dataset) ([]string, error) {
	var written []string
	for _, fr := range res.Folds {
		p, err := PlotFront(res, fr)
		if err != nil {
			return written, fmt.Errorf("fold %d front plot: %w", fr.Fold.ID, err)
		}
		name := fmt.Sprintf("%s_fold%02d_front.png", prefix, fr.Fold.ID)
		if err := SavePNG(w.fsys, p, 6*vg.Inch, 6*vg.Inch, name); err != nil {
			return written, err
		}
		written = append(written, name)

		rec := ds.Recordings[fr.Fold.Test]
		threshold := math.NaN()
		if fr.Selection.OK {
			threshold = fr.Selected.Threshold
		}
		hyp, err := selectedHypothesis(res, rec, fr)
		if err != nil {
			return written, fmt.Errorf("fold %d hypothesis: %w", fr.Fold.ID, err)
		}
		mp, err := PlotMetric(rec.ID, rec.Metric, ds.SamplingRate, threshold, rec.Reference, hyp)
		if err != nil {
			return written, fmt.Errorf("%s metric plot: %w", rec.ID, err)
		}
		name = fmt.Sprintf("%s_%s_metric.png", prefix, security.SanitizeFilename(rec.ID))
		if err := SavePNG(w.fsys, mp, 14*vg.Inch, 6*vg.Inch, name); err != nil {
			return written, err
		}
		written = append(written, name)
	}
	return written, nil
}

// selectedHypothesis reruns detection on the fold's test recording at the
// selected pair. It returns nil when the fold selected nothing.
func selectedHypothesis(res *sweep.Result, rec dataset.Recording, fr sweep.FoldResult) (*annotation.Annotation, error) {
	if !fr.Selection.OK {
		return nil, nil
	}
	params := detection.Parameters{
		Threshold:         fr.Selected.Threshold,
		MinDuration:       fr.Selected.MinDuration,
		DetectionStartIdx: res.Config.DetectionStartIdx,
	}
	ref := rec.Reference
	return detection.Hypothesis(rec.Metric, ref.SamplingRate(), ref.NumSamples(), params, res.Config.Post)
}

func (w *Writer) writeHTML(path string, res *sweep.Result) (err error) {
	f, err := w.fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return RenderFrontsHTML(f, res)
}
