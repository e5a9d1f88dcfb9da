package report

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"github.com/banshee-data/seizure-classifier/internal/annotation"
	"github.com/banshee-data/seizure-classifier/internal/fsutil"
	"github.com/banshee-data/seizure-classifier/internal/pareto"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
)

var (
	colorGrid     = color.RGBA{R: 170, G: 170, B: 170, A: 255}
	colorFront    = color.RGBA{R: 31, G: 119, B: 180, A: 255}
	colorStrict   = color.RGBA{R: 214, G: 39, B: 40, A: 255}
	colorSelected = color.RGBA{R: 44, G: 160, B: 44, A: 255}
	colorTest     = color.RGBA{R: 255, G: 127, B: 14, A: 255}
	colorMetric   = color.RGBA{R: 31, G: 119, B: 180, A: 255}
)

func toXYs(pts []pareto.XY) plotter.XYs {
	out := make(plotter.XYs, len(pts))
	for i, p := range pts {
		out[i] = plotter.XY{X: p.X, Y: p.Y}
	}
	return out
}

func addScatter(p *plot.Plot, label string, pts []pareto.XY, c color.Color, shape draw.GlyphDrawer, radius vg.Length) error {
	if len(pts) == 0 {
		return nil
	}
	s, err := plotter.NewScatter(toXYs(pts))
	if err != nil {
		return fmt.Errorf("%s scatter: %w", label, err)
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = shape
	s.GlyphStyle.Radius = radius
	p.Add(s)
	p.Legend.Add(label, s)
	return nil
}

// PlotFront draws one fold's training grid on the selection objectives with
// its weak and strict fronts, the selected pair and the strict front scored
// on the held-out recording.
func PlotFront(res *sweep.Result, fr sweep.FoldResult) (*plot.Plot, error) {
	all, front, strict, selected := frontPoints(res.Criteria.Points(fr.Training), fr.Selection)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Fold %d: test %s (AUC %.3f)", fr.Fold.ID, res.Recordings[fr.Fold.Test], fr.TestAUC)
	p.X.Label.Text = res.Criteria.Objective1.String()
	p.Y.Label.Text = res.Criteria.Objective2.String()
	p.X.Min, p.X.Max = 0, 1
	p.Y.Min, p.Y.Max = 0, 1
	p.Add(plotter.NewGrid())

	var test []pareto.XY
	for _, xy := range fr.TestFront {
		if !math.IsNaN(xy.X) && !math.IsNaN(xy.Y) {
			test = append(test, xy)
		}
	}

	layers := []struct {
		label  string
		pts    []pareto.XY
		color  color.Color
		shape  draw.GlyphDrawer
		radius vg.Length
	}{
		{"training grid", all, colorGrid, draw.CircleGlyph{}, vg.Points(2)},
		{"front", front, colorFront, draw.RingGlyph{}, vg.Points(4)},
		{"strict front", strict, colorStrict, draw.CircleGlyph{}, vg.Points(3)},
		{"selected", selected, colorSelected, draw.TriangleGlyph{}, vg.Points(6)},
		{"test front", test, colorTest, draw.CrossGlyph{}, vg.Points(4)},
	}
	for _, l := range layers {
		if err := addScatter(p, l.label, l.pts, l.color, l.shape, l.radius); err != nil {
			return nil, err
		}
	}
	p.Legend.Top = true
	p.Legend.Left = true
	p.Legend.XOffs = 10
	p.Legend.YOffs = -10
	return p, nil
}

// PlotMetric draws a recording's metric over time in minutes with the
// selected threshold, the reference events and the hypothesis events.
func PlotMetric(subject string, metric []float64, fs float64, threshold float64, ref, hyp *annotation.Annotation) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Seizure metric: %s", subject)
	p.X.Label.Text = "Time [min]"
	p.Y.Label.Text = "Metric"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(metric))
	for i, v := range metric {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(i) / fs / 60, Y: v})
	}
	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("metric line: %w", err)
		}
		line.Color = colorMetric
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add("metric", line)
	}

	end := float64(len(metric)) / fs / 60
	if !math.IsNaN(threshold) && len(metric) > 0 {
		thr, err := plotter.NewLine(plotter.XYs{{X: 0, Y: threshold}, {X: end, Y: threshold}})
		if err != nil {
			return nil, fmt.Errorf("threshold line: %w", err)
		}
		thr.Color = colorSelected
		thr.Width = vg.Points(1)
		thr.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(thr)
		p.Legend.Add(fmt.Sprintf("threshold %g", threshold), thr)
	}

	// Events are drawn as bars below zero so they never hide the metric.
	if err := addEventBars(p, "reference", ref, -5, colorStrict); err != nil {
		return nil, err
	}
	if err := addEventBars(p, "detected", hyp, -10, colorTest); err != nil {
		return nil, err
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p, nil
}

func addEventBars(p *plot.Plot, label string, a *annotation.Annotation, y float64, c color.Color) error {
	if a == nil {
		return nil
	}
	for i, ev := range a.Events() {
		bar, err := plotter.NewLine(plotter.XYs{{X: ev.Start / 60, Y: y}, {X: ev.End / 60, Y: y}})
		if err != nil {
			return fmt.Errorf("%s event %d: %w", label, i, err)
		}
		bar.Color = c
		bar.Width = vg.Points(4)
		p.Add(bar)
		if i == 0 {
			p.Legend.Add(label, bar)
		}
	}
	return nil
}

// SavePNG renders p as a PNG of the given size into name.
func SavePNG(fsys fsutil.FileSystem, p *plot.Plot, width, height vg.Length, name string) (err error) {
	wt, err := p.WriterTo(width, height, "png")
	if err != nil {
		return fmt.Errorf("render %s: %w", name, err)
	}
	f, err := fsys.Create(name)
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	if _, err := wt.WriteTo(f); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
