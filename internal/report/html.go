package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/seizure-classifier/internal/pareto"
	"github.com/banshee-data/seizure-classifier/internal/sweep"
)

// echartsAssetsHost serves the echarts JavaScript assets.
const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

func scatterData(pts []pareto.XY) []opts.ScatterData {
	data := make([]opts.ScatterData, 0, len(pts))
	for _, p := range pts {
		data = append(data, opts.ScatterData{Value: []interface{}{p.X, p.Y}})
	}
	return data
}

// frontChart builds the scatter chart of one fold.
func frontChart(res *sweep.Result, fr sweep.FoldResult) *charts.Scatter {
	all, front, strict, selected := frontPoints(res.Criteria.Points(fr.Training), fr.Selection)
	subtitle := "no pair selected"
	if fr.Selection.OK {
		subtitle = fmt.Sprintf("threshold=%g dot=%g test_auc=%.3f",
			fr.Selected.Threshold, fr.Selected.MinDuration, fr.TestAUC)
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: "600px", Height: "520px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Fold %d: %s", fr.Fold.ID, res.Recordings[fr.Fold.Test]),
			Subtitle: subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Bottom: "0"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value", Min: 0, Max: 1, Name: res.Criteria.Objective1.String(), NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Type: "value", Min: 0, Max: 1, Name: res.Criteria.Objective2.String(), NameLocation: "middle", NameGap: 35}),
	)
	scatter.AddSeries("training grid", scatterData(all), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 4}))
	scatter.AddSeries("front", scatterData(front), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	scatter.AddSeries("strict front", scatterData(strict), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 10}))
	scatter.AddSeries("selected", scatterData(selected), charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 16, Symbol: "triangle"}))
	return scatter
}

// RenderFrontsHTML writes a page with one Pareto front chart per fold.
func RenderFrontsHTML(w io.Writer, res *sweep.Result) error {
	page := components.NewPage()
	page.SetPageTitle(fmt.Sprintf("Classification run %s", res.RunID))
	page.SetAssetsHost(echartsAssetsHost)
	for _, fr := range res.Folds {
		page.AddCharts(frontChart(res, fr))
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render fronts page: %w", err)
	}
	return nil
}
