package wellness

import (
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartDateLayout = "02 Jan"

// RenderChart draws series as a smoothed line with min/max markers and an
// average line.
func RenderChart(series *Series, w io.Writer) error {
	info, _ := LookupMetric(series.Metric)

	xAxis := make([]string, 0, len(series.Points))
	yData := make([]opts.LineData, 0, len(series.Points))
	for _, p := range series.Points {
		xAxis = append(xAxis, p.RecordedAt.Format(chartDateLayout))
		yData = append(yData, opts.LineData{Value: p.Value})
	}

	title := opts.Title{Title: series.Label}
	if len(series.Points) == 0 {
		title.Subtitle = "No readings recorded yet"
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: series.Label}),
		charts.WithTitleOpts(title),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Name: series.Label}),
	)
	line.SetXAxis(xAxis).
		AddSeries(series.Label, yData).
		SetSeriesOptions(
			charts.WithLineChartOpts(opts.LineChart{
				Smooth:     opts.Bool(true),
				ShowSymbol: opts.Bool(true),
			}),
			charts.WithLineStyleOpts(opts.LineStyle{Color: info.Color}),
			charts.WithMarkPointNameTypeItemOpts(
				opts.MarkPointNameTypeItem{Name: "Max", Type: "max"},
				opts.MarkPointNameTypeItem{Name: "Min", Type: "min"},
			),
			charts.WithMarkLineNameTypeItemOpts(
				opts.MarkLineNameTypeItem{Name: "Average", Type: "average"},
			),
		)
	return line.Render(w)
}
