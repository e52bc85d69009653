package chart

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

const backgroundColor = "#1a1a1a"

// Comparison names the two laps of a rendered comparison.
type Comparison struct {
	Driver1  string
	Driver2  string
	LapTime1 float64
	LapTime2 float64
}

func (c Comparison) title() string {
	return fmt.Sprintf("%s vs %s", c.Driver1, c.Driver2)
}

func (c Comparison) subtitle() string {
	return fmt.Sprintf("%s %.3fs | %s %.3fs | gap %.3fs",
		c.Driver1, c.LapTime1, c.Driver2, c.LapTime2, abs(c.LapTime1-c.LapTime2))
}

// DeltaChart builds a line chart of the gap over distance. Positive
// delta means the comparison (slower) lap is behind the reference lap.
func DeltaChart(series telemetry.DeltaSeries, cmp Comparison) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       cmp.title(),
			Theme:           "dark",
			BackgroundColor: backgroundColor,
			Width:           "1200px",
			Height:          "500px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Delta " + cmp.title(), Subtitle: cmp.subtitle()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Gap (s)", NameLocation: "middle", NameGap: 40}),
	)

	data := make([]opts.LineData, len(series.Delta))
	for i, v := range series.Delta {
		data[i] = opts.LineData{Value: v}
	}

	line.SetXAxis(series.Distances).
		AddSeries("delta", data, charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(false)}))
	return line
}

// SpeedComparisonChart overlays both drivers' resampled speed traces.
func SpeedComparisonChart(grid1, grid2 telemetry.TimedTrace, cmp Comparison) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle:       cmp.title(),
			Theme:           "dark",
			BackgroundColor: backgroundColor,
			Width:           "1200px",
			Height:          "500px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Speed " + cmp.title()}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Distance (m)", NameLocation: "middle", NameGap: 30}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Speed (km/h)", NameLocation: "middle", NameGap: 40}),
	)

	speed1 := make([]opts.LineData, len(grid1.Speeds))
	for i, v := range grid1.Speeds {
		speed1[i] = opts.LineData{Value: v}
	}
	speed2 := make([]opts.LineData, len(grid2.Speeds))
	for i, v := range grid2.Speeds {
		speed2[i] = opts.LineData{Value: v}
	}

	line.SetXAxis(grid1.Distances).
		AddSeries(cmp.Driver1, speed1, charts.WithLineStyleOpts(opts.LineStyle{Color: DriverColor(cmp.Driver1, 0)})).
		AddSeries(cmp.Driver2, speed2, charts.WithLineStyleOpts(opts.LineStyle{Color: DriverColor(cmp.Driver2, 1)}))
	return line
}

// RenderDashboard writes an HTML page combining the delta and speed
// charts for one comparison.
func RenderDashboard(w io.Writer, res *delta.Result, cmp Comparison) error {
	page := components.NewPage()
	page.PageTitle = cmp.title()
	page.AddCharts(
		DeltaChart(res.Series, cmp),
		SpeedComparisonChart(res.Grid1, res.Grid2, cmp),
	)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render dashboard: %w", err)
	}
	return nil
}

// RenderDeltaHTML writes the delta chart alone.
func RenderDeltaHTML(w io.Writer, series telemetry.DeltaSeries, cmp Comparison) error {
	if err := DeltaChart(series, cmp).Render(w); err != nil {
		return fmt.Errorf("failed to render delta chart: %w", err)
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
