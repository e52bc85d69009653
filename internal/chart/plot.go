package chart

import (
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// SaveDeltaPNG writes the delta curve to a PNG file, for artifact
// directories where an HTML chart is inconvenient.
func SaveDeltaPNG(series telemetry.DeltaSeries, cmp Comparison, path string) error {
	p := plot.New()
	p.Title.Text = "Delta " + cmp.title()
	p.X.Label.Text = "Distance (m)"
	p.Y.Label.Text = "Gap (s)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, len(series.Distances))
	for i := range pts {
		pts[i].X = series.Distances[i]
		pts[i].Y = series.Delta[i]
	}

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to build delta line: %w", err)
	}
	line.Width = vg.Points(1.5)
	p.Add(line)
	p.Legend.Add("delta", line)

	if err := p.Save(12*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("failed to save plot: %w", err)
	}
	return nil
}
