package delta

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// Resample interpolates both traces onto one shared uniform distance
// grid covering their common span. The grid starts at the larger of the
// two trace minima and steps by gridStep; by construction the last grid
// point may slightly overshoot the common maximum, in which case the
// clamped interpolation holds the nearest endpoint value rather than
// extrapolating. The two returned traces carry identical distance
// columns.
func Resample(t1, t2 telemetry.TimedTrace, gridStep float64) (telemetry.TimedTrace, telemetry.TimedTrace, error) {
	if err := t1.Validate(); err != nil {
		return telemetry.TimedTrace{}, telemetry.TimedTrace{}, err
	}
	if err := t2.Validate(); err != nil {
		return telemetry.TimedTrace{}, telemetry.TimedTrace{}, err
	}
	if gridStep <= 0 {
		return telemetry.TimedTrace{}, telemetry.TimedTrace{}, fmt.Errorf("grid step must be positive, got %g", gridStep)
	}

	commonMin := math.Max(floats.Min(t1.Distances), floats.Min(t2.Distances))
	commonMax := math.Min(floats.Max(t1.Distances), floats.Max(t2.Distances))
	if commonMax <= commonMin {
		return telemetry.TimedTrace{}, telemetry.TimedTrace{}, fmt.Errorf("traces share no distance range: [%g, %g]", commonMin, commonMax)
	}

	grid := arange(commonMin, commonMax+gridStep, gridStep)

	g1 := telemetry.TimedTrace{
		Distances: grid,
		Speeds:    interpClamped(grid, t1.Distances, t1.Speeds),
		Times:     interpClamped(grid, t1.Distances, t1.Times),
	}
	g2 := telemetry.TimedTrace{
		Distances: append([]float64(nil), grid...),
		Speeds:    interpClamped(grid, t2.Distances, t2.Speeds),
		Times:     interpClamped(grid, t2.Distances, t2.Times),
	}
	return g1, g2, nil
}
