package delta

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/lapdelta.report/internal/telemetry"
	"github.com/banshee-data/lapdelta.report/internal/units"
)

// IntegrateDelta computes the cumulative time gap between two resampled
// traces sharing one distance grid, then rescales the series so its
// final magnitude equals the recorded lap-time gap.
//
// The faster lap (smaller recorded lap time; ties go to lap 2) plays
// the reference role and the slower lap the comparison role, recorded
// in the returned RoleAssignment. Positive delta at a point means the
// comparison lap is behind the reference lap through that point.
//
// When both laps share one speed profile the per-segment speed
// differential carries no signal and the raw series is identically
// zero; the reconstructed time columns still carry the lap-time gap, so
// the raw series falls back to their pointwise difference re-zeroed at
// the first grid point before scaling.
func IntegrateDelta(g1, g2 telemetry.TimedTrace, lapTime1, lapTime2 float64) (telemetry.DeltaSeries, telemetry.RoleAssignment, error) {
	n := g1.Len()
	if n != g2.Len() || n < 2 {
		return telemetry.DeltaSeries{}, telemetry.RoleAssignment{}, fmt.Errorf("grids must share one distance axis of at least 2 points, got %d and %d", n, g2.Len())
	}

	roles := telemetry.RoleAssignment{Lap1: telemetry.RoleComparison, Lap2: telemetry.RoleReference}
	ref, comp := g2, g1
	if lapTime1 < lapTime2 {
		roles = telemetry.RoleAssignment{Lap1: telemetry.RoleReference, Lap2: telemetry.RoleComparison}
		ref, comp = g1, g2
	}

	distances := g1.Distances
	delta := make([]float64, n)
	for i := 0; i < n-1; i++ {
		ds := distances[i+1] - distances[i]
		avgRef := segmentAvgMPS(ref.Speeds[i], ref.Speeds[i+1])
		avgComp := segmentAvgMPS(comp.Speeds[i], comp.Speeds[i+1])
		delta[i+1] = ds/avgComp - ds/avgRef
	}
	floats.CumSum(delta, delta)

	realGap := math.Abs(lapTime1 - lapTime2)
	if delta[n-1] == 0 && realGap > 0 {
		// Identical speed profiles; use the reconstructed time columns.
		base := comp.Times[0] - ref.Times[0]
		for i := range delta {
			delta[i] = comp.Times[i] - ref.Times[i] - base
		}
	}
	if last := math.Abs(delta[n-1]); last > 0 {
		floats.Scale(realGap/last, delta)
	}

	return telemetry.DeltaSeries{
		Distances: append([]float64(nil), distances...),
		Delta:     delta,
	}, roles, nil
}

func segmentAvgMPS(speedA, speedB float64) float64 {
	avg := (units.KMHToMPS(speedA) + units.KMHToMPS(speedB)) / 2
	if avg < minAvgSpeedMPS {
		return minAvgSpeedMPS
	}
	return avg
}
