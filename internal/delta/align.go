package delta

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lapdelta.report/internal/config"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// Align corrects piecewise distance-measurement drift of target
// relative to ref. The shared distance span is split into equal-width
// windows; within each window every whole-meter offset in the
// configured search range is scored by the mean squared error between
// the two speed curves interpolated onto a common grid, and the
// minimal-MSE offset is applied to the target samples of that window.
//
// Windows with too few points on either side, or where no offset yields
// an overlapping distance range, keep offset 0 and are marked degraded
// in the diagnostics; they never fail the call, so the corrected trace
// always covers the full common span.
//
// Offsets are applied over half-open windows [start, end), the last
// window closed at end, judged against each sample's uncorrected
// distance, so a sample on a window boundary receives exactly one
// window's correction.
func Align(ref, target telemetry.TimedTrace, cfg *config.PipelineConfig) (telemetry.TimedTrace, []telemetry.AlignmentWindow, error) {
	if err := ref.Validate(); err != nil {
		return telemetry.TimedTrace{}, nil, err
	}
	if err := target.Validate(); err != nil {
		return telemetry.TimedTrace{}, nil, err
	}
	if cfg == nil {
		cfg = config.EmptyPipelineConfig()
	}

	minDist := math.Max(floats.Min(ref.Distances), floats.Min(target.Distances))
	maxDist := math.Min(floats.Max(ref.Distances), floats.Max(target.Distances))

	numWindows := cfg.GetNumWindows()
	width := (maxDist - minDist) / float64(numWindows)

	aligned := target.Clone()
	windows := make([]telemetry.AlignmentWindow, 0, numWindows)

	for w := 0; w < numWindows; w++ {
		start := minDist + float64(w)*width
		end := minDist + float64(w+1)*width
		last := w == numWindows-1
		if last {
			end = maxDist
		}

		offset, mse, ok := searchWindowOffset(ref, target, start, end, cfg)

		if ok && offset != 0 {
			for i, d := range target.Distances {
				if d >= start && (d < end || (last && d <= end)) {
					aligned.Distances[i] += offset
				}
			}
		}

		win := telemetry.AlignmentWindow{
			StartDistance: start,
			EndDistance:   end,
			Offset:        offset,
			MSE:           mse,
			Degraded:      !ok,
		}
		windows = append(windows, win)
	}

	return aligned, windows, nil
}

// searchWindowOffset scans the configured offset range for the shift of
// the target window that best matches the reference window's speed
// curve. The MSE search restricts both traces to samples inside
// [start, end] inclusive. Returns ok=false when the window is degraded.
func searchWindowOffset(ref, target telemetry.TimedTrace, start, end float64, cfg *config.PipelineConfig) (offset, mse float64, ok bool) {
	refXs, refYs := windowColumns(ref, start, end)
	tgtXs, tgtYs := windowColumns(target, start, end)
	if len(refXs) < 2 || len(tgtXs) < 2 {
		return 0, 0, false
	}

	interpStep := float64(cfg.GetInterpStep())

	// Zero offset is the baseline; any other candidate must strictly
	// beat it, so a window with no discriminating signal (flat speed)
	// stays unshifted instead of taking the first offset scanned.
	bestOffset := 0.0
	bestMSE := math.Inf(1)
	if m, valid := offsetMSE(refXs, refYs, tgtXs, tgtYs, 0, interpStep); valid {
		bestMSE = m
	}

	for off := cfg.GetOffsetMin(); off <= cfg.GetOffsetMax(); off += cfg.GetOffsetStep() {
		if off == 0 {
			continue
		}
		m, valid := offsetMSE(refXs, refYs, tgtXs, tgtYs, float64(off), interpStep)
		if valid && m < bestMSE {
			bestMSE = m
			bestOffset = float64(off)
		}
	}

	if math.IsInf(bestMSE, 1) {
		// No offset produced an overlapping range.
		return 0, 0, false
	}
	return bestOffset, bestMSE, true
}

// offsetMSE shifts the target window by offset, intersects the distance
// ranges, interpolates both speed curves onto a uniform grid over the
// intersection and returns their mean squared error. valid is false
// when the shifted ranges do not overlap.
func offsetMSE(refXs, refYs, tgtXs, tgtYs []float64, offset, step float64) (m float64, valid bool) {
	shifted := make([]float64, len(tgtXs))
	copy(shifted, tgtXs)
	floats.AddConst(offset, shifted)

	commonMin := math.Max(refXs[0], shifted[0])
	commonMax := math.Min(refXs[len(refXs)-1], shifted[len(shifted)-1])
	if commonMax <= commonMin {
		return 0, false
	}

	grid := arange(commonMin, commonMax+step, step)
	if len(grid) == 0 {
		return 0, false
	}

	diff := interpClamped(grid, refXs, refYs)
	floats.Sub(diff, interpClamped(grid, shifted, tgtYs))
	floats.Mul(diff, diff)
	return stat.Mean(diff, nil), true
}

// windowColumns returns the distance and speed columns of the samples
// whose distance lies within [start, end] inclusive.
func windowColumns(t telemetry.TimedTrace, start, end float64) (xs, ys []float64) {
	for i, d := range t.Distances {
		if d >= start && d <= end {
			xs = append(xs, d)
			ys = append(ys, t.Speeds[i])
		}
	}
	return xs, ys
}
