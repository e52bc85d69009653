package delta

import "sort"

// arange returns start, start+step, ... up to but excluding stop.
// Callers that need an inclusive upper bound pass stop+step; the last
// grid point may then slightly overshoot the real bound, which the
// clamped interpolation below tolerates.
func arange(start, stop, step float64) []float64 {
	if step <= 0 || stop <= start {
		return nil
	}
	// Each point is start + i*step rather than a running sum, so a
	// non-representable step cannot accumulate drift across the grid.
	var out []float64
	for i := 0; ; i++ {
		x := start + float64(i)*step
		if x >= stop {
			break
		}
		out = append(out, x)
	}
	return out
}

// interpAt evaluates the piecewise-linear curve through (xs, ys) at x.
// Query points outside the xs domain take the nearest endpoint value
// rather than extrapolating. xs is assumed ascending; alignment can
// leave small local inversions at window joins, for which the binary
// search still produces a deterministic result.
//
// gonum's interp.PiecewiseLinear was not usable here: its Fit rejects
// any xs sequence that is not strictly increasing, and aligned traces
// can legitimately violate that at window boundaries.
func interpAt(x float64, xs, ys []float64) float64 {
	n := len(xs)
	if x <= xs[0] {
		return ys[0]
	}
	if x >= xs[n-1] {
		return ys[n-1]
	}
	// First index with xs[j] >= x. x is strictly inside the domain, so
	// 1 <= j <= n-1.
	j := sort.SearchFloat64s(xs, x)
	if j == n {
		return ys[n-1]
	}
	if xs[j] == x {
		return ys[j]
	}
	x0, x1 := xs[j-1], xs[j]
	y0, y1 := ys[j-1], ys[j]
	if x1 == x0 {
		return y0
	}
	return y0 + (y1-y0)*(x-x0)/(x1-x0)
}

// interpClamped evaluates the curve at every grid point.
func interpClamped(grid, xs, ys []float64) []float64 {
	out := make([]float64, len(grid))
	for i, x := range grid {
		out[i] = interpAt(x, xs, ys)
	}
	return out
}
