// Package delta implements the four-stage lap comparison pipeline:
// time reconstruction by integration, windowed drift correction by
// brute-force offset search, common-grid resampling, and segment-wise
// delta integration rescaled to the recorded lap-time gap.
//
// Every stage returns a new trace or series; inputs are never mutated.
// Given identical inputs and configuration the output is bit-for-bit
// reproducible.
package delta

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/lapdelta.report/internal/telemetry"
	"github.com/banshee-data/lapdelta.report/internal/units"
)

// minAvgSpeedMPS floors segment average speeds so a stationary segment
// cannot divide by zero.
const minAvgSpeedMPS = 0.001

// Reconstruct derives the time column of a raw (distance, speed) trace
// by trapezoidal integration and rescales the axis so the final time
// equals the officially recorded lap time. Any timestamps the telemetry
// source recorded are ignored entirely; only distance, speed and the
// ground-truth lap time matter.
//
// The returned trace has Times[0] == 0, non-decreasing times, and
// Times[last] == realLapTime up to floating rounding. A trace whose raw
// integrated time is not positive fails with a DegenerateLapError
// instead of passing an unscaled axis through.
func Reconstruct(trace telemetry.Trace, realLapTime float64) (telemetry.TimedTrace, error) {
	if err := trace.Validate(); err != nil {
		return telemetry.TimedTrace{}, err
	}
	if err := trace.ValidateMonotonic(); err != nil {
		return telemetry.TimedTrace{}, err
	}
	if math.IsNaN(realLapTime) || math.IsInf(realLapTime, 0) || realLapTime <= 0 {
		return telemetry.TimedTrace{}, fmt.Errorf("real lap time must be positive, got %g", realLapTime)
	}

	n := trace.Len()
	times := make([]float64, n)
	for i := 0; i < n-1; i++ {
		ds := trace.Distances[i+1] - trace.Distances[i]
		avg := (units.KMHToMPS(trace.Speeds[i]) + units.KMHToMPS(trace.Speeds[i+1])) / 2
		if avg < minAvgSpeedMPS {
			avg = minAvgSpeedMPS
		}
		times[i+1] = ds / avg
	}
	floats.CumSum(times, times)

	rawTotal := times[n-1]
	if rawTotal <= 0 {
		return telemetry.TimedTrace{}, &telemetry.DegenerateLapError{RawTime: rawTotal}
	}
	floats.Scale(realLapTime/rawTotal, times)

	return telemetry.TimedTrace{
		Distances: append([]float64(nil), trace.Distances...),
		Speeds:    append([]float64(nil), trace.Speeds...),
		Times:     times,
	}, nil
}
