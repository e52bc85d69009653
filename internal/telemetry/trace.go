// Package telemetry defines the lap telemetry data model shared by the
// delta pipeline, the storage layer and the export layer.
//
// A trace is stored column-wise: parallel slices of distance and speed.
// Distances are meters from the start of the lap, speeds are km/h.
package telemetry

import "math"

// Trace is one lap's raw telemetry: distance and speed columns of equal
// length. Distances are expected to be strictly increasing within a raw
// trace; that precondition is checked where a stage depends on it.
type Trace struct {
	Distances []float64 `json:"distances"`
	Speeds    []float64 `json:"speeds"`
}

// TimedTrace is a Trace with the reconstructed time column added.
// Times are seconds from the start of the lap, non-decreasing, with
// Times[0] == 0.
type TimedTrace struct {
	Distances []float64 `json:"distances"`
	Speeds    []float64 `json:"speeds"`
	Times     []float64 `json:"times"`
}

// LapRecord pairs a raw trace with its externally recorded ground truth.
type LapRecord struct {
	Driver  string  `json:"driver"`
	Session string  `json:"session,omitempty"`
	Trace   Trace   `json:"trace"`
	LapTime float64 `json:"lap_time"` // seconds, > 0
}

// AlignmentWindow records the drift correction chosen for one window of
// the shared distance span. Retained as a diagnostic; downstream stages
// only consume the corrected trace.
type AlignmentWindow struct {
	StartDistance float64 `json:"start_distance"`
	EndDistance   float64 `json:"end_distance"`
	Offset        float64 `json:"offset"`
	MSE           float64 `json:"mse"`
	Degraded      bool    `json:"degraded,omitempty"` // too few points or no overlap; offset defaulted to 0
}

// DeltaSeries is the distance-indexed time gap between two laps.
// Delta[0] is always 0 and Delta is positive where the comparison lap
// is behind the reference lap. Distances and Delta have equal length.
type DeltaSeries struct {
	Distances []float64 `json:"distances"`
	Delta     []float64 `json:"delta"`
}

// Role identifies which side of a comparison a lap was assigned. The
// faster lap is the reference; assignment depends on lap times, not on
// argument order.
type Role string

const (
	RoleReference  Role = "reference"
	RoleComparison Role = "comparison"
)

// RoleAssignment records the role each literal lap played in a
// comparison, so callers cannot confuse lap order with role semantics.
type RoleAssignment struct {
	Lap1 Role `json:"lap1"`
	Lap2 Role `json:"lap2"`
}

// Reference returns 1 or 2 depending on which lap holds the reference role.
func (r RoleAssignment) Reference() int {
	if r.Lap1 == RoleReference {
		return 1
	}
	return 2
}

// Len returns the number of samples in the trace.
func (t Trace) Len() int { return len(t.Distances) }

// Len returns the number of samples in the trace.
func (t TimedTrace) Len() int { return len(t.Distances) }

// Clone returns a deep copy of the trace.
func (t Trace) Clone() Trace {
	return Trace{
		Distances: append([]float64(nil), t.Distances...),
		Speeds:    append([]float64(nil), t.Speeds...),
	}
}

// Clone returns a deep copy of the trace.
func (t TimedTrace) Clone() TimedTrace {
	return TimedTrace{
		Distances: append([]float64(nil), t.Distances...),
		Speeds:    append([]float64(nil), t.Speeds...),
		Times:     append([]float64(nil), t.Times...),
	}
}

// Validate checks the structural preconditions shared by every pipeline
// stage: at least two samples, matching column lengths and finite values.
func (t Trace) Validate() error {
	return validateColumns(len(t.Distances), len(t.Speeds), t.Distances, t.Speeds)
}

// ValidateMonotonic checks that no distance decreases. Equal adjacent
// distances are tolerated here; they surface later as a degenerate lap
// if the whole trace covers zero distance.
func (t Trace) ValidateMonotonic() error {
	for i := 1; i < len(t.Distances); i++ {
		if t.Distances[i] < t.Distances[i-1] {
			return &InvalidTraceError{Reason: "distance sequence decreases"}
		}
	}
	return nil
}

// Validate checks the structural preconditions shared by every pipeline
// stage: at least two samples, matching column lengths and finite values.
func (t TimedTrace) Validate() error {
	if err := validateColumns(len(t.Distances), len(t.Speeds), t.Distances, t.Speeds); err != nil {
		return err
	}
	if len(t.Times) != len(t.Distances) {
		return &InvalidTraceError{Reason: "column lengths differ"}
	}
	for _, v := range t.Times {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &InvalidTraceError{Reason: "non-finite value"}
		}
	}
	return nil
}

func validateColumns(nd, ns int, cols ...[]float64) error {
	if nd != ns {
		return &InvalidTraceError{Reason: "column lengths differ"}
	}
	if nd < 2 {
		return &InvalidTraceError{Reason: "trace needs at least 2 samples"}
	}
	for _, col := range cols {
		for _, v := range col {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return &InvalidTraceError{Reason: "non-finite value"}
			}
		}
	}
	return nil
}
