package telemetry

import (
	"errors"
	"math"
	"testing"
)

func TestTraceValidate(t *testing.T) {
	tests := []struct {
		name    string
		trace   Trace
		wantErr bool
	}{
		{"valid", Trace{Distances: []float64{0, 10, 20}, Speeds: []float64{100, 110, 120}}, false},
		{"single sample", Trace{Distances: []float64{0}, Speeds: []float64{100}}, true},
		{"empty", Trace{}, true},
		{"length mismatch", Trace{Distances: []float64{0, 10}, Speeds: []float64{100}}, true},
		{"NaN speed", Trace{Distances: []float64{0, 10}, Speeds: []float64{100, math.NaN()}}, true},
		{"Inf distance", Trace{Distances: []float64{0, math.Inf(1)}, Speeds: []float64{100, 110}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.trace.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ite *InvalidTraceError
				if !errors.As(err, &ite) {
					t.Errorf("Validate() error type = %T, want *InvalidTraceError", err)
				}
			}
		})
	}
}

func TestTraceValidateMonotonic(t *testing.T) {
	increasing := Trace{Distances: []float64{0, 5, 10}, Speeds: []float64{1, 2, 3}}
	if err := increasing.ValidateMonotonic(); err != nil {
		t.Errorf("increasing trace: unexpected error %v", err)
	}

	// Equal adjacent distances pass; they are handled downstream as a
	// degenerate lap when the whole trace covers zero distance.
	flat := Trace{Distances: []float64{5, 5}, Speeds: []float64{1, 2}}
	if err := flat.ValidateMonotonic(); err != nil {
		t.Errorf("flat trace: unexpected error %v", err)
	}

	decreasing := Trace{Distances: []float64{0, 10, 8}, Speeds: []float64{1, 2, 3}}
	if err := decreasing.ValidateMonotonic(); err == nil {
		t.Error("decreasing trace: expected error, got nil")
	}
}

func TestTraceClone(t *testing.T) {
	orig := Trace{Distances: []float64{0, 10}, Speeds: []float64{100, 110}}
	cp := orig.Clone()
	cp.Distances[0] = 99
	if orig.Distances[0] != 0 {
		t.Error("Clone shares backing array with original")
	}
}

func TestRoleAssignmentReference(t *testing.T) {
	a := RoleAssignment{Lap1: RoleReference, Lap2: RoleComparison}
	if a.Reference() != 1 {
		t.Errorf("Reference() = %d, want 1", a.Reference())
	}
	b := RoleAssignment{Lap1: RoleComparison, Lap2: RoleReference}
	if b.Reference() != 2 {
		t.Errorf("Reference() = %d, want 2", b.Reference())
	}
}
