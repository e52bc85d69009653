package units

import (
	"math"
	"testing"
)

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mps", MPS, true},
		{"valid mph", MPH, true},
		{"valid kmph", KMPH, true},
		{"valid kph", KPH, true},
		{"invalid unit", "invalid", false},
		{"empty unit", "", false},
		{"uppercase KPH", "KPH", false}, // Case-sensitive
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestKMHToMPS(t *testing.T) {
	tests := []struct {
		name     string
		speedKMH float64
		expected float64
	}{
		{"zero", 0.0, 0.0},
		{"city speed", 36.0, 10.0},
		{"race speed", 324.0, 90.0},
		{"fractional", 1.0, 1.0 / 3.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := KMHToMPS(tt.speedKMH)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("KMHToMPS(%v) = %v, want %v", tt.speedKMH, result, tt.expected)
			}
		})
	}
}

func TestMPSToKMHRoundTrip(t *testing.T) {
	for _, speed := range []float64{0, 0.001, 12.5, 83.3, 350} {
		got := KMHToMPS(MPSToKMH(speed))
		if math.Abs(got-speed) > 1e-9 {
			t.Errorf("round trip of %v m/s = %v", speed, got)
		}
	}
}

func TestConvertSpeed(t *testing.T) {
	tests := []struct {
		name     string
		speedMPS float64
		unit     string
		expected float64
	}{
		{"mps passthrough", 10.0, MPS, 10.0},
		{"to kmph", 10.0, KMPH, 36.0},
		{"to kph", 10.0, KPH, 36.0},
		{"to mph", 10.0, MPH, 22.3694},
		{"unknown unit defaults to mps", 10.0, "furlongs", 10.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertSpeed(tt.speedMPS, tt.unit)
			if math.Abs(result-tt.expected) > 1e-6 {
				t.Errorf("ConvertSpeed(%v, %s) = %v, want %v", tt.speedMPS, tt.unit, result, tt.expected)
			}
		})
	}
}
