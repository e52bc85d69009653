// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// NewTestRecorder creates a test response recorder.
func NewTestRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// ConstantSpeedTrace builds a trace from 0 to length meters at the
// given spacing with one constant speed in km/h.
func ConstantSpeedTrace(length, spacing, speedKMH float64) telemetry.Trace {
	var tr telemetry.Trace
	for d := 0.0; d <= length; d += spacing {
		tr.Distances = append(tr.Distances, d)
		tr.Speeds = append(tr.Speeds, speedKMH)
	}
	return tr
}

// WavySpeedTrace builds a trace whose speed varies sinusoidally with
// distance, so alignment MSE can discriminate between offsets.
func WavySpeedTrace(length, spacing float64) telemetry.Trace {
	var tr telemetry.Trace
	for d := 0.0; d <= length; d += spacing {
		tr.Distances = append(tr.Distances, d)
		tr.Speeds = append(tr.Speeds, 180+60*math.Sin(d/80))
	}
	return tr
}

// ShiftTrace returns a copy of tr with every distance shifted by offset
// meters, simulating uniform distance-measurement drift.
func ShiftTrace(tr telemetry.Trace, offset float64) telemetry.Trace {
	out := tr.Clone()
	for i := range out.Distances {
		out.Distances[i] += offset
	}
	return out
}
