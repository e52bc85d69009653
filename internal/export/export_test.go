package export

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
	"github.com/banshee-data/lapdelta.report/internal/testutil"
)

func testResult(t *testing.T) (*delta.Result, telemetry.LapRecord, telemetry.LapRecord) {
	t.Helper()
	base := testutil.WavySpeedTrace(2000, 10)
	lap1 := telemetry.LapRecord{Driver: "VER", Trace: base, LapTime: 90.0}
	lap2 := telemetry.LapRecord{Driver: "HAM", Trace: testutil.ShiftTrace(base, 4), LapTime: 91.2}

	res, err := delta.NewPipeline(nil).Calculate(lap1, lap2)
	testutil.AssertNoError(t, err)
	return res, lap1, lap2
}

func TestBuildDocument(t *testing.T) {
	res, lap1, lap2 := testResult(t)
	session := SessionMeta{Year: 2024, Type: "Q", Name: "BAHRAIN"}

	doc, err := BuildDocument(res, lap1, lap2, session)
	testutil.AssertNoError(t, err)

	wantMeta := Metadata{
		ExportID:        doc.Metadata.ExportID,        // random per export
		ExportTimestamp: doc.Metadata.ExportTimestamp, // wall clock
		SessionYear:     2024,
		SessionType:     "Q",
		SessionName:     "BAHRAIN",
		Drivers:         []string{"VER", "HAM"},
		LapTimes:        []float64{90.0, 91.2},
		ReferenceDriver: "VER",
		TotalDistance:   doc.Telemetry.Distances[len(doc.Telemetry.Distances)-1] - doc.Telemetry.Distances[0],
		DataPoints:      len(doc.Telemetry.Distances),
		GridResolution:  5.0,
		MaxDelta:        doc.Metadata.MaxDelta,
	}
	if diff := cmp.Diff(wantMeta, doc.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	if doc.Metadata.ExportID == "" {
		t.Error("export id is empty")
	}
	if doc.Metadata.MaxDelta <= 0 {
		t.Errorf("max delta = %v, want > 0", doc.Metadata.MaxDelta)
	}
	if len(doc.Telemetry.Delta) != len(doc.Telemetry.Distances) {
		t.Error("telemetry arrays have mismatched lengths")
	}
	if len(doc.Animation.CameraWaypoints) != numCameraWaypoints {
		t.Errorf("waypoints = %d, want %d", len(doc.Animation.CameraWaypoints), numCameraWaypoints)
	}
	if len(doc.Animation.PositionMarkers) == 0 {
		t.Error("no position markers")
	}
}

func TestWriteFileRoundTrip(t *testing.T) {
	res, lap1, lap2 := testResult(t)
	doc, err := BuildDocument(res, lap1, lap2, SessionMeta{Year: 2024, Type: "R", Name: "MONACO"})
	testutil.AssertNoError(t, err)

	path := filepath.Join(t.TempDir(), "export.json")
	testutil.AssertNoError(t, WriteFile(doc, path))

	data, err := os.ReadFile(path)
	testutil.AssertNoError(t, err)

	var got Document
	testutil.AssertNoError(t, json.Unmarshal(data, &got))

	if diff := cmp.Diff(doc, &got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPositionMarkersAdvantage(t *testing.T) {
	series := telemetry.DeltaSeries{
		Distances: []float64{0, 100, 200, 300},
		Delta:     []float64{0, 0.5, -0.5, 1.0},
	}
	roles := telemetry.RoleAssignment{Lap1: telemetry.RoleReference, Lap2: telemetry.RoleComparison}

	markers := PositionMarkers(series, roles, "VER", "HAM")
	if len(markers) != 3 {
		t.Fatalf("markers = %d, want 3", len(markers))
	}

	// Positive or zero delta: reference driver ahead; negative:
	// comparison driver ahead.
	want := []string{"VER", "VER", "HAM"}
	for i, m := range markers {
		if m.Advantage != want[i] {
			t.Errorf("marker %d advantage = %s, want %s", i, m.Advantage, want[i])
		}
	}
}

func TestSpeedZonesCoverLap(t *testing.T) {
	res, _, _ := testResult(t)
	zones := SpeedZones(res.Series.Distances, res.Grid1.Speeds, res.Grid2.Speeds)

	if len(zones) == 0 {
		t.Fatal("no speed zones")
	}
	if zones[0].StartDistance != res.Series.Distances[0] {
		t.Errorf("first zone starts at %v, want %v", zones[0].StartDistance, res.Series.Distances[0])
	}
	last := zones[len(zones)-1]
	if last.EndDistance != res.Series.Distances[len(res.Series.Distances)-1] {
		t.Errorf("last zone ends at %v, want %v", last.EndDistance, res.Series.Distances[len(res.Series.Distances)-1])
	}
	for _, z := range zones {
		switch z.Type {
		case "high_speed", "medium_speed", "low_speed":
		default:
			t.Errorf("unknown zone type %q", z.Type)
		}
	}
}

func TestOvertakingZonesDetectSteepRamp(t *testing.T) {
	// Flat then steep: the steep stretch gains 0.5s over 200m, far
	// above the threshold, then flattens out again.
	series := telemetry.DeltaSeries{
		Distances: []float64{0, 100, 200, 300, 400, 500, 600},
		Delta:     []float64{0, 0, 0, 0.25, 0.5, 0.5, 0.5},
	}

	zones := OvertakingZones(series)
	if len(zones) != 1 {
		t.Fatalf("zones = %d, want 1", len(zones))
	}
	if zones[0].DeltaChange <= 0 {
		t.Errorf("delta change = %v, want > 0", zones[0].DeltaChange)
	}
	if zones[0].Intensity <= overtakingThreshold {
		t.Errorf("intensity = %v, want > threshold", zones[0].Intensity)
	}
}

func TestSmoothDelta(t *testing.T) {
	in := []float64{0, 0, 10, 0, 0}
	got := SmoothDelta(in, 5)

	// The spike spreads across the window; totals are preserved up to
	// edge padding, and the input stays untouched.
	if in[2] != 10 {
		t.Error("SmoothDelta mutated its input")
	}
	if got[2] >= 10 {
		t.Errorf("smoothed peak = %v, want < 10", got[2])
	}
	if got[0] == 0 && got[4] == 0 {
		t.Error("window should reach the edges")
	}

	// Window 1 is the identity.
	id := SmoothDelta(in, 1)
	if diff := cmp.Diff(in, id); diff != "" {
		t.Errorf("window-1 smoothing mismatch (-want +got):\n%s", diff)
	}
}

func TestSectorBoundaries(t *testing.T) {
	b := SectorBoundaries([]float64{0, 500, 1000})
	if b["sector1_end"] != 300 {
		t.Errorf("sector1_end = %v, want 300", b["sector1_end"])
	}
	if b["sector2_end"] != 650 {
		t.Errorf("sector2_end = %v, want 650", b["sector2_end"])
	}
	if b["sector3_end"] != 1000 {
		t.Errorf("sector3_end = %v, want 1000", b["sector3_end"])
	}
}

func TestBatchExport(t *testing.T) {
	res, lap1, lap2 := testResult(t)
	dir := t.TempDir()

	paths, err := BatchExport([]BatchItem{{Result: res, Lap1: lap1, Lap2: lap2}}, SessionMeta{Year: 2024}, dir)
	testutil.AssertNoError(t, err)

	if len(paths) != 1 {
		t.Fatalf("paths = %d, want 1", len(paths))
	}
	want := filepath.Join(dir, "telemetry_VER_vs_HAM.json")
	if paths[0] != want {
		t.Errorf("path = %s, want %s", paths[0], want)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("exported file missing: %v", err)
	}
}
