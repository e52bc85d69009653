// Package export renders comparison results into the JSON document
// consumed by the downstream 3D visualization pipeline: the raw delta
// and speed arrays plus pre-computed animation data (position markers,
// speed zones, overtaking zones and camera waypoints).
package export

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// SessionMeta identifies the session a comparison came from.
type SessionMeta struct {
	Year int    `json:"year"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Document is the full export payload.
type Document struct {
	Metadata  Metadata      `json:"metadata"`
	Telemetry TelemetryData `json:"telemetry"`
	Animation AnimationData `json:"animation_data"`
}

// Metadata describes the comparison and its provenance.
type Metadata struct {
	ExportID        string    `json:"export_id"`
	SessionYear     int       `json:"session_year"`
	SessionType     string    `json:"session_type"`
	SessionName     string    `json:"session_name"`
	Drivers         []string  `json:"drivers"`
	LapTimes        []float64 `json:"lap_times"`
	ReferenceDriver string    `json:"reference_driver"`
	TotalDistance   float64   `json:"total_distance"`
	DataPoints      int       `json:"data_points"`
	GridResolution  float64   `json:"grid_resolution"`
	MaxDelta        float64   `json:"max_delta"`
	ExportTimestamp string    `json:"export_timestamp"`
}

// TelemetryData carries the resampled arrays.
type TelemetryData struct {
	Distances    []float64 `json:"distances"`
	Delta        []float64 `json:"delta"`
	SpeedDriver1 []float64 `json:"speed_driver1"`
	SpeedDriver2 []float64 `json:"speed_driver2"`
}

// AnimationData carries pre-computed cues for smooth 3D animation.
type AnimationData struct {
	PositionMarkers []PositionMarker `json:"position_markers"`
	SpeedZones      []SpeedZone      `json:"speed_zones"`
	OvertakingZones []OvertakingZone `json:"overtaking_zones"`
	CameraWaypoints []CameraWaypoint `json:"camera_waypoints"`
}

// PositionMarker samples the delta at a regular distance interval and
// names the driver currently ahead.
type PositionMarker struct {
	Distance  float64 `json:"distance"`
	Delta     float64 `json:"delta"`
	Advantage string  `json:"position_advantage"`
}

// SpeedZone is a contiguous stretch classified by average speed.
type SpeedZone struct {
	Type          string  `json:"type"` // high_speed, medium_speed, low_speed
	StartDistance float64 `json:"start_distance"`
	EndDistance   float64 `json:"end_distance"`
	AvgSpeed      float64 `json:"avg_speed"`
}

// OvertakingZone is a stretch where the delta changes fast enough to
// matter for camera work.
type OvertakingZone struct {
	StartDistance float64 `json:"start_distance"`
	EndDistance   float64 `json:"end_distance"`
	DeltaChange   float64 `json:"delta_change"`
	Intensity     float64 `json:"intensity"`
}

// CameraWaypoint suggests a camera style for one point of the lap.
type CameraWaypoint struct {
	Distance       float64 `json:"distance"`
	Delta          float64 `json:"delta"`
	CameraStyle    string  `json:"camera_style"`
	CameraDistance float64 `json:"camera_distance"`
	FocusPoint     string  `json:"focus_point"`
}

// markerIntervalM is the spacing of position markers along the lap.
const markerIntervalM = 100.0

// numCameraWaypoints is how many evenly spaced waypoints are emitted.
const numCameraWaypoints = 20

// BuildDocument assembles the export payload for one comparison.
func BuildDocument(res *delta.Result, lap1, lap2 telemetry.LapRecord, session SessionMeta) (*Document, error) {
	series := res.Series
	n := len(series.Distances)
	if n == 0 || n != len(series.Delta) {
		return nil, fmt.Errorf("malformed delta series: %d distances, %d deltas", n, len(series.Delta))
	}

	maxDelta := 0.0
	for _, v := range series.Delta {
		if a := math.Abs(v); a > maxDelta {
			maxDelta = a
		}
	}

	gridRes := 0.0
	if n > 1 {
		gridRes = series.Distances[1] - series.Distances[0]
	}

	refDriver := lap1.Driver
	if res.ReferenceLap() == 2 {
		refDriver = lap2.Driver
	}

	doc := &Document{
		Metadata: Metadata{
			ExportID:        uuid.NewString(),
			SessionYear:     session.Year,
			SessionType:     session.Type,
			SessionName:     session.Name,
			Drivers:         []string{lap1.Driver, lap2.Driver},
			LapTimes:        []float64{res.LapTime1, res.LapTime2},
			ReferenceDriver: refDriver,
			TotalDistance:   series.Distances[n-1] - series.Distances[0],
			DataPoints:      n,
			GridResolution:  gridRes,
			MaxDelta:        maxDelta,
			ExportTimestamp: time.Now().UTC().Format(time.RFC3339),
		},
		Telemetry: TelemetryData{
			Distances:    series.Distances,
			Delta:        series.Delta,
			SpeedDriver1: res.Grid1.Speeds,
			SpeedDriver2: res.Grid2.Speeds,
		},
		Animation: AnimationData{
			PositionMarkers: PositionMarkers(series, res.Roles, lap1.Driver, lap2.Driver),
			SpeedZones:      SpeedZones(series.Distances, res.Grid1.Speeds, res.Grid2.Speeds),
			OvertakingZones: OvertakingZones(series),
			CameraWaypoints: CameraWaypoints(series),
		},
	}
	return doc, nil
}

// WriteFile marshals the document with indentation and writes it to path.
func WriteFile(doc *Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal export document: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}

// PositionMarkers samples the series every 100 m and records which
// driver is ahead. Positive delta means the comparison lap is behind,
// so the reference driver is ahead.
func PositionMarkers(series telemetry.DeltaSeries, roles telemetry.RoleAssignment, driver1, driver2 string) []PositionMarker {
	n := len(series.Distances)
	if n == 0 {
		return nil
	}

	refDriver, compDriver := driver1, driver2
	if roles.Reference() == 2 {
		refDriver, compDriver = driver2, driver1
	}

	markers := []PositionMarker{}
	for d := series.Distances[0]; d < series.Distances[n-1]; d += markerIntervalM {
		idx := nearestIndex(series.Distances, d)
		adv := refDriver
		if series.Delta[idx] < 0 {
			adv = compDriver
		}
		markers = append(markers, PositionMarker{
			Distance:  d,
			Delta:     series.Delta[idx],
			Advantage: adv,
		})
	}
	return markers
}

// SpeedZones classifies the lap into contiguous high/medium/low speed
// stretches using the 25th and 75th percentiles of the mean speed of
// both drivers.
func SpeedZones(distances, speed1, speed2 []float64) []SpeedZone {
	n := len(distances)
	if n == 0 || len(speed1) != n || len(speed2) != n {
		return nil
	}

	avg := make([]float64, n)
	for i := range avg {
		avg[i] = (speed1[i] + speed2[i]) / 2
	}

	sorted := append([]float64(nil), avg...)
	sort.Float64s(sorted)
	high := stat.Quantile(0.75, stat.LinInterp, sorted, nil)
	low := stat.Quantile(0.25, stat.LinInterp, sorted, nil)

	classify := func(speed float64) string {
		switch {
		case speed > high:
			return "high_speed"
		case speed < low:
			return "low_speed"
		default:
			return "medium_speed"
		}
	}

	var zones []SpeedZone
	var cur *SpeedZone
	for i, speed := range avg {
		zoneType := classify(speed)
		if cur == nil || cur.Type != zoneType {
			if cur != nil {
				cur.EndDistance = distances[max(i-1, 0)]
				zones = append(zones, *cur)
			}
			cur = &SpeedZone{Type: zoneType, StartDistance: distances[i], AvgSpeed: speed}
		}
	}
	if cur != nil {
		cur.EndDistance = distances[n-1]
		zones = append(zones, *cur)
	}
	return zones
}

// overtakingThreshold is the delta slope (seconds per meter) above
// which a stretch counts as an overtaking zone: 0.1s of movement per
// kilometer.
const overtakingThreshold = 0.1 / 1000

// OvertakingZones finds stretches where the delta gradient exceeds the
// threshold, i.e. where one driver is gaining rapidly on the other.
func OvertakingZones(series telemetry.DeltaSeries) []OvertakingZone {
	n := len(series.Distances)
	if n < 2 {
		return nil
	}
	grad := gradient(series.Delta, series.Distances)

	var zones []OvertakingZone
	inZone := false
	var zoneStartIdx int
	for i := range grad {
		significant := math.Abs(grad[i]) > overtakingThreshold
		switch {
		case significant && !inZone:
			inZone = true
			zoneStartIdx = i
		case !significant && inZone:
			inZone = false
			intensity := 0.0
			for j := zoneStartIdx; j <= i; j++ {
				if a := math.Abs(grad[j]); a > intensity {
					intensity = a
				}
			}
			zones = append(zones, OvertakingZone{
				StartDistance: series.Distances[zoneStartIdx],
				EndDistance:   series.Distances[i],
				DeltaChange:   series.Delta[i] - series.Delta[zoneStartIdx],
				Intensity:     intensity,
			})
		}
	}
	return zones
}

// CameraWaypoints emits evenly spaced waypoints whose camera style
// tightens as the gap between the drivers closes on screen.
func CameraWaypoints(series telemetry.DeltaSeries) []CameraWaypoint {
	n := len(series.Distances)
	if n == 0 {
		return nil
	}

	count := numCameraWaypoints
	if count > n {
		count = n
	}

	waypoints := make([]CameraWaypoint, 0, count)
	for k := 0; k < count; k++ {
		idx := 0
		if count > 1 {
			idx = int(math.Round(float64(k) * float64(n-1) / float64(count-1)))
		}
		d := series.Delta[idx]
		mag := math.Abs(d)

		style, camDist := "wide_view", 40.0
		switch {
		case mag > 0.5:
			style, camDist = "close_comparison", 15.0
		case mag > 0.2:
			style, camDist = "medium_view", 25.0
		}

		focus := "follower"
		if d < 0 {
			focus = "leader"
		}

		waypoints = append(waypoints, CameraWaypoint{
			Distance:       series.Distances[idx],
			Delta:          d,
			CameraStyle:    style,
			CameraDistance: camDist,
			FocusPoint:     focus,
		})
	}
	return waypoints
}

// SmoothDelta applies a centered moving average of the given window to
// the delta for animation purposes, padding edges with the nearest
// value. The input is not modified.
func SmoothDelta(deltaValues []float64, window int) []float64 {
	n := len(deltaValues)
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	if window < 1 {
		window = 1
	}

	half := window / 2
	for i := 0; i < n; i++ {
		sum := 0.0
		for k := -half; k < window-half; k++ {
			j := i + k
			if j < 0 {
				j = 0
			} else if j >= n {
				j = n - 1
			}
			sum += deltaValues[j]
		}
		out[i] = sum / float64(window)
	}
	return out
}

// SectorBoundaries estimates the three sector boundaries as fixed
// fractions of the lap distance (rough approximation; real boundaries
// would come from timing data).
func SectorBoundaries(distances []float64) map[string]float64 {
	if len(distances) == 0 {
		return nil
	}
	first, last := distances[0], distances[len(distances)-1]
	total := last - first
	return map[string]float64{
		"sector1_end": first + total*0.3,
		"sector2_end": first + total*0.65,
		"sector3_end": last,
	}
}

// BatchItem pairs one computed comparison with the lap records that
// produced it, ready for export.
type BatchItem struct {
	Result *delta.Result
	Lap1   telemetry.LapRecord
	Lap2   telemetry.LapRecord
}

// BatchExport writes one export document per item into outDir, named
// telemetry_<driver1>_vs_<driver2>.json. It returns the written paths;
// a failing item aborts the batch.
func BatchExport(items []BatchItem, session SessionMeta, outDir string) ([]string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, 0, len(items))
	for _, item := range items {
		doc, err := BuildDocument(item.Result, item.Lap1, item.Lap2, session)
		if err != nil {
			return paths, fmt.Errorf("failed to build document for %s vs %s: %w", item.Lap1.Driver, item.Lap2.Driver, err)
		}
		path := filepath.Join(outDir, fmt.Sprintf("telemetry_%s_vs_%s.json", item.Lap1.Driver, item.Lap2.Driver))
		if err := WriteFile(doc, path); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// nearestIndex returns the index of the value in xs closest to x.
// xs is the shared distance grid, which is sorted ascending.
func nearestIndex(xs []float64, x float64) int {
	i := sort.SearchFloat64s(xs, x)
	if i == 0 {
		return 0
	}
	if i == len(xs) {
		return len(xs) - 1
	}
	if x-xs[i-1] <= xs[i]-x {
		return i - 1
	}
	return i
}

// gradient computes dy/dx with central differences in the interior and
// one-sided differences at the edges.
func gradient(y, x []float64) []float64 {
	n := len(y)
	out := make([]float64, n)
	if n < 2 {
		return out
	}
	out[0] = (y[1] - y[0]) / (x[1] - x[0])
	out[n-1] = (y[n-1] - y[n-2]) / (x[n-1] - x[n-2])
	for i := 1; i < n-1; i++ {
		out[i] = (y[i+1] - y[i-1]) / (x[i+1] - x[i-1])
	}
	return out
}
