package db

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
	"github.com/banshee-data/lapdelta.report/internal/testutil"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.MigrateUp())
	return db
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateUp())

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(2), version)
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.MigrateDown())

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	require.False(t, dirty)
	require.Equal(t, uint(1), version)

	// The comparison tables are gone after rolling back 0002.
	_, err = db.Exec(`SELECT COUNT(*) FROM comparisons`)
	require.Error(t, err)
	_, err = db.Exec(`SELECT COUNT(*) FROM laps`)
	require.NoError(t, err)
}

func TestSaveAndGetLap(t *testing.T) {
	db := openTestDB(t)

	lap := telemetry.LapRecord{
		Driver:  "VER",
		Session: "2024-monza-q3",
		Trace:   testutil.WavySpeedTrace(500, 10),
		LapTime: 82.5,
	}

	lapID, err := db.SaveLap(lap)
	require.NoError(t, err)
	require.NotEmpty(t, lapID)

	got, err := db.GetLap(lapID)
	require.NoError(t, err)
	if diff := cmp.Diff(lap, got); diff != "" {
		t.Errorf("lap round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGetLapNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetLap("no-such-lap")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveLapRejectsInvalidTrace(t *testing.T) {
	db := openTestDB(t)

	lap := telemetry.LapRecord{
		Driver:  "VER",
		Trace:   telemetry.Trace{Distances: []float64{0, 10}, Speeds: []float64{100}},
		LapTime: 82.5,
	}
	_, err := db.SaveLap(lap)

	var invalid *telemetry.InvalidTraceError
	require.True(t, errors.As(err, &invalid))

	// Nothing was persisted.
	laps, err := db.ListLaps()
	require.NoError(t, err)
	require.Empty(t, laps)
}

func TestListLaps(t *testing.T) {
	db := openTestDB(t)

	trace := testutil.ConstantSpeedTrace(100, 10, 180)
	for _, driver := range []string{"VER", "HAM", "LEC"} {
		_, err := db.SaveLap(telemetry.LapRecord{Driver: driver, Trace: trace, LapTime: 90})
		require.NoError(t, err)
	}

	laps, err := db.ListLaps()
	require.NoError(t, err)
	require.Len(t, laps, 3)
	for _, l := range laps {
		require.Equal(t, trace.Len(), l.Samples)
		require.NotEmpty(t, l.CreatedAt)
	}
}

func TestSaveAndGetComparison(t *testing.T) {
	db := openTestDB(t)

	base := testutil.WavySpeedTrace(1000, 10)
	lap1 := telemetry.LapRecord{Driver: "VER", Trace: base, LapTime: 90.0}
	lap2 := telemetry.LapRecord{Driver: "HAM", Trace: testutil.ShiftTrace(base, 3), LapTime: 91.2}

	res, err := delta.NewPipeline(nil).Calculate(lap1, lap2)
	require.NoError(t, err)

	rec := NewComparisonRecord(res, "VER", "HAM", "", "")
	require.Equal(t, "VER", rec.ReferenceDriver)
	require.InDelta(t, 1.2, rec.FinalGap, 1e-9)

	id, err := db.SaveComparison(rec)
	require.NoError(t, err)

	got, err := db.GetComparison(id)
	require.NoError(t, err)
	require.Equal(t, id, got.ComparisonID)
	require.Equal(t, "VER", got.Driver1)
	require.Equal(t, "HAM", got.Driver2)
	require.Equal(t, "VER", got.ReferenceDriver)
	require.InDelta(t, rec.FinalGap, got.FinalGap, 1e-9)
	require.Empty(t, got.Lap1ID)
	if diff := cmp.Diff(rec.Series, got.Series); diff != "" {
		t.Errorf("series round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestGetComparisonNotFound(t *testing.T) {
	db := openTestDB(t)

	_, err := db.GetComparison("no-such-comparison")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSaveComparisonLinksStoredLaps(t *testing.T) {
	db := openTestDB(t)

	base := testutil.WavySpeedTrace(1000, 10)
	lap1 := telemetry.LapRecord{Driver: "NOR", Trace: base, LapTime: 88.0}
	lap2 := telemetry.LapRecord{Driver: "PIA", Trace: base, LapTime: 88.4}

	lap1ID, err := db.SaveLap(lap1)
	require.NoError(t, err)
	lap2ID, err := db.SaveLap(lap2)
	require.NoError(t, err)

	res, err := delta.NewPipeline(nil).Calculate(lap1, lap2)
	require.NoError(t, err)

	id, err := db.SaveComparison(NewComparisonRecord(res, "NOR", "PIA", lap1ID, lap2ID))
	require.NoError(t, err)

	got, err := db.GetComparison(id)
	require.NoError(t, err)
	require.Equal(t, lap1ID, got.Lap1ID)
	require.Equal(t, lap2ID, got.Lap2ID)
}

func TestSaveComparisonRejectsUnknownLapID(t *testing.T) {
	db := openTestDB(t)

	rec := ComparisonRecord{
		Lap1ID:  "no-such-lap",
		Driver1: "VER", Driver2: "HAM", ReferenceDriver: "VER",
		LapTime1: 90, LapTime2: 91,
		Series: telemetry.DeltaSeries{Distances: []float64{0, 5}, Delta: []float64{0, 1}},
	}
	_, err := db.SaveComparison(rec)
	require.Error(t, err)
}

func TestListComparisons(t *testing.T) {
	db := openTestDB(t)

	base := testutil.WavySpeedTrace(1000, 10)
	res, err := delta.NewPipeline(nil).Calculate(
		telemetry.LapRecord{Driver: "VER", Trace: base, LapTime: 90.0},
		telemetry.LapRecord{Driver: "HAM", Trace: base, LapTime: 90.5},
	)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := db.SaveComparison(NewComparisonRecord(res, "VER", "HAM", "", ""))
		require.NoError(t, err)
	}

	recs, err := db.ListComparisons()
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, rec := range recs {
		require.Empty(t, rec.Series.Distances) // listing omits points
		require.NotEmpty(t, rec.CreatedAt)
	}
}
