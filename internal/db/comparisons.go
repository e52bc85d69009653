package db

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/banshee-data/lapdelta.report/internal/delta"
	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// ComparisonRecord is a stored pipeline result: the comparison header
// plus the delta series points. Lap IDs are empty when the comparison
// was computed from inline traces rather than stored laps.
type ComparisonRecord struct {
	ComparisonID    string                `json:"comparison_id"`
	Lap1ID          string                `json:"lap1_id,omitempty"`
	Lap2ID          string                `json:"lap2_id,omitempty"`
	Driver1         string                `json:"driver1"`
	Driver2         string                `json:"driver2"`
	ReferenceDriver string                `json:"reference_driver"`
	LapTime1        float64               `json:"lap_time1"`
	LapTime2        float64               `json:"lap_time2"`
	FinalGap        float64               `json:"final_gap"`
	MaxDelta        float64               `json:"max_delta"`
	NumWindows      int                   `json:"num_windows"`
	GridStep        float64               `json:"grid_step"`
	CreatedAt       string                `json:"created_at,omitempty"`
	Series          telemetry.DeltaSeries `json:"series"`
}

// NewComparisonRecord builds a storable record from a pipeline result.
func NewComparisonRecord(res *delta.Result, driver1, driver2, lap1ID, lap2ID string) ComparisonRecord {
	ref := driver1
	if res.ReferenceLap() == 2 {
		ref = driver2
	}
	maxDelta := 0.0
	for _, v := range res.Series.Delta {
		if a := math.Abs(v); a > maxDelta {
			maxDelta = a
		}
	}
	return ComparisonRecord{
		Lap1ID:          lap1ID,
		Lap2ID:          lap2ID,
		Driver1:         driver1,
		Driver2:         driver2,
		ReferenceDriver: ref,
		LapTime1:        res.LapTime1,
		LapTime2:        res.LapTime2,
		FinalGap:        res.FinalGap(),
		MaxDelta:        maxDelta,
		NumWindows:      len(res.Windows),
		GridStep:        gridStep(res.Series.Distances),
		Series:          res.Series,
	}
}

func gridStep(distances []float64) float64 {
	if len(distances) < 2 {
		return 0
	}
	return distances[1] - distances[0]
}

// SaveComparison stores a comparison header and its series points in
// one transaction and returns the generated comparison ID.
func (db *DB) SaveComparison(rec ComparisonRecord) (string, error) {
	id := uuid.New().String()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO comparisons (
			comparison_id, lap1_id, lap2_id, driver1, driver2,
			reference_driver, lap_time1_s, lap_time2_s,
			final_gap_s, max_delta_s, num_windows, grid_step_m
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, nullable(rec.Lap1ID), nullable(rec.Lap2ID), rec.Driver1, rec.Driver2,
		rec.ReferenceDriver, rec.LapTime1, rec.LapTime2,
		rec.FinalGap, rec.MaxDelta, rec.NumWindows, rec.GridStep)
	if err != nil {
		return "", fmt.Errorf("failed to insert comparison: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO comparison_points (comparison_id, seq, distance_m, delta_s)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare point insert: %w", err)
	}
	defer stmt.Close()

	for i := range rec.Series.Distances {
		if _, err := stmt.Exec(id, i, rec.Series.Distances[i], rec.Series.Delta[i]); err != nil {
			return "", fmt.Errorf("failed to insert point %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit comparison: %w", err)
	}
	return id, nil
}

// GetComparison loads a stored comparison with its full delta series.
func (db *DB) GetComparison(comparisonID string) (ComparisonRecord, error) {
	var rec ComparisonRecord
	var lap1ID, lap2ID sql.NullString

	err := db.QueryRow(`
		SELECT comparison_id, lap1_id, lap2_id, driver1, driver2,
		       reference_driver, lap_time1_s, lap_time2_s,
		       final_gap_s, max_delta_s, num_windows, grid_step_m, created_at
		FROM comparisons WHERE comparison_id = ?
	`, comparisonID).Scan(&rec.ComparisonID, &lap1ID, &lap2ID, &rec.Driver1, &rec.Driver2,
		&rec.ReferenceDriver, &rec.LapTime1, &rec.LapTime2,
		&rec.FinalGap, &rec.MaxDelta, &rec.NumWindows, &rec.GridStep, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, fmt.Errorf("comparison %s: %w", comparisonID, ErrNotFound)
	}
	if err != nil {
		return rec, fmt.Errorf("failed to query comparison: %w", err)
	}
	rec.Lap1ID = lap1ID.String
	rec.Lap2ID = lap2ID.String

	rows, err := db.Query(`
		SELECT distance_m, delta_s FROM comparison_points
		WHERE comparison_id = ? ORDER BY seq
	`, comparisonID)
	if err != nil {
		return rec, fmt.Errorf("failed to query comparison points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d, v float64
		if err := rows.Scan(&d, &v); err != nil {
			return rec, fmt.Errorf("failed to scan comparison point: %w", err)
		}
		rec.Series.Distances = append(rec.Series.Distances, d)
		rec.Series.Delta = append(rec.Series.Delta, v)
	}
	if err := rows.Err(); err != nil {
		return rec, fmt.Errorf("failed to read comparison points: %w", err)
	}
	return rec, nil
}

// ListComparisons returns comparison headers (no series), newest first.
func (db *DB) ListComparisons() ([]ComparisonRecord, error) {
	rows, err := db.Query(`
		SELECT comparison_id, driver1, driver2, reference_driver,
		       lap_time1_s, lap_time2_s, final_gap_s, max_delta_s, created_at
		FROM comparisons
		ORDER BY created_at DESC, comparison_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query comparisons: %w", err)
	}
	defer rows.Close()

	var recs []ComparisonRecord
	for rows.Next() {
		var rec ComparisonRecord
		if err := rows.Scan(&rec.ComparisonID, &rec.Driver1, &rec.Driver2, &rec.ReferenceDriver,
			&rec.LapTime1, &rec.LapTime2, &rec.FinalGap, &rec.MaxDelta, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan comparison: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read comparisons: %w", err)
	}
	return recs, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
