package db

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/lapdelta.report/internal/telemetry"
)

// ErrNotFound is returned when a requested lap or comparison does not exist.
var ErrNotFound = errors.New("not found")

// LapSummary is the listing view of a stored lap, without the samples.
type LapSummary struct {
	LapID     string  `json:"lap_id"`
	Driver    string  `json:"driver"`
	Session   string  `json:"session,omitempty"`
	LapTime   float64 `json:"lap_time"`
	Samples   int     `json:"samples"`
	CreatedAt string  `json:"created_at"`
}

// SaveLap stores a lap record and its samples in one transaction and
// returns the generated lap ID.
func (db *DB) SaveLap(lap telemetry.LapRecord) (string, error) {
	if err := lap.Trace.Validate(); err != nil {
		return "", err
	}

	lapID := uuid.New().String()

	tx, err := db.Begin()
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO laps (lap_id, driver, session, lap_time_s)
		VALUES (?, ?, ?, ?)
	`, lapID, lap.Driver, lap.Session, lap.LapTime)
	if err != nil {
		return "", fmt.Errorf("failed to insert lap: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO lap_samples (lap_id, seq, distance_m, speed_kmh)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return "", fmt.Errorf("failed to prepare sample insert: %w", err)
	}
	defer stmt.Close()

	for i := range lap.Trace.Distances {
		if _, err := stmt.Exec(lapID, i, lap.Trace.Distances[i], lap.Trace.Speeds[i]); err != nil {
			return "", fmt.Errorf("failed to insert sample %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit lap: %w", err)
	}
	return lapID, nil
}

// GetLap loads a stored lap with its samples in recorded order.
func (db *DB) GetLap(lapID string) (telemetry.LapRecord, error) {
	var lap telemetry.LapRecord

	err := db.QueryRow(`
		SELECT driver, session, lap_time_s FROM laps WHERE lap_id = ?
	`, lapID).Scan(&lap.Driver, &lap.Session, &lap.LapTime)
	if errors.Is(err, sql.ErrNoRows) {
		return lap, fmt.Errorf("lap %s: %w", lapID, ErrNotFound)
	}
	if err != nil {
		return lap, fmt.Errorf("failed to query lap: %w", err)
	}

	rows, err := db.Query(`
		SELECT distance_m, speed_kmh FROM lap_samples
		WHERE lap_id = ? ORDER BY seq
	`, lapID)
	if err != nil {
		return lap, fmt.Errorf("failed to query lap samples: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var d, s float64
		if err := rows.Scan(&d, &s); err != nil {
			return lap, fmt.Errorf("failed to scan lap sample: %w", err)
		}
		lap.Trace.Distances = append(lap.Trace.Distances, d)
		lap.Trace.Speeds = append(lap.Trace.Speeds, s)
	}
	if err := rows.Err(); err != nil {
		return lap, fmt.Errorf("failed to read lap samples: %w", err)
	}
	return lap, nil
}

// ListLaps returns summaries of all stored laps, newest first.
func (db *DB) ListLaps() ([]LapSummary, error) {
	rows, err := db.Query(`
		SELECT l.lap_id, l.driver, l.session, l.lap_time_s, l.created_at,
		       (SELECT COUNT(*) FROM lap_samples s WHERE s.lap_id = l.lap_id)
		FROM laps l
		ORDER BY l.created_at DESC, l.lap_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query laps: %w", err)
	}
	defer rows.Close()

	var laps []LapSummary
	for rows.Next() {
		var l LapSummary
		if err := rows.Scan(&l.LapID, &l.Driver, &l.Session, &l.LapTime, &l.CreatedAt, &l.Samples); err != nil {
			return nil, fmt.Errorf("failed to scan lap summary: %w", err)
		}
		laps = append(laps, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read lap summaries: %w", err)
	}
	return laps, nil
}
