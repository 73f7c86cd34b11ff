// Package modeldb persists fitted spherical projection models so a later
// session can reuse a sensor's calibration instead of refitting from the
// first frame.
package modeldb

import (
	"database/sql"
	_ "embed"
	"fmt"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/terrain.nav/internal/monitoring"
	"github.com/banshee-data/terrain.nav/internal/projection"
	"github.com/banshee-data/terrain.nav/internal/timeutil"
)

//go:embed schema.sql
var schemaSQL string

// ModelDB wraps a sqlite database holding calibration rows.
type ModelDB struct {
	*sql.DB

	// Clock stamps rows missing a creation time. Defaults to the wall
	// clock; tests may substitute a timeutil.MockClock.
	Clock timeutil.Clock
}

// NewModelDB opens (creating if needed) the calibration database at path
// and applies the embedded schema.
func NewModelDB(path string) (*ModelDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("modeldb: apply schema: %w", err)
	}
	monitoring.Logf("[ModelDB] Initialised calibration schema at %s", path)
	return &ModelDB{DB: db, Clock: timeutil.RealClock{}}, nil
}

// Calibration is one persisted fit of a sensor's projection model,
// together with the residual diagnostics recorded at fit time.
type Calibration struct {
	ID               string
	SensorID         string
	CreatedUnixNanos int64
	Model            projection.Model
	CheckedPoints    int
	MismatchedPoints int
	MeanResidual     float64
	// Source records where the fitted cloud came from (capture file,
	// live session id).
	Source string
}

// InsertCalibration stores a calibration row, assigning a fresh UUID and
// timestamp where the caller left them empty, and returns the row ID.
func (db *ModelDB) InsertCalibration(cal *Calibration) (string, error) {
	if cal == nil {
		return "", fmt.Errorf("modeldb: nil calibration")
	}
	if !cal.Model.Fitted() {
		return "", fmt.Errorf("modeldb: refusing to store an unfit model")
	}
	if cal.ID == "" {
		cal.ID = uuid.NewString()
	}
	if cal.CreatedUnixNanos == 0 {
		cal.CreatedUnixNanos = db.Clock.Now().UnixNano()
	}
	const stmt = `INSERT INTO calibration
		(calibration_id, sensor_id, created_unix_nanos, height, width,
		 azimuth_start, azimuth_step, elevation_start, elevation_step,
		 checked_points, mismatched_points, mean_residual, source)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.Exec(stmt,
		cal.ID, cal.SensorID, cal.CreatedUnixNanos,
		cal.Model.Height, cal.Model.Width,
		cal.Model.AzimuthStart, cal.Model.AzimuthStep,
		cal.Model.ElevationStart, cal.Model.ElevationStep,
		cal.CheckedPoints, cal.MismatchedPoints, cal.MeanResidual, cal.Source)
	if err != nil {
		return "", fmt.Errorf("modeldb: insert calibration: %w", err)
	}
	return cal.ID, nil
}

const selectColumns = `calibration_id, sensor_id, created_unix_nanos,
	height, width, azimuth_start, azimuth_step, elevation_start, elevation_step,
	checked_points, mismatched_points, mean_residual, COALESCE(source, '')`

func scanCalibration(row *sql.Row) (*Calibration, error) {
	var cal Calibration
	err := row.Scan(
		&cal.ID, &cal.SensorID, &cal.CreatedUnixNanos,
		&cal.Model.Height, &cal.Model.Width,
		&cal.Model.AzimuthStart, &cal.Model.AzimuthStep,
		&cal.Model.ElevationStart, &cal.Model.ElevationStep,
		&cal.CheckedPoints, &cal.MismatchedPoints, &cal.MeanResidual, &cal.Source)
	if err != nil {
		return nil, err
	}
	return &cal, nil
}

// GetCalibration fetches one calibration by row ID.
func (db *ModelDB) GetCalibration(id string) (*Calibration, error) {
	row := db.QueryRow(`SELECT `+selectColumns+` FROM calibration WHERE calibration_id = ?`, id)
	cal, err := scanCalibration(row)
	if err != nil {
		return nil, fmt.Errorf("modeldb: get calibration %s: %w", id, err)
	}
	return cal, nil
}

// LatestCalibration fetches the newest calibration stored for a sensor.
func (db *ModelDB) LatestCalibration(sensorID string) (*Calibration, error) {
	row := db.QueryRow(`SELECT `+selectColumns+` FROM calibration
		WHERE sensor_id = ? ORDER BY created_unix_nanos DESC LIMIT 1`, sensorID)
	cal, err := scanCalibration(row)
	if err != nil {
		return nil, fmt.Errorf("modeldb: latest calibration for %s: %w", sensorID, err)
	}
	return cal, nil
}
