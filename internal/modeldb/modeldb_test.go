package modeldb_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/terrain.nav/internal/modeldb"
	"github.com/banshee-data/terrain.nav/internal/projection"
	"github.com/banshee-data/terrain.nav/internal/timeutil"
)

func openTestDB(t *testing.T) *modeldb.ModelDB {
	t.Helper()
	db, err := modeldb.NewModelDB(filepath.Join(t.TempDir(), "calibration.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func testCalibration(sensor string, createdNanos int64) *modeldb.Calibration {
	return &modeldb.Calibration{
		SensorID:         sensor,
		CreatedUnixNanos: createdNanos,
		Model: projection.Model{
			AzimuthStart:   -1.0,
			AzimuthStep:    0.01,
			ElevationStart: -0.3,
			ElevationStep:  0.008,
			Height:         64,
			Width:          1024,
		},
		CheckedPoints:    60000,
		MismatchedPoints: 12,
		MeanResidual:     0.0004,
		Source:           "capture-0012.pcd",
	}
}

func TestInsertAndGetCalibration(t *testing.T) {
	db := openTestDB(t)

	cal := testCalibration("os1-front", 1000)
	id, err := db.InsertCalibration(cal)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := db.GetCalibration(id)
	require.NoError(t, err)
	assert.Equal(t, cal.SensorID, got.SensorID)
	assert.Equal(t, cal.Model, got.Model)
	assert.Equal(t, cal.CheckedPoints, got.CheckedPoints)
	assert.Equal(t, cal.MismatchedPoints, got.MismatchedPoints)
	assert.Equal(t, cal.MeanResidual, got.MeanResidual)
	assert.Equal(t, cal.Source, got.Source)
}

func TestLatestCalibrationPicksNewest(t *testing.T) {
	db := openTestDB(t)

	older := testCalibration("os1-front", 1000)
	newer := testCalibration("os1-front", 2000)
	newer.Model.AzimuthStep = 0.02
	other := testCalibration("os1-rear", 3000)

	for _, cal := range []*modeldb.Calibration{older, newer, other} {
		_, err := db.InsertCalibration(cal)
		require.NoError(t, err)
	}

	got, err := db.LatestCalibration("os1-front")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, got.ID)
	assert.Equal(t, 0.02, got.Model.AzimuthStep)
}

func TestLatestCalibrationUnknownSensor(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LatestCalibration("nonexistent")
	assert.Error(t, err)
}

func TestInsertRejectsUnfitModel(t *testing.T) {
	db := openTestDB(t)
	cal := testCalibration("os1-front", 1000)
	cal.Model = projection.Model{}
	_, err := db.InsertCalibration(cal)
	assert.Error(t, err)
}

func TestInsertAssignsIDAndTimestamp(t *testing.T) {
	db := openTestDB(t)
	now := time.Date(2026, 2, 14, 9, 30, 0, 0, time.UTC)
	db.Clock = timeutil.NewMockClock(now)

	cal := testCalibration("os1-front", 0)
	id, err := db.InsertCalibration(cal)
	require.NoError(t, err)
	assert.Equal(t, id, cal.ID)
	assert.Equal(t, now.UnixNano(), cal.CreatedUnixNanos)
}
