package projection

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/terrain.nav/internal/cloud"
)

// Azimuth returns the horizontal angle of v in the xy plane, in radians,
// positive from +x towards +y.
func Azimuth(v r3.Vector) float64 {
	return math.Atan2(v.Y, v.X)
}

// Elevation returns the vertical angle of v from the xy plane towards
// +z, in radians.
func Elevation(v r3.Vector) float64 {
	return math.Asin(v.Z / v.Norm())
}

// Direction returns the unit vector at the given azimuth and elevation.
func Direction(azimuth, elevation float64) r3.Vector {
	ce := math.Cos(elevation)
	return r3.Vector{
		X: ce * math.Cos(azimuth),
		Y: ce * math.Sin(azimuth),
		Z: math.Sin(elevation),
	}
}

func degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// Model is the fitted angular sampling pattern of a structured sensor.
// Azimuth grows with column index and elevation with row index, both at
// a constant rate; AzimuthStart and ElevationStart are the angles at
// column 0 and row 0. A zero Model is unfit.
//
// A Model is a plain value: fits return a fresh copy and never mutate a
// previously returned one.
type Model struct {
	AzimuthStart   float64
	AzimuthStep    float64
	ElevationStart float64
	ElevationStep  float64

	// Grid size of the cloud the model was fitted from.
	Height int
	Width  int
}

// Fitted reports whether the model carries a usable fit.
func (m Model) Fitted() bool {
	return m.Height > 0 && m.Width > 0 && m.AzimuthStep != 0 && m.ElevationStep != 0
}

func (m Model) mustFit() {
	if !m.Fitted() {
		panic("projection: Project/Unproject on an unfit model")
	}
}

// Project converts a 3D direction to continuous image coordinates. No
// bounds clamping is applied; callers round or clip as needed.
// Precondition: the model is fit.
func (m Model) Project(v r3.Vector) (row, col float64) {
	m.mustFit()
	row = (Elevation(v) - m.ElevationStart) / m.ElevationStep
	col = (Azimuth(v) - m.AzimuthStart) / m.AzimuthStep
	return row, col
}

// Unproject reconstructs the unit direction at continuous image
// coordinates (row, col). Project(Unproject(r, c)) reproduces (r, c) to
// numerical precision. Precondition: the model is fit.
func (m Model) Unproject(row, col float64) r3.Vector {
	m.mustFit()
	return Direction(m.AzimuthStart+col*m.AzimuthStep, m.ElevationStart+row*m.ElevationStep)
}

// LogSummary emits an 8x8 lattice of the model's azimuth and elevation
// angles in degrees for operator diagnostics.
func (m Model) LogSummary(logf func(format string, args ...any)) {
	if !m.Fitted() {
		logf("[Projection] model summary: unfit model")
		return
	}
	var az, el strings.Builder
	rStep := max(1, m.Height/8)
	cStep := max(1, m.Width/8)
	for r := 0; r < m.Height; r += rStep {
		if r > 0 {
			az.WriteByte('\n')
			el.WriteByte('\n')
		}
		for c := 0; c < m.Width; c += cStep {
			v := m.Unproject(float64(r), float64(c))
			if c > 0 {
				az.WriteByte(' ')
				el.WriteByte(' ')
			}
			fmt.Fprintf(&az, "%.1f", degrees(Azimuth(v)))
			fmt.Fprintf(&el, "%.1f", degrees(Elevation(v)))
		}
	}
	logf("[Projection] azimuth model sample:\n%s", az.String())
	logf("[Projection] elevation model sample:\n%s", el.String())
}

// LogCloudSummary samples an 8x8 lattice of actual point angles from the
// cloud's position field, the raw-data counterpart of Model.LogSummary.
func LogCloudSummary(c *cloud.Cloud, logf func(format string, args ...any)) error {
	pos, err := c.Positions()
	if err != nil {
		return err
	}
	var az, el strings.Builder
	rStep := max(1, c.Height/8)
	cStep := max(1, c.Width/8)
	for r := 0; r < c.Height; r += rStep {
		if r > 0 {
			az.WriteByte('\n')
			el.WriteByte('\n')
		}
		for col := 0; col < c.Width; col += cStep {
			v := pos.At(c.Index(r, col))
			if col > 0 {
				az.WriteByte(' ')
				el.WriteByte(' ')
			}
			fmt.Fprintf(&az, "%.1f", degrees(Azimuth(v)))
			fmt.Fprintf(&el, "%.1f", degrees(Elevation(v)))
		}
	}
	logf("[Projection] azimuth sample:\n%s", az.String())
	logf("[Projection] elevation sample:\n%s", el.String())
	return nil
}
