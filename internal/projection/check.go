package projection

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/terrain.nav/internal/cloud"
)

// CheckReport summarises how well a fitted model reprojects the cloud it
// claims to describe. Residuals are angular errors in radians between a
// point's measured direction and the direction reconstructed from its
// integer grid cell, accumulated only where the predicted cell disagrees
// with the actual cell.
type CheckReport struct {
	// Checked is the number of finite points examined.
	Checked int
	// Mismatched is the number of points whose rounded reprojection
	// landed in a different cell than the one they occupy.
	Mismatched int

	MeanResidual float64
	P95Residual  float64

	// Threshold is half the smaller axis step: a mean residual beyond
	// it means the grid assignment is off by more than half a cell on
	// the finer axis.
	Threshold float64

	// WithinTolerance is true when the mean residual stays under
	// Threshold (vacuously true with no mismatches).
	WithinTolerance bool
}

// Check reprojects every finite point of the cloud through the model,
// compares actual against predicted grid cells, and reports residual
// statistics with an explicit pass/fail verdict at Threshold.
// Precondition failures (unfit model, size mismatch) are errors; a poor
// fit is not an error, it is a report with WithinTolerance=false.
func (m Model) Check(c *cloud.Cloud) (CheckReport, error) {
	if !m.Fitted() {
		return CheckReport{}, fmt.Errorf("projection: check with unfit model")
	}
	if c.Height != m.Height || c.Width != m.Width {
		return CheckReport{}, fmt.Errorf("projection: cloud size %dx%d inconsistent with model size %dx%d",
			c.Height, c.Width, m.Height, m.Width)
	}
	pos, err := c.Positions()
	if err != nil {
		return CheckReport{}, err
	}

	rep := CheckReport{
		Threshold: math.Min(math.Abs(m.AzimuthStep), math.Abs(m.ElevationStep)) / 2,
	}
	var residuals []float64
	for r := 0; r < m.Height; r++ {
		for col := 0; col < m.Width; col++ {
			i := c.Index(r, col)
			if !pos.Finite(i) {
				continue
			}
			rep.Checked++
			v := pos.At(i)
			rModel, cModel := m.Project(v)
			if r == int(math.Round(rModel)) && col == int(math.Round(cModel)) {
				continue
			}
			rep.Mismatched++
			residual := math.Acos(v.Normalize().Dot(m.Unproject(float64(r), float64(col))))
			if math.IsNaN(residual) || math.IsInf(residual, 0) {
				continue
			}
			residuals = append(residuals, residual)
		}
	}

	if len(residuals) > 0 {
		sort.Float64s(residuals)
		rep.MeanResidual = stat.Mean(residuals, nil)
		rep.P95Residual = stat.Quantile(0.95, stat.Empirical, residuals, nil)
	}
	rep.WithinTolerance = rep.MeanResidual <= rep.Threshold
	return rep, nil
}

// String renders the report in degrees for log lines.
func (r CheckReport) String() string {
	return fmt.Sprintf("checked %d, mismatched %d, mean residual %.3f deg, p95 %.3f deg, threshold %.3f deg, ok=%v",
		r.Checked, r.Mismatched, degrees(r.MeanResidual), degrees(r.P95Residual),
		degrees(r.Threshold), r.WithinTolerance)
}
