package projection

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/banshee-data/terrain.nav/internal/cloud"
	"github.com/banshee-data/terrain.nav/internal/monitoring"
)

// Recoverable fit failures. The caller's previous model is untouched;
// retry with more data or surface a "could not calibrate" condition.
var (
	// ErrNoFinitePoints means the cloud held no point with a finite
	// position.
	ErrNoFinitePoints = errors.New("projection: no finite points")
	// ErrDegenerateGrid means every finite point shared one row or one
	// column, so one axis step cannot be estimated.
	ErrDegenerateGrid = errors.New("projection: finite points span a single row or column")
	// ErrNoAxisModels means FitRobust exhausted its point pairs without
	// a single candidate model on one axis.
	ErrNoAxisModels = errors.New("projection: not enough point pairs for axis models")
)

// DefaultMinAxisModels is the number of two-point candidate models
// FitRobust collects per axis before taking the median.
const DefaultMinAxisModels = 25

// Fitter estimates a Model from a structured cloud. The zero value is
// usable: it logs through the package diagnostic logger and seeds its
// random source from the clock on first use. Tests inject a fixed-seed
// Rand and a capture Logf for reproducibility.
type Fitter struct {
	// MinAxisModels overrides DefaultMinAxisModels when positive.
	MinAxisModels int

	// Rand drives the index shuffle in FitRobust. Repeated fits on the
	// same data select different (statistically similar) median models
	// unless this is seeded deterministically.
	Rand *rand.Rand

	// Logf receives fit diagnostics. Defaults to monitoring.Logf.
	Logf func(format string, args ...any)
}

func (f *Fitter) logf(format string, args ...any) {
	if f.Logf != nil {
		f.Logf(format, args...)
		return
	}
	monitoring.Logf(format, args...)
}

func (f *Fitter) source() *rand.Rand {
	if f.Rand == nil {
		f.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return f.Rand
}

func (f *Fitter) minAxisModels() int {
	if f.MinAxisModels > 0 {
		return f.MinAxisModels
	}
	return DefaultMinAxisModels
}

// Fit estimates a model for the cloud. It delegates to FitRobust.
func (f *Fitter) Fit(c *cloud.Cloud) (Model, error) {
	return f.FitRobust(c)
}

// FitFast estimates the model from one deterministic raster pass: it
// tracks the first-seen minimum-row, maximum-row, minimum-column and
// maximum-column finite points, stopping early once it holds both a row
// pair and a column pair, and solves each axis from its two reference
// points. Cheap, but a single outlier at a reference point skews the
// whole fit; prefer FitRobust for real sensor data.
func (f *Fitter) FitFast(c *cloud.Cloud) (Model, error) {
	start := time.Now()
	pos, err := c.Positions()
	if err != nil {
		return Model{}, err
	}

	n := c.Len()
	iR0, iR1, iC0, iC1 := -1, -1, -1, -1
	for i := 0; i < n; i++ {
		if !pos.Finite(i) {
			continue
		}
		if iR0 < 0 || i/c.Width < iR0/c.Width {
			iR0 = i
		}
		if iR1 < 0 || i/c.Width > iR1/c.Width {
			iR1 = i
		}
		if iC0 < 0 || i%c.Width < iC0%c.Width {
			iC0 = i
		}
		if iC1 < 0 || i%c.Width > iC1%c.Width {
			iC1 = i
		}
		if iR0/c.Width < iR1/c.Width && iC0%c.Width < iC1%c.Width {
			break
		}
	}
	if iR0 < 0 {
		return Model{}, ErrNoFinitePoints
	}

	r0, r1 := iR0/c.Width, iR1/c.Width
	c0, c1 := iC0%c.Width, iC1%c.Width
	if r0 == r1 || c0 == c1 {
		return Model{}, fmt.Errorf("%w (rows %d..%d, cols %d..%d)", ErrDegenerateGrid, r0, r1, c0, c1)
	}

	el0 := Elevation(pos.At(iR0))
	el1 := Elevation(pos.At(iR1))
	az0 := Azimuth(pos.At(iC0))
	az1 := Azimuth(pos.At(iC1))

	m := Model{Height: c.Height, Width: c.Width}
	m.ElevationStep = (el1 - el0) / float64(r1-r0)
	m.ElevationStart = el0 - float64(r0)*m.ElevationStep
	m.AzimuthStep = (az1 - az0) / float64(c1-c0)
	m.AzimuthStart = az0 - float64(c0)*m.AzimuthStep

	f.logf("[Projection] fast fit: elevation difference %.3f between rows %d and %d, "+
		"azimuth difference %.3f between cols %d and %d (%.6fs)",
		el1-el0, r0, r1, az1-az0, c0, c1, time.Since(start).Seconds())
	return m, nil
}

// axisModel is one exact two-point solution for a single axis: the
// angle at index zero and the per-index step.
type axisModel struct {
	start float64
	step  float64
}

// medianByStep sorts candidates by step and returns the median model.
func medianByStep(models []axisModel) axisModel {
	sort.Slice(models, func(i, j int) bool { return models[i].step < models[j].step })
	return models[len(models)/2]
}

// FitRobust estimates the model by median consensus: it shuffles the
// finite point indices, solves an exact two-point model for every
// consecutive pair that differs in column (azimuth) or row (elevation),
// stops once each axis holds at least MinAxisModels candidates, and
// takes the median-step model per axis. Randomised pairing plus median
// selection bounds the influence of any single outlier pair.
func (f *Fitter) FitRobust(c *cloud.Cloud) (Model, error) {
	start := time.Now()
	pos, err := c.Positions()
	if err != nil {
		return Model{}, err
	}

	n := c.Len()
	valid := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if pos.Finite(i) {
			valid = append(valid, i)
		}
	}
	f.source().Shuffle(len(valid), func(i, j int) {
		valid[i], valid[j] = valid[j], valid[i]
	})

	want := f.minAxisModels()
	var azModels, elModels []axisModel
	for i := 0; i+1 < len(valid); i++ {
		i0, i1 := valid[i], valid[i+1]

		if c0, c1 := i0%c.Width, i1%c.Width; c0 != c1 {
			az0 := Azimuth(pos.At(i0))
			az1 := Azimuth(pos.At(i1))
			step := (az1 - az0) / float64(c1-c0)
			azModels = append(azModels, axisModel{start: az0 - float64(c0)*step, step: step})
		}
		if r0, r1 := i0/c.Width, i1/c.Width; r0 != r1 {
			el0 := Elevation(pos.At(i0))
			el1 := Elevation(pos.At(i1))
			step := (el1 - el0) / float64(r1-r0)
			elModels = append(elModels, axisModel{start: el0 - float64(r0)*step, step: step})
		}
		if len(azModels) >= want && len(elModels) >= want {
			break
		}
	}

	if len(valid) == 0 {
		return Model{}, ErrNoFinitePoints
	}
	if len(azModels) == 0 || len(elModels) == 0 {
		return Model{}, fmt.Errorf("%w (azimuth %d, elevation %d)",
			ErrNoAxisModels, len(azModels), len(elModels))
	}

	az := medianByStep(azModels)
	el := medianByStep(elModels)
	m := Model{
		AzimuthStart:   az.start,
		AzimuthStep:    az.step,
		ElevationStart: el.start,
		ElevationStep:  el.step,
		Height:         c.Height,
		Width:          c.Width,
	}

	f.logf("[Projection] robust fit [deg]: azimuth [%.1f, %.1f] step %.3f (from %d models), "+
		"elevation [%.1f, %.1f] step %.3f (from %d models) (%.6fs)",
		degrees(m.AzimuthStart), degrees(m.AzimuthStart+float64(m.Width-1)*m.AzimuthStep),
		degrees(m.AzimuthStep), len(azModels),
		degrees(m.ElevationStart), degrees(m.ElevationStart+float64(m.Height-1)*m.ElevationStep),
		degrees(m.ElevationStep), len(elModels),
		time.Since(start).Seconds())
	return m, nil
}
