package projection_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/terrain.nav/internal/cloud"
	"github.com/banshee-data/terrain.nav/internal/projection"
)

var testModel = projection.Model{
	AzimuthStart:   -math.Pi / 3,
	AzimuthStep:    0.011,
	ElevationStart: -0.32,
	ElevationStep:  0.009,
	Height:         32,
	Width:          64,
}

// syntheticCloud builds a structured cloud whose every cell lies exactly
// on the model's angular lattice, at a fixed range of 5m.
func syntheticCloud(t *testing.T, m projection.Model) *cloud.Cloud {
	t.Helper()
	c := cloud.New()
	if err := c.AppendPositionFields(); err != nil {
		t.Fatalf("append position fields: %v", err)
	}
	if err := c.Resize(m.Height, m.Width); err != nil {
		t.Fatalf("resize: %v", err)
	}
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	for r := 0; r < m.Height; r++ {
		for col := 0; col < m.Width; col++ {
			pos.Set(c.Index(r, col), m.Unproject(float64(r), float64(col)).Mul(5))
		}
	}
	return c
}

func approxEqual(a, b, tol float64) bool {
	return math.Abs(a-b) <= tol
}

func requireModelClose(t *testing.T, got, want projection.Model, tol float64) {
	t.Helper()
	if got.Height != want.Height || got.Width != want.Width {
		t.Fatalf("model size %dx%d, want %dx%d", got.Height, got.Width, want.Height, want.Width)
	}
	params := []struct {
		name      string
		got, want float64
	}{
		{"azimuth start", got.AzimuthStart, want.AzimuthStart},
		{"azimuth step", got.AzimuthStep, want.AzimuthStep},
		{"elevation start", got.ElevationStart, want.ElevationStart},
		{"elevation step", got.ElevationStep, want.ElevationStep},
	}
	for _, p := range params {
		if !approxEqual(p.got, p.want, tol) {
			t.Errorf("%s = %.6f, want %.6f (tol %g)", p.name, p.got, p.want, tol)
		}
	}
}

func TestProjectUnprojectRoundTrip(t *testing.T) {
	m := testModel
	for r := 0; r < m.Height; r++ {
		for c := 0; c < m.Width; c++ {
			row, col := m.Project(m.Unproject(float64(r), float64(c)))
			if !approxEqual(row, float64(r), 1e-4) || !approxEqual(col, float64(c), 1e-4) {
				t.Fatalf("round trip (%d,%d) -> (%.6f,%.6f)", r, c, row, col)
			}
		}
	}
}

func TestFitFastExactRecovery(t *testing.T) {
	c := syntheticCloud(t, testModel)
	f := &projection.Fitter{Logf: t.Logf}
	got, err := f.FitFast(c)
	if err != nil {
		t.Fatalf("fit fast: %v", err)
	}
	requireModelClose(t, got, testModel, 1e-4)
}

func TestFitRobustExactRecovery(t *testing.T) {
	c := syntheticCloud(t, testModel)
	f := &projection.Fitter{Rand: rand.New(rand.NewSource(1)), Logf: t.Logf}
	got, err := f.FitRobust(c)
	if err != nil {
		t.Fatalf("fit robust: %v", err)
	}
	requireModelClose(t, got, testModel, 1e-4)
}

func TestFitDelegatesToRobust(t *testing.T) {
	c := syntheticCloud(t, testModel)
	seed := int64(42)
	robust, err := (&projection.Fitter{Rand: rand.New(rand.NewSource(seed)), Logf: t.Logf}).FitRobust(c)
	if err != nil {
		t.Fatalf("fit robust: %v", err)
	}
	viaFit, err := (&projection.Fitter{Rand: rand.New(rand.NewSource(seed)), Logf: t.Logf}).Fit(c)
	if err != nil {
		t.Fatalf("fit: %v", err)
	}
	if diff := cmp.Diff(robust, viaFit); diff != "" {
		t.Errorf("Fit and FitRobust disagree with identical seeds (-robust +fit):\n%s", diff)
	}
}

func TestFitRobustMissingData(t *testing.T) {
	c := syntheticCloud(t, testModel)
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	holes := rand.New(rand.NewSource(7))
	for i := 0; i < c.Len(); i++ {
		if holes.Float64() < 0.30 {
			pos.SetInvalid(i)
		}
	}

	f := &projection.Fitter{Rand: rand.New(rand.NewSource(2)), Logf: t.Logf}
	got, err := f.FitRobust(c)
	if err != nil {
		t.Fatalf("fit robust with holes: %v", err)
	}
	requireModelClose(t, got, testModel, 1e-3)
}

func TestFitFastMissingData(t *testing.T) {
	// FitFast leans on two reference points per axis; holes move those
	// points but the survivors still sit exactly on the lattice, so the
	// noise-free fit stays tight.
	c := syntheticCloud(t, testModel)
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	holes := rand.New(rand.NewSource(9))
	for i := 0; i < c.Len(); i++ {
		if holes.Float64() < 0.30 {
			pos.SetInvalid(i)
		}
	}
	got, err := (&projection.Fitter{Logf: t.Logf}).FitFast(c)
	if err != nil {
		t.Fatalf("fit fast with holes: %v", err)
	}
	requireModelClose(t, got, testModel, 1e-3)
}

func TestFitTotalFailure(t *testing.T) {
	c := syntheticCloud(t, testModel)
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	for i := 0; i < c.Len(); i++ {
		pos.SetInvalid(i)
	}

	f := &projection.Fitter{Rand: rand.New(rand.NewSource(3)), Logf: t.Logf}
	if _, err := f.FitFast(c); !errors.Is(err, projection.ErrNoFinitePoints) {
		t.Errorf("FitFast error = %v, want ErrNoFinitePoints", err)
	}
	if _, err := f.FitRobust(c); !errors.Is(err, projection.ErrNoFinitePoints) {
		t.Errorf("FitRobust error = %v, want ErrNoFinitePoints", err)
	}
}

func TestFitDegenerateSingleRow(t *testing.T) {
	c := syntheticCloud(t, testModel)
	pos, err := c.Positions()
	if err != nil {
		t.Fatalf("positions: %v", err)
	}
	// Keep only row 5 finite: no elevation pair exists.
	for r := 0; r < c.Height; r++ {
		if r == 5 {
			continue
		}
		for col := 0; col < c.Width; col++ {
			pos.SetInvalid(c.Index(r, col))
		}
	}

	f := &projection.Fitter{Rand: rand.New(rand.NewSource(4)), Logf: t.Logf}
	if _, err := f.FitFast(c); !errors.Is(err, projection.ErrDegenerateGrid) {
		t.Errorf("FitFast error = %v, want ErrDegenerateGrid", err)
	}
	if _, err := f.FitRobust(c); !errors.Is(err, projection.ErrNoAxisModels) {
		t.Errorf("FitRobust error = %v, want ErrNoAxisModels", err)
	}
}

func TestFitRobustDeterministicWithSeed(t *testing.T) {
	c := syntheticCloud(t, testModel)
	a, err := (&projection.Fitter{Rand: rand.New(rand.NewSource(11)), Logf: t.Logf}).FitRobust(c)
	if err != nil {
		t.Fatalf("fit a: %v", err)
	}
	b, err := (&projection.Fitter{Rand: rand.New(rand.NewSource(11)), Logf: t.Logf}).FitRobust(c)
	if err != nil {
		t.Fatalf("fit b: %v", err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("same seed, different models (-a +b):\n%s", diff)
	}
}

func TestProjectOnUnfitModelPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Project on an unfit model did not panic")
		}
	}()
	var m projection.Model
	m.Project(projection.Direction(0, 0))
}

func TestCheckPerfectFit(t *testing.T) {
	c := syntheticCloud(t, testModel)
	rep, err := testModel.Check(c)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if rep.Checked != c.Len() {
		t.Errorf("checked %d points, want %d", rep.Checked, c.Len())
	}
	if rep.Mismatched != 0 {
		t.Errorf("mismatched = %d, want 0", rep.Mismatched)
	}
	if !rep.WithinTolerance {
		t.Errorf("perfect fit out of tolerance: %v", rep)
	}
}

func TestCheckPerturbedModel(t *testing.T) {
	c := syntheticCloud(t, testModel)
	bad := testModel
	bad.AzimuthStep *= 1.15
	rep, err := bad.Check(c)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if rep.Mismatched == 0 {
		t.Error("perturbed model reported no cell mismatches")
	}
	if rep.WithinTolerance {
		t.Errorf("perturbed model passed tolerance: %v", rep)
	}
	if rep.P95Residual < rep.MeanResidual {
		t.Errorf("p95 %.6f below mean %.6f", rep.P95Residual, rep.MeanResidual)
	}
}

func TestCheckSizeMismatch(t *testing.T) {
	c := syntheticCloud(t, testModel)
	m := testModel
	m.Width++
	if _, err := m.Check(c); err == nil {
		t.Error("size mismatch accepted")
	}
}

func TestSummariesLog(t *testing.T) {
	c := syntheticCloud(t, testModel)
	var lines int
	logf := func(format string, args ...any) { lines++ }
	testModel.LogSummary(logf)
	if err := projection.LogCloudSummary(c, logf); err != nil {
		t.Fatalf("cloud summary: %v", err)
	}
	if lines != 4 {
		t.Errorf("logged %d lines, want 4", lines)
	}
}
