// Package main fits a spherical projection model to a structured point
// cloud stored as a PCD file. It reports reprojection quality, can render
// a per-row residual plot, and can persist the accepted calibration to a
// sqlite store for later retrieval.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/terrain.nav/internal/cloud"
	"github.com/banshee-data/terrain.nav/internal/config"
	"github.com/banshee-data/terrain.nav/internal/modeldb"
	"github.com/banshee-data/terrain.nav/internal/pcd"
	"github.com/banshee-data/terrain.nav/internal/projection"
	"github.com/banshee-data/terrain.nav/internal/version"
)

func main() {
	pcdPath := flag.String("pcd", "", "path to a structured PCD file (required)")
	sensorID := flag.String("sensor", "default", "sensor identifier recorded with the calibration")
	dbPath := flag.String("db", "", "sqlite calibration store; empty means don't persist")
	cfgPath := flag.String("config", "", "optional tuning JSON file")
	seed := flag.Int64("seed", 0, "fix the random source for reproducible fits (0 = clock)")
	fast := flag.Bool("fast", false, "use the two-point fast fit instead of the robust fit")
	plotPath := flag.String("plot", "", "write a per-row mean residual plot to this PNG path")
	showVersion := flag.Bool("version", false, "print build information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("calibrate %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	if *pcdPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.EmptyTuningConfig()
	if *cfgPath != "" {
		loaded, err := config.LoadTuningConfig(*cfgPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
		cfg = loaded
	}

	f, err := os.Open(*pcdPath)
	if err != nil {
		log.Fatalf("open %s: %v", *pcdPath, err)
	}
	c, err := pcd.Read(f)
	f.Close()
	if err != nil {
		log.Fatalf("read %s: %v", *pcdPath, err)
	}
	log.Printf("[Calibrate] Loaded %s: %dx%d points, %d fields", *pcdPath, c.Height, c.Width, len(c.Fields))
	if err := projection.LogCloudSummary(c, log.Printf); err != nil {
		log.Printf("[Calibrate] Cloud summary unavailable: %v", err)
	}

	fitter := projection.Fitter{Logf: log.Printf}
	cfg.Apply(&fitter)
	if *seed != 0 {
		fitter.Rand = rand.New(rand.NewSource(*seed))
	}

	var model projection.Model
	if *fast {
		model, err = fitter.FitFast(c)
	} else {
		model, err = fitter.FitRobust(c)
	}
	if err != nil {
		log.Fatalf("fit: %v", err)
	}
	model.LogSummary(log.Printf)

	var report projection.CheckReport
	if cfg.GetResidualCheck() {
		report, err = model.Check(c)
		if err != nil {
			log.Fatalf("check: %v", err)
		}
		log.Printf("[Calibrate] %s", report)
		if !report.WithinTolerance {
			log.Printf("[Calibrate] Warning: mean residual exceeds half a grid step; calibration may be unreliable")
		}
	}

	if *plotPath != "" {
		if err := saveResidualPlot(c, model, *plotPath); err != nil {
			log.Fatalf("plot: %v", err)
		}
		log.Printf("[Calibrate] Wrote residual plot to %s", *plotPath)
	}

	if *dbPath != "" {
		db, err := modeldb.NewModelDB(*dbPath)
		if err != nil {
			log.Fatalf("open store: %v", err)
		}
		defer db.Close()

		cal := modeldb.Calibration{
			SensorID:         *sensorID,
			Model:            model,
			CheckedPoints:    report.Checked,
			MismatchedPoints: report.Mismatched,
			MeanResidual:     report.MeanResidual,
			Source:           *pcdPath,
		}
		id, err := db.InsertCalibration(&cal)
		if err != nil {
			log.Fatalf("store calibration: %v", err)
		}
		log.Printf("[Calibrate] Stored calibration %s for sensor %s", id, *sensorID)
	}
}

// saveResidualPlot renders the mean angular residual of each scan row.
// Rows with no finite points are skipped.
func saveResidualPlot(c *cloud.Cloud, m projection.Model, path string) error {
	pos, err := c.Positions()
	if err != nil {
		return err
	}

	pts := make(plotter.XYs, 0, c.Height)
	for row := 0; row < c.Height; row++ {
		var sum float64
		var n int
		for col := 0; col < c.Width; col++ {
			i := c.Index(row, col)
			if !pos.Finite(i) {
				continue
			}
			v := pos.At(i)
			cell := m.Unproject(float64(row), float64(col))
			dot := cell.Dot(v.Normalize())
			if dot > 1 {
				dot = 1
			} else if dot < -1 {
				dot = -1
			}
			sum += math.Acos(dot)
			n++
		}
		if n == 0 {
			continue
		}
		pts = append(pts, plotter.XY{X: float64(row), Y: (sum / float64(n)) * 180 / math.Pi})
	}
	if len(pts) == 0 {
		return fmt.Errorf("no finite points to plot")
	}

	p := plot.New()
	p.Title.Text = "Per-Row Mean Reprojection Residual"
	p.X.Label.Text = "Row"
	p.Y.Label.Text = "Residual (deg)"

	line, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("failed to create line: %w", err)
	}
	line.Width = vg.Points(1)
	p.Add(line)

	return p.Save(14*vg.Inch, 6*vg.Inch, path)
}
