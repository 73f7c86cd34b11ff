// Package config loads fit tuning parameters from JSON. Fields are
// pointer-typed so a file can set only the values it cares about; unset
// fields fall through to compiled-in defaults.
package config

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/banshee-data/terrain.nav/internal/projection"
)

// TuningConfig is the root configuration for projection model fitting.
// The same JSON schema is accepted at startup and for runtime updates.
type TuningConfig struct {
	// Seed fixes the random source of robust fits for reproducible
	// runs. Unset means a clock-seeded source (the production default).
	Seed *int64 `json:"seed,omitempty"`

	// MinAxisModels is the number of two-point candidate models
	// collected per axis before the median is taken.
	MinAxisModels *int `json:"min_axis_models,omitempty"`

	// ResidualCheck toggles the post-fit reprojection check.
	ResidualCheck *bool `json:"residual_check,omitempty"`
}

// EmptyTuningConfig returns a config with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig reads and validates a tuning JSON file.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks that the configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.MinAxisModels != nil && *c.MinAxisModels <= 0 {
		return fmt.Errorf("min_axis_models must be positive, got %d", *c.MinAxisModels)
	}
	return nil
}

// GetMinAxisModels returns the configured candidate count or the
// package default.
func (c *TuningConfig) GetMinAxisModels() int {
	if c.MinAxisModels == nil {
		return projection.DefaultMinAxisModels
	}
	return *c.MinAxisModels
}

// GetResidualCheck reports whether the post-fit check is enabled.
// Defaults to true.
func (c *TuningConfig) GetResidualCheck() bool {
	if c.ResidualCheck == nil {
		return true
	}
	return *c.ResidualCheck
}

// Apply configures a Fitter from this config. The fitter's Logf is left
// untouched; logging capability is wired by the caller.
func (c *TuningConfig) Apply(f *projection.Fitter) {
	f.MinAxisModels = c.GetMinAxisModels()
	if c.Seed != nil {
		f.Rand = rand.New(rand.NewSource(*c.Seed))
	}
}
