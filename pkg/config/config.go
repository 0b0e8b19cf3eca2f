// Package config provides configuration loading and management for sirt3d.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Grid is the shape of the Cartesian process grid
	Grid struct {
		// Rows is the number of process rows (size of every column group)
		Rows int `yaml:"rows"`

		// Cols is the number of process columns (size of every row group)
		Cols int `yaml:"cols"`
	} `yaml:"grid"`

	// SIRT holds the iteration parameters
	SIRT struct {
		// Lambda is the damping parameter applied to every update
		Lambda float64 `yaml:"lam"`

		// MaxIterations bounds the number of iterations
		MaxIterations int `yaml:"maxit"`

		// Tolerance is the stopping threshold on the residual change
		Tolerance float64 `yaml:"tol"`

		// Radius of the reconstruction sphere, -1 for the inscribed sphere
		Radius float64 `yaml:"radius"`

		// RadiusUnits is "voxels" or "fraction" (of the inscribed radius N/2-1)
		RadiusUnits string `yaml:"radiusUnits"`

		// Stopping is "relative" or "absolute" residual change
		Stopping string `yaml:"stopping"`

		// Symmetry is a point-group label such as c1, c4 or d2
		Symmetry string `yaml:"symmetry"`

		// Kernel is the projection kernel, "bilinear" or "nearest"
		Kernel string `yaml:"kernel"`

		// Workers bounds the goroutines each process uses for forward projection
		Workers int `yaml:"workers"`

		// MaxVoxels caps the volume size a process may allocate
		MaxVoxels int `yaml:"maxVoxels"`
	} `yaml:"sirt"`

	// Phantom describes the synthetic data set used by the run command
	Phantom struct {
		// Kind is "spheres" or "blobs"
		Kind string `yaml:"kind"`

		// Size is the volume edge length in voxels
		Size int `yaml:"size"`

		// Views is the number of projection images
		Views int `yaml:"views"`

		// Fold is the rotational symmetry of the "blobs" phantom
		Fold int `yaml:"fold"`

		// Noise is the standard deviation of Gaussian noise added to projections
		Noise float64 `yaml:"noise"`

		// Seed initialises the noise generator
		Seed int64 `yaml:"seed"`
	} `yaml:"phantom"`

	// Output parameters
	Output struct {
		// SlicesDir receives x/y/z slice sequences of the result when set
		SlicesDir string `yaml:"slicesDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// Logging parameters
	Logging struct {
		// Format is "text" or "json"
		Format string `yaml:"format"`

		// Level is debug, info, warn, error or none
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Grid.Rows = 1
	cfg.Grid.Cols = 2

	cfg.SIRT.Lambda = 1.0e-4
	cfg.SIRT.MaxIterations = 100
	cfg.SIRT.Tolerance = 1.0e-3
	cfg.SIRT.Radius = -1
	cfg.SIRT.RadiusUnits = "voxels"
	cfg.SIRT.Stopping = "relative"
	cfg.SIRT.Symmetry = "c1"
	cfg.SIRT.Kernel = "bilinear"
	cfg.SIRT.Workers = 1
	cfg.SIRT.MaxVoxels = 256 * 256 * 256

	cfg.Phantom.Kind = "spheres"
	cfg.Phantom.Size = 16
	cfg.Phantom.Views = 24
	cfg.Phantom.Fold = 4
	cfg.Phantom.Noise = 0
	cfg.Phantom.Seed = 1

	cfg.Output.Verbose = true

	cfg.Logging.Format = "text"
	cfg.Logging.Level = "info"

	return cfg
}

// Validate rejects values no run could use.
func (c *Config) Validate() error {
	var errs []error
	if c.Grid.Rows < 1 || c.Grid.Cols < 1 {
		errs = append(errs, fmt.Errorf("grid must be at least 1x1, got %dx%d", c.Grid.Rows, c.Grid.Cols))
	}
	if c.Phantom.Size < 4 {
		errs = append(errs, fmt.Errorf("phantom size must be at least 4, got %d", c.Phantom.Size))
	}
	if c.Phantom.Views < 1 {
		errs = append(errs, fmt.Errorf("phantom views must be positive, got %d", c.Phantom.Views))
	}
	if c.Phantom.Kind != "spheres" && c.Phantom.Kind != "blobs" {
		errs = append(errs, fmt.Errorf("unknown phantom kind %q", c.Phantom.Kind))
	}
	if c.Phantom.Noise < 0 {
		errs = append(errs, fmt.Errorf("phantom noise must not be negative, got %g", c.Phantom.Noise))
	}
	if c.SIRT.Workers < 1 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.SIRT.Workers))
	}
	return errors.Join(errs...)
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
