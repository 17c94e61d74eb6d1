// Package config loads engine settings from YAML.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/qtensor/internal/parallel"
)

// EnvLogMode overrides Log.Mode when set.
const EnvLogMode = "QTENSOR_LOG_MODE"

// Config holds every engine setting.
type Config struct {
	Parallel parallel.Config `yaml:"parallel"`
	Log      LogConfig       `yaml:"log"`
	Demo     DemoConfig      `yaml:"demo"`
}

// LogConfig selects the logger mode: "prod", "debug", or "dev".
type LogConfig struct {
	Mode string `yaml:"mode"`
}

// DemoConfig sizes the random tensors built by the demo command.
type DemoConfig struct {
	Seed     uint64 `yaml:"seed"`
	Charges  []int  `yaml:"charges"`   // U(1) labels of every mode
	BondDim  int    `yaml:"bond_dim"`  // extent of each sector
	Modes    int    `yaml:"modes"`     // rank of the demo tensors
	RowModes int    `yaml:"row_modes"` // modes forming SVD rows
	Diagnose bool   `yaml:"diagnose"`  // log refused blocks
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Parallel: parallel.DefaultConfig(),
		Log:      LogConfig{Mode: "dev"},
		Demo: DemoConfig{
			Seed:     1,
			Charges:  []int{-1, 0, 1},
			BondDim:  3,
			Modes:    3,
			RowModes: 2,
		},
	}
}

// Load reads a YAML file over the defaults. Fields absent from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		//nolint:gosec // G304: path comes from the command line.
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if mode := strings.TrimSpace(os.Getenv(EnvLogMode)); mode != "" {
		cfg.Log.Mode = mode
	}
	return cfg, cfg.Validate()
}

// Validate checks ranges of the loaded values.
func (c Config) Validate() error {
	if c.Parallel.NumWorkers < 0 {
		return fmt.Errorf("config: parallel.num_workers must be >= 0, got %d", c.Parallel.NumWorkers)
	}
	d := c.Demo
	if len(d.Charges) == 0 {
		return fmt.Errorf("config: demo.charges must not be empty")
	}
	if d.BondDim < 1 {
		return fmt.Errorf("config: demo.bond_dim must be >= 1, got %d", d.BondDim)
	}
	if d.Modes < 2 || d.Modes > 6 {
		return fmt.Errorf("config: demo.modes must be in [2, 6], got %d", d.Modes)
	}
	if d.RowModes < 1 || d.RowModes >= d.Modes {
		return fmt.Errorf("config: demo.row_modes must be in [1, %d), got %d", d.Modes, d.RowModes)
	}
	return nil
}
