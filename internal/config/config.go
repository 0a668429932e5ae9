// Package config loads sweep settings from YAML.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds every sweep setting. Zero values are never valid; start from
// Default.
type Config struct {
	Precision   string `yaml:"precision" validate:"oneof=float double"`
	MaxSize     int    `yaml:"max_size" validate:"gte=1"`
	Samples     int    `yaml:"samples" validate:"gte=1"`
	GridSize    int    `yaml:"grid_size" validate:"gte=1"`
	LocalSize   []int  `yaml:"local_size" validate:"len=2,dive,gte=0"`
	Backend     string `yaml:"backend" validate:"oneof=auto opencl host"`
	PreferGPU   bool   `yaml:"prefer_gpu"`
	Verbose     bool   `yaml:"verbose"`
	KernelPath  string `yaml:"kernel_path,omitempty"`
	Output      string `yaml:"output,omitempty"`
	OutputDir   string `yaml:"output_dir" validate:"required"`
	MetricsFile string `yaml:"metrics_file,omitempty"`
}

var validate = validator.New()

// Default returns the stock sweep: float, sizes 1..40, 50 samples, a 4x4 grid
// with 4x4 work-groups.
func Default() Config {
	return Config{
		Precision: "float",
		MaxSize:   40,
		Samples:   50,
		GridSize:  4,
		LocalSize: []int{4, 4},
		Backend:   "auto",
		PreferGPU: true,
		OutputDir: ".",
	}
}

// Load reads path over the defaults and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field constraints and that a non-zero local size divides the
// grid size in both dimensions.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	lx, ly := c.LocalSize[0], c.LocalSize[1]
	if (lx == 0) != (ly == 0) {
		return fmt.Errorf("local_size %dx%d: set both dimensions or neither", lx, ly)
	}
	if lx > 0 && (c.GridSize%lx != 0 || c.GridSize%ly != 0) {
		return fmt.Errorf("local_size %dx%d must divide grid_size %d", lx, ly, c.GridSize)
	}
	return nil
}
