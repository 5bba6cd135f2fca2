// Package config provides configuration loading and management for ctburnin.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"ctburnin/internal/models"
)

// ErrInvalidConfig is wrapped by every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Output modes
const (
	ModeCombined = "combined"
	ModeSeparate = "separate"
)

// Presets maps material names to the intensity burned for them, in HU
var Presets = map[string]int{
	"air":             -1000,
	"water":           0,
	"bolus":           50,
	"titanium":        7000,
	"co-cr-mo":        10000,
	"stainless steel": 11000,
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// MaxSegmentMM is the largest distance between consecutive contour
		// points after densification
		MaxSegmentMM float64 `yaml:"maxSegmentMM"`
	} `yaml:"processing"`

	// Input parameters
	Input struct {
		// Pattern selects the candidate files of the source directory
		Pattern string `yaml:"pattern"`
	} `yaml:"input"`

	// Output parameters
	Output struct {
		// Mode is combined (one series for all ROIs) or separate (one per ROI)
		Mode string `yaml:"mode"`

		// ImageSetName is the series description in combined mode
		ImageSetName string `yaml:"imageSetName"`

		// TimestampedParent groups the runs under ROIOverrideOutput_<time>
		TimestampedParent bool `yaml:"timestampedParent"`

		// Preview renders TIFF previews of every written slice
		Preview bool `yaml:"preview"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`

	// ROIs lists the overrides in the order they are applied
	ROIs []models.ROIOverride `yaml:"rois,omitempty"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.MaxSegmentMM = 1.0
	cfg.Input.Pattern = "*.dcm"

	cfg.Output.Mode = ModeCombined
	cfg.Output.TimestampedParent = true
	cfg.Output.Preview = false
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig reads the configuration at configPath over the defaults.
// A missing file yields the defaults; keys the configuration does not know
// are rejected so that a misspelled section cannot be silently ignored.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, configPath, err)
	}
	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating the parent directory if needed.
func SaveConfig(cfg *Config, configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	f, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	enc := yaml.NewEncoder(f)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		f.Close()
		return fmt.Errorf("error marshaling config: %w", err)
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return fmt.Errorf("error marshaling config: %w", err)
	}
	return f.Close()
}

// CreateDefaultConfigFile writes the default configuration to configPath.
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

// PresetValue looks up a material preset. Names match case-insensitively
// and may carry a parenthesised suffix such as "Air (-1000 HU)".
func PresetValue(name string) (int, bool) {
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	v, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// Validate checks the configuration for values the burn-in cannot run with
func (c *Config) Validate() error {
	if c.Processing.MaxSegmentMM <= 0 {
		return fmt.Errorf("%w: maxSegmentMM must be positive, got %v", ErrInvalidConfig, c.Processing.MaxSegmentMM)
	}
	if c.Input.Pattern == "" {
		return fmt.Errorf("%w: input pattern is empty", ErrInvalidConfig)
	}
	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil {
		return fmt.Errorf("%w: input pattern %q: %v", ErrInvalidConfig, c.Input.Pattern, err)
	}
	if c.Output.Mode != ModeCombined && c.Output.Mode != ModeSeparate {
		return fmt.Errorf("%w: unknown output mode %q", ErrInvalidConfig, c.Output.Mode)
	}

	for i, roi := range c.ROIs {
		if strings.TrimSpace(roi.ROIName) == "" {
			return fmt.Errorf("%w: ROI %d has no name", ErrInvalidConfig, i+1)
		}
		if !roi.Contour && !roi.Fill {
			return fmt.Errorf("%w: ROI %q needs contour or fill", ErrInvalidConfig, roi.ROIName)
		}
		if roi.Preset != "" {
			if _, ok := PresetValue(roi.Preset); !ok {
				return fmt.Errorf("%w: ROI %q has unknown preset %q", ErrInvalidConfig, roi.ROIName, roi.Preset)
			}
		}
	}
	return nil
}

// Overrides returns the configured ROIs with presets resolved into their
// uniform value
func (c *Config) Overrides() []models.ROIOverride {
	out := make([]models.ROIOverride, len(c.ROIs))
	for i, roi := range c.ROIs {
		if v, ok := PresetValue(roi.Preset); ok {
			roi.Uniform = v
		}
		out[i] = roi
	}
	return out
}
