package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"ctburnin/internal/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default configuration is invalid: %v", err)
	}
	if cfg.Processing.MaxSegmentMM != 1.0 {
		t.Errorf("Expected maxSegmentMM 1.0, got %v", cfg.Processing.MaxSegmentMM)
	}
	if cfg.Input.Pattern != "*.dcm" {
		t.Errorf("Expected pattern *.dcm, got %s", cfg.Input.Pattern)
	}
	if cfg.Output.Mode != ModeCombined || !cfg.Output.TimestampedParent {
		t.Errorf("Unexpected output defaults %+v", cfg.Output)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "burnin.yaml")
	data := `
output:
  mode: separate
  preview: true
rois:
  - name: PTV
    fill: true
    uniform: 500
  - name: Couch
    contour: true
    preset: Stainless Steel (11000 HU)
    imageSetName: Couch Metal
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}

	// untouched sections keep their defaults
	if cfg.Input.Pattern != "*.dcm" || cfg.Processing.MaxSegmentMM != 1.0 || !cfg.Output.TimestampedParent {
		t.Errorf("Expected defaults for missing keys, got %+v", cfg)
	}
	if cfg.Output.Mode != ModeSeparate || !cfg.Output.Preview {
		t.Errorf("Unexpected output section %+v", cfg.Output)
	}

	want := []models.ROIOverride{
		{ROIName: "PTV", Fill: true, Uniform: 500},
		{ROIName: "Couch", Contour: true, Uniform: 11000, Preset: "Stainless Steel (11000 HU)", ImageSetName: "Couch Metal"},
	}
	if diff := cmp.Diff(want, cfg.Overrides()); diff != "" {
		t.Errorf("Overrides mismatch (-want +got):\n%s", diff)
	}
	// resolving presets leaves the configuration itself alone
	if cfg.ROIs[1].Uniform != 0 {
		t.Errorf("Overrides modified the configuration: %+v", cfg.ROIs[1])
	}
}

func TestLoadConfigMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("rois: [name: {"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("Expected an error for malformed YAML")
	}
}

func TestLoadConfigUnknownKey(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"misspelled section", "roi:\n  - name: PTV\n    fill: true\n    uniform: 500\n"},
		{"misspelled ROI field", "rois:\n  - name: PTV\n    fil: true\n"},
		{"misspelled output key", "output:\n  mdoe: separate\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "burnin.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestLoadConfigEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "burnin.yaml")

	cfg := DefaultConfig()
	cfg.Output.ImageSetName = "Burned"
	cfg.ROIs = []models.ROIOverride{{ROIName: "Bolus", Fill: true, Preset: "Bolus"}}
	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(cfg, loaded); diff != "" {
		t.Errorf("Round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("Expected defaults (-want +got):\n%s", diff)
	}
}

func TestPresetValue(t *testing.T) {
	tests := []struct {
		name string
		want int
		ok   bool
	}{
		{"Air", -1000, true},
		{"Air (-1000 HU)", -1000, true},
		{"water", 0, true},
		{"BOLUS", 50, true},
		{"Titanium", 7000, true},
		{"Co-Cr-Mo (10000 HU)", 10000, true},
		{" Stainless Steel ", 11000, true},
		{"Manual Entry", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := PresetValue(tt.name)
		if got != tt.want || ok != tt.ok {
			t.Errorf("PresetValue(%q) = %d, %v; expected %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"zero segment", func(c *Config) { c.Processing.MaxSegmentMM = 0 }},
		{"empty pattern", func(c *Config) { c.Input.Pattern = "" }},
		{"bad pattern", func(c *Config) { c.Input.Pattern = "[" }},
		{"unknown mode", func(c *Config) { c.Output.Mode = "single" }},
		{"unnamed ROI", func(c *Config) { c.ROIs = []models.ROIOverride{{Fill: true}} }},
		{"no contour or fill", func(c *Config) { c.ROIs = []models.ROIOverride{{ROIName: "PTV", Uniform: 5}} }},
		{"unknown preset", func(c *Config) {
			c.ROIs = []models.ROIOverride{{ROIName: "PTV", Fill: true, Preset: "Gold"}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}
