// Package config provides configuration loading and management for polrecon.
// It handles loading configuration from YAML files, applies environment
// overrides and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, for example
// POLRECON_DATASET_DATA_DIR.
const EnvPrefix = "POLRECON"

// Config represents the application configuration loaded from YAML
type Config struct {
	// Dataset locates the acquisitions to reconstruct
	Dataset DatasetConfig `yaml:"dataset" envconfig:"DATASET"`

	// Processing controls the reconstruction itself
	Processing ProcessingConfig `yaml:"processing" envconfig:"PROCESSING"`

	// Logging controls log verbosity and destination
	Logging LoggingConfig `yaml:"logging" envconfig:"LOGGING"`
}

// DatasetConfig names the input and output folders.
type DatasetConfig struct {
	// DataDir is the folder holding the sample and background acquisitions
	DataDir string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`

	// ProcessedDir receives one output folder per sample
	ProcessedDir string `yaml:"processed_dir" envconfig:"PROCESSED_DIR" validate:"required"`

	// Samples are acquisition folder names under DataDir
	Samples []string `yaml:"samples" envconfig:"SAMPLES" validate:"min=1,dive,required"`

	// Background is the background acquisition folder name under DataDir.
	// When empty, the background recorded by the PolAcquisition plugin in
	// each sample's metadata is used.
	Background string `yaml:"background" envconfig:"BACKGROUND"`

	// Positions, Timepoints and ZSlices select, per sample, what to
	// process. Each entry is either ["all"] or a list of position labels or
	// indices. A missing entry selects everything.
	Positions  [][]string `yaml:"positions" ignored:"true"`
	Timepoints [][]string `yaml:"timepoints" ignored:"true"`
	ZSlices    [][]string `yaml:"z_slices" ignored:"true"`
}

// ProcessingConfig holds the reconstruction switches.
type ProcessingConfig struct {
	// OutputChannels lists the channels written per coordinate; empty means
	// every channel
	OutputChannels []string `yaml:"output_channels" envconfig:"OUTPUT_CHANNELS" validate:"dive,required"`

	// BackgroundCorrection subtracts the background polarization terms
	BackgroundCorrection bool `yaml:"background_correction" envconfig:"BACKGROUND_CORRECTION"`

	// FlatFieldCorrection normalizes transmission and fluorescence by the
	// illumination profile estimated from the sample positions
	FlatFieldCorrection bool `yaml:"flat_field_correction" envconfig:"FLAT_FIELD_CORRECTION"`

	// FlatFieldMethod picks the profile estimate: "open" or "empty"
	FlatFieldMethod string `yaml:"flat_field_method" envconfig:"FLAT_FIELD_METHOD" validate:"oneof=open empty"`

	// KernelSize is the diameter of the opening kernel in pixels
	KernelSize int `yaml:"kernel_size" envconfig:"KERNEL_SIZE" validate:"min=1"`

	// FlipPol mirrors the orientation map
	FlipPol bool `yaml:"flip_pol" envconfig:"FLIP_POL"`

	// SavePreviews writes a JPEG overlay per coordinate under the output
	// folder
	SavePreviews bool `yaml:"save_previews" envconfig:"SAVE_PREVIEWS"`
}

// LoggingConfig controls the logger.
type LoggingConfig struct {
	Level   string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn warning error DEBUG INFO WARN WARNING ERROR"`
	File    string `yaml:"file" envconfig:"FILE"`
	JSON    bool   `yaml:"json" envconfig:"JSON"`
	NoColor bool   `yaml:"no_color" envconfig:"NO_COLOR"`

	// MaxSizeMB is the size at which the log file is rotated
	MaxSizeMB int `yaml:"max_size_mb" envconfig:"MAX_SIZE_MB" validate:"min=0"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default dataset parameters
	cfg.Dataset.DataDir = "."
	cfg.Dataset.ProcessedDir = "processed"

	// Set default processing parameters
	cfg.Processing.BackgroundCorrection = true
	cfg.Processing.FlatFieldCorrection = false
	cfg.Processing.FlatFieldMethod = "open"
	cfg.Processing.KernelSize = 100

	// Set default logging parameters
	cfg.Logging.Level = "info"
	cfg.Logging.MaxSizeMB = 50

	return cfg
}

// LoadConfig loads configuration from a YAML file and applies environment
// overrides. If the file doesn't exist, the defaults are used as the base.
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); err == nil {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("error parsing config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Environment variables win over the file
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("error applying environment overrides: %w", err)
	}

	return cfg, nil
}

// Validate checks field constraints and the per-sample selections.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	n := len(c.Dataset.Samples)
	for name, sel := range map[string][][]string{
		"positions":  c.Dataset.Positions,
		"timepoints": c.Dataset.Timepoints,
		"z_slices":   c.Dataset.ZSlices,
	} {
		if len(sel) > n {
			return fmt.Errorf("invalid configuration: %d %s entries for %d samples", len(sel), name, n)
		}
	}
	return nil
}

// Selection returns the position, time and z tokens for sample i. Nil
// lists select everything.
func (d DatasetConfig) Selection(i int) (positions, timepoints, zSlices []string) {
	pick := func(sel [][]string) []string {
		if i < len(sel) {
			return sel[i]
		}
		return nil
	}
	return pick(d.Positions), pick(d.Timepoints), pick(d.ZSlices)
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
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
