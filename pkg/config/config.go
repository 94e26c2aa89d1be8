// Package config provides configuration loading and management for hsipatch.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"

	"hsipatch/pkg/pipeerr"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Input and output locations
	Paths struct {
		// InputCube is the MAT-file holding the (rows, cols, bands) cube
		InputCube string `yaml:"inputCube"`

		// InputLabels is the MAT-file holding the (rows, cols) ground truth
		InputLabels string `yaml:"inputLabels"`

		// OriginalWavelengths lists the wavelength of each input band, one per row
		OriginalWavelengths string `yaml:"originalWavelengths"`

		// TargetWavelengths lists the wavelengths to resample onto, one per row
		TargetWavelengths string `yaml:"targetWavelengths"`

		// OutputScaled receives the resampled and normalized cube
		OutputScaled string `yaml:"outputScaled"`

		// OutputPatches2D receives the patches when patch.convDim is 2
		OutputPatches2D string `yaml:"outputPatches2D"`

		// OutputPatches3D receives the patches when patch.convDim is 3
		OutputPatches3D string `yaml:"outputPatches3D"`

		// OutputLabels receives the flat label sequence
		OutputLabels string `yaml:"outputLabels"`

		// Heatmap receives the diagnostic PNG of the padded cube
		Heatmap string `yaml:"heatmap"`
	} `yaml:"paths"`

	// Variable names inside the MAT-files
	Mat struct {
		CubeKey  string `yaml:"cubeKey"`
		LabelKey string `yaml:"labelKey"`
	} `yaml:"mat"`

	// Patch extraction parameters
	Patch struct {
		// Size is the patch edge length; it must be even
		Size int `yaml:"size"`

		// ConvDim is the dimensionality of the downstream convolution, 2 or 3
		ConvDim int `yaml:"convDim"`

		// ChunkSize splits the patch output into files of at most this many
		// patches; 0 writes a single file
		ChunkSize int `yaml:"chunkSize"`
	} `yaml:"patch"`

	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for parallel processing
		NumCores int `yaml:"numCores"`

		// TargetBands, when positive, must equal the length of the target grid
		TargetBands int `yaml:"targetBands"`

		// LabelRows and LabelCols bound the label traversal; 0 means the full grid
		LabelRows int `yaml:"labelRows"`
		LabelCols int `yaml:"labelCols"`
	} `yaml:"processing"`

	// Output parameters
	Output struct {
		// SaveScaled writes the normalized cube as an intermediate artifact
		SaveScaled bool `yaml:"saveScaled"`

		// RenderHeatmap writes a heatmap of one band of the padded cube
		RenderHeatmap bool `yaml:"renderHeatmap"`

		// HeatmapBand selects the band to render
		HeatmapBand int `yaml:"heatmapBand"`

		// HeatmapScale is the pixel magnification of the heatmap
		HeatmapScale int `yaml:"heatmapScale"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default paths, relative to the working directory
	cfg.Paths.InputCube = filepath.Join("data", "Indian_pines_corrected.mat")
	cfg.Paths.InputLabels = filepath.Join("data", "Indian_pines_gt.mat")
	cfg.Paths.OriginalWavelengths = filepath.Join("data", "IndianPines.csv")
	cfg.Paths.TargetWavelengths = filepath.Join("data", "pos_180.csv")
	cfg.Paths.OutputScaled = filepath.Join("out", "Indian_pines_corrected_interp_scaled.npy")
	cfg.Paths.OutputPatches2D = filepath.Join("out", "2d_conv", "patches_ip_2d.npy")
	cfg.Paths.OutputPatches3D = filepath.Join("out", "3d_conv", "patches_ip_3d.npy")
	cfg.Paths.OutputLabels = filepath.Join("out", "label.npy")
	cfg.Paths.Heatmap = filepath.Join("out", "padded_band.png")

	cfg.Mat.CubeKey = "indian_pines_corrected"
	cfg.Mat.LabelKey = "indian_pines_gt"

	// Set default patch parameters
	cfg.Patch.Size = 8
	cfg.Patch.ConvDim = 3
	cfg.Patch.ChunkSize = 0

	// Set default processing parameters
	cfg.Processing.NumCores = runtime.NumCPU() // Use all available cores by default
	cfg.Processing.TargetBands = 180

	// Set default output parameters
	cfg.Output.SaveScaled = true
	cfg.Output.RenderHeatmap = true
	cfg.Output.HeatmapBand = 0
	cfg.Output.HeatmapScale = 4
	cfg.Output.Verbose = false

	return cfg
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return cfg, nil
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

// PatchesPath returns the patch output path for the configured convolution
// dimension
func (c *Config) PatchesPath() string {
	if c.Patch.ConvDim == 2 {
		return c.Paths.OutputPatches2D
	}
	return c.Paths.OutputPatches3D
}

// Validate checks the values that cannot be checked by the stages themselves
// before any file is read.
func (c *Config) Validate() error {
	required := map[string]string{
		"paths.inputCube":           c.Paths.InputCube,
		"paths.inputLabels":         c.Paths.InputLabels,
		"paths.originalWavelengths": c.Paths.OriginalWavelengths,
		"paths.targetWavelengths":   c.Paths.TargetWavelengths,
		"paths.outputLabels":        c.Paths.OutputLabels,
		"mat.cubeKey":               c.Mat.CubeKey,
		"mat.labelKey":              c.Mat.LabelKey,
	}
	for key, value := range required {
		if value == "" {
			return pipeerr.New("config", pipeerr.Config, "%s must be set", key)
		}
	}

	if c.Patch.ConvDim != 2 && c.Patch.ConvDim != 3 {
		return pipeerr.New("config", pipeerr.Config, "patch.convDim must be 2 or 3, got %d", c.Patch.ConvDim)
	}
	if c.PatchesPath() == "" {
		return pipeerr.New("config", pipeerr.Config, "no patch output path for convDim %d", c.Patch.ConvDim)
	}
	if c.Patch.Size < 2 || c.Patch.Size%2 != 0 {
		return pipeerr.New("config", pipeerr.Config, "patch.size must be an even number >= 2, got %d", c.Patch.Size)
	}
	if c.Patch.ChunkSize < 0 {
		return pipeerr.New("config", pipeerr.Config, "patch.chunkSize must not be negative, got %d", c.Patch.ChunkSize)
	}
	if c.Processing.TargetBands < 0 || c.Processing.LabelRows < 0 || c.Processing.LabelCols < 0 {
		return pipeerr.New("config", pipeerr.Config, "processing counts must not be negative")
	}
	if c.Output.SaveScaled && c.Paths.OutputScaled == "" {
		return pipeerr.New("config", pipeerr.Config, "output.saveScaled requires paths.outputScaled")
	}
	if c.Output.RenderHeatmap && c.Paths.Heatmap == "" {
		return pipeerr.New("config", pipeerr.Config, "output.renderHeatmap requires paths.heatmap")
	}

	return nil
}
