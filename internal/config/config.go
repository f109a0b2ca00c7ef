package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/subject-crop/pkg/presets"
	"github.com/menta2k/subject-crop/pkg/selector"
)

// Config holds the application configuration
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Crop     CropConfig     `json:"crop"`
	Sidecar  SidecarConfig  `json:"sidecar"`
	Export   ExportConfig   `json:"export"`
}

// DetectorConfig selects and tunes the subject detection backend
type DetectorConfig struct {
	// Backend is "ollama", "llamacpp" or "saliency".
	Backend             string  `json:"backend"`
	Model               string  `json:"model"`
	URL                 string  `json:"url"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	SendMaxDim          int     `json:"send_max_dim"`
	SendQuality         int     `json:"send_quality"`
}

// CropConfig holds the crop geometry defaults
type CropConfig struct {
	AspectRatio string  `json:"aspect_ratio"`
	Padding     float64 `json:"padding"`
	Strategy    string  `json:"strategy"`
}

// SidecarConfig controls XMP sidecar writing
type SidecarConfig struct {
	Backup    bool   `json:"backup"`
	OutputDir string `json:"output_dir"`
}

// ExportConfig controls optional pixel export of the crops
type ExportConfig struct {
	Enabled      bool   `json:"enabled"`
	Format       string `json:"format"`
	Quality      int    `json:"quality"`
	Suffix       string `json:"suffix"`
	MaxDimension int    `json:"max_dimension"`
	OutputDir    string `json:"output_dir"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:             "ollama",
			Model:               "qwen2.5vl",
			URL:                 "http://localhost:11434",
			ConfidenceThreshold: 0.5,
			SendMaxDim:          1536,
			SendQuality:         85,
		},
		Crop: CropConfig{
			AspectRatio: "4:5",
			Padding:     0.05,
			Strategy:    "largest",
		},
		Sidecar: SidecarConfig{
			Backup: true,
		},
		Export: ExportConfig{
			Enabled: false,
			Format:  "jpg",
			Quality: 92,
			Suffix:  "_cropped",
		},
	}
}

// LoadFromFile loads configuration from a JSON file
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Detector.Backend {
	case "ollama", "llamacpp", "saliency":
	default:
		return fmt.Errorf("detector.backend must be ollama, llamacpp or saliency")
	}

	if c.Detector.ConfidenceThreshold < 0 || c.Detector.ConfidenceThreshold > 1 {
		return fmt.Errorf("detector.confidence_threshold must be between 0 and 1")
	}

	if c.Detector.SendQuality < 1 || c.Detector.SendQuality > 100 {
		return fmt.Errorf("detector.send_quality must be between 1 and 100")
	}

	if _, err := selector.Parse(c.Crop.Strategy); err != nil {
		return fmt.Errorf("crop.strategy: %w", err)
	}

	if c.Crop.Padding < 0 || c.Crop.Padding > 1 {
		return fmt.Errorf("crop.padding must be between 0 and 1")
	}

	if _, err := presets.ParseAspect(c.Crop.AspectRatio); err != nil {
		return fmt.Errorf("crop.aspect_ratio: %w", err)
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	switch c.Export.Format {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("export.format must be jpg, png or webp")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "subject-crop", "config.json")
}
