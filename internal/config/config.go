package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds the application configuration
type Config struct {
	Cropper   CropperConfig   `json:"cropper" toml:"cropper"`
	Extractor ExtractorConfig `json:"extractor" toml:"extractor"`
	Vision    VisionConfig    `json:"vision" toml:"vision"`
	Log       LogConfig       `json:"log" toml:"log"`
}

// CropperConfig holds configuration for the interactive cropper
type CropperConfig struct {
	// DisplayRatio is the fraction of screen height an image may occupy
	DisplayRatio float64 `json:"display_ratio" toml:"display_ratio"`
	// ScreenWidth and ScreenHeight override the screen probe when non-zero
	ScreenWidth  int    `json:"screen_width" toml:"screen_width"`
	ScreenHeight int    `json:"screen_height" toml:"screen_height"`
	Quality      int    `json:"quality" toml:"quality"`
	OutputFormat string `json:"output_format" toml:"output_format"`
	Lossless     bool   `json:"lossless" toml:"lossless"`
	LabelROIs    bool   `json:"label_rois" toml:"label_rois"`
}

// ExtractorConfig holds configuration for automatic sub-photo extraction
type ExtractorConfig struct {
	InputDir   string  `json:"input_dir" toml:"input_dir"`
	OutputDir  string  `json:"output_dir" toml:"output_dir"`
	Backend    string  `json:"backend" toml:"backend"`
	BlurKernel int     `json:"blur_kernel" toml:"blur_kernel"`
	CannyLow   float64 `json:"canny_low" toml:"canny_low"`
	CannyHigh  float64 `json:"canny_high" toml:"canny_high"`
	MinWidth   int     `json:"min_width" toml:"min_width"`
	MinHeight  int     `json:"min_height" toml:"min_height"`
	Quality    int     `json:"quality" toml:"quality"`
}

// VisionConfig holds configuration for the vision-model region finder
type VisionConfig struct {
	URL         string `json:"url" toml:"url"`
	Model       string `json:"model" toml:"model"`
	SendFormat  string `json:"send_format" toml:"send_format"`
	SendSize    int    `json:"send_size" toml:"send_size"`
	SendQuality int    `json:"send_quality" toml:"send_quality"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `json:"level" toml:"level"`
	Format string `json:"format" toml:"format"`
}

// Extractor backends
const (
	BackendContour  = "contour"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Cropper: CropperConfig{
			DisplayRatio: 0.7,
			Quality:      95,
			OutputFormat: "",
			LabelROIs:    true,
		},
		Extractor: ExtractorConfig{
			InputDir:   "composites",
			OutputDir:  "extracts",
			Backend:    BackendContour,
			BlurKernel: 5,
			CannyLow:   50,
			CannyHigh:  150,
			MinWidth:   100,
			MinHeight:  100,
			Quality:    95,
		},
		Vision: VisionConfig{
			Model:       "openbmb/minicpm-v4.5",
			SendFormat:  "jpg",
			SendSize:    1536,
			SendQuality: 85,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadFromFile loads configuration from a JSON or TOML file on top of the defaults
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isTOML(filename) {
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON or TOML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if isTOML(filename) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	} else {
		enc := json.NewEncoder(&buf)
		enc.SetIndent("", "  ")
		if err := enc.Encode(c); err != nil {
			return fmt.Errorf("failed to marshal config: %w", err)
		}
	}

	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Cropper.DisplayRatio <= 0 || c.Cropper.DisplayRatio > 1 {
		return fmt.Errorf("cropper.display_ratio must be in (0, 1]")
	}

	if c.Cropper.ScreenWidth < 0 || c.Cropper.ScreenHeight < 0 {
		return fmt.Errorf("cropper.screen_width and cropper.screen_height must not be negative")
	}

	if c.Cropper.Quality < 1 || c.Cropper.Quality > 100 {
		return fmt.Errorf("cropper.quality must be between 1 and 100")
	}

	switch strings.ToLower(c.Cropper.OutputFormat) {
	case "", "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("cropper.output_format must be one of jpg, png, webp")
	}

	switch c.Extractor.Backend {
	case BackendContour, BackendOllama, BackendLlamaCpp:
	default:
		return fmt.Errorf("extractor.backend must be one of contour, ollama, llamacpp")
	}

	if c.Extractor.BlurKernel < 1 || c.Extractor.BlurKernel%2 == 0 {
		return fmt.Errorf("extractor.blur_kernel must be a positive odd number")
	}

	if c.Extractor.CannyLow < 0 || c.Extractor.CannyHigh <= c.Extractor.CannyLow {
		return fmt.Errorf("extractor.canny_high must be greater than extractor.canny_low")
	}

	if c.Extractor.MinWidth < 0 || c.Extractor.MinHeight < 0 {
		return fmt.Errorf("extractor.min_width and extractor.min_height must not be negative")
	}

	if c.Extractor.Quality < 1 || c.Extractor.Quality > 100 {
		return fmt.Errorf("extractor.quality must be between 1 and 100")
	}

	if c.Vision.SendQuality < 1 || c.Vision.SendQuality > 100 {
		return fmt.Errorf("vision.send_quality must be between 1 and 100")
	}

	if c.Vision.SendSize < 0 {
		return fmt.Errorf("vision.send_size must not be negative")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "roi-cropper", "config.json")
}

func isTOML(filename string) bool {
	return strings.EqualFold(filepath.Ext(filename), ".toml")
}
