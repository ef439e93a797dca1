package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/menta2k/embedviz/pkg/colormap"
	"github.com/menta2k/embedviz/pkg/export"
)

// Backend modes
const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

// Vision providers for the local backend
const (
	VisionOllama   = "ollama"
	VisionLlamaCpp = "llamacpp"
	VisionOpenAI   = "openai"
)

// Config holds the application configuration
type Config struct {
	Backend       BackendConfig       `json:"backend"`
	Visualization VisualizationConfig `json:"visualization"`
	Export        ExportConfig        `json:"export"`
	Server        ServerConfig        `json:"server"`
}

// BackendConfig selects and configures the embedding/labeling backend
type BackendConfig struct {
	Mode           string `json:"mode"`
	URL            string `json:"url"`
	TimeoutSeconds int    `json:"timeout_seconds"`

	// Used in local mode only
	Vision      string `json:"vision"`
	VisionURL   string `json:"vision_url"`
	VisionModel string `json:"vision_model"`
	EmbedModel  string `json:"embed_model"`
	APIKey      string `json:"-"`
	UploadDir   string `json:"upload_dir"`
	Neighbors   int    `json:"neighbors"`
	MaxDim      int    `json:"max_dim"`
}

// VisualizationConfig controls how embeddings are colored and displayed
type VisualizationConfig struct {
	Colormap string  `json:"colormap"`
	Epsilon  float64 `json:"epsilon"`
	Scale    int     `json:"scale"`
	Smooth   bool    `json:"smooth"`
}

// ExportConfig holds configuration for output generation
type ExportConfig struct {
	MatrixFormat string `json:"matrix_format"`
	ImageFormat  string `json:"image_format"`
	Quality      int    `json:"quality"`
	Lossless     bool   `json:"lossless"`
	OutputDir    string `json:"output_dir"`
}

// ServerConfig holds configuration for the HTTP API
type ServerConfig struct {
	Addr        string `json:"addr"`
	MaxUploadMB int    `json:"max_upload_mb"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Backend: BackendConfig{
			Mode:           ModeRemote,
			URL:            "http://localhost:8000",
			TimeoutSeconds: 300,
			Vision:         VisionOllama,
			VisionURL:      "http://localhost:11434",
			VisionModel:    "llava",
			EmbedModel:     "nomic-embed-text",
			UploadDir:      "uploads",
			Neighbors:      3,
			MaxDim:         1024,
		},
		Visualization: VisualizationConfig{
			Colormap: "coolwarm",
			Epsilon:  1e-8,
			Scale:    16,
			Smooth:   false,
		},
		Export: ExportConfig{
			MatrixFormat: export.FormatJSON,
			ImageFormat:  "png",
			Quality:      90,
			Lossless:     true,
			OutputDir:    "./output",
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MaxUploadMB: 32,
		},
	}
}

// Timeout returns the backend timeout as a duration
func (b BackendConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

// LoadFromFile loads configuration from a JSON file. Missing fields keep their defaults.
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

// Load reads the config file if it exists, applies EMBEDVIZ_* environment
// overrides and validates the result. An empty filename skips the file.
func Load(filename string) (*Config, error) {
	config := Default()
	if filename != "" {
		if _, err := os.Stat(filename); err == nil {
			if config, err = LoadFromFile(filename); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}
	config.ApplyEnv()
	return config, config.Validate()
}

// ApplyEnv overrides fields from environment variables
func (c *Config) ApplyEnv() {
	b := &c.Backend
	b.Mode = getEnv("EMBEDVIZ_BACKEND", b.Mode)
	b.URL = getEnv("EMBEDVIZ_BACKEND_URL", b.URL)
	b.TimeoutSeconds = int(getEnvDuration("EMBEDVIZ_TIMEOUT", b.Timeout()) / time.Second)
	b.Vision = getEnv("EMBEDVIZ_VISION", b.Vision)
	b.VisionURL = getEnv("EMBEDVIZ_VISION_URL", b.VisionURL)
	b.VisionModel = getEnv("EMBEDVIZ_VISION_MODEL", b.VisionModel)
	b.EmbedModel = getEnv("EMBEDVIZ_EMBED_MODEL", b.EmbedModel)
	b.APIKey = getEnv("OPENAI_API_KEY", b.APIKey)
	b.UploadDir = getEnv("EMBEDVIZ_UPLOAD_DIR", b.UploadDir)
	b.Neighbors = getEnvInt("EMBEDVIZ_NEIGHBORS", b.Neighbors)
	b.MaxDim = getEnvInt("EMBEDVIZ_MAX_DIM", b.MaxDim)

	v := &c.Visualization
	v.Colormap = getEnv("EMBEDVIZ_COLORMAP", v.Colormap)
	v.Epsilon = getEnvFloat("EMBEDVIZ_EPSILON", v.Epsilon)
	v.Scale = getEnvInt("EMBEDVIZ_SCALE", v.Scale)
	v.Smooth = getEnvBool("EMBEDVIZ_SMOOTH", v.Smooth)

	e := &c.Export
	e.MatrixFormat = getEnv("EMBEDVIZ_MATRIX_FORMAT", e.MatrixFormat)
	e.ImageFormat = getEnv("EMBEDVIZ_IMAGE_FORMAT", e.ImageFormat)
	e.Quality = getEnvInt("EMBEDVIZ_QUALITY", e.Quality)
	e.Lossless = getEnvBool("EMBEDVIZ_LOSSLESS", e.Lossless)
	e.OutputDir = getEnv("EMBEDVIZ_OUTPUT_DIR", e.OutputDir)

	s := &c.Server
	s.Addr = getEnv("EMBEDVIZ_ADDR", s.Addr)
	s.MaxUploadMB = getEnvInt("EMBEDVIZ_MAX_UPLOAD_MB", s.MaxUploadMB)
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
	switch c.Backend.Mode {
	case ModeRemote:
		if c.Backend.URL == "" {
			return fmt.Errorf("backend.url is required in remote mode")
		}
	case ModeLocal:
		switch c.Backend.Vision {
		case VisionOllama, VisionLlamaCpp:
		case VisionOpenAI:
			if c.Backend.APIKey == "" && c.Backend.VisionURL == "" {
				return fmt.Errorf("OPENAI_API_KEY or backend.vision_url is required for the openai vision provider")
			}
		default:
			return fmt.Errorf("backend.vision must be one of %s, %s, %s", VisionOllama, VisionLlamaCpp, VisionOpenAI)
		}
		if c.Backend.UploadDir == "" {
			return fmt.Errorf("backend.upload_dir cannot be empty")
		}
	default:
		return fmt.Errorf("backend.mode must be %q or %q", ModeRemote, ModeLocal)
	}

	if c.Backend.TimeoutSeconds < 1 {
		return fmt.Errorf("backend.timeout_seconds must be positive")
	}

	if c.Backend.Neighbors < 1 {
		return fmt.Errorf("backend.neighbors must be positive")
	}

	if _, err := colormap.ByName(c.Visualization.Colormap); err != nil {
		return fmt.Errorf("visualization.colormap: %w", err)
	}

	if c.Visualization.Epsilon <= 0 {
		return fmt.Errorf("visualization.epsilon must be positive")
	}

	if c.Visualization.Scale < 1 || c.Visualization.Scale > 256 {
		return fmt.Errorf("visualization.scale must be between 1 and 256")
	}

	if _, err := export.NewWithFormat(c.Export.MatrixFormat); err != nil {
		return fmt.Errorf("export.matrix_format: %w", err)
	}

	switch strings.ToLower(c.Export.ImageFormat) {
	case "png", "webp":
	default:
		return fmt.Errorf("export.image_format must be png or webp")
	}

	if c.Export.Quality < 1 || c.Export.Quality > 100 {
		return fmt.Errorf("export.quality must be between 1 and 100")
	}

	if c.Server.MaxUploadMB < 1 {
		return fmt.Errorf("server.max_upload_mb must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "embedviz", "config.json")
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	return v == "true" || v == "1"
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
