package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

type DetectorConfig struct {
	Provider        string  `toml:"provider"`
	URL             string  `toml:"url"`
	ModelPath       string  `toml:"model_path"`
	ModelConfigPath string  `toml:"model_config_path"`
	Threshold       float64 `toml:"threshold"`
}

type AssistantConfig struct {
	Provider     string `toml:"provider"`
	Model        string `toml:"model"`
	APIKey       string `toml:"api_key"`
	BaseURL      string `toml:"base_url"`
	MaxImageSide int    `toml:"max_image_side"`
	Prompt       string `toml:"prompt"`
}

type Config struct {
	Port                  int             `toml:"port"`
	LogDirectory          string          `toml:"log_dir"`
	DatabasePath          string          `toml:"database_path"`
	StaticDirectory       string          `toml:"static_dir"`
	AccessTokenSecret     string          `toml:"access_token_secret"`
	AccessTokenTTLMinutes int             `toml:"access_token_ttl_minutes"`
	ProcessingWorkers     int             `toml:"processing_workers"` // Number of detection workers
	ProcessingQueue       int             `toml:"processing_queue"`   // Pending detections before rejecting uploads
	MaxUploadMB           int64           `toml:"max_upload_mb"`
	WorkspaceTTLMinutes   int             `toml:"workspace_ttl_minutes"`
	WorkspaceSweepSeconds int             `toml:"workspace_sweep_seconds"`
	Detector              DetectorConfig  `toml:"detector"`
	Assistant             AssistantConfig `toml:"assistant"`
}

// Defaults returns the configuration used when neither a config file nor
// environment variables override a value.
func Defaults() *Config {
	return &Config{
		Port:                  8080,
		LogDirectory:          filepath.Join(".", "logs"),
		DatabasePath:          filepath.Join(".", "data", "vision.db"),
		StaticDirectory:       filepath.Join(".", "static"),
		AccessTokenTTLMinutes: 60,
		ProcessingWorkers:     2,
		ProcessingQueue:       16,
		MaxUploadMB:           10,
		WorkspaceTTLMinutes:   60,
		WorkspaceSweepSeconds: 60,
		Detector: DetectorConfig{
			Provider:        "remote",
			URL:             "http://localhost:8000/yolo/detect",
			ModelPath:       filepath.Join(".", "models", "frozen_inference_graph.pb"),
			ModelConfigPath: filepath.Join(".", "models", "ssd_mobilenet_v1_coco.pbtxt"),
			Threshold:       0.5,
		},
		Assistant: AssistantConfig{
			Provider:     "gemini",
			Model:        "gemini-2.5-flash",
			MaxImageSide: 1024,
		},
	}
}

// Load builds the configuration from defaults, then the optional TOML file
// named by CONFIG_FILE (default config.toml), then environment variables.
func Load() (*Config, error) {
	cfg := Defaults()

	path := getEnv("CONFIG_FILE", "config.toml")
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	if err := toml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse TOML: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Port = getEnvAsInt("PORT", c.Port)
	c.LogDirectory = getEnv("LOG_DIR", c.LogDirectory)
	c.DatabasePath = getEnv("DATABASE_PATH", c.DatabasePath)
	c.StaticDirectory = getEnv("STATIC_DIR", c.StaticDirectory)
	c.AccessTokenSecret = getEnv("ACCESS_TOKEN_SECRET", c.AccessTokenSecret)
	c.AccessTokenTTLMinutes = getEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", c.AccessTokenTTLMinutes)
	c.ProcessingWorkers = getEnvAsInt("PROCESSING_WORKERS", c.ProcessingWorkers)
	c.ProcessingQueue = getEnvAsInt("PROCESSING_QUEUE", c.ProcessingQueue)
	c.MaxUploadMB = getEnvAsInt64("MAX_UPLOAD_MB", c.MaxUploadMB)
	c.WorkspaceTTLMinutes = getEnvAsInt("WORKSPACE_TTL_MINUTES", c.WorkspaceTTLMinutes)
	c.WorkspaceSweepSeconds = getEnvAsInt("WORKSPACE_SWEEP_SECONDS", c.WorkspaceSweepSeconds)

	c.Detector.Provider = getEnv("DETECTOR_PROVIDER", c.Detector.Provider)
	c.Detector.URL = getEnv("DETECTION_URL", c.Detector.URL)
	c.Detector.ModelPath = getEnv("MODEL_PATH", c.Detector.ModelPath)
	c.Detector.ModelConfigPath = getEnv("MODEL_CONFIG_PATH", c.Detector.ModelConfigPath)
	c.Detector.Threshold = getEnvAsFloat("DETECTION_THRESHOLD", c.Detector.Threshold)

	c.Assistant.Provider = getEnv("ASSISTANT_PROVIDER", c.Assistant.Provider)
	c.Assistant.Model = getEnv("ASSISTANT_MODEL", c.Assistant.Model)
	c.Assistant.APIKey = getEnv("ASSISTANT_API_KEY", getEnv("GEMINI_API_KEY", c.Assistant.APIKey))
	c.Assistant.BaseURL = getEnv("ASSISTANT_BASE_URL", c.Assistant.BaseURL)
	c.Assistant.MaxImageSide = getEnvAsInt("ASSISTANT_MAX_IMAGE_SIDE", c.Assistant.MaxImageSide)
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}
