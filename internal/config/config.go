package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host               string  `validate:"required"`
	Port               int     `validate:"min=1,max=65535"`
	CameraDevice       string  `validate:"required"`
	ModelPath          string  `validate:"required"`
	ConfigPath         string  `validate:"required"`
	DetectionThreshold float64 `validate:"gt=0,lte=1"`

	// Delay between detection ticks
	DetectIntervalMs int `validate:"min=1"`
	StreamFPS        int `validate:"min=1,max=120"`

	// The capture journal keeps a copy of every capture on disk and in sqlite.
	// It is off unless CAPTURE_JOURNAL is set.
	CaptureJournal      bool
	CaptureDirectory    string `validate:"required_if=CaptureJournal true"`
	DatabasePath        string `validate:"required_if=CaptureJournal true"`
	MaxCapturesPageSize int    `validate:"min=1"`

	LogDirectory string `validate:"required"`
	LogLevel     string `validate:"oneof=debug info warning error"`
}

// Load reads an optional .env file and builds the Config from the environment.
func Load() (*Config, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	cfg := &Config{
		Host:                getEnv("HOST", "127.0.0.1"),
		Port:                getEnvAsInt("PORT", 8080),
		CameraDevice:        getEnv("CAMERA_DEVICE", "0"),
		ModelPath:           getEnv("MODEL_PATH", filepath.Join(".", "models", "frozen_inference_graph.pb")),
		ConfigPath:          getEnv("CONFIG_PATH", filepath.Join(".", "models", "ssd_mobilenet_v1_coco_2017_11_17.pbtxt")),
		DetectionThreshold:  getEnvAsFloat("DETECTION_THRESHOLD", 0.5),
		DetectIntervalMs:    getEnvAsInt("DETECT_INTERVAL_MS", 10),
		StreamFPS:           getEnvAsInt("STREAM_FPS", 15),
		CaptureJournal:      getEnvAsBool("CAPTURE_JOURNAL", false),
		CaptureDirectory:    getEnv("CAPTURE_DIR", filepath.Join(".", "captures")),
		DatabasePath:        getEnv("DB_PATH", filepath.Join(".", "data", "captures.db")),
		LogDirectory:        getEnv("LOG_DIR", filepath.Join(".", "logs")),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		MaxCapturesPageSize: getEnvAsInt("MAX_CAPTURES_PAGE_SIZE", 100),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the struct tags of the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Addr returns the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DetectInterval returns the detection tick interval.
func (c *Config) DetectInterval() time.Duration {
	return time.Duration(c.DetectIntervalMs) * time.Millisecond
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
