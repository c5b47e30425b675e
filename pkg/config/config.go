// Package config loads application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"

	// Load environment variables from .env files when present.
	_ "github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Processing    ProcessingConfig
	Observability ObservabilityConfig
}

// ProcessingConfig controls document processing limits and defaults.
type ProcessingConfig struct {
	MaxFileSizeMB        int    // Hard cap; processing fails above it
	StreamingThresholdMB int    // Above this, switch to streaming consumption
	PreferredEncoding    string // Empty = auto-detect
	DefaultCurrency      string // Currency assumed for extracted values
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	MetricsPort    int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Processing: ProcessingConfig{
			MaxFileSizeMB:        getEnvAsInt("MAX_FILE_SIZE_MB", 50),
			StreamingThresholdMB: getEnvAsInt("STREAMING_THRESHOLD_MB", 10),
			PreferredEncoding:    getEnv("PREFERRED_ENCODING", ""),
			DefaultCurrency:      getEnv("DEFAULT_CURRENCY", "EUR"),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", false),
			MetricsPort:    getEnvAsInt("METRICS_PORT", 9090),
		},
	}

	if cfg.Processing.MaxFileSizeMB <= 0 {
		return nil, fmt.Errorf("MAX_FILE_SIZE_MB must be positive, got %d", cfg.Processing.MaxFileSizeMB)
	}
	if cfg.Processing.StreamingThresholdMB <= 0 {
		return nil, fmt.Errorf("STREAMING_THRESHOLD_MB must be positive, got %d", cfg.Processing.StreamingThresholdMB)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}
