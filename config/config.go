package config

import (
	"os"
	"strconv"
	"time"

	"plant-diagnosis-pipeline/models"
)

// Config holds all configuration for the diagnosis service. Loaded once
// at startup; hot reload is out of scope.
type Config struct {
	// Server configuration
	Port     string
	LogLevel string

	// Orchestration configuration
	Mode                string // default mode: "primary" or "ensemble"
	PrimaryProvider     string
	FallbackProvider    string
	ConfidenceThreshold float64
	RequestTimeout      time.Duration
	MaxImageDimension   int

	// Retry configuration shared by all providers unless overridden
	MaxRetries     int
	RetryBaseDelay time.Duration

	// Providers
	LeafScan    models.ProviderConfig
	PhytoVision models.ProviderConfig
	LocalModel  models.ProviderConfig
	Stub        models.ProviderConfig
}

// Load loads configuration from environment variables.
func Load() *Config {
	maxRetries := getIntEnv("MAX_RETRIES", 3)
	baseDelay := getDurationEnv("RETRY_BASE_DELAY", 500*time.Millisecond)

	config := &Config{
		// Server defaults
		Port:     getEnv("PORT", "8080"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Orchestration defaults
		Mode:                getEnv("DIAGNOSIS_MODE", "ensemble"),
		PrimaryProvider:     getEnv("PRIMARY_PROVIDER", "leafscan"),
		FallbackProvider:    getEnv("FALLBACK_PROVIDER", "phytovision"),
		ConfidenceThreshold: getFloatEnv("CONFIDENCE_THRESHOLD", 0.7),
		RequestTimeout:      getDurationEnv("REQUEST_TIMEOUT", 60*time.Second),
		MaxImageDimension:   getIntEnv("MAX_IMAGE_DIMENSION", 1024),

		MaxRetries:     maxRetries,
		RetryBaseDelay: baseDelay,

		LeafScan: models.ProviderConfig{
			Name:                "leafscan",
			Enabled:             getBoolEnv("LEAFSCAN_ENABLED", true),
			APIKey:              getEnv("LEAFSCAN_API_KEY", ""),
			Endpoint:            getEnv("LEAFSCAN_ENDPOINT", ""),
			Model:               getEnv("LEAFSCAN_MODEL", "gemini-2.0-flash"),
			Timeout:             getDurationEnv("LEAFSCAN_TIMEOUT", 30*time.Second),
			ConfidenceThreshold: getFloatEnv("LEAFSCAN_CONFIDENCE_THRESHOLD", 0.7),
			RateLimitPerMinute:  getIntEnv("LEAFSCAN_RATE_LIMIT", 60),
			MaxAttempts:         maxRetries,
			RetryBaseDelay:      baseDelay,
		},
		PhytoVision: models.ProviderConfig{
			Name:                "phytovision",
			Enabled:             getBoolEnv("PHYTOVISION_ENABLED", true),
			APIKey:              getEnv("PHYTOVISION_API_KEY", ""),
			Endpoint:            getEnv("PHYTOVISION_ENDPOINT", ""),
			Timeout:             getDurationEnv("PHYTOVISION_TIMEOUT", 20*time.Second),
			ConfidenceThreshold: getFloatEnv("PHYTOVISION_CONFIDENCE_THRESHOLD", 0.6),
			RateLimitPerMinute:  getIntEnv("PHYTOVISION_RATE_LIMIT", 30),
			MaxAttempts:         maxRetries,
			RetryBaseDelay:      baseDelay,
		},
		LocalModel: models.ProviderConfig{
			Name:                "localmodel",
			Enabled:             getBoolEnv("LOCAL_MODEL_ENABLED", false),
			ModelPath:           getEnv("LOCAL_MODEL_PATH", "models/plant_disease.onnx"),
			MetadataPath:        getEnv("LOCAL_MODEL_METADATA", "models/plant_disease.json"),
			Timeout:             getDurationEnv("LOCAL_MODEL_TIMEOUT", 10*time.Second),
			ConfidenceThreshold: getFloatEnv("LOCAL_MODEL_CONFIDENCE_THRESHOLD", 0.5),
			MaxAttempts:         1, // in-process inference gains nothing from retries
		},
		Stub: models.ProviderConfig{
			Name:        "stub",
			Enabled:     getBoolEnv("STUB_PROVIDER_ENABLED", false),
			Timeout:     getDurationEnv("STUB_PROVIDER_TIMEOUT", time.Second),
			MaxAttempts: 1,
		},
	}

	return config
}

// ProviderConfigs lists every configured provider, enabled or not.
func (c *Config) ProviderConfigs() []models.ProviderConfig {
	return []models.ProviderConfig{c.LeafScan, c.PhytoVision, c.LocalModel, c.Stub}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv gets a duration environment variable or returns a default value
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getFloatEnv gets a float environment variable or returns a default value
func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getBoolEnv gets a boolean environment variable or returns a default value
func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
