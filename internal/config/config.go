package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"idverify/internal/logger"
)

// OCR provider names accepted in OCR_PROVIDER and OCR_SECONDARY_PROVIDER.
const (
	ProviderVision     = "vision"
	ProviderDocumentAI = "documentai"
	ProviderOpenAI     = "openai"
	ProviderNone       = "none"
)

type Config struct {
	// OCR Configuration
	OCRProvider          string
	OCRSecondaryProvider string
	OCRFallbackThreshold float64
	OCRWordConfidenceMin float64
	OCRTimeout           time.Duration

	// Google Cloud Configuration
	GoogleCloudProject    string
	GoogleCloudLocation   string
	DocumentAIProcessorID string

	// OpenAI Configuration
	OpenAIAPIKey     string
	OpenAIModel      string
	OpenAIMaxRetries int

	// Role policy override (YAML)
	RolePolicyFile string

	// OCR cache
	RedisURL    string
	OCRCacheTTL time.Duration

	// Google Sheets review log
	ReviewSheetURL  string
	ReviewWorksheet string

	// Batch processing
	BatchWorkers int
	MetricsFile  string

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCRProvider:           strings.ToLower(getEnv("OCR_PROVIDER", ProviderVision)),
		OCRSecondaryProvider:  strings.ToLower(getEnv("OCR_SECONDARY_PROVIDER", ProviderNone)),
		OCRFallbackThreshold:  parseFloatEnv("OCR_FALLBACK_THRESHOLD", 0.7),
		OCRWordConfidenceMin:  parseFloatEnv("OCR_WORD_CONFIDENCE_MIN", 0.6),
		OCRTimeout:            parseDurationEnv("OCR_TIMEOUT", 60*time.Second),
		GoogleCloudProject:    getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:   getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID: getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		OpenAIAPIKey:          getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:           getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIMaxRetries:      parseIntEnv("OPENAI_MAX_RETRIES", 3),
		RolePolicyFile:        getEnv("ROLE_POLICY_FILE", ""),
		RedisURL:              getEnv("REDIS_URL", ""),
		OCRCacheTTL:           parseDurationEnv("OCR_CACHE_TTL", 24*time.Hour),
		ReviewSheetURL:        getEnv("REVIEW_SHEET_URL", ""),
		ReviewWorksheet:       getEnv("REVIEW_WORKSHEET", "Verifications"),
		BatchWorkers:          parseIntEnv("BATCH_WORKERS", 8),
		MetricsFile:           getEnv("METRICS_FILE", ""),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		LogFormat:             getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:         getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:             getEnv("LOG_OUTPUT", "stderr"),
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.OCRProvider {
	case ProviderVision, ProviderDocumentAI, ProviderOpenAI:
	default:
		return fmt.Errorf("OCR_PROVIDER must be one of vision, documentai, openai (got %q)", c.OCRProvider)
	}
	switch c.OCRSecondaryProvider {
	case ProviderNone, ProviderDocumentAI, ProviderOpenAI, ProviderVision:
	default:
		return fmt.Errorf("OCR_SECONDARY_PROVIDER must be one of none, vision, documentai, openai (got %q)", c.OCRSecondaryProvider)
	}
	if c.OCRSecondaryProvider == c.OCRProvider {
		return fmt.Errorf("OCR_SECONDARY_PROVIDER must differ from OCR_PROVIDER")
	}

	for _, p := range []string{c.OCRProvider, c.OCRSecondaryProvider} {
		switch p {
		case ProviderDocumentAI:
			if c.GoogleCloudProject == "" {
				return fmt.Errorf("GOOGLE_CLOUD_PROJECT is required for the documentai provider")
			}
			if c.DocumentAIProcessorID == "" {
				return fmt.Errorf("DOCUMENT_AI_PROCESSOR_ID is required for the documentai provider")
			}
		case ProviderOpenAI:
			if c.OpenAIAPIKey == "" {
				return fmt.Errorf("OPENAI_API_KEY is required for the openai provider")
			}
		}
	}

	if c.OCRFallbackThreshold < 0 || c.OCRFallbackThreshold > 1 {
		return fmt.Errorf("OCR_FALLBACK_THRESHOLD must be between 0 and 1")
	}
	if c.OCRWordConfidenceMin < 0 || c.OCRWordConfidenceMin > 1 {
		return fmt.Errorf("OCR_WORD_CONFIDENCE_MIN must be between 0 and 1")
	}
	if c.BatchWorkers < 1 {
		return fmt.Errorf("BATCH_WORKERS must be at least 1")
	}
	return nil
}

// HasSecondaryProvider reports whether a fallback OCR provider is configured.
func (c *Config) HasSecondaryProvider() bool {
	return c.OCRSecondaryProvider != "" && c.OCRSecondaryProvider != ProviderNone
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
