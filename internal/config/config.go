package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"mrzscan/internal/logger"
	"mrzscan/internal/mrz"
)

type Config struct {
	// Scanner Configuration
	PrefixLength       int
	RequireNumericLine bool
	ExtractAllBlocks   bool

	// OCR Configuration
	OCREngine  string
	OCRWorkers int

	// Google Cloud Configuration
	GoogleCloudProject         string
	GoogleCloudLocation        string
	DocumentAIProcessorID      string
	DocumentAIProcessorVersion string

	// Google Sheets Configuration
	GoogleSheetURL       string
	GoogleSheetWorksheet string

	// HTTP Configuration
	HTTPAddr           string
	SessionIdleTimeout time.Duration

	// Logging Configuration
	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		OCREngine:                  getEnv("OCR_ENGINE", "vision"),
		GoogleCloudProject:         getEnv("GOOGLE_CLOUD_PROJECT", ""),
		GoogleCloudLocation:        getEnv("GOOGLE_CLOUD_LOCATION", "us"),
		DocumentAIProcessorID:      getEnv("DOCUMENT_AI_PROCESSOR_ID", ""),
		DocumentAIProcessorVersion: getEnv("DOCUMENT_AI_PROCESSOR_VERSION", ""),
		GoogleSheetURL:             getEnv("GOOGLE_SHEET_URL", ""),
		GoogleSheetWorksheet:       getEnv("GOOGLE_SHEET_WORKSHEET", "MRZ_Scans"),
		HTTPAddr:                   getEnv("HTTP_ADDR", ":8080"),
		LogLevel:                   getEnv("LOG_LEVEL", "info"),
		LogFormat:                  getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:              getEnv("LOG_TIME_FORMAT", "2006-01-02T15:04:05Z07:00"),
		LogOutput:                  getEnv("LOG_OUTPUT", "stderr"),
	}

	var err error
	if config.PrefixLength, err = getEnvInt("MRZ_PREFIX_LENGTH", mrz.DefaultPrefixLength); err != nil {
		return nil, err
	}
	if config.RequireNumericLine, err = getEnvBool("MRZ_REQUIRE_NUMERIC_LINE", true); err != nil {
		return nil, err
	}
	if config.ExtractAllBlocks, err = getEnvBool("MRZ_EXTRACT_ALL_BLOCKS", false); err != nil {
		return nil, err
	}
	if config.OCRWorkers, err = getEnvInt("OCR_WORKERS", 4); err != nil {
		return nil, err
	}
	if config.SessionIdleTimeout, err = getEnvDuration("SESSION_IDLE_TIMEOUT", 5*time.Minute); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.PrefixLength < 1 || c.PrefixLength > mrz.TD1LineLength {
		return fmt.Errorf("MRZ_PREFIX_LENGTH must be between 1 and %d, got %d", mrz.TD1LineLength, c.PrefixLength)
	}
	switch c.OCREngine {
	case "vision", "documentai", "tesseract":
	default:
		return fmt.Errorf("OCR_ENGINE must be one of vision, documentai, tesseract, got %q", c.OCREngine)
	}
	if c.OCRWorkers < 1 {
		return fmt.Errorf("OCR_WORKERS must be at least 1, got %d", c.OCRWorkers)
	}
	if c.SessionIdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive, got %s", c.SessionIdleTimeout)
	}
	return nil
}

// Rules returns the accumulator rules from the scanner configuration
func (c *Config) Rules() mrz.Rules {
	return mrz.Rules{
		PrefixLength:       c.PrefixLength,
		RequireNumericLine: c.RequireNumericLine,
	}
}

// Extractor returns the frame line extractor from the scanner configuration
func (c *Config) Extractor() mrz.Extractor {
	return mrz.Extractor{AllBlocks: c.ExtractAllBlocks}
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

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, fmt.Errorf("%s must be a boolean: %w", key, err)
	}
	return b, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
