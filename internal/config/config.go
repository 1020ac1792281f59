/**
 * Configuration for the contract analysis pipeline.
 *
 * Loads service configuration from environment variables (.env supported via
 * godotenv in the entry points). Per-format document processing configuration
 * lives in processing.go and is validated eagerly at construction.
 */

package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds service configuration
type Config struct {
	// Redis configuration (queue backend)
	RedisURL string

	// PostgreSQL configuration (job + analysis version persistence)
	DatabaseURL string

	// Qdrant vector database configuration
	QdrantURL           string
	EmbeddingDimensions int

	// API keys
	EmbeddingAPIKey string
	AnthropicAPIKey string
	AnthropicModel  string

	// Worker configuration
	WorkerConcurrency int
	BatchWorkers      int
	MaxFileSize       int64
	ProcessingTimeout int // milliseconds

	// HTTP server
	HTTPAddr string

	// Document processing
	Processing ProcessorConfig
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		RedisURL:            getEnvOrDefault("REDIS_URL", "redis://localhost:6379"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", ""),
		QdrantURL:           getEnvOrDefault("QDRANT_URL", "localhost:6334"),
		EmbeddingDimensions: getEnvAsIntOrDefault("EMBEDDING_DIMENSIONS", 1024),
		EmbeddingAPIKey:     getEnvOrDefault("EMBEDDING_API_KEY", ""),
		AnthropicAPIKey:     getEnvOrDefault("ANTHROPIC_API_KEY", ""),
		AnthropicModel:      getEnvOrDefault("ANTHROPIC_MODEL", "claude-3-5-sonnet-latest"),
		WorkerConcurrency:   getEnvAsIntOrDefault("WORKER_CONCURRENCY", 10),
		BatchWorkers:        getEnvAsIntOrDefault("BATCH_WORKERS", 4),
		MaxFileSize:         getEnvAsInt64OrDefault("MAX_FILE_SIZE", 10*1024*1024), // 10MB
		ProcessingTimeout:   getEnvAsIntOrDefault("PROCESSING_TIMEOUT", 300000),    // 5 minutes
		HTTPAddr:            getEnvOrDefault("HTTP_ADDR", ":8000"),
		Processing:          DefaultProcessorConfig(),
	}

	// Processing overrides from environment
	cfg.Processing.PDF.Language = getEnvOrDefault("OCR_LANGUAGE", cfg.Processing.PDF.Language)
	cfg.Processing.Image.OCRLanguage = getEnvOrDefault("OCR_LANGUAGE", cfg.Processing.Image.OCRLanguage)
	cfg.Processing.PDF.DPI = getEnvAsIntOrDefault("PDF_DPI", cfg.Processing.PDF.DPI)
	cfg.Processing.PDF.SaveProcessedFilesDir = getEnvOrDefault("PROCESSED_FILES_DIR", cfg.Processing.PDF.SaveProcessedFilesDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if configuration is valid
func (c *Config) Validate() error {
	if c.RedisURL == "" {
		return fmt.Errorf("REDIS_URL is required")
	}

	if c.WorkerConcurrency < 1 || c.WorkerConcurrency > 100 {
		return fmt.Errorf("WORKER_CONCURRENCY must be between 1 and 100, got %d", c.WorkerConcurrency)
	}

	if c.BatchWorkers < 1 || c.BatchWorkers > 64 {
		return fmt.Errorf("BATCH_WORKERS must be between 1 and 64, got %d", c.BatchWorkers)
	}

	if c.MaxFileSize < 1024 {
		return fmt.Errorf("MAX_FILE_SIZE must be at least 1KB, got %d", c.MaxFileSize)
	}

	if err := c.Processing.Validate(); err != nil {
		return err
	}

	return nil
}

// getEnvOrDefault gets environment variable or returns default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsIntOrDefault gets environment variable as int or returns default
func getEnvAsIntOrDefault(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvAsInt64OrDefault gets environment variable as int64 or returns default
func getEnvAsInt64OrDefault(key string, defaultValue int64) int64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseInt(valueStr, 10, 64)
	if err != nil {
		return defaultValue
	}

	return value
}
