package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Store    StoreConfig
	Queue    QueueConfig
	OCR      OCRConfig
	Vision   VisionConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds the optional Postgres result sink configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// StoreConfig holds the local sqlite store configuration
type StoreConfig struct {
	Path string
}

// QueueConfig holds the Redis-backed scan queue configuration
type QueueConfig struct {
	RedisURL    string
	Concurrency int
}

// OCRConfig holds OCR-related configuration
type OCRConfig struct {
	Tesseract        string
	TessdataDir      string
	Language         string
	ArtifactCacheDir string
}

// VisionConfig holds vision-model configuration
type VisionConfig struct {
	Model        string
	APIKey       string
	BaseURL      string
	Temperature  float32
	Timeout      time.Duration
	MaxDimension int
	JPEGQuality  int
}

// PipelineConfig holds dual-path orchestration configuration
type PipelineConfig struct {
	EnableOCR           bool
	EnableVision        bool
	ConfidenceThreshold float64
	MergeStrategy       string
	OCRTimeout          time.Duration
	VisionTimeout       time.Duration
	ImageRoot           string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Store: StoreConfig{
			Path: getEnv("STORE_PATH", "./partlens.db"),
		},
		Queue: QueueConfig{
			RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379/0"),
			Concurrency: getEnvAsInt("QUEUE_CONCURRENCY", 4),
		},
		OCR: OCRConfig{
			Tesseract:        getEnv("TESSERACT_PATH", "tesseract"),
			TessdataDir:      getEnv("TESSDATA_PREFIX", ""),
			Language:         getEnv("TESSERACT_LANG", "eng"),
			ArtifactCacheDir: getEnv("ARTIFACT_CACHE_DIR", "./tmp"),
		},
		Vision: VisionConfig{
			Model:        getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:       getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("OPENAI_BASE_URL", ""),
			Temperature:  getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:      getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
			MaxDimension: getEnvAsInt("VISION_MAX_DIMENSION", 1024),
			JPEGQuality:  getEnvAsInt("VISION_JPEG_QUALITY", 85),
		},
		Pipeline: PipelineConfig{
			EnableOCR:           getEnvAsBool("ENABLE_OCR", true),
			EnableVision:        getEnvAsBool("ENABLE_VISION", true),
			ConfidenceThreshold: getEnvAsFloat64("CONFIDENCE_THRESHOLD", 0.7),
			MergeStrategy:       getEnv("MERGE_STRATEGY", "best_confidence"),
			OCRTimeout:          getEnvAsDuration("OCR_TIMEOUT", 60*time.Second),
			VisionTimeout:       getEnvAsDuration("VISION_TIMEOUT", 60*time.Second),
			ImageRoot:           getEnv("IMAGE_ROOT", "."),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat64(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if !c.Pipeline.EnableOCR && !c.Pipeline.EnableVision {
		return NewAppError("CONFIG_ERROR", "at least one of ENABLE_OCR and ENABLE_VISION must be true", ErrInvalidInput)
	}
	if c.Pipeline.EnableVision && c.Vision.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required when the vision path is enabled", ErrInvalidInput)
	}
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return NewAppError("CONFIG_ERROR", "CONFIDENCE_THRESHOLD must be between 0 and 1", ErrInvalidInput)
	}
	if c.Store.Path == "" {
		return NewAppError("CONFIG_ERROR", "STORE_PATH is required", ErrInvalidInput)
	}
	return nil
}
