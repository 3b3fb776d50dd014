package common

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Watch    WatchConfig
}

// DatabaseConfig holds conversation store configuration
type DatabaseConfig struct {
	DSN string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// WatchConfig holds drop-directory ingest configuration. Watching is
// disabled when no dirs are set.
type WatchConfig struct {
	Dirs     []string
	Debounce time.Duration
}

// LLMConfig holds completion gateway configuration
type LLMConfig struct {
	BaseURL        string
	Model          string
	APIKey         string
	Temperature    float32
	Timeout        time.Duration
	MaxRetries     int
	RetryBaseDelay time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN: getEnv("INTAKE_DB_DSN", "intake.db"),
		},
		Server: ServerConfig{
			Addr: getEnv("INTAKE_ADDR", ":8080"),
		},
		LLM: LLMConfig{
			BaseURL:        getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
			Model:          getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:         getEnv("OPENAI_API_KEY", ""),
			Temperature:    getEnvAsFloat32("OPENAI_TEMPERATURE", 0.3),
			Timeout:        getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
			MaxRetries:     getEnvAsInt("OPENAI_MAX_RETRIES", 3),
			RetryBaseDelay: getEnvAsDuration("OPENAI_RETRY_BASE_DELAY", 2*time.Second),
		},
		Watch: WatchConfig{
			Dirs:     getEnvAsList("INTAKE_WATCH_DIRS"),
			Debounce: getEnvAsDuration("INTAKE_WATCH_DEBOUNCE", 500*time.Millisecond),
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

func getEnvAsList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
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

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "INTAKE_DB_DSN is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "OPENAI_API_KEY is required", ErrNotConfigured)
	}
	if c.LLM.MaxRetries < 1 {
		return NewAppError("CONFIG_ERROR", "OPENAI_MAX_RETRIES must be at least 1", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "INTAKE_ADDR is required", ErrInvalidInput)
	}
	return nil
}
