// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port        string
	FrontendURL string
	DBPath      string
	Generation  GenerationConfig
	RateLimit   RateLimitConfig
}

// GenerationConfig controls the completion endpoint and sampling parameters.
type GenerationConfig struct {
	OllamaURL   string
	ModelName   string
	Temperature float64
	TopP        float64
	NumCtx      int
	Timeout     time.Duration
	StatusDelay time.Duration
}

// RateLimitConfig throttles generate requests per user.
type RateLimitConfig struct {
	RequestsPerWindow int
	WindowDuration    time.Duration
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", ""),
		DBPath:      getEnv("DB_PATH", "./data/pzero.db"),
		Generation: GenerationConfig{
			OllamaURL:   getEnv("OLLAMA_URL", "http://localhost:11434/api/chat"),
			ModelName:   getEnv("MODEL_NAME", "glm-4.6:cloud"),
			Temperature: getEnvFloat("GEN_TEMPERATURE", 0.8),
			TopP:        getEnvFloat("GEN_TOP_P", 0.95),
			NumCtx:      getEnvInt("GEN_NUM_CTX", 8192),
			Timeout:     getEnvDuration("GEN_TIMEOUT", 300*time.Second),
			StatusDelay: getEnvDuration("STATUS_DELAY", 300*time.Millisecond),
		},
		RateLimit: RateLimitConfig{
			RequestsPerWindow: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			WindowDuration:    getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.Generation.OllamaURL == "" {
		return fmt.Errorf("OLLAMA_URL cannot be empty")
	}
	if c.Generation.ModelName == "" {
		return fmt.Errorf("MODEL_NAME cannot be empty")
	}
	if c.Generation.NumCtx <= 0 {
		return fmt.Errorf("GEN_NUM_CTX must be > 0")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GEN_TIMEOUT must be > 0")
	}
	if c.RateLimit.RequestsPerWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be > 0")
	}
	if c.RateLimit.WindowDuration <= 0 {
		return fmt.Errorf("RATE_LIMIT_WINDOW must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
