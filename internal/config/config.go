// Package config handles application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port    int
	BaseURL string

	// Database
	DatabaseURL string

	// LLM provider (the generative-text service used for insight extraction)
	LLMProvider string // openai, anthropic, openrouter, ollama
	LLMModel    string
	LLMAPIKey   string
	LLMBaseURL  string        // For ollama or custom OpenAI-compatible endpoints
	LLMTimeout  time.Duration // Per model call

	// Crawler
	CrawlDelay   time.Duration // Politeness delay between page fetches
	FetchTimeout time.Duration // Per page fetch
	UserAgent    string

	// Worker
	WorkerPollInterval time.Duration // How often to poll for queued crawl jobs

	// Auth for mutating endpoints. Either (or neither, for open deployments):
	AdminAPIKeyHash string // bcrypt hash of the admin bearer token
	AuthJWTSecret   string // HS256 secret for externally issued session tokens

	// CORS
	CORSOrigins []string

	// Object storage for raw HTML archive (S3-compatible, optional)
	ArchiveEnabled   bool
	ArchiveEndpoint  string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveBucket    string
	ArchiveRegion    string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:        getEnvInt("PORT", 8080),
		BaseURL:     getEnv("BASE_URL", "http://localhost:8080"),
		DatabaseURL: getEnv("DATABASE_URL", "file:companyintel.db?_journal=WAL&_timeout=5000"),

		LLMProvider: getEnv("LLM_PROVIDER", "openai"),
		LLMModel:    getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMAPIKey:   getEnv("LLM_API_KEY", ""),
		LLMBaseURL:  getEnv("LLM_BASE_URL", ""),
		LLMTimeout:  getEnvDuration("LLM_TIMEOUT", 120*time.Second),

		CrawlDelay:   getEnvDuration("CRAWL_DELAY", 1*time.Second),
		FetchTimeout: getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		UserAgent:    getEnv("CRAWL_USER_AGENT", "companyintel-bot/1.0"),

		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 5*time.Second),

		AdminAPIKeyHash: getEnv("ADMIN_API_KEY_HASH", ""),
		AuthJWTSecret:   getEnv("AUTH_JWT_SECRET", ""),

		CORSOrigins: getEnvSlice("CORS_ORIGINS", []string{"http://localhost:3000"}),

		ArchiveEndpoint:  getEnv("AWS_ENDPOINT_URL_S3", ""),
		ArchiveAccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		ArchiveSecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		ArchiveBucket:    getEnv("ARCHIVE_BUCKET", ""),
		ArchiveRegion:    getEnv("AWS_REGION", "auto"),
	}

	// Enable the raw HTML archive only when a bucket and endpoint are configured
	cfg.ArchiveEnabled = cfg.ArchiveBucket != "" && cfg.ArchiveEndpoint != ""

	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid BASE_URL: %w", err)
	}
	if cfg.CrawlDelay < 0 {
		return nil, fmt.Errorf("CRAWL_DELAY must not be negative")
	}

	return cfg, nil
}

// AuthEnabled returns true if mutating endpoints require a credential.
func (c *Config) AuthEnabled() bool {
	return c.AdminAPIKeyHash != "" || c.AuthJWTSecret != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}
