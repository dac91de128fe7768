// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Korea Tourism Organization open API
	TourAPIKey string

	// Gemini settings
	GeminiAPIKey      string
	GeminiModel       string
	EmbeddingModel    string
	MaxGeminiRequests int // generation calls per run (0 = unlimited)
	MaxSearchRequests int // photo-search calls per run (0 = unlimited)

	// Blogger settings
	BloggerBlogID string
	BloggerToken  string
	PublishDraft  bool

	// Content settings
	ThemesConfigPath  string
	RegionsConfigPath string
	MinItems          int
	MaxItems          int
	MinImages         int
	MaxRetry          int // topic re-selection attempts when images are short
	ProviderMaxRows   int

	// Dedup settings
	DBPath              string
	PhashThreshold      int     // Hamming distance below which two images are duplicates
	SimilarityThreshold float64 // cosine similarity above which a post is a near-duplicate

	// App settings
	Debug          bool
	RequestTimeout time.Duration
	RetryAttempts  int
	RetryDelay     time.Duration
	Schedule       string // cron spec; empty = run once and exit
}

func Load() (*Config, error) {
	cfg := &Config{
		// Default values
		GeminiModel:         "gemini-1.5-flash",
		EmbeddingModel:      "text-embedding-004",
		MaxGeminiRequests:   6,
		MaxSearchRequests:   60,
		ThemesConfigPath:    "configs/themes.yaml",
		RegionsConfigPath:   "configs/regions.yaml",
		MinItems:            3,
		MaxItems:            6,
		MinImages:           3,
		MaxRetry:            3,
		ProviderMaxRows:     500,
		DBPath:              "tourpost.db",
		PhashThreshold:      6,
		SimilarityThreshold: 0.95,
		RequestTimeout:      30 * time.Second,
		RetryAttempts:       3,
		RetryDelay:          5 * time.Second,
	}

	// Load from environment
	cfg.TourAPIKey = os.Getenv("TOUR_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	cfg.BloggerBlogID = os.Getenv("BLOGGER_BLOG_ID")
	cfg.BloggerToken = os.Getenv("BLOGGER_TOKEN")

	cfg.DBPath = getEnvOrDefault("DB_PATH", cfg.DBPath)
	cfg.ThemesConfigPath = getEnvOrDefault("THEMES_CONFIG_PATH", cfg.ThemesConfigPath)
	cfg.RegionsConfigPath = getEnvOrDefault("REGIONS_CONFIG_PATH", cfg.RegionsConfigPath)
	cfg.Schedule = os.Getenv("PUBLISH_SCHEDULE")

	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		cfg.GeminiModel = model
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		cfg.EmbeddingModel = model
	}

	cfg.MinItems = getEnvIntOrDefault("MIN_ITEMS", cfg.MinItems)
	cfg.MaxItems = getEnvIntOrDefault("MAX_ITEMS", cfg.MaxItems)
	cfg.MinImages = getEnvIntOrDefault("MIN_IMAGES", cfg.MinImages)
	cfg.MaxRetry = getEnvIntOrDefault("MAX_RETRY", cfg.MaxRetry)
	cfg.ProviderMaxRows = getEnvIntOrDefault("PROVIDER_MAX_ROWS", cfg.ProviderMaxRows)
	cfg.PhashThreshold = getEnvIntOrDefault("PHASH_THRESHOLD", cfg.PhashThreshold)
	cfg.MaxGeminiRequests = getEnvIntOrDefault("MAX_GEMINI_REQUESTS", cfg.MaxGeminiRequests)
	cfg.MaxSearchRequests = getEnvIntOrDefault("MAX_SEARCH_REQUESTS", cfg.MaxSearchRequests)
	cfg.RetryAttempts = getEnvIntOrDefault("RETRY_ATTEMPTS", cfg.RetryAttempts)

	if v := os.Getenv("SIMILARITY_THRESHOLD"); v != "" {
		if val, err := strconv.ParseFloat(v, 64); err == nil && val > 0 && val <= 1 {
			cfg.SimilarityThreshold = val
		}
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RequestTimeout = time.Duration(val) * time.Second
		}
	}
	if v := os.Getenv("RETRY_DELAY_SECONDS"); v != "" {
		if val, err := strconv.Atoi(v); err == nil && val > 0 {
			cfg.RetryDelay = time.Duration(val) * time.Second
		}
	}

	if os.Getenv("PUBLISH_DRAFT") == "true" {
		cfg.PublishDraft = true
	}
	if os.Getenv("DEBUG") == "true" {
		cfg.Debug = true
	}

	return cfg, cfg.Validate()
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil && intValue > 0 {
			return intValue
		}
	}
	return defaultValue
}

func (c *Config) Validate() error {
	if c.TourAPIKey == "" {
		return fmt.Errorf("TOUR_API_KEY is required")
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY is required")
	}
	if c.BloggerBlogID == "" {
		return fmt.Errorf("BLOGGER_BLOG_ID is required")
	}
	if c.BloggerToken == "" {
		return fmt.Errorf("BLOGGER_TOKEN is required")
	}
	if c.MinItems < 1 || c.MaxItems < c.MinItems {
		return fmt.Errorf("MIN_ITEMS/MAX_ITEMS out of range: %d/%d", c.MinItems, c.MaxItems)
	}
	return nil
}
