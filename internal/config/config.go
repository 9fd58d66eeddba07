// Package config loads application settings from the environment.
package config

import (
	"os"
	"strconv"
	"time"
)

// Defaults for the cache staleness window and the post-mutation refresh
// delay.
const (
	DefaultCacheTTL     = 5 * time.Minute
	DefaultRefreshDelay = 500 * time.Millisecond
)

type Config struct {
	App   AppConfig
	API   APIConfig
	Redis RedisConfig
}

type AppConfig struct {
	Environment  string // development or production
	Host         string
	Port         string
	DataDir      string // sqlite sessions + bleve index live here
	CacheTTL     time.Duration
	RefreshDelay time.Duration
}

type APIConfig struct {
	BaseURL string
	Token   string // optional static token; browser sessions carry their own
}

// RedisConfig is optional: an empty Addr selects the in-memory page
// cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Load reads configuration from the environment, filling defaults for
// anything unset.
func Load() *Config {
	return &Config{
		App: AppConfig{
			Environment:  getEnv("APP_ENV", "development"),
			Host:         getEnv("HOST", "localhost"),
			Port:         getEnv("PORT", "8080"),
			DataDir:      getEnv("DATA_DIR", "./data"),
			CacheTTL:     getDuration("CACHE_TTL", DefaultCacheTTL),
			RefreshDelay: getDuration("REFRESH_DELAY", DefaultRefreshDelay),
		},
		API: APIConfig{
			BaseURL: getEnv("GOREST_BASE_URL", ""),
			Token:   getEnv("GOREST_TOKEN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
