// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
)

// Cache drivers.
const (
	CacheDriverRedis  = "redis"
	CacheDriverMemory = "memory"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Database (PostgreSQL)
	DatabaseURL    string `env:"DATABASE_URL,required"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" envDefault:"false"`

	// Redis backs the cache, the donation event stream and the task queue.
	RedisURL string `env:"REDIS_URL,required"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Search index (Meilisearch)
	MeiliURL           string        `env:"MEILI_URL" envDefault:"http://localhost:7700"`
	MeiliAPIKey        string        `env:"MEILI_API_KEY"`
	MeiliIndex         string        `env:"MEILI_INDEX" envDefault:"campaigns"`
	SearchEnabled      bool          `env:"SEARCH_ENABLED" envDefault:"true"`
	SearchTimeout      time.Duration `env:"SEARCH_TIMEOUT" envDefault:"2s"`
	SearchIngestionLag time.Duration `env:"SEARCH_INGESTION_LAG" envDefault:"5m"`
	OwnerFetchLimit    int           `env:"OWNER_FETCH_LIMIT" envDefault:"1000"`
	OwnerHybridSearch  bool          `env:"OWNER_HYBRID_SEARCH" envDefault:"true"`

	// Cache
	CacheDriver    string        `env:"CACHE_DRIVER" envDefault:"redis"`
	CacheNamespace string        `env:"CACHE_NAMESPACE" envDefault:"kindfund"`
	CacheVersion   int           `env:"CACHE_VERSION" envDefault:"1"`
	AnalyticsTTL   time.Duration `env:"ANALYTICS_TTL" envDefault:"1h"`
	ListTTL        time.Duration `env:"LIST_TTL" envDefault:"15m"`

	// Cache warming
	WarmLimit         int           `env:"WARM_LIMIT" envDefault:"50"`
	WarmInterval      time.Duration `env:"WARM_INTERVAL" envDefault:"10m"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY" envDefault:"4"`

	// AdminToken guards the admin and internal endpoints. Empty disables the check.
	AdminToken string `env:"ADMIN_TOKEN"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// Validate checks settings that env tags cannot express.
func (c *Config) Validate() error {
	switch c.CacheDriver {
	case CacheDriverRedis, CacheDriverMemory:
	default:
		return fmt.Errorf("CACHE_DRIVER must be %q or %q, got %q", CacheDriverRedis, CacheDriverMemory, c.CacheDriver)
	}
	if c.CacheNamespace == "" {
		return fmt.Errorf("CACHE_NAMESPACE must not be empty")
	}
	if c.CacheVersion < 1 {
		return fmt.Errorf("CACHE_VERSION must be at least 1, got %d", c.CacheVersion)
	}
	if c.AnalyticsTTL <= 0 || c.ListTTL <= 0 {
		return fmt.Errorf("ANALYTICS_TTL and LIST_TTL must be positive")
	}
	if c.OwnerFetchLimit <= 0 {
		return fmt.Errorf("OWNER_FETCH_LIMIT must be positive, got %d", c.OwnerFetchLimit)
	}
	if c.WorkerConcurrency <= 0 {
		return fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", c.WorkerConcurrency)
	}
	if c.IsProduction() && c.AdminToken == "" {
		return fmt.Errorf("ADMIN_TOKEN is required in production")
	}
	return nil
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
