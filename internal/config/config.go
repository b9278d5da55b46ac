// Package config loads process configuration from the environment and the
// tracker's YAML file (accounts, watchlist, schedule, notification targets).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the process-level settings for the tracker binary.
// Values are populated by Load from environment variables.
type Config struct {
	// Port is the TCP port the HTTP server listens on.
	Port string `env:"PORT" envDefault:"8080"`

	// DatabaseURL is the Postgres connection string. Required.
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`

	// LogLevel controls the minimum log level: debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// CORSOrigins is the list of allowed cross-origin request origins.
	// Set CORS_ORIGINS to a comma-separated list to override.
	CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173" envSeparator:","`

	// TrackerConfig is the path of the YAML tracker file.
	TrackerConfig string `env:"TRACKER_CONFIG" envDefault:"config.yaml"`

	// RedisURL enables the shared run gate and the Redis-backed ship cache.
	// Empty means in-process only.
	RedisURL string `env:"REDIS_URL"`

	// EnableScheduler starts the cron scheduler inside `serve`.
	EnableScheduler bool `env:"ENABLE_SCHEDULER" envDefault:"false"`

	// RunOnStartup triggers one full run as soon as `serve` is up.
	RunOnStartup bool `env:"RUN_ON_STARTUP" envDefault:"false"`

	// VendorTimeout bounds every individual vendor request.
	VendorTimeout time.Duration `env:"VENDOR_TIMEOUT" envDefault:"30s"`

	// VendorRate and VendorBurst pace vendor requests (requests per second).
	VendorRate  float64 `env:"VENDOR_RATE" envDefault:"2"`
	VendorBurst int     `env:"VENDOR_BURST" envDefault:"1"`

	// ShipCacheTTL is how long the ship dictionary lives in Redis.
	ShipCacheTTL time.Duration `env:"SHIP_CACHE_TTL" envDefault:"24h"`
}

// Load reads a .env file when present, then parses the environment into a Config.
// Returns an error naming any required variable that is not set.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config.Load: %w", err)
	}
	cfg.CORSOrigins = trimAll(cfg.CORSOrigins)

	if cfg.VendorTimeout <= 0 {
		return Config{}, fmt.Errorf("config.Load: VENDOR_TIMEOUT must be positive, got %s", cfg.VendorTimeout)
	}
	if cfg.VendorRate <= 0 {
		return Config{}, fmt.Errorf("config.Load: VENDOR_RATE must be positive, got %v", cfg.VendorRate)
	}
	if cfg.VendorBurst < 1 {
		cfg.VendorBurst = 1
	}
	return cfg, nil
}

// trimAll trims every entry and drops the empty ones.
func trimAll(in []string) []string {
	var out []string
	for _, part := range in {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
