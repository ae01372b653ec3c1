package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all configuration for the service, read from environment
// variables. The ingestion endpoint settings may be absent: the service
// still boots and the publisher reports itself unconfigured.
type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`

	IngestURL    string        `env:"INGEST_URL"`
	IngestSecret string        `env:"INGEST_SECRET"`
	TokenIssuer  string        `env:"TOKEN_ISSUER" envDefault:"gamesync"`
	TokenTTL     time.Duration `env:"TOKEN_TTL" envDefault:"2m"`
	HTTPTimeout  time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`

	RetryMaxAttempts int           `env:"RETRY_MAX_ATTEMPTS" envDefault:"8"`
	RetryBaseDelay   time.Duration `env:"RETRY_BASE_DELAY" envDefault:"1m"`
	RetryMaxDelay    time.Duration `env:"RETRY_MAX_DELAY" envDefault:"4h"`
	RetryBatchLimit  int           `env:"RETRY_BATCH_LIMIT" envDefault:"25"`

	PublishPerSecond int `env:"PUBLISH_RATE_PER_SECOND" envDefault:"0"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}
	if cfg.RetryMaxAttempts < 1 {
		return nil, fmt.Errorf("RETRY_MAX_ATTEMPTS must be at least 1")
	}
	// A zero base delay makes every dead letter immediately eligible again.
	if cfg.RetryBaseDelay <= 0 {
		return nil, fmt.Errorf("RETRY_BASE_DELAY must be positive")
	}
	if cfg.RetryMaxDelay <= 0 {
		return nil, fmt.Errorf("RETRY_MAX_DELAY must be positive")
	}
	if cfg.RetryMaxDelay < cfg.RetryBaseDelay {
		return nil, fmt.Errorf("RETRY_MAX_DELAY must not be below RETRY_BASE_DELAY")
	}

	return &cfg, nil
}
