package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

const (
	SelectionStoreBackend  = "backend"
	SelectionStorePostgres = "postgres"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                  int    `env:"PORT" envDefault:"8080"`
	BackendURL            string `env:"BACKEND_URL,required,notEmpty"`
	StatusProviderURL     string `env:"STATUS_PROVIDER_URL,required,notEmpty"`
	RedisURL              string `env:"REDIS_URL,required,notEmpty"`
	JWTSecret             string `env:"JWT_SECRET,required,notEmpty"`
	DatabaseURL           string `env:"DATABASE_URL"`
	SelectionStore        string `env:"SELECTION_STORE" envDefault:"backend"`
	StatusPollIntervalMS  int    `env:"STATUS_POLL_INTERVAL_MS" envDefault:"30000"`
	StatusPollEnabled     bool   `env:"STATUS_POLL_ENABLED" envDefault:"true"`
	SessionIdleTTLSeconds int    `env:"SESSION_IDLE_TTL_SECONDS" envDefault:"3600"`
	RateLimitPerMin       int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	LogLevel              string `env:"LOG_LEVEL" envDefault:"info"`
	StaticDir             string `env:"STATIC_DIR" envDefault:"static/console"`
}

func (c *Config) StatusPollInterval() time.Duration {
	return time.Duration(c.StatusPollIntervalMS) * time.Millisecond
}

func (c *Config) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) UsesPostgresSelections() bool {
	return c.SelectionStore == SelectionStorePostgres
}

func (c *Config) Validate(isProduction bool) error {
	switch c.SelectionStore {
	case SelectionStoreBackend:
	case SelectionStorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when SELECTION_STORE=postgres")
		}
	default:
		return fmt.Errorf("SELECTION_STORE must be %q or %q, got %q", SelectionStoreBackend, SelectionStorePostgres, c.SelectionStore)
	}

	if c.StatusPollIntervalMS < MinStatusPollIntervalMS {
		return fmt.Errorf("STATUS_POLL_INTERVAL_MS must be at least %d", MinStatusPollIntervalMS)
	}
	if c.SessionIdleTTLSeconds <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL_SECONDS must be positive")
	}
	if c.RateLimitPerMin < 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must not be negative")
	}

	for name, raw := range map[string]string{
		"BACKEND_URL":         c.BackendURL,
		"STATUS_PROVIDER_URL": c.StatusProviderURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL", name)
		}
	}

	if isProduction {
		if err := validateSecret("JWT_SECRET", c.JWTSecret); err != nil {
			return err
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if strings.HasPrefix(c.BackendURL, "http://") {
			log.Warn().Msg("BACKEND_URL uses http:// in production: user tokens are sent in clear text")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
