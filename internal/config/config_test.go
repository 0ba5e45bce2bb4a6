package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Port:                  8080,
		BackendURL:            "https://api.example.com",
		StatusProviderURL:     "https://status.example.com",
		RedisURL:              "rediss://localhost:6379",
		JWTSecret:             "0123456789abcdef0123456789abcdef",
		SelectionStore:        SelectionStoreBackend,
		StatusPollIntervalMS:  30000,
		StatusPollEnabled:     true,
		SessionIdleTTLSeconds: 3600,
	}
}

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("StatusPollInterval converts milliseconds to duration", func(t *testing.T) {
		cfg := &Config{StatusPollIntervalMS: 30000}
		assert.Equal(t, 30*time.Second, cfg.StatusPollInterval())
	})

	t.Run("SessionIdleTTL converts seconds to duration", func(t *testing.T) {
		cfg := &Config{SessionIdleTTLSeconds: 60}
		assert.Equal(t, time.Minute, cfg.SessionIdleTTL())
	})
}

func TestValidate(t *testing.T) {
	t.Run("accepts a valid config", func(t *testing.T) {
		assert.NoError(t, validConfig().Validate(true))
	})

	t.Run("postgres selections need DATABASE_URL", func(t *testing.T) {
		cfg := validConfig()
		cfg.SelectionStore = SelectionStorePostgres
		assert.Error(t, cfg.Validate(false))

		cfg.DatabaseURL = "postgres://localhost/test"
		assert.NoError(t, cfg.Validate(false))
		assert.True(t, cfg.UsesPostgresSelections())
	})

	t.Run("rejects unknown selection store", func(t *testing.T) {
		cfg := validConfig()
		cfg.SelectionStore = "sqlite"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects negative rate limit", func(t *testing.T) {
		cfg := validConfig()
		cfg.RateLimitPerMin = -1
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects too frequent polling", func(t *testing.T) {
		cfg := validConfig()
		cfg.StatusPollIntervalMS = 10
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("rejects relative URLs", func(t *testing.T) {
		cfg := validConfig()
		cfg.BackendURL = "/api"
		assert.Error(t, cfg.Validate(false))
	})

	t.Run("weak secret is only rejected in production", func(t *testing.T) {
		cfg := validConfig()
		cfg.JWTSecret = "secret"
		assert.NoError(t, cfg.Validate(false))
		assert.Error(t, cfg.Validate(true))
	})
}

func TestLoad(t *testing.T) {
	setRequired := func(t *testing.T) {
		t.Setenv("BACKEND_URL", "https://api.example.com")
		t.Setenv("STATUS_PROVIDER_URL", "https://status.example.com")
		t.Setenv("REDIS_URL", "redis://localhost:6379")
		t.Setenv("JWT_SECRET", "dev-secret-change-me")
	}

	t.Run("loads config with defaults", func(t *testing.T) {
		setRequired(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "https://api.example.com", cfg.BackendURL)
		assert.Equal(t, SelectionStoreBackend, cfg.SelectionStore)
		assert.Equal(t, 30000, cfg.StatusPollIntervalMS)
		assert.True(t, cfg.StatusPollEnabled)
		assert.Equal(t, 3600, cfg.SessionIdleTTLSeconds)
		assert.Equal(t, 120, cfg.RateLimitPerMin)
		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, "static/console", cfg.StaticDir)
	})

	t.Run("loads custom values", func(t *testing.T) {
		setRequired(t)
		t.Setenv("PORT", "3000")
		t.Setenv("STATUS_POLL_INTERVAL_MS", "5000")
		t.Setenv("STATUS_POLL_ENABLED", "false")
		t.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 5*time.Second, cfg.StatusPollInterval())
		assert.False(t, cfg.StatusPollEnabled)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required BACKEND_URL", func(t *testing.T) {
		setRequired(t)
		t.Setenv("BACKEND_URL", "")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required JWT_SECRET", func(t *testing.T) {
		setRequired(t)
		t.Setenv("JWT_SECRET", "")

		_, err := Load()
		assert.Error(t, err)
	})
}
