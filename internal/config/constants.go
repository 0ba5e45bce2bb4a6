package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Ping timeout for health checks
const PingTimeout = 5 * time.Second

// Outbound calls to the account backend and the status provider
const (
	BackendRequestTimeout  = 15 * time.Second
	ProviderRequestTimeout = 20 * time.Second
)

const MinStatusPollIntervalMS = 1000

// Background job intervals
const (
	SessionReapInterval  = 5 * time.Minute
	StaleSelectionMaxAge = 90 * 24 * time.Hour
)
