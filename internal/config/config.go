// Package config provides centralized configuration loaded from environment
// variables. Shared by cmd/server and cmd/notifyctl.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Sport registry
// --------------------------------------------------------------------------

// SportConfig describes one supported sport and its regulation structure.
type SportConfig struct {
	ID           string
	Name         string
	TotalPeriods int
}

var SportRegistry = map[string]SportConfig{
	"NBA": {ID: "NBA", Name: "National Basketball Association", TotalPeriods: 4},
	"NFL": {ID: "NFL", Name: "National Football League", TotalPeriods: 4},
	"MLB": {ID: "MLB", Name: "Major League Baseball", TotalPeriods: 9},
	"NHL": {ID: "NHL", Name: "National Hockey League", TotalPeriods: 3},
}

// --------------------------------------------------------------------------
// Table names — single source of truth, matches schema.sql
// --------------------------------------------------------------------------

const (
	SnapshotsTable   = "game_snapshots"
	EventsTable      = "notification_events"
	LedgerTable      = "notification_ledger"
	SubscribersTable = "subscribers"
	TrackedTable     = "tracked_games"
)

// --------------------------------------------------------------------------
// Config struct — populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	Debug       bool

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Detection thresholds
	BlowoutThreshold   int
	CloseGameThreshold int

	// Dispatch
	PushGatewayURL   string
	PushAccessToken  string
	PushBatchSize    int
	DispatchWorkers  int
	DispatchRetries  int
	DispatchBackoff  time.Duration
	BatchSendTimeout time.Duration

	// Polling
	PollInterval time.Duration
	PollWorkers  int

	// Upstream scores API
	ScoresAPIURL     string
	ScoresAPIKey     string
	ScoresRatePerMin int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	dbURL := envOr("DATABASE_URL", envOr("NEON_DATABASE_URL", ""))
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL or NEON_DATABASE_URL must be set")
	}

	return &Config{
		DatabaseURL:    dbURL,
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 2),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 10),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		Debug:       envBool("DEBUG", false),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		BlowoutThreshold:   envInt("BLOWOUT_THRESHOLD", 20),
		CloseGameThreshold: envInt("CLOSE_GAME_THRESHOLD", 5),

		PushGatewayURL:   envOr("PUSH_GATEWAY_URL", "https://exp.host/--/api/v2/push/send"),
		PushAccessToken:  envOr("PUSH_ACCESS_TOKEN", ""),
		PushBatchSize:    envInt("PUSH_BATCH_SIZE", 500),
		DispatchWorkers:  envInt("DISPATCH_WORKERS", 2),
		DispatchRetries:  envInt("DISPATCH_RETRIES", 3),
		DispatchBackoff:  time.Duration(envInt("DISPATCH_BACKOFF_MS", 500)) * time.Millisecond,
		BatchSendTimeout: time.Duration(envInt("BATCH_SEND_TIMEOUT_SECONDS", 15)) * time.Second,

		PollInterval: time.Duration(envInt("POLL_INTERVAL_SECONDS", 60)) * time.Second,
		PollWorkers:  envInt("POLL_WORKERS", 4),

		ScoresAPIURL:     envOr("SCORES_API_URL", "https://api.balldontlie.io/v1"),
		ScoresAPIKey:     envOr("SCORES_API_KEY", ""),
		ScoresRatePerMin: envInt("SCORES_RATE_PER_MIN", 60),
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
