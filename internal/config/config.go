// Package config provides centralized configuration loaded from environment
// variables, shared by cmd/api and cmd/teamdraw, and the loader for per-event
// draw settings files.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/albapepper/teamdraw/internal/draw"
)

// --------------------------------------------------------------------------
// File and table names
// --------------------------------------------------------------------------

const (
	SettingsFile = "configuration.json"
	PlayersFile  = "players.tsv"
	DrawFile     = "draw.tsv"
	TeamsFile    = "teams.txt"

	EventsTable      = "draw_events"
	PlayersTable     = "draw_players"
	AssignmentsTable = "draw_assignments"
)

// --------------------------------------------------------------------------
// Config struct, populated from environment variables
// --------------------------------------------------------------------------

type Config struct {
	// Database (optional; enables event draws)
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration

	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Draws
	DrawDir     string
	DrawWorkers int
	MaxPlayers  int

	// Search limits for draws served by the API server; 0 is unbounded
	DrawMaxNodes int
	DrawTimeout  time.Duration

	// Background event draws (API server with a database)
	DrawListen        bool
	DrawSweepInterval time.Duration
	DrawRetentionDays int

	// Cache
	CacheEnabled bool
	CacheTTL     time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	return &Config{
		DatabaseURL:    envOr("TEAMDRAW_DATABASE_URL", envOr("DATABASE_URL", "")),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,

		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 8000)),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 30),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		DrawDir:     envOr("DRAW_DIR", "."),
		DrawWorkers: envInt("DRAW_WORKERS", 2),
		MaxPlayers:  envInt("DRAW_MAX_PLAYERS", 500),

		DrawMaxNodes: envInt("DRAW_MAX_NODES", 2_000_000),
		DrawTimeout:  time.Duration(envInt("DRAW_TIMEOUT_SECONDS", 10)) * time.Second,

		DrawListen:        envBool("DRAW_LISTEN", true),
		DrawSweepInterval: time.Duration(envInt("DRAW_SWEEP_MINUTES", 5)) * time.Minute,
		DrawRetentionDays: envInt("DRAW_RETENTION_DAYS", 0),

		CacheEnabled: envBool("CACHE_ENABLED", true),
		CacheTTL:     time.Duration(envInt("CACHE_TTL_MINUTES", 60)) * time.Minute,
	}, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasDatabase reports whether event draws backed by Postgres are available.
func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

// DrawLimits returns the search limits for draws run by the API server.
func (c *Config) DrawLimits() draw.Limits {
	return draw.Limits{MaxNodes: c.DrawMaxNodes}
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
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
