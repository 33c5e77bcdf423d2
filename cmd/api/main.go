// Command api is the Team Draw API server.
//
// Usage:
//
//	teamdraw-api
//	API_PORT=8080 DATABASE_URL=postgres://... teamdraw-api

// @title Team Draw API
// @version 1.0.0
// @description Draws players into teams of near-equal size while capping players per group and shared history per team.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/albapepper/teamdraw/internal/api"
	"github.com/albapepper/teamdraw/internal/cache"
	"github.com/albapepper/teamdraw/internal/config"
	"github.com/albapepper/teamdraw/internal/db"
	"github.com/albapepper/teamdraw/internal/listener"
	"github.com/albapepper/teamdraw/internal/maintenance"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database; event draws stay disabled without one.
	var pool *pgxpool.Pool
	if cfg.HasDatabase() {
		logger.Info("Connecting to database...")
		p, err := db.New(ctx, cfg)
		if err != nil {
			logger.Error("Failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer p.Close()
		pool = p.Pool
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)

		// Start LISTEN/NOTIFY consumer for requested event draws
		if cfg.DrawListen {
			go listener.Start(ctx, cfg.DatabaseURL, pool, cfg.DrawLimits(), logger)
		}

		// Start maintenance tickers (catch-up sweep, purge)
		mcfg := maintenance.DefaultConfig()
		mcfg.SweepInterval = cfg.DrawSweepInterval
		mcfg.RetentionDays = cfg.DrawRetentionDays
		go maintenance.Start(ctx, maintenance.NewEvents(pool, cfg.DrawLimits(), logger), mcfg, logger)
	} else {
		logger.Info("Event draws disabled (no DATABASE_URL)")
	}

	// Initialize cache
	appCache := cache.New(ctx, cfg.CacheEnabled, cfg.CacheTTL)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled, "ttl", cfg.CacheTTL)

	// Create router
	router := api.NewRouter(pool, appCache, cfg, logger)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting Team Draw API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
