// Package maintenance runs periodic background tasks as Go tickers in the
// API server: a catch-up sweep that draws requested events the listener
// missed, and a purge of old drawn events.
package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/teamdraw/internal/draw"
	"github.com/albapepper/teamdraw/internal/listener"
	"github.com/albapepper/teamdraw/internal/store"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	SweepInterval time.Duration // Draw requested events missed by the listener
	SweepLimit    int           // Events drawn per sweep
	PurgeInterval time.Duration // Delete old drawn events
	RetentionDays int           // Age of drawn events to purge; 0 keeps everything
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		SweepInterval: 5 * time.Minute,
		SweepLimit:    50,
		PurgeInterval: 24 * time.Hour,
	}
}

// Events is the event storage the tickers work on.
type Events interface {
	Pending(ctx context.Context, limit int) ([]int64, error)
	Draw(ctx context.Context, id int64) error
	Purge(ctx context.Context, days int) (int64, error)
}

// poolEvents serves Events from Postgres.
type poolEvents struct {
	pool   *pgxpool.Pool
	limits draw.Limits
	logger *slog.Logger
}

// NewEvents returns Events backed by the pool. Draws are bounded by limits.
func NewEvents(pool *pgxpool.Pool, limits draw.Limits, logger *slog.Logger) Events {
	return &poolEvents{pool: pool, limits: limits, logger: logger}
}

func (e *poolEvents) Pending(ctx context.Context, limit int) ([]int64, error) {
	return store.Pending(ctx, e.pool, limit)
}

func (e *poolEvents) Draw(ctx context.Context, id int64) error {
	listener.Handle(ctx, e.pool, id, e.limits, e.logger)
	return ctx.Err()
}

func (e *poolEvents) Purge(ctx context.Context, days int) (int64, error) {
	return store.Purge(ctx, e.pool, days)
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, events Events, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"sweep", cfg.SweepInterval,
		"purge", cfg.PurgeInterval,
		"retention_days", cfg.RetentionDays)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Sweep: draw events requested while the listener was down
	if cfg.SweepInterval > 0 {
		sweep(ctx, events, cfg.SweepLimit, logger)
		t := time.NewTicker(cfg.SweepInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { sweep(ctx, events, cfg.SweepLimit, logger) })
	}

	// Purge: remove drawn events past retention
	if cfg.PurgeInterval > 0 && cfg.RetentionDays > 0 {
		t := time.NewTicker(cfg.PurgeInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { purge(ctx, events, cfg.RetentionDays, logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

// sweep draws pending events one at a time and returns how many it attempted.
func sweep(ctx context.Context, events Events, limit int, logger *slog.Logger) int {
	ids, err := events.Pending(ctx, limit)
	if err != nil {
		logger.Warn("Sweep: failed to list pending events", "error", err)
		return 0
	}
	attempted := 0
	for _, id := range ids {
		if err := events.Draw(ctx, id); err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warn("Sweep: draw failed", "event", id, "error", err)
			}
			if ctx.Err() != nil {
				break
			}
		}
		attempted++
	}
	if attempted > 0 {
		logger.Info("Sweep: drew pending events", "count", attempted)
	}
	return attempted
}

// purge removes events drawn more than days ago.
func purge(ctx context.Context, events Events, days int, logger *slog.Logger) {
	n, err := events.Purge(ctx, days)
	if err != nil {
		logger.Warn("Purge: failed to delete old events", "error", err)
	} else if n > 0 {
		logger.Info("Purge: deleted old events", "count", n, "retention_days", days)
	}
}
