// Command teamdraw draws players into teams.
//
// Usage:
//
//	teamdraw run --dir ./event
//	teamdraw batch ./events --workers 4
//	teamdraw event --id 42
//	teamdraw db migrate
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/albapepper/teamdraw/internal/batch"
	"github.com/albapepper/teamdraw/internal/config"
	"github.com/albapepper/teamdraw/internal/db"
	"github.com/albapepper/teamdraw/internal/draw"
	"github.com/albapepper/teamdraw/internal/roster"
	"github.com/albapepper/teamdraw/internal/store"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "teamdraw",
		Short:         "Draw players into teams under group and history limits",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(runCmd())
	root.AddCommand(batchCmd())
	root.AddCommand(eventCmd())
	root.AddCommand(dbCmd())

	if err := root.Execute(); err != nil {
		logger.Error("teamdraw failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Draw the event in a directory",
		Long: "Reads " + config.SettingsFile + " and " + config.PlayersFile + " from the directory and writes " +
			config.DrawFile + " and " + config.TeamsFile + " next to them. Nothing is written when no draw exists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(func(ctx context.Context, cfg *config.Config) error {
				if dir == "" {
					dir = cfg.DrawDir
				}
				start := time.Now()
				d, err := draw.Run(ctx, roster.NewDir(dir), roster.NewDir(dir), logger)
				if err != nil {
					return err
				}
				logger.Info("Draw finished",
					"dir", dir,
					"teams", d.Bounds.TeamCount,
					"duration", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Event directory (default DRAW_DIR)")
	return cmd
}

// --------------------------------------------------------------------------
// batch command
// --------------------------------------------------------------------------

func batchCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch ROOT",
		Short: "Draw every event directory under ROOT",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLocal(func(ctx context.Context, cfg *config.Config) error {
				if workers < 1 {
					workers = cfg.DrawWorkers
				}
				dirs, err := batch.Discover(args[0])
				if err != nil {
					return fmt.Errorf("discover events: %w", err)
				}
				logger.Info("Batch starting", "root", args[0], "events", len(dirs), "workers", workers)

				result := batch.Run(ctx, dirs, workers, logger)
				logger.Info("Batch finished", "summary", result.Summary())
				for _, e := range result.Errors {
					logger.Error("batch error", "error", e)
				}
				if !result.OK() {
					return fmt.Errorf("%d of %d events were not drawn", result.EventsFound-result.Succeeded, result.EventsFound)
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent draws (default DRAW_WORKERS)")
	return cmd
}

// --------------------------------------------------------------------------
// event command
// --------------------------------------------------------------------------

func eventCmd() *cobra.Command {
	var eventID int64
	cmd := &cobra.Command{
		Use:   "event",
		Short: "Draw a stored event and save the assignment to Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			if eventID < 1 {
				return fmt.Errorf("--id is required")
			}
			return runDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				start := time.Now()
				d, err := store.Draw(ctx, pool.Pool, eventID, draw.Limits{}, logger)
				if err != nil {
					return err
				}
				logger.Info("Event drawn",
					"event", eventID,
					"teams", d.Bounds.TeamCount,
					"duration", time.Since(start).Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&eventID, "id", 0, "Event ID to draw")
	return cmd
}

// --------------------------------------------------------------------------
// db command
// --------------------------------------------------------------------------

func dbCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Create the draw tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDB(func(ctx context.Context, cfg *config.Config, pool *db.Pool) error {
				if err := pool.Migrate(ctx); err != nil {
					return err
				}
				logger.Info("Schema applied")
				return nil
			})
		},
	})
	return cmd
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runLocal handles config loading and context cancellation.
func runLocal(fn func(ctx context.Context, cfg *config.Config) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.SlogLevel()}))

	return fn(ctx, cfg)
}

// runDB is runLocal plus a database connection.
func runDB(fn func(ctx context.Context, cfg *config.Config, pool *db.Pool) error) error {
	return runLocal(func(ctx context.Context, cfg *config.Config) error {
		if !cfg.HasDatabase() {
			return fmt.Errorf("DATABASE_URL is required")
		}
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()

		return fn(ctx, cfg, pool)
	})
}
