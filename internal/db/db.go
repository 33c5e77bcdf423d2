// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema setup and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/teamdraw/internal/config"
)

//go:embed schema.sql
var schema string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// Migrate creates the draw tables if they do not exist.
func (p *Pool) Migrate(ctx context.Context) error {
	if _, err := p.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// registerPreparedStatements registers every statement the store uses.
// Statements referencing the draw tables are skipped until the schema exists,
// so a fresh database can still connect and run Migrate.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	if _, err := conn.Prepare(ctx, "health_check", "SELECT 1"); err != nil {
		return fmt.Errorf("prepare %q: %w", "health_check", err)
	}

	var ready bool
	if err := conn.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", config.AssignmentsTable).Scan(&ready); err != nil {
		return fmt.Errorf("check schema: %w", err)
	}
	if !ready {
		return nil
	}

	stmts := map[string]string{
		// Event inputs
		"event_settings": `SELECT team_size, upper_size_fix, max_group_size, max_common_team, history_columns
			FROM ` + config.EventsTable + ` WHERE id = $1`,
		"event_players": `SELECT row_num, name, rank, grp, history
			FROM ` + config.PlayersTable + ` WHERE event_id = $1 ORDER BY row_num`,

		// Event outputs
		"lock_event":        "SELECT pg_advisory_xact_lock($1)",
		"clear_assignments": "DELETE FROM " + config.AssignmentsTable + " WHERE event_id = $1",
		"insert_assignment": `INSERT INTO ` + config.AssignmentsTable + ` (event_id, row_num, team, position)
			VALUES ($1, $2, $3, $4)`,
		"mark_drawn": `UPDATE ` + config.EventsTable + `
			SET team_count = $2, drawn_at = NOW(), last_error = NULL WHERE id = $1`,
		"mark_failed":       "UPDATE " + config.EventsTable + " SET last_error = $2 WHERE id = $1",
		"event_assignments": `SELECT a.team, p.name
			FROM ` + config.AssignmentsTable + ` a
			JOIN ` + config.PlayersTable + ` p ON p.event_id = a.event_id AND p.row_num = a.row_num
			WHERE a.event_id = $1 ORDER BY a.team, a.position`,

		// Background work
		"pending_events": `SELECT id FROM ` + config.EventsTable + `
			WHERE requested_at IS NOT NULL AND last_error IS NULL
			  AND (drawn_at IS NULL OR drawn_at < requested_at)
			ORDER BY requested_at LIMIT $1`,
		"purge_events": `DELETE FROM ` + config.EventsTable + `
			WHERE drawn_at IS NOT NULL AND drawn_at < NOW() - make_interval(days => $1)`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
