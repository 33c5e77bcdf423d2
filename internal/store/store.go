// Package store reads event settings and rosters from Postgres and writes
// finished draws back in a single transaction.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/teamdraw/internal/draw"
)

// ErrEventNotFound is returned when no event has the requested ID.
var ErrEventNotFound = errors.New("event not found")

// Event is one stored event. It is both a draw.Source and a draw.Sink.
type Event struct {
	pool   *pgxpool.Pool
	id     int64
	logger *slog.Logger

	historyColumns []string
}

// NewEvent binds the event with the given ID to the pool.
func NewEvent(pool *pgxpool.Pool, id int64, logger *slog.Logger) *Event {
	if logger == nil {
		logger = slog.Default()
	}
	return &Event{pool: pool, id: id, logger: logger}
}

func (e *Event) String() string { return "event " + strconv.FormatInt(e.id, 10) }

// LoadSettings reads the event's settings and remembers its history column
// names for LoadRoster.
func (e *Event) LoadSettings(ctx context.Context) (draw.Settings, error) {
	var s draw.Settings
	err := e.pool.QueryRow(ctx, "event_settings", e.id).Scan(
		&s.TeamSize, &s.UpperSizeFix, &s.MaxGroupSize, &s.MaxCommonTeam, &e.historyColumns)
	if errors.Is(err, pgx.ErrNoRows) {
		return draw.Settings{}, fmt.Errorf("%s: %w", e, ErrEventNotFound)
	}
	if err != nil {
		return draw.Settings{}, fmt.Errorf("get %s settings: %w", e, err)
	}
	if err := draw.CheckHistoryColumns(e.historyColumns); err != nil {
		return draw.Settings{}, fmt.Errorf("%s settings: %w", e, err)
	}
	return s, nil
}

// LoadRoster reads the event's players. Call LoadSettings first.
func (e *Event) LoadRoster(ctx context.Context) (*draw.Roster, error) {
	rows, err := e.pool.Query(ctx, "event_players", e.id)
	if err != nil {
		return nil, fmt.Errorf("get %s players: %w", e, err)
	}
	defer rows.Close()

	columns := append([]string{"row", draw.ColumnRank, draw.ColumnName, draw.ColumnGroup}, e.historyColumns...)
	var records [][]string
	for rows.Next() {
		var (
			rowNum  int
			name    string
			rank    float64
			group   string
			history []string
		)
		if err := rows.Scan(&rowNum, &name, &rank, &group, &history); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		if len(history) > len(e.historyColumns) {
			return nil, fmt.Errorf("%s player %d: %d history values for %d columns",
				e, rowNum, len(history), len(e.historyColumns))
		}
		rec := make([]string, len(columns))
		rec[0] = strconv.Itoa(rowNum)
		rec[1] = strconv.FormatFloat(rank, 'f', -1, 64)
		rec[2] = name
		rec[3] = group
		copy(rec[4:], history)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read players: %w", err)
	}

	return draw.NewRoster(columns, records)
}

// SaveDraw replaces the event's assignments with d inside one transaction.
func (e *Event) SaveDraw(ctx context.Context, d *draw.Draw) error {
	return pgx.BeginFunc(ctx, e.pool, func(tx pgx.Tx) error {
		// Concurrent draws of one event commit one after the other.
		if _, err := tx.Exec(ctx, "lock_event", e.id); err != nil {
			return fmt.Errorf("lock %s: %w", e, err)
		}
		if _, err := tx.Exec(ctx, "clear_assignments", e.id); err != nil {
			return fmt.Errorf("clear assignments: %w", err)
		}

		batch := &pgx.Batch{}
		for team, members := range d.Result.Teams {
			for pos, idx := range members {
				rowNum, err := strconv.Atoi(d.Roster.Players[idx].Fields[0])
				if err != nil {
					return fmt.Errorf("player %q: bad row number: %w", d.Roster.Players[idx].Name, err)
				}
				batch.Queue("insert_assignment", e.id, rowNum, team, pos)
			}
		}
		batch.Queue("mark_drawn", e.id, len(d.Result.Teams))

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert assignments: %w", err)
		}
		e.logger.Info("Draw stored", "event", e.id, "teams", len(d.Result.Teams))
		return nil
	})
}

// Draw draws a stored event and saves the result. Any failure other than a
// missing event or a cancelled context is recorded on the event, which keeps
// it out of Pending until the draw is requested again. A search stopped by
// limits counts as a failure.
func Draw(ctx context.Context, pool *pgxpool.Pool, id int64, limits draw.Limits, logger *slog.Logger) (*draw.Draw, error) {
	ev := NewEvent(pool, id, logger)
	d, err := draw.RunLimited(ctx, ev, ev, limits, ev.logger.With("event", id))
	if err == nil || errors.Is(err, ErrEventNotFound) || ctx.Err() != nil {
		return d, err
	}
	if _, markErr := pool.Exec(ctx, "mark_failed", id, err.Error()); markErr != nil {
		ev.logger.Warn("Failed to record draw failure", "event", id, "error", markErr)
	}
	return nil, err
}

// Pending returns up to limit events whose draw was requested after their
// last draw and has not failed, oldest request first.
func Pending(ctx context.Context, pool *pgxpool.Pool, limit int) ([]int64, error) {
	rows, err := pool.Query(ctx, "pending_events", limit)
	if err != nil {
		return nil, fmt.Errorf("get pending events: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[int64])
	if err != nil {
		return nil, fmt.Errorf("read pending events: %w", err)
	}
	return ids, nil
}

// Purge deletes events drawn more than days ago, with their players and
// assignments.
func Purge(ctx context.Context, pool *pgxpool.Pool, days int) (int64, error) {
	tag, err := pool.Exec(ctx, "purge_events", days)
	if err != nil {
		return 0, fmt.Errorf("purge events: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Manifest returns the stored draw of an event, or ErrEventNotFound when the
// event has not been drawn.
func Manifest(ctx context.Context, pool *pgxpool.Pool, eventID int64) ([]draw.ManifestTeam, error) {
	rows, err := pool.Query(ctx, "event_assignments", eventID)
	if err != nil {
		return nil, fmt.Errorf("get assignments: %w", err)
	}
	defer rows.Close()

	var teams []draw.ManifestTeam
	for rows.Next() {
		var (
			team int
			name string
		)
		if err := rows.Scan(&team, &name); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		for len(teams) <= team {
			teams = append(teams, draw.ManifestTeam{Team: len(teams), Players: []string{}})
		}
		teams[team].Players = append(teams[team].Players, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read assignments: %w", err)
	}
	if len(teams) == 0 {
		return nil, fmt.Errorf("event %d: %w", eventID, ErrEventNotFound)
	}
	return teams, nil
}
