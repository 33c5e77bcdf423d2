// Package listener provides a Postgres LISTEN/NOTIFY consumer for draw
// requests. It holds a dedicated pgx connection (not from the pool)
// listening on the `draw_requested` channel.
//
// Setting requested_at on an event fires the notify trigger installed by the
// schema; this consumer receives the event ID, draws the event and stores the
// assignment.
package listener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/teamdraw/internal/draw"
	"github.com/albapepper/teamdraw/internal/store"
)

const (
	Channel          = "draw_requested"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// DrawRequest is the JSON payload from pg_notify('draw_requested', ...).
type DrawRequest struct {
	EventID   int64 `json:"event_id"`
	Timestamp int64 `json:"ts"`
}

// ParseRequest decodes a notification payload.
func ParseRequest(payload string) (DrawRequest, error) {
	var req DrawRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		return DrawRequest{}, fmt.Errorf("parse draw request: %w", err)
	}
	if req.EventID < 1 {
		return DrawRequest{}, fmt.Errorf("parse draw request: bad event id %d", req.EventID)
	}
	return req, nil
}

// Start opens a dedicated connection and listens on the draw_requested
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, pool *pgxpool.Pool, limits draw.Limits, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, pool, limits, logger)
		if ctx.Err() != nil {
			logger.Info("Draw listener stopped (context cancelled)")
			return
		}

		logger.Error("Draw listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, pool *pgxpool.Pool, limits draw.Limits, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+Channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", Channel, err)
	}
	logger.Info("Draw listener connected", "channel", Channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		req, err := ParseRequest(notification.Payload)
		if err != nil {
			logger.Warn("Ignoring draw request",
				"payload", notification.Payload, "error", err)
			continue
		}

		logger.Info("Draw request received", "event", req.EventID)

		// Draw asynchronously to avoid blocking the listener
		go Handle(ctx, pool, req.EventID, limits, logger)
	}
}

// Handle draws one requested event. Failures are logged, and recorded on the
// event by store.Draw.
func Handle(ctx context.Context, pool *pgxpool.Pool, eventID int64, limits draw.Limits, logger *slog.Logger) {
	start := time.Now()
	d, err := store.Draw(ctx, pool, eventID, limits, logger)
	switch {
	case errors.Is(err, store.ErrEventNotFound):
		logger.Warn("Draw requested for missing event", "event", eventID)
	case errors.Is(err, draw.ErrInfeasible):
		logger.Warn("Requested draw is infeasible", "event", eventID, "error", err)
	case errors.Is(err, draw.ErrSearchLimit):
		logger.Warn("Requested draw gave up", "event", eventID, "max_nodes", limits.MaxNodes)
	case err != nil:
		logger.Error("Requested draw failed", "event", eventID, "error", err)
	default:
		logger.Info("Requested draw stored",
			"event", eventID,
			"teams", d.Bounds.TeamCount,
			"nodes", d.Result.Stats.Nodes,
			"duration", time.Since(start).Round(time.Millisecond))
	}
}
