// Package listener provides a Postgres LISTEN/NOTIFY consumer for on-demand
// polling. It holds a dedicated pgx connection (not from the pool) listening
// on the `poll_requested` channel.
//
// An ingest job that learns a game just went live can pg_notify the channel
// and have the cycle run immediately instead of waiting for the next ticker
// interval.
package listener

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ankur-ag/sports-notifications/internal/notifications"
)

const (
	channel          = "poll_requested"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// PollRequest is the JSON payload from pg_notify('poll_requested', ...).
type PollRequest struct {
	GameID string `json:"game_id"`
}

// Store resolves a notify payload to a tracked game.
type Store interface {
	TrackedGame(ctx context.Context, gameID string) (*notifications.TrackedGame, error)
}

// Start opens a dedicated connection and listens on the poll_requested
// channel. It reconnects automatically on connection loss. Blocks until ctx
// is cancelled. Intended to be called with `go`.
func Start(ctx context.Context, dbURL string, store Store, pipeline *notifications.Pipeline, logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, store, pipeline, logger)
		if ctx.Err() != nil {
			logger.Info("Poll listener stopped (context cancelled)")
			return
		}

		logger.Error("Poll listener disconnected, reconnecting...",
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
func listenLoop(ctx context.Context, dbURL string, store Store, pipeline *notifications.Pipeline, logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	_, err = conn.Exec(ctx, "LISTEN "+channel)
	if err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Poll listener connected", "channel", channel)

	for {
		notification, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		var req PollRequest
		if err := json.Unmarshal([]byte(notification.Payload), &req); err != nil {
			logger.Warn("Failed to parse poll request",
				"payload", notification.Payload, "error", err)
			continue
		}
		if req.GameID == "" {
			logger.Warn("Poll request without game_id", "payload", notification.Payload)
			continue
		}

		logger.Info("Poll request received", "game_id", req.GameID)

		// Process asynchronously to avoid blocking the listener
		go handlePollRequest(ctx, store, pipeline, req.GameID, logger)
	}
}

// handlePollRequest resolves the tracked game and runs one detection cycle
// for it. The pipeline's per-game lock serializes this against the regular
// poller, so a concurrent ticker cycle cannot double-deliver.
func handlePollRequest(ctx context.Context, store Store, pipeline *notifications.Pipeline, gameID string, logger *slog.Logger) {
	tracked, err := store.TrackedGame(ctx, gameID)
	if err != nil {
		logger.Warn("Failed to look up tracked game", "game_id", gameID, "error", err)
		return
	}
	if tracked == nil {
		logger.Warn("Poll request for untracked game", "game_id", gameID)
		return
	}

	result, err := pipeline.RunCycle(ctx, *tracked)
	if err != nil {
		logger.Warn("On-demand cycle failed", "game_id", gameID, "error", err)
		return
	}
	if result.Detected > 0 {
		logger.Info("On-demand cycle complete", "summary", result.Summary())
	}
}
