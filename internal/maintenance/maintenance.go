// Package maintenance runs periodic background tasks as Go tickers. All
// scheduled housekeeping is driven from Go since cmd/server is already a
// persistent, long-running process.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankur-ag/sports-notifications/internal/config"
)

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	PruneInterval   time.Duration // Delete long-disabled subscribers
	UntrackInterval time.Duration // Stop polling games in a terminal status
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		PruneInterval:   6 * time.Hour,
		UntrackInterval: 15 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"prune", cfg.PruneInterval,
		"untrack", cfg.UntrackInterval)

	tickers := make([]*time.Ticker, 0, 2)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	// Prune: remove subscribers disabled long enough that their tokens are
	// certainly dead (the dispatcher disables them on gateway rejection).
	if cfg.PruneInterval > 0 {
		t := time.NewTicker(cfg.PruneInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { pruneSubscribers(ctx, pool, logger) })
	}

	// Untrack: stop polling games whose stored snapshot reached a terminal
	// status. Ledger and snapshot rows stay for the audit trail.
	if cfg.UntrackInterval > 0 {
		t := time.NewTicker(cfg.UntrackInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, func() { untrackFinished(ctx, pool, logger) })
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

func pruneSubscribers(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		DELETE FROM `+config.SubscribersTable+`
		WHERE enabled = false
		  AND updated_at < NOW() - INTERVAL '30 days'`)
	if err != nil {
		logger.Warn("Prune: failed to delete disabled subscribers", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Prune: deleted disabled subscribers", "count", tag.RowsAffected())
	}
}

func untrackFinished(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) {
	tag, err := pool.Exec(ctx, `
		UPDATE `+config.TrackedTable+` tg
		SET active = false
		FROM `+config.SnapshotsTable+` gs
		WHERE tg.game_id = gs.game_id
		  AND tg.active = true
		  AND gs.data ->> 'status' IN ('final', 'postponed', 'cancelled')
		  AND gs.updated_at < NOW() - INTERVAL '1 hour'`)
	if err != nil {
		logger.Warn("Untrack: failed to retire finished games", "error", err)
	} else if tag.RowsAffected() > 0 {
		logger.Info("Untrack: retired finished games", "count", tag.RowsAffected())
	}
}
