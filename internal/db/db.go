// Package db provides a pgxpool-based connection pool with prepared statement
// registration and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankur-ag/sports-notifications/internal/config"
)

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

// registerPreparedStatements registers all statements the pipeline, poller,
// and API layers use. Prepared statements eliminate parse overhead on the
// hot polling path.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Snapshots (baseline for the next cycle's comparison)
		"get_snapshot": "SELECT data FROM " + config.SnapshotsTable + " WHERE game_id = $1",
		"put_snapshot": `INSERT INTO ` + config.SnapshotsTable + ` (game_id, data, updated_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (game_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,

		// Detected events (audit trail, keyed by deterministic event ID)
		"put_event": `INSERT INTO ` + config.EventsTable + ` (event_id, game_id, sport, kind, priority, data, detected_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (event_id) DO NOTHING`,

		// Ledger
		"get_ledger_entry": "SELECT recorded_at, notified, notified_at FROM " + config.LedgerTable + " WHERE event_id = $1",
		"record_ledger": `INSERT INTO ` + config.LedgerTable + ` (event_id, recorded_at, notified)
			VALUES ($1, NOW(), false)
			ON CONFLICT (event_id) DO NOTHING`,
		"mark_notified": `UPDATE ` + config.LedgerTable + `
			SET notified = true, notified_at = $2
			WHERE event_id = $1`,

		// Subscribers. Coarse pre-filter only: the audience resolver does
		// the authoritative preference matching in Go.
		"get_subscribers_for_sport": `SELECT id, token, enabled, prefs, created_at, updated_at
			FROM ` + config.SubscribersTable + `
			WHERE enabled = true AND prefs -> 'sports' ? $1`,
		"deactivate_subscriber_token": `UPDATE ` + config.SubscribersTable + `
			SET enabled = false, updated_at = NOW()
			WHERE token = $1`,
		"delete_disabled_subscribers": `DELETE FROM ` + config.SubscribersTable + `
			WHERE enabled = false AND updated_at < NOW() - INTERVAL '30 days'`,

		// Tracked games
		"get_tracked_games": "SELECT game_id, sport, external_id FROM " + config.TrackedTable + " WHERE active = true",
		"get_tracked_game":  "SELECT game_id, sport, external_id FROM " + config.TrackedTable + " WHERE game_id = $1",
		"track_game": `INSERT INTO ` + config.TrackedTable + ` (game_id, sport, external_id, active)
			VALUES ($1, $2, $3, true)
			ON CONFLICT (game_id) DO UPDATE SET active = true`,
		"untrack_game": "UPDATE " + config.TrackedTable + " SET active = false WHERE game_id = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
