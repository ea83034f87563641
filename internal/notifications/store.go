package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankur-ag/sports-notifications/internal/game"
)

// PGStore implements Store over the shared pgx pool. All statements are
// prepared at connection time (see internal/db).
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps the pool.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

// GetSnapshot returns the stored baseline or nil when absent.
func (s *PGStore) GetSnapshot(ctx context.Context, gameID string) (*game.Snapshot, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, "get_snapshot", gameID).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", gameID, err)
	}

	var snap game.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", gameID, err)
	}
	return &snap, nil
}

// PutSnapshot upserts the baseline for the next cycle.
func (s *PGStore) PutSnapshot(ctx context.Context, snap *game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.GameID, err)
	}
	if _, err := s.pool.Exec(ctx, "put_snapshot", snap.GameID, data); err != nil {
		return fmt.Errorf("put snapshot %s: %w", snap.GameID, err)
	}
	return nil
}

// --------------------------------------------------------------------------
// Events & ledger
// --------------------------------------------------------------------------

// RecordEvent persists the event and its ledger entry. Both statements are
// ON CONFLICT DO NOTHING, so a re-detected event is a no-op.
func (s *PGStore) RecordEvent(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", ev.ID, err)
	}
	if _, err := s.pool.Exec(ctx, "put_event",
		ev.ID, ev.GameID, ev.Sport, string(ev.Kind), ev.Priority.String(), data, ev.DetectedAt); err != nil {
		return fmt.Errorf("put event %s: %w", ev.ID, err)
	}
	if _, err := s.pool.Exec(ctx, "record_ledger", ev.ID); err != nil {
		return fmt.Errorf("record ledger %s: %w", ev.ID, err)
	}
	return nil
}

// LedgerEntry returns the entry for an event ID, or nil when unknown.
func (s *PGStore) LedgerEntry(ctx context.Context, eventID string) (*LedgerEntry, error) {
	entry := LedgerEntry{EventID: eventID}
	err := s.pool.QueryRow(ctx, "get_ledger_entry", eventID).
		Scan(&entry.RecordedAt, &entry.Notified, &entry.NotifiedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger entry %s: %w", eventID, err)
	}
	return &entry, nil
}

// MarkNotified flips the entry to notified.
func (s *PGStore) MarkNotified(ctx context.Context, eventID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, "mark_notified", eventID, at)
	if err != nil {
		return fmt.Errorf("mark notified %s: %w", eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark notified %s: no ledger entry", eventID)
	}
	return nil
}

// --------------------------------------------------------------------------
// Subscribers
// --------------------------------------------------------------------------

// subscriberPrefs is the jsonb prefs column shape.
type subscriberPrefs struct {
	Sports        map[string]SportPrefs `json:"sports,omitempty"`
	KindOverrides map[Kind]bool         `json:"kindOverrides,omitempty"`
	QuietHours    *QuietHours           `json:"quietHours,omitempty"`
}

// SubscribersForSport returns enabled subscribers whose prefs mention the
// sport. Coarse by design — the resolver applies the authoritative filter.
func (s *PGStore) SubscribersForSport(ctx context.Context, sport string) ([]Subscriber, error) {
	rows, err := s.pool.Query(ctx, "get_subscribers_for_sport", sport)
	if err != nil {
		return nil, fmt.Errorf("get subscribers for %s: %w", sport, err)
	}
	defer rows.Close()

	var subs []Subscriber
	for rows.Next() {
		var (
			sub       Subscriber
			prefsData []byte
		)
		if err := rows.Scan(&sub.ID, &sub.Token, &sub.Enabled, &prefsData, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		var prefs subscriberPrefs
		if err := json.Unmarshal(prefsData, &prefs); err != nil {
			return nil, fmt.Errorf("decode prefs for %s: %w", sub.ID, err)
		}
		sub.Sports = prefs.Sports
		sub.KindOverrides = prefs.KindOverrides
		sub.QuietHours = prefs.QuietHours
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeactivateToken disables the subscriber owning a token the gateway
// reported as permanently invalid.
func (s *PGStore) DeactivateToken(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, "deactivate_subscriber_token", token)
	return err
}

// PruneDisabled deletes subscribers disabled for over 30 days. Returns the
// number of rows removed.
func (s *PGStore) PruneDisabled(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, "delete_disabled_subscribers")
	if err != nil {
		return 0, fmt.Errorf("prune disabled subscribers: %w", err)
	}
	return tag.RowsAffected(), nil
}

// --------------------------------------------------------------------------
// Tracked games
// --------------------------------------------------------------------------

// TrackedGames returns every game the poller should follow.
func (s *PGStore) TrackedGames(ctx context.Context) ([]TrackedGame, error) {
	rows, err := s.pool.Query(ctx, "get_tracked_games")
	if err != nil {
		return nil, fmt.Errorf("get tracked games: %w", err)
	}
	defer rows.Close()

	var games []TrackedGame
	for rows.Next() {
		var g TrackedGame
		if err := rows.Scan(&g.GameID, &g.Sport, &g.ExternalID); err != nil {
			return nil, fmt.Errorf("scan tracked game: %w", err)
		}
		games = append(games, g)
	}
	return games, rows.Err()
}

// TrackedGame returns one tracked game by ID, or nil when unknown.
func (s *PGStore) TrackedGame(ctx context.Context, gameID string) (*TrackedGame, error) {
	var g TrackedGame
	err := s.pool.QueryRow(ctx, "get_tracked_game", gameID).Scan(&g.GameID, &g.Sport, &g.ExternalID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tracked game %s: %w", gameID, err)
	}
	return &g, nil
}

// Track registers a game for polling.
func (s *PGStore) Track(ctx context.Context, g TrackedGame) error {
	if _, err := s.pool.Exec(ctx, "track_game", g.GameID, g.Sport, g.ExternalID); err != nil {
		return fmt.Errorf("track game %s: %w", g.GameID, err)
	}
	return nil
}

// Untrack stops polling a game. The snapshot and ledger rows remain.
func (s *PGStore) Untrack(ctx context.Context, gameID string) error {
	if _, err := s.pool.Exec(ctx, "untrack_game", gameID); err != nil {
		return fmt.Errorf("untrack game %s: %w", gameID, err)
	}
	return nil
}
