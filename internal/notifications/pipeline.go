package notifications

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ankur-ag/sports-notifications/internal/game"
	"github.com/ankur-ag/sports-notifications/internal/metrics"
	"github.com/ankur-ag/sports-notifications/internal/source"
)

// Store is the persistence surface the pipeline depends on. The pgx
// implementation lives in store.go; tests substitute in-memory fakes.
type Store interface {
	// GetSnapshot returns the stored baseline, or nil when the game has
	// never been observed.
	GetSnapshot(ctx context.Context, gameID string) (*game.Snapshot, error)
	PutSnapshot(ctx context.Context, snap *game.Snapshot) error

	// RecordEvent persists the event and creates its ledger entry in the
	// recorded state. Idempotent on event ID.
	RecordEvent(ctx context.Context, ev Event) error
	LedgerEntry(ctx context.Context, eventID string) (*LedgerEntry, error)
	MarkNotified(ctx context.Context, eventID string, at time.Time) error

	// SubscribersForSport is a coarse pre-filter; ResolveAudience performs
	// the authoritative preference matching.
	SubscribersForSport(ctx context.Context, sport string) ([]Subscriber, error)
}

// TrackedGame identifies one game the poller follows.
type TrackedGame struct {
	GameID     string
	Sport      string
	ExternalID string
}

// CycleResult summarizes one polling cycle for one game.
type CycleResult struct {
	GameID        string
	Detected      int
	Notified      int
	Skipped       int // already notified per the ledger
	Failed        int
	InvalidTokens []string
	Duration      time.Duration
}

// Summary returns a human-readable summary.
func (r *CycleResult) Summary() string {
	return fmt.Sprintf("game=%s detected=%d notified=%d skipped=%d failed=%d invalid_tokens=%d dur=%s",
		r.GameID, r.Detected, r.Notified, r.Skipped, r.Failed,
		len(r.InvalidTokens), r.Duration.Round(time.Millisecond))
}

// Pipeline wires detector, audience resolver, dispatcher, and ledger for
// one polling cycle. Source adapters are injected per sport at
// construction time rather than looked up from shared state.
type Pipeline struct {
	adapters   map[string]source.Adapter
	store      Store
	detector   *Detector
	dispatcher *Dispatcher
	logger     *slog.Logger
	now        func() time.Time

	// Per-game locks: the skip-if-notified check and the subsequent ledger
	// write are not atomic, so concurrent cycles for the same game could
	// both pass the check and deliver twice.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewPipeline creates a pipeline. adapters maps sport tag → source adapter.
func NewPipeline(adapters map[string]source.Adapter, store Store, detector *Detector, dispatcher *Dispatcher, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		adapters:   adapters,
		store:      store,
		detector:   detector,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
		locks:      make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) gameLock(gameID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[gameID]
	if !ok {
		l = &sync.Mutex{}
		p.locks[gameID] = l
	}
	return l
}

// RunCycle executes one full polling cycle for a tracked game: fetch the
// current snapshot, detect events against the stored baseline, and for
// each event not yet notified — record, resolve, dispatch, mark. The new
// snapshot is always persisted as the next baseline, even with zero
// events. Per-event failures do not abort the remaining events.
func (p *Pipeline) RunCycle(ctx context.Context, g TrackedGame) (CycleResult, error) {
	lock := p.gameLock(g.GameID)
	lock.Lock()
	defer lock.Unlock()

	start := p.now()
	result := CycleResult{GameID: g.GameID}

	adapter, ok := p.adapters[g.Sport]
	if !ok {
		return result, fmt.Errorf("no source adapter for sport %q", g.Sport)
	}

	cur, err := adapter.FetchSnapshot(ctx, g.ExternalID)
	if err != nil {
		// Baseline stays put; the next cycle compares against the same
		// previous snapshot so no transition is lost.
		return result, fmt.Errorf("fetch snapshot for %s: %w", g.GameID, err)
	}

	prev, err := p.store.GetSnapshot(ctx, g.GameID)
	if err != nil {
		return result, fmt.Errorf("load baseline for %s: %w", g.GameID, err)
	}

	events := p.detector.Detect(prev, cur, p.now())
	result.Detected = len(events)
	metrics.CyclesTotal.Inc()

	for _, ev := range events {
		metrics.EventsDetected.WithLabelValues(string(ev.Kind)).Inc()

		if err := p.processEvent(ctx, ev, cur, &result); err != nil {
			result.Failed++
			p.logger.Error("event processing failed",
				"event_id", ev.ID, "kind", ev.Kind, "error", err)
		}
	}

	// Persist the new baseline unconditionally so the next cycle's
	// previous snapshot reflects reality.
	if err := p.store.PutSnapshot(ctx, cur); err != nil {
		return result, fmt.Errorf("persist baseline for %s: %w", g.GameID, err)
	}

	result.Duration = p.now().Sub(start)
	if result.Detected > 0 {
		p.logger.Info("cycle complete", "summary", result.Summary())
	}
	return result, nil
}

// processEvent runs the ledger-gated notify path for one event. The
// not-yet-notified check precedes every side effect: it is the sole
// at-most-once guarantee in the system.
func (p *Pipeline) processEvent(ctx context.Context, ev Event, cur *game.Snapshot, result *CycleResult) error {
	entry, err := p.store.LedgerEntry(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("ledger lookup: %w", err)
	}
	if entry != nil && entry.Notified {
		result.Skipped++
		return nil
	}

	// Recorded must be durable before any dispatch; an event that was
	// notified but never recorded would break the audit trail.
	if err := p.store.RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("record event: %w", err)
	}

	subscribers, err := p.store.SubscribersForSport(ctx, ev.Sport)
	if err != nil {
		return fmt.Errorf("load subscribers: %w", err)
	}
	audience := ResolveAudience(ev, subscribers, p.now())

	outcome, err := p.dispatcher.Dispatch(ctx, ev, audience, cur)
	if err != nil {
		// Cancelled or timed out: stay at recorded so a future cycle
		// retries delivery.
		return fmt.Errorf("dispatch: %w", err)
	}

	metrics.NotificationsSent.Add(float64(outcome.Succeeded))
	metrics.NotificationsFailed.Add(float64(outcome.Failed))
	metrics.InvalidTokens.Add(float64(len(outcome.InvalidTokens)))
	result.InvalidTokens = append(result.InvalidTokens, outcome.InvalidTokens...)

	if err := p.store.MarkNotified(ctx, ev.ID, p.now()); err != nil {
		return fmt.Errorf("mark notified: %w", err)
	}
	result.Notified++

	p.logger.Info("event notified",
		"event_id", ev.ID, "kind", ev.Kind,
		"audience", len(audience),
		"succeeded", outcome.Succeeded, "failed", outcome.Failed)
	return nil
}
