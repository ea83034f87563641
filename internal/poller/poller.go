// Package poller drives the notification pipeline on a fixed interval. Each
// tick polls every tracked game through one detection cycle with a bounded
// worker pool. Distinct games run concurrently; the pipeline serializes
// cycles per game ID itself.
package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ankur-ag/sports-notifications/internal/notifications"
	"github.com/ankur-ag/sports-notifications/internal/source"
)

// Store is the subset of persistence the poller needs.
type Store interface {
	TrackedGames(ctx context.Context) ([]notifications.TrackedGame, error)
	DeactivateToken(ctx context.Context, token string) error
}

// Poller periodically runs polling cycles for all tracked games.
type Poller struct {
	pipeline *notifications.Pipeline
	store    Store
	interval time.Duration
	workers  int
	logger   *slog.Logger
}

// New creates a poller.
func New(pipeline *notifications.Pipeline, store Store, interval time.Duration, workers int, logger *slog.Logger) *Poller {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		pipeline: pipeline,
		store:    store,
		interval: interval,
		workers:  workers,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled. Intended to be called with `go`.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info("Poller started", "interval", p.interval, "workers", p.workers)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			p.RunOnce(ctx)
		case <-ctx.Done():
			p.logger.Info("Poller stopped")
			return
		}
	}
}

// RunOnce polls every tracked game through one cycle.
func (p *Poller) RunOnce(ctx context.Context) {
	games, err := p.store.TrackedGames(ctx)
	if err != nil {
		p.logger.Error("list tracked games failed", "error", err)
		return
	}
	if len(games) == 0 {
		return
	}

	workers := p.workers
	if workers > len(games) {
		workers = len(games)
	}

	ch := make(chan notifications.TrackedGame, len(games))
	for _, g := range games {
		ch <- g
	}
	close(ch)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range ch {
				p.pollGame(ctx, g)
			}
		}()
	}
	wg.Wait()
}

func (p *Poller) pollGame(ctx context.Context, g notifications.TrackedGame) {
	result, err := p.pipeline.RunCycle(ctx, g)
	if err != nil {
		if errors.Is(err, source.ErrUnavailable) {
			// Baseline retained; next tick compares against it.
			p.logger.Warn("upstream unavailable, cycle skipped", "game", g.GameID, "error", err)
		} else {
			p.logger.Error("cycle failed", "game", g.GameID, "error", err)
		}
		return
	}

	// Invalid tokens are surfaced by the dispatcher for store cleanup.
	for _, token := range result.InvalidTokens {
		if err := p.store.DeactivateToken(ctx, token); err != nil {
			p.logger.Warn("deactivate token failed", "error", err)
		}
	}
}
