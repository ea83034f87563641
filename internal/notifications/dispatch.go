package notifications

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ankur-ag/sports-notifications/internal/game"
	"github.com/ankur-ag/sports-notifications/internal/push"
)

// Dispatch tuning defaults, overridable via config.
const (
	DefaultBatchSize        = 500
	DefaultDispatchWorkers  = 2
	DefaultDispatchRetries  = 3
	DefaultDispatchBackoff  = 500 * time.Millisecond
	DefaultBatchSendTimeout = 15 * time.Second
)

// Dispatcher renders one payload per event and submits it to the push
// gateway in bounded-size batches with a small worker pool. Transient batch
// failures are retried with backoff; a batch that exhausts its retries has
// its recipients counted as failed rather than aborting the event.
type Dispatcher struct {
	gateway      push.Gateway
	batchSize    int
	workers      int
	retries      int
	backoff      time.Duration
	batchTimeout time.Duration
	logger       *slog.Logger
}

// NewDispatcher creates a dispatcher; zero values fall back to defaults.
func NewDispatcher(gateway push.Gateway, batchSize, workers, retries int, backoff, batchTimeout time.Duration, logger *slog.Logger) *Dispatcher {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if workers <= 0 {
		workers = DefaultDispatchWorkers
	}
	if retries <= 0 {
		retries = DefaultDispatchRetries
	}
	if backoff <= 0 {
		backoff = DefaultDispatchBackoff
	}
	if batchTimeout <= 0 {
		batchTimeout = DefaultBatchSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		gateway:      gateway,
		batchSize:    batchSize,
		workers:      workers,
		retries:      retries,
		backoff:      backoff,
		batchTimeout: batchTimeout,
		logger:       logger,
	}
}

// Dispatch sends the event to its resolved audience. The returned error is
// non-nil only for cancellation or deadline expiry — the caller must then
// leave the ledger at recorded so a future cycle retries the event.
func (d *Dispatcher) Dispatch(ctx context.Context, ev Event, audience []Subscriber, snap *game.Snapshot) (Outcome, error) {
	var out Outcome
	if len(audience) == 0 {
		return out, nil
	}

	rendered := Render(ev, snap)
	msgs := make([]push.Message, len(audience))
	for i, sub := range audience {
		msgs[i] = push.Message{
			Token: sub.Token,
			Title: rendered.Title,
			Body:  rendered.Body,
			Data:  rendered.Data,
		}
	}

	batches := chunk(msgs, d.batchSize)

	workers := d.workers
	if workers > len(batches) {
		workers = len(batches)
	}

	ch := make(chan []push.Message, len(batches))
	for _, b := range batches {
		ch <- b
	}
	close(ch)

	var (
		mu    sync.Mutex
		wg    sync.WaitGroup
		fatal error
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for batch := range ch {
				receipts, err := d.sendWithRetry(ctx, batch)

				mu.Lock()
				switch {
				case err != nil && ctx.Err() != nil:
					if fatal == nil {
						fatal = err
					}
				case err != nil:
					// Retries exhausted or non-retryable: the whole batch
					// counts as failed, but the event dispatch proceeds.
					d.logger.Warn("batch submission failed",
						"event_id", ev.ID, "size", len(batch), "error", err)
					out.Submitted += len(batch)
					out.Failed += len(batch)
				default:
					out.Submitted += len(batch)
					for _, r := range receipts {
						switch r.Status {
						case push.ReceiptOK:
							out.Succeeded++
						case push.ReceiptInvalidToken:
							out.Failed++
							out.InvalidTokens = append(out.InvalidTokens, r.Token)
						default:
							out.Failed++
						}
					}
				}
				mu.Unlock()
			}
		}()
	}

	wg.Wait()

	if fatal != nil {
		return out, fmt.Errorf("dispatch %s: %w", ev.ID, fatal)
	}
	return out, nil
}

// sendWithRetry submits one batch, retrying transient failures with linear
// backoff. Each attempt gets its own timeout.
func (d *Dispatcher) sendWithRetry(ctx context.Context, batch []push.Message) ([]push.Receipt, error) {
	var lastErr error
	for attempt := 1; attempt <= d.retries; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, d.batchTimeout)
		receipts, err := d.gateway.SendBatch(attemptCtx, batch)
		cancel()

		if err == nil {
			return receipts, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !errors.Is(err, push.ErrTransient) {
			return nil, err
		}

		select {
		case <-time.After(d.backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func chunk(msgs []push.Message, size int) [][]push.Message {
	var batches [][]push.Message
	for len(msgs) > 0 {
		n := size
		if n > len(msgs) {
			n = len(msgs)
		}
		batches = append(batches, msgs[:n])
		msgs = msgs[n:]
	}
	return batches
}
