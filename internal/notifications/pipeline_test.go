package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankur-ag/sports-notifications/internal/game"
	"github.com/ankur-ag/sports-notifications/internal/push"
	"github.com/ankur-ag/sports-notifications/internal/source"
)

// fakeStore is an in-memory Store.
type fakeStore struct {
	snapshots map[string]*game.Snapshot
	ledger    map[string]*LedgerEntry
	events    map[string]Event
	subs      []Subscriber

	recordErr   error
	snapshotErr error
	putCount    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[string]*game.Snapshot),
		ledger:    make(map[string]*LedgerEntry),
		events:    make(map[string]Event),
	}
}

func (s *fakeStore) GetSnapshot(ctx context.Context, gameID string) (*game.Snapshot, error) {
	return s.snapshots[gameID], nil
}

func (s *fakeStore) PutSnapshot(ctx context.Context, snap *game.Snapshot) error {
	if s.snapshotErr != nil {
		return s.snapshotErr
	}
	s.putCount++
	s.snapshots[snap.GameID] = snap
	return nil
}

func (s *fakeStore) RecordEvent(ctx context.Context, ev Event) error {
	if s.recordErr != nil {
		return s.recordErr
	}
	s.events[ev.ID] = ev
	if _, ok := s.ledger[ev.ID]; !ok {
		s.ledger[ev.ID] = &LedgerEntry{EventID: ev.ID, RecordedAt: time.Now()}
	}
	return nil
}

func (s *fakeStore) LedgerEntry(ctx context.Context, eventID string) (*LedgerEntry, error) {
	return s.ledger[eventID], nil
}

func (s *fakeStore) MarkNotified(ctx context.Context, eventID string, at time.Time) error {
	entry, ok := s.ledger[eventID]
	if !ok {
		return fmt.Errorf("no ledger entry for %s", eventID)
	}
	entry.Notified = true
	entry.NotifiedAt = &at
	return nil
}

func (s *fakeStore) SubscribersForSport(ctx context.Context, sport string) ([]Subscriber, error) {
	return s.subs, nil
}

// fakeAdapter serves a scripted snapshot.
type fakeAdapter struct {
	snap *game.Snapshot
	err  error
}

func (a *fakeAdapter) Sport() string { return "NBA" }

func (a *fakeAdapter) FetchSnapshot(ctx context.Context, externalID string) (*game.Snapshot, error) {
	if a.err != nil {
		return nil, a.err
	}
	return a.snap, nil
}

func newTestPipeline(store *fakeStore, adapter *fakeAdapter, g *fakeGateway) *Pipeline {
	detector := NewDetector(20, 5)
	dispatcher := newTestDispatcher(g)
	return NewPipeline(map[string]source.Adapter{"NBA": adapter}, store, detector, dispatcher, nil)
}

var tracked = TrackedGame{GameID: "nba-100", Sport: "NBA", ExternalID: "100"}

func TestRunCycleDetectsAndNotifies(t *testing.T) {
	store := newFakeStore()
	store.snapshots["nba-100"] = testSnapshot(game.StatusScheduled, 0, 0, 0)
	store.subs = audienceOf(3)
	g := &fakeGateway{}
	p := newTestPipeline(store, &fakeAdapter{snap: testSnapshot(game.StatusLive, 0, 0, 1)}, g)

	result, err := p.RunCycle(context.Background(), tracked)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detected)
	assert.Equal(t, 1, result.Notified)
	assert.Zero(t, result.Failed)

	entry := store.ledger["nba-100:game_start"]
	require.NotNil(t, entry)
	assert.True(t, entry.Notified)

	// Baseline advanced to the fetched snapshot.
	assert.Equal(t, game.StatusLive, store.snapshots["nba-100"].Status)
}

func TestRunCycleAtMostOnce(t *testing.T) {
	store := newFakeStore()
	store.snapshots["nba-100"] = testSnapshot(game.StatusScheduled, 0, 0, 0)
	store.subs = audienceOf(2)
	g := &fakeGateway{}

	cur := testSnapshot(game.StatusLive, 0, 0, 1)
	p := newTestPipeline(store, &fakeAdapter{snap: cur}, g)

	_, err := p.RunCycle(context.Background(), tracked)
	require.NoError(t, err)
	callsAfterFirst := g.calls

	// Re-run on an overlapping pair: the detector re-fires the same event
	// ID, but the ledger short-circuits before any dispatch.
	store.snapshots["nba-100"] = testSnapshot(game.StatusScheduled, 0, 0, 0)
	result, err := p.RunCycle(context.Background(), tracked)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Detected)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Notified)
	assert.Equal(t, callsAfterFirst, g.calls, "dispatcher must not run again for a notified event")
}

func TestRunCycleBaselinePersistedWithZeroEvents(t *testing.T) {
	store := newFakeStore()
	store.snapshots["nba-100"] = testSnapshot(game.StatusLive, 50, 45, 2)
	g := &fakeGateway{}
	p := newTestPipeline(store, &fakeAdapter{snap: testSnapshot(game.StatusLive, 52, 47, 2)}, g)

	result, err := p.RunCycle(context.Background(), tracked)
	require.NoError(t, err)
	assert.Zero(t, result.Detected)
	assert.Equal(t, 1, store.putCount, "baseline must advance even when nothing fired")
	assert.Equal(t, 52, store.snapshots["nba-100"].Home.Score)
}

func TestRunCycleSourceUnavailableRetainsBaseline(t *testing.T) {
	store := newFakeStore()
	baseline := testSnapshot(game.StatusLive, 50, 45, 2)
	store.snapshots["nba-100"] = baseline
	g := &fakeGateway{}
	p := newTestPipeline(store, &fakeAdapter{err: fmt.Errorf("fetch: %w", source.ErrUnavailable)}, g)

	_, err := p.RunCycle(context.Background(), tracked)
	require.ErrorIs(t, err, source.ErrUnavailable)
	assert.Zero(t, store.putCount)
	assert.Same(t, baseline, store.snapshots["nba-100"])
}

func TestRunCycleRecordFailureBlocksDispatch(t *testing.T) {
	store := newFakeStore()
	store.snapshots["nba-100"] = testSnapshot(game.StatusScheduled, 0, 0, 0)
	store.subs = audienceOf(2)
	store.recordErr = fmt.Errorf("persistence down")
	g := &fakeGateway{}
	p := newTestPipeline(store, &fakeAdapter{snap: testSnapshot(game.StatusLive, 0, 0, 1)}, g)

	result, err := p.RunCycle(context.Background(), tracked)
	require.NoError(t, err, "per-event failures do not abort the cycle")
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Notified)
	assert.Zero(t, g.calls, "an event that was not recorded must never be dispatched")
}

func TestRunCycleDispatchFailureLeavesRecorded(t *testing.T) {
	store := newFakeStore()
	store.snapshots["nba-100"] = testSnapshot(game.StatusScheduled, 0, 0, 0)
	store.subs = audienceOf(2)
	g := &fakeGateway{failFirst: 99, err: context.Canceled}

	p := newTestPipeline(store, &fakeAdapter{snap: testSnapshot(game.StatusLive, 0, 0, 1)}, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := p.RunCycle(ctx, tracked)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)

	entry := store.ledger["nba-100:game_start"]
	require.NotNil(t, entry, "event stays recorded for a future retry")
	assert.False(t, entry.Notified)
}

func TestRunCycleInvalidTokensSurfaced(t *testing.T) {
	store := newFakeStore()
	store.snapshots["nba-100"] = testSnapshot(game.StatusScheduled, 0, 0, 0)
	store.subs = audienceOf(3)
	g := &fakeGateway{statusFor: map[string]push.ReceiptStatus{
		"ExponentPushToken[u1]": push.ReceiptInvalidToken,
	}}
	p := newTestPipeline(store, &fakeAdapter{snap: testSnapshot(game.StatusLive, 0, 0, 1)}, g)

	result, err := p.RunCycle(context.Background(), tracked)
	require.NoError(t, err)
	assert.Equal(t, []string{"ExponentPushToken[u1]"}, result.InvalidTokens)

	// Invalid tokens degrade individual recipients; the event itself is
	// still considered delivered.
	assert.True(t, store.ledger["nba-100:game_start"].Notified)
}
