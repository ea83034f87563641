package notifications

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankur-ag/sports-notifications/internal/push"
)

// fakeGateway records batches and answers with scripted receipt statuses.
type fakeGateway struct {
	mu      sync.Mutex
	batches [][]push.Message
	// statusFor overrides the receipt status for specific tokens.
	statusFor map[string]push.ReceiptStatus
	// failFirst makes the first N calls fail with errs before succeeding.
	failFirst int
	err       error
	calls     int
}

func (g *fakeGateway) SendBatch(ctx context.Context, msgs []push.Message) ([]push.Receipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.failFirst > 0 {
		g.failFirst--
		return nil, g.err
	}
	g.batches = append(g.batches, msgs)

	receipts := make([]push.Receipt, len(msgs))
	for i, m := range msgs {
		status := push.ReceiptOK
		if s, ok := g.statusFor[m.Token]; ok {
			status = s
		}
		receipts[i] = push.Receipt{Token: m.Token, Status: status}
	}
	return receipts, nil
}

func audienceOf(n int) []Subscriber {
	subs := make([]Subscriber, n)
	for i := range subs {
		id := fmt.Sprintf("u%d", i)
		subs[i] = testSubscriber(id, SportPrefs{Enabled: true})
	}
	return subs
}

func newTestDispatcher(g push.Gateway) *Dispatcher {
	return NewDispatcher(g, 500, 2, 3, time.Millisecond, time.Second, nil)
}

func TestDispatchEmptyAudience(t *testing.T) {
	g := &fakeGateway{}
	d := newTestDispatcher(g)

	out, err := d.Dispatch(context.Background(), testEvent(KindGameStart), nil, nil)
	require.NoError(t, err)
	assert.Zero(t, out.Submitted)
	assert.Zero(t, g.calls, "gateway must not be contacted for an empty audience")
}

func TestDispatchBatching(t *testing.T) {
	g := &fakeGateway{statusFor: map[string]push.ReceiptStatus{
		"ExponentPushToken[u3]":   push.ReceiptInvalidToken,
		"ExponentPushToken[u550]": push.ReceiptInvalidToken,
	}}
	d := newTestDispatcher(g)

	out, err := d.Dispatch(context.Background(), testEvent(KindGameEnd), audienceOf(600), nil)
	require.NoError(t, err)

	// 600 recipients with a 500 ceiling: exactly two batches.
	require.Len(t, g.batches, 2)
	total := len(g.batches[0]) + len(g.batches[1])
	assert.Equal(t, 600, total)

	assert.Equal(t, 600, out.Submitted)
	assert.Equal(t, 598, out.Succeeded)
	assert.Equal(t, 2, out.Failed)
	// Invalid tokens from both batches are surfaced as a union.
	assert.ElementsMatch(t,
		[]string{"ExponentPushToken[u3]", "ExponentPushToken[u550]"},
		out.InvalidTokens)
}

func TestDispatchRetriesTransient(t *testing.T) {
	g := &fakeGateway{
		failFirst: 2,
		err:       fmt.Errorf("%w: 503", push.ErrTransient),
	}
	d := newTestDispatcher(g)

	out, err := d.Dispatch(context.Background(), testEvent(KindGameStart), audienceOf(10), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, g.calls)
	assert.Equal(t, 10, out.Succeeded)
	assert.Zero(t, out.Failed)
}

func TestDispatchExhaustedRetriesCountAsFailed(t *testing.T) {
	g := &fakeGateway{
		failFirst: 99,
		err:       fmt.Errorf("%w: 503", push.ErrTransient),
	}
	d := newTestDispatcher(g)

	out, err := d.Dispatch(context.Background(), testEvent(KindGameStart), audienceOf(10), nil)
	require.NoError(t, err, "exhausted retries degrade to failed recipients, not a fatal error")
	assert.Equal(t, 3, g.calls)
	assert.Equal(t, 10, out.Submitted)
	assert.Equal(t, 10, out.Failed)
}

func TestDispatchNonRetryableFailsWithoutRetry(t *testing.T) {
	g := &fakeGateway{
		failFirst: 99,
		err:       fmt.Errorf("gateway returned 400"),
	}
	d := newTestDispatcher(g)

	out, err := d.Dispatch(context.Background(), testEvent(KindGameStart), audienceOf(10), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, g.calls)
	assert.Equal(t, 10, out.Failed)
}

func TestDispatchCancellationIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	g := &fakeGateway{failFirst: 99, err: context.Canceled}
	d := newTestDispatcher(g)

	_, err := d.Dispatch(ctx, testEvent(KindGameStart), audienceOf(10), nil)
	require.Error(t, err, "a cancelled dispatch must surface so the ledger stays at recorded")
}

func TestDispatchRendersEventPayload(t *testing.T) {
	g := &fakeGateway{}
	d := newTestDispatcher(g)

	ev := testEvent(KindBlowout)
	ev.Meta.LeadingTeam = "LAL"
	ev.Meta.Differential = 24

	_, err := d.Dispatch(context.Background(), ev, audienceOf(1), nil)
	require.NoError(t, err)
	require.Len(t, g.batches, 1)

	msg := g.batches[0][0]
	assert.Equal(t, "Blowout alert", msg.Title)
	assert.Contains(t, msg.Body, "LAL leads by 24")
	assert.Equal(t, string(KindBlowout), msg.Data["kind"])
	assert.Equal(t, ev.ID, msg.Data["eventId"])
}
