package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ankur-ag/sports-notifications/internal/game"
)

func TestRenderGameStartWithRecords(t *testing.T) {
	snap := testSnapshot(game.StatusLive, 0, 0, 1)
	snap.Home.Record = "41-12"
	snap.Away.Record = "39-14"

	msg := Render(testEvent(KindGameStart), snap)
	assert.Equal(t, "Game started", msg.Title)
	assert.Equal(t, "Los Angeles Lakers (41-12) vs Boston Celtics (39-14) is underway", msg.Body)
}

func TestRenderGameEndAwayWinner(t *testing.T) {
	ev := testEvent(KindGameEnd)
	ev.Meta = Meta{HomeScore: 90, AwayScore: 100, Winner: "BOS"}

	msg := Render(ev, testSnapshot(game.StatusFinal, 90, 100, 4))
	assert.Equal(t, "Final score", msg.Title)
	assert.Equal(t, "Boston Celtics wins 100-90 over Los Angeles Lakers", msg.Body)
}

func TestRenderGameEndTie(t *testing.T) {
	ev := testEvent(KindGameEnd)
	ev.Meta = Meta{HomeScore: 95, AwayScore: 95}

	msg := Render(ev, testSnapshot(game.StatusFinal, 95, 95, 4))
	assert.Contains(t, msg.Body, "ends in a tie, 95-95")
}

func TestRenderBlowoutData(t *testing.T) {
	ev := testEvent(KindBlowout)
	ev.Meta = Meta{HomeScore: 112, AwayScore: 90, Differential: 22, LeadingTeam: "LAL", Period: 3}

	msg := Render(ev, testSnapshot(game.StatusLive, 112, 90, 3))
	assert.Equal(t, "Blowout alert", msg.Title)
	assert.Contains(t, msg.Body, "LAL leads by 22")

	assert.Equal(t, ev.ID, msg.Data["eventId"])
	assert.Equal(t, "blowout", msg.Data["kind"])
	assert.Equal(t, "LAL", msg.Data["leadingTeam"])
	assert.Equal(t, "22", msg.Data["differential"])
	assert.Equal(t, "3", msg.Data["period"])
}

func TestRenderNilSnapshotFallsBackToCodes(t *testing.T) {
	msg := Render(testEvent(KindOvertime), nil)
	assert.Equal(t, "Overtime!", msg.Title)
	assert.Contains(t, msg.Body, "LAL vs BOS")
}

func TestRenderCloseGameWithClock(t *testing.T) {
	ev := testEvent(KindCloseGame)
	ev.Meta = Meta{HomeScore: 100, AwayScore: 97, Differential: 3, Period: 4}
	snap := testSnapshot(game.StatusLive, 100, 97, 4)
	snap.Clock = "2:15"

	msg := Render(ev, snap)
	assert.Contains(t, msg.Body, "within 3 with 2:15 left — 100-97")
}
