package notifications

import (
	"fmt"
	"strconv"

	"github.com/ankur-ag/sports-notifications/internal/game"
)

// RenderedMessage is the payload shared by every recipient of one event.
type RenderedMessage struct {
	Title string
	Body  string
	Data  map[string]string
}

// Render builds the notification payload for an event. snap is the current
// snapshot when available and enriches the body with records and clock;
// rendering degrades gracefully when it is nil.
func Render(ev Event, snap *game.Snapshot) RenderedMessage {
	home, away := teamLabel(ev, snap, 0), teamLabel(ev, snap, 1)
	matchup := fmt.Sprintf("%s vs %s", home, away)
	score := fmt.Sprintf("%d-%d", ev.Meta.HomeScore, ev.Meta.AwayScore)

	var title, body string
	switch ev.Kind {
	case KindGameStart:
		title = "Game started"
		body = fmt.Sprintf("%s is underway", matchup)
		if snap != nil && snap.Home.Record != "" && snap.Away.Record != "" {
			body = fmt.Sprintf("%s (%s) vs %s (%s) is underway",
				home, snap.Home.Record, away, snap.Away.Record)
		}
	case KindGameEnd:
		title = "Final score"
		if ev.Meta.Winner == "" {
			body = fmt.Sprintf("%s ends in a tie, %s", matchup, score)
		} else {
			hi, lo := ev.Meta.HomeScore, ev.Meta.AwayScore
			if lo > hi {
				hi, lo = lo, hi
			}
			body = fmt.Sprintf("%s wins %d-%d over %s", winnerLabel(ev, snap), hi, lo, loserLabel(ev, snap))
		}
	case KindBlowout:
		title = "Blowout alert"
		body = fmt.Sprintf("%s leads by %d in %s", ev.Meta.LeadingTeam, ev.Meta.Differential, matchup)
	case KindCloseGame:
		title = "Close game"
		body = fmt.Sprintf("%s is within %d late — %s", matchup, ev.Meta.Differential, score)
		if snap != nil && snap.Clock != "" {
			body = fmt.Sprintf("%s is within %d with %s left — %s", matchup, ev.Meta.Differential, snap.Clock, score)
		}
	case KindFinalPeriod:
		title = "Final period"
		body = fmt.Sprintf("%s enters the final period, %s", matchup, score)
	case KindOvertime:
		title = "Overtime!"
		body = fmt.Sprintf("%s is headed to overtime, %s", matchup, score)
	case KindPostponed:
		title = "Game postponed"
		body = fmt.Sprintf("%s has been postponed", matchup)
	case KindCancelled:
		title = "Game cancelled"
		body = fmt.Sprintf("%s has been cancelled", matchup)
	default:
		title = "Game update"
		body = fmt.Sprintf("%s: %s", matchup, score)
	}

	data := map[string]string{
		"eventId":  ev.ID,
		"gameId":   ev.GameID,
		"sport":    ev.Sport,
		"kind":     string(ev.Kind),
		"priority": ev.Priority.String(),
		"period":   strconv.Itoa(ev.Meta.Period),
	}
	if ev.Meta.LeadingTeam != "" {
		data["leadingTeam"] = ev.Meta.LeadingTeam
		data["differential"] = strconv.Itoa(ev.Meta.Differential)
	}
	for k, v := range ev.Meta.Extra {
		data[k] = v
	}

	return RenderedMessage{Title: title, Body: body, Data: data}
}

// teamLabel prefers the snapshot's full name, falling back to the event's
// participant codes.
func teamLabel(ev Event, snap *game.Snapshot, idx int) string {
	if snap != nil {
		if idx == 0 && snap.Home.Name != "" {
			return snap.Home.Name
		}
		if idx == 1 && snap.Away.Name != "" {
			return snap.Away.Name
		}
	}
	if idx < len(ev.TeamCodes) {
		return ev.TeamCodes[idx]
	}
	return "?"
}

func winnerLabel(ev Event, snap *game.Snapshot) string {
	if snap != nil {
		if t := snap.Leader(); t != nil && t.Name != "" {
			return t.Name
		}
	}
	return ev.Meta.Winner
}

func loserLabel(ev Event, snap *game.Snapshot) string {
	if len(ev.TeamCodes) == 2 {
		if ev.TeamCodes[0] == ev.Meta.Winner {
			return teamLabel(ev, snap, 1)
		}
		return teamLabel(ev, snap, 0)
	}
	return "?"
}
