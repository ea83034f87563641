package notifications

import (
	"strconv"
	"time"

	"github.com/ankur-ag/sports-notifications/internal/game"
)

// Default detection thresholds, overridable via config.
const (
	DefaultBlowoutThreshold   = 20
	DefaultCloseGameThreshold = 5
)

// Detector derives semantic events from a pair of snapshots. It is pure:
// no I/O, no clock reads — the detection timestamp is supplied by the
// caller so repeated calls on the same pair are fully deterministic.
type Detector struct {
	BlowoutThreshold   int
	CloseGameThreshold int
}

// NewDetector creates a detector, applying defaults for zero thresholds.
func NewDetector(blowout, closeGame int) *Detector {
	if blowout <= 0 {
		blowout = DefaultBlowoutThreshold
	}
	if closeGame <= 0 {
		closeGame = DefaultCloseGameThreshold
	}
	return &Detector{BlowoutThreshold: blowout, CloseGameThreshold: closeGame}
}

// Detect evaluates every rule against (prev, cur) and returns the fired
// events in a fixed order. prev is nil on the first observation of a game;
// only the game-start rule may fire from a nil baseline.
func (d *Detector) Detect(prev *game.Snapshot, cur *game.Snapshot, detectedAt time.Time) []Event {
	var events []Event

	add := func(kind Kind, priority Priority, disambiguator string, meta Meta) {
		meta.HomeScore = cur.Home.Score
		meta.AwayScore = cur.Away.Score
		meta.Period = cur.Period
		events = append(events, Event{
			ID:         eventID(cur.GameID, kind, disambiguator),
			GameID:     cur.GameID,
			Sport:      cur.Sport,
			Kind:       kind,
			Priority:   priority,
			DetectedAt: detectedAt,
			OccurredAt: cur.FetchedAt,
			Meta:       meta,
			TeamCodes:  cur.TeamCodes(),
		})
	}

	diff := cur.Differential()
	leader := ""
	if t := cur.Leader(); t != nil {
		leader = t.Code
	}

	// Game start: transition into live, including from a nil baseline.
	if cur.Status == game.StatusLive && (prev == nil || prev.Status != game.StatusLive) {
		add(KindGameStart, PriorityHigh, "", Meta{})
	}

	// Game end: live → final. Never synthesized from a nil baseline.
	if cur.Status == game.StatusFinal && prev != nil && prev.Status == game.StatusLive {
		add(KindGameEnd, PriorityHigh, "", Meta{
			Differential: diff,
			LeadingTeam:  leader,
			Winner:       leader,
		})
	}

	// Blowout: edge-triggered on the differential crossing the threshold.
	// Level-triggering would re-notify every cycle while the blowout holds.
	// The score pair at the crossing disambiguates: scores never decrease,
	// so each crossing gets a distinct ID even when the differential
	// repeats across oscillations.
	if cur.Status == game.StatusLive && diff >= d.BlowoutThreshold && !pastThreshold(prev, d.BlowoutThreshold) {
		add(KindBlowout, PriorityMedium, scorePair(cur), Meta{
			Differential: diff,
			LeadingTeam:  leader,
		})
	}

	// Close game: edge-triggered on the differential dropping inside the
	// threshold during the final regulation period or later.
	if cur.Status == game.StatusLive && diff <= d.CloseGameThreshold &&
		cur.TotalPeriods > 0 && cur.Period >= cur.TotalPeriods &&
		!insideThreshold(prev, d.CloseGameThreshold) {
		add(KindCloseGame, PriorityHigh, scorePair(cur), Meta{
			Differential: diff,
			LeadingTeam:  leader,
		})
	}

	// Final regulation period entered.
	if cur.TotalPeriods > 0 && cur.Period == cur.TotalPeriods &&
		prev != nil && prev.Period != cur.TotalPeriods {
		add(KindFinalPeriod, PriorityMedium, "", Meta{
			Differential: diff,
			LeadingTeam:  leader,
		})
	}

	// Overtime: transition beyond regulation.
	if cur.InOvertime() && prev != nil && !prev.InOvertime() {
		add(KindOvertime, PriorityHigh, strconv.Itoa(cur.Period), Meta{
			Differential: diff,
			LeadingTeam:  leader,
		})
	}

	// Postponed / cancelled: transition into the terminal status. A first
	// observation that is already postponed is not a transition.
	if prev != nil && prev.Status != cur.Status && cur.Status.Terminal() {
		switch cur.Status {
		case game.StatusPostponed:
			add(KindPostponed, PriorityMedium, "", Meta{})
		case game.StatusCancelled:
			add(KindCancelled, PriorityMedium, "", Meta{})
		}
	}

	return events
}

// pastThreshold reports whether prev's differential already met or exceeded
// the threshold. A nil baseline counts as below threshold, so the first
// observation of an in-progress blowout still fires once.
func pastThreshold(prev *game.Snapshot, threshold int) bool {
	return prev != nil && prev.Differential() >= threshold
}

// insideThreshold reports whether prev's differential was already at or
// inside the close-game threshold.
func insideThreshold(prev *game.Snapshot, threshold int) bool {
	return prev != nil && prev.Differential() <= threshold
}

// scorePair renders a snapshot's score as a "home-away" ID fragment.
func scorePair(s *game.Snapshot) string {
	return strconv.Itoa(s.Home.Score) + "-" + strconv.Itoa(s.Away.Score)
}
