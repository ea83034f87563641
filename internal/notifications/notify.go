// Package notifications turns game-state transitions into deduplicated,
// targeted push notifications.
//
// Pipeline per polling cycle: detect events from the stored-vs-fetched
// snapshot pair → check the ledger → resolve the audience → dispatch in
// batches → record completion → persist the new baseline.
package notifications

import (
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Event kinds and priorities
// --------------------------------------------------------------------------

// Kind enumerates the semantic events the detector can produce.
type Kind string

const (
	KindGameStart   Kind = "game_start"
	KindGameEnd     Kind = "game_end"
	KindBlowout     Kind = "blowout"
	KindCloseGame   Kind = "close_game"
	KindFinalPeriod Kind = "final_period"
	KindOvertime    Kind = "overtime"
	KindPostponed   Kind = "postponed"
	KindCancelled   Kind = "cancelled"
)

// Priority orders events by urgency.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityMedium:
		return "medium"
	case PriorityHigh:
		return "high"
	case PriorityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// --------------------------------------------------------------------------
// Detected events
// --------------------------------------------------------------------------

// Meta is the bounded, typed metadata carried by an event. Extra holds
// sport-specific add-ons consumed outside this package.
type Meta struct {
	HomeScore    int               `json:"homeScore"`
	AwayScore    int               `json:"awayScore"`
	Differential int               `json:"differential"`
	LeadingTeam  string            `json:"leadingTeam,omitempty"`
	Winner       string            `json:"winner,omitempty"` // game_end only; empty means tie
	Period       int               `json:"period"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Event is one detected state transition. Its ID is derived
// deterministically from (gameID, kind, disambiguator) so re-running
// detection on the same snapshot pair yields the same ID; the ledger keys
// on it for at-most-once delivery.
type Event struct {
	ID         string    `json:"id"`
	GameID     string    `json:"gameId"`
	Sport      string    `json:"sport"`
	Kind       Kind      `json:"kind"`
	Priority   Priority  `json:"priority"`
	DetectedAt time.Time `json:"detectedAt"`
	OccurredAt time.Time `json:"occurredAt"`
	Meta       Meta      `json:"meta"`
	// TeamCodes are the participants relevant to the event, used for
	// audience fan-out only — never for identity.
	TeamCodes []string `json:"teamCodes"`
}

// eventID builds the deterministic identity key. The disambiguator
// separates repeatable kinds (a blowout can re-arm within one game) and is
// empty for kinds that fire at most once per game.
func eventID(gameID string, kind Kind, disambiguator string) string {
	parts := []string{gameID, string(kind)}
	if disambiguator != "" {
		parts = append(parts, disambiguator)
	}
	return strings.Join(parts, ":")
}

// --------------------------------------------------------------------------
// Ledger
// --------------------------------------------------------------------------

// LedgerEntry tracks delivery state for one event ID. Entries are created
// when an event is first persisted and are never deleted; they double as a
// permanent audit trail.
type LedgerEntry struct {
	EventID    string
	RecordedAt time.Time
	Notified   bool
	NotifiedAt *time.Time
}

// --------------------------------------------------------------------------
// Delivery outcome
// --------------------------------------------------------------------------

// Outcome aggregates per-recipient results across all batches of one
// event's dispatch.
type Outcome struct {
	Submitted     int
	Succeeded     int
	Failed        int
	InvalidTokens []string
}
