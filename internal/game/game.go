// Package game defines the normalized snapshot model for a single sporting
// event at one point in time. Snapshots are produced by the source adapters
// and consumed by the detection pipeline; they are immutable values and are
// never mutated after fetch.
package game

import "time"

// Status is the lifecycle state of a game.
type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusLive      Status = "live"
	StatusFinal     Status = "final"
	StatusPostponed Status = "postponed"
	StatusCancelled Status = "cancelled"
)

// Terminal returns true for states a game never leaves.
func (s Status) Terminal() bool {
	return s == StatusFinal || s == StatusPostponed || s == StatusCancelled
}

// Team is one participant's state within a snapshot.
type Team struct {
	Name   string `json:"name"`
	Code   string `json:"code"` // short code, e.g. "LAL"
	Score  int    `json:"score"`
	Record string `json:"record"` // win-loss, e.g. "41-12"
}

// Snapshot is the state of one game at fetch time.
type Snapshot struct {
	GameID       string    `json:"gameId"`
	Sport        string    `json:"sport"`
	Status       Status    `json:"status"`
	Home         Team      `json:"home"`
	Away         Team      `json:"away"`
	Period       int       `json:"period"`       // current period/quarter/inning, 0 before start
	TotalPeriods int       `json:"totalPeriods"` // regulation periods for this sport
	Clock        string    `json:"clock"`        // free-text, e.g. "7:42"
	FetchedAt    time.Time `json:"fetchedAt"`
}

// Differential returns the absolute score difference.
func (s *Snapshot) Differential() int {
	d := s.Home.Score - s.Away.Score
	if d < 0 {
		return -d
	}
	return d
}

// Leader returns the team currently ahead, or nil when tied.
func (s *Snapshot) Leader() *Team {
	switch {
	case s.Home.Score > s.Away.Score:
		return &s.Home
	case s.Away.Score > s.Home.Score:
		return &s.Away
	default:
		return nil
	}
}

// InOvertime returns true once play has moved beyond regulation.
func (s *Snapshot) InOvertime() bool {
	return s.TotalPeriods > 0 && s.Period > s.TotalPeriods
}

// TeamCodes returns both participant codes, home first.
func (s *Snapshot) TeamCodes() []string {
	return []string{s.Home.Code, s.Away.Code}
}
