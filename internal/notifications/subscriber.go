package notifications

import (
	"time"
)

// MaxRivals caps the rival list a subscriber may configure per sport.
const MaxRivals = 5

// SportPrefs is one subscriber's configuration for a single sport.
//
// Team relevance is evaluated in strict precedence: when both a favorite
// and rivals are configured, rivalry matching is exclusive — the legacy
// followed-team list is ignored for that sport. With neither configured
// the subscriber receives the sport's global feed.
type SportPrefs struct {
	Enabled      bool     `json:"enabled"`
	FavoriteTeam string   `json:"favoriteTeam,omitempty"`
	RivalTeams   []string `json:"rivalTeams,omitempty"`
	Teams        []string `json:"teams,omitempty"` // legacy followed list
	Kinds        []Kind   `json:"kinds,omitempty"` // allow-list; empty allows all
}

// QuietHours is a local time-of-day window during which delivery is
// suppressed. Start > End denotes an overnight window.
type QuietHours struct {
	Enabled  bool   `json:"enabled"`
	Start    string `json:"start"` // "HH:MM"
	End      string `json:"end"`   // "HH:MM"
	Timezone string `json:"timezone"`
}

// SuppressedAt reports whether now falls inside the window, evaluated in
// the subscriber's timezone. The window is half-open: [start, end).
func (q *QuietHours) SuppressedAt(now time.Time) bool {
	if q == nil || !q.Enabled {
		return false
	}
	start, okS := parseMinutes(q.Start)
	end, okE := parseMinutes(q.End)
	if !okS || !okE {
		return false
	}

	loc, err := time.LoadLocation(q.Timezone)
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	cur := local.Hour()*60 + local.Minute()

	if start > end {
		// Overnight wraparound, e.g. 22:00–08:00.
		return cur >= start || cur < end
	}
	return cur >= start && cur < end
}

// parseMinutes converts "HH:MM" to minutes-of-day.
func parseMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// Subscriber is one push recipient and their notification preferences.
type Subscriber struct {
	ID      string `json:"id"`
	Token   string `json:"token"` // opaque push token
	Enabled bool   `json:"enabled"`
	// Sports maps sport tag → per-sport configuration.
	Sports map[string]SportPrefs `json:"sports,omitempty"`
	// KindOverrides is a global per-kind override: an explicit false
	// rejects the kind even when a sport allow-list permits it.
	KindOverrides map[Kind]bool `json:"kindOverrides,omitempty"`
	QuietHours    *QuietHours   `json:"quietHours,omitempty"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}
