package notifications

import (
	"slices"
	"time"
)

// ResolveAudience returns the subscribers who should receive the event,
// deduplicated by subscriber ID. Checks run in a fixed order and
// short-circuit on the first failure; now is the delivery moment used for
// quiet-hours evaluation.
func ResolveAudience(ev Event, subscribers []Subscriber, now time.Time) []Subscriber {
	var audience []Subscriber
	seen := make(map[string]struct{}, len(subscribers))

	for _, sub := range subscribers {
		if _, dup := seen[sub.ID]; dup {
			continue
		}
		if !wants(ev, sub, now) {
			continue
		}
		seen[sub.ID] = struct{}{}
		audience = append(audience, sub)
	}
	return audience
}

// wants evaluates the per-subscriber filter chain for one event.
func wants(ev Event, sub Subscriber, now time.Time) bool {
	if !sub.Enabled {
		return false
	}

	prefs, ok := sub.Sports[ev.Sport]
	if !ok || !prefs.Enabled {
		return false
	}

	if !teamRelevant(ev, prefs) {
		return false
	}

	// Per-sport kind allow-list; empty allows everything.
	if len(prefs.Kinds) > 0 && !slices.Contains(prefs.Kinds, ev.Kind) {
		return false
	}

	// Global override: an explicit deny wins over the allow-list.
	if allowed, set := sub.KindOverrides[ev.Kind]; set && !allowed {
		return false
	}

	return !sub.QuietHours.SuppressedAt(now)
}

// teamRelevant applies the team filter. Rivalry mode is exclusive once
// configured: the event must pit the favorite against a listed rival, in
// either orientation, and the legacy followed list is not consulted.
func teamRelevant(ev Event, prefs SportPrefs) bool {
	if prefs.FavoriteTeam != "" && len(prefs.RivalTeams) > 0 {
		return rivalryMatch(ev.TeamCodes, prefs.FavoriteTeam, prefs.RivalTeams)
	}

	if len(prefs.Teams) > 0 {
		for _, code := range ev.TeamCodes {
			if slices.Contains(prefs.Teams, code) {
				return true
			}
		}
		return false
	}

	// No team filter configured: global feed for the sport.
	return true
}

func rivalryMatch(codes []string, favorite string, rivals []string) bool {
	if len(codes) != 2 {
		return false
	}
	rivals = rivals[:min(len(rivals), MaxRivals)]
	switch favorite {
	case codes[0]:
		return slices.Contains(rivals, codes[1])
	case codes[1]:
		return slices.Contains(rivals, codes[0])
	default:
		return false
	}
}
