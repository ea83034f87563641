package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/ankur-ag/sports-notifications/internal/game"
)

// BDLAdapter fetches game snapshots from a BallDontLie-style scores API.
// One instance per sport; the NBA and NFL endpoints share the same shape.
type BDLAdapter struct {
	httpClient   *http.Client
	baseURL      string
	apiKey       string
	sport        string
	totalPeriods int
	limiter      *rate.Limiter
	logger       *slog.Logger
}

// NewBDLAdapter creates a rate-limited adapter for one sport.
func NewBDLAdapter(baseURL, apiKey, sport string, totalPeriods, requestsPerMinute int, logger *slog.Logger) *BDLAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	rps := float64(requestsPerMinute) / 60.0
	return &BDLAdapter{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		baseURL:      baseURL,
		apiKey:       apiKey,
		sport:        sport,
		totalPeriods: totalPeriods,
		limiter:      rate.NewLimiter(rate.Limit(rps), 1),
		logger:       logger,
	}
}

// Sport returns the sport tag this adapter serves.
func (a *BDLAdapter) Sport() string { return a.sport }

// gameRaw is the provider's game shape.
type gameRaw struct {
	ID     int    `json:"id"`
	Status string `json:"status"` // "Final", "1st Qtr", ISO timestamp when scheduled
	Period int    `json:"period"`
	Time   string `json:"time"`
	Home   struct {
		FullName     string `json:"full_name"`
		Abbreviation string `json:"abbreviation"`
	} `json:"home_team"`
	Visitor struct {
		FullName     string `json:"full_name"`
		Abbreviation string `json:"abbreviation"`
	} `json:"visitor_team"`
	HomeScore    int `json:"home_team_score"`
	VisitorScore int `json:"visitor_team_score"`
}

// FetchSnapshot fetches and normalizes one game.
func (a *BDLAdapter) FetchSnapshot(ctx context.Context, externalID string) (*game.Snapshot, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	u := a.baseURL + "/games/" + externalID
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", a.apiKey)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: game %s returned %d", ErrUnavailable, externalID, resp.StatusCode)
	}

	var wrapper struct {
		Data gameRaw `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode game %s: %w", externalID, err)
	}

	return a.normalize(externalID, wrapper.Data), nil
}

func (a *BDLAdapter) normalize(externalID string, raw gameRaw) *game.Snapshot {
	return &game.Snapshot{
		GameID:       fmt.Sprintf("%s-%s", strings.ToLower(a.sport), externalID),
		Sport:        a.sport,
		Status:       normalizeStatus(raw),
		Home:         game.Team{Name: raw.Home.FullName, Code: raw.Home.Abbreviation, Score: raw.HomeScore},
		Away:         game.Team{Name: raw.Visitor.FullName, Code: raw.Visitor.Abbreviation, Score: raw.VisitorScore},
		Period:       raw.Period,
		TotalPeriods: a.totalPeriods,
		Clock:        raw.Time,
		FetchedAt:    time.Now().UTC(),
	}
}

// normalizeStatus maps the provider's free-text status onto the lifecycle
// enum. The provider reports scheduled games with an ISO start timestamp in
// the status field and live games with the current period label.
func normalizeStatus(raw gameRaw) game.Status {
	s := strings.ToLower(strings.TrimSpace(raw.Status))
	switch {
	case s == "final":
		return game.StatusFinal
	case strings.Contains(s, "postponed"):
		return game.StatusPostponed
	case strings.Contains(s, "cancel"):
		return game.StatusCancelled
	case raw.Period > 0 || strings.Contains(s, "qtr") || strings.Contains(s, "half"):
		return game.StatusLive
	default:
		return game.StatusScheduled
	}
}
