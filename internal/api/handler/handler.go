// Package handler implements the HTTP handlers for the notifier API.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ankur-ag/sports-notifications/internal/api/respond"
	"github.com/ankur-ag/sports-notifications/internal/db"
	"github.com/ankur-ag/sports-notifications/internal/notifications"
	"github.com/ankur-ag/sports-notifications/internal/source"
)

// Handler holds dependencies for all routes.
type Handler struct {
	pool     *db.Pool
	store    *notifications.PGStore
	pipeline *notifications.Pipeline
	logger   *slog.Logger
}

// New creates a handler with its dependencies.
func New(pool *db.Pool, store *notifications.PGStore, pipeline *notifications.Pipeline, logger *slog.Logger) *Handler {
	return &Handler{pool: pool, store: store, pipeline: pipeline, logger: logger}
}

// Root returns service identity.
func (h *Handler) Root(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{
		"service": "sports-notifications",
		"status":  "ok",
	})
}

// HealthCheck reports liveness.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// HealthCheckDB reports database reachability.
func (h *Handler) HealthCheckDB(w http.ResponseWriter, r *http.Request) {
	if err := h.pool.HealthCheck(r.Context()); err != nil {
		respond.WriteError(w, http.StatusServiceUnavailable, "DB_UNAVAILABLE", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// ListGames returns all actively tracked games.
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.store.TrackedGames(r.Context())
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, map[string]any{"games": games})
}

// TrackGame registers a game for polling.
func (h *Handler) TrackGame(w http.ResponseWriter, r *http.Request) {
	var g notifications.TrackedGame
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid JSON body")
		return
	}
	if g.GameID == "" || g.Sport == "" || g.ExternalID == "" {
		respond.WriteError(w, http.StatusBadRequest, "BAD_REQUEST", "gameID, sport, and externalID are required")
		return
	}
	if err := h.store.Track(r.Context(), g); err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, g)
}

// PollGame triggers one polling cycle for a tracked game.
func (h *Handler) PollGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")

	g, err := h.store.TrackedGame(r.Context(), gameID)
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "STORE_ERROR", err.Error())
		return
	}
	if g == nil {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "game is not tracked")
		return
	}

	result, err := h.pipeline.RunCycle(r.Context(), *g)
	if err != nil {
		if errors.Is(err, source.ErrUnavailable) {
			respond.WriteError(w, http.StatusBadGateway, "SOURCE_UNAVAILABLE", err.Error())
			return
		}
		respond.WriteError(w, http.StatusInternalServerError, "CYCLE_FAILED", err.Error())
		return
	}

	for _, token := range result.InvalidTokens {
		if err := h.store.DeactivateToken(r.Context(), token); err != nil {
			h.logger.Warn("deactivate token failed", "error", err)
		}
	}

	respond.WriteJSONObject(w, http.StatusOK, map[string]any{
		"gameId":   result.GameID,
		"detected": result.Detected,
		"notified": result.Notified,
		"skipped":  result.Skipped,
		"failed":   result.Failed,
		"duration": result.Duration.String(),
	})
}
