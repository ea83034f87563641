package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimingMiddlewareSetsHeader(t *testing.T) {
	h := TimingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
}

func TestRateLimitMiddlewareRejectsOverBurst(t *testing.T) {
	// 2 requests per minute gives a burst of 1; refill within the test
	// body is negligible.
	mw := RateLimitMiddleware(2, time.Minute, nil)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
	req.RemoteAddr = "10.0.0.1:51234"

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))

	// A different client has its own bucket.
	other := httptest.NewRequest(http.MethodGet, "/api/v1/games", nil)
	other.RemoteAddr = "10.0.0.2:51234"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, other)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestClientLimiterEvictsIdleEntries(t *testing.T) {
	l := newClientLimiter(2, time.Minute) // burst 1, maxIdle 3m

	now := time.Now()
	assert.True(t, l.allow("a", now))
	assert.False(t, l.allow("a", now))
	assert.Len(t, l.clients, 1)

	// Past maxIdle the entry is swept and the client starts fresh.
	later := now.Add(4 * time.Minute)
	assert.True(t, l.allow("a", later))

	// The sweep also drops other idle clients.
	assert.True(t, l.allow("b", later))
	assert.Len(t, l.clients, 2)
	assert.True(t, l.allow("a", later.Add(4*time.Minute)))
	assert.Len(t, l.clients, 1)
}
