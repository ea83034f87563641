package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func messages(tokens ...string) []Message {
	msgs := make([]Message, len(tokens))
	for i, tok := range tokens {
		msgs[i] = Message{Token: tok, Title: "Game update", Body: "LAL 100 - BOS 90"}
	}
	return msgs
}

func gatewayServer(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestSendBatchClassifiesTickets(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK, `{"data":[
		{"status":"ok"},
		{"status":"error","message":"device gone","details":{"error":"DeviceNotRegistered"}},
		{"status":"error","message":"slow down","details":{"error":"MessageRateExceeded"}},
		{"status":"error","message":"something else"}
	]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	receipts, err := c.SendBatch(context.Background(), messages("a", "b", "c", "d"))
	require.NoError(t, err)
	require.Len(t, receipts, 4)

	assert.Equal(t, ReceiptOK, receipts[0].Status)
	assert.Equal(t, ReceiptInvalidToken, receipts[1].Status)
	assert.Equal(t, ReceiptTransient, receipts[2].Status)
	assert.Equal(t, ReceiptOther, receipts[3].Status)

	// Receipts keep submission order, so token association survives.
	assert.Equal(t, "b", receipts[1].Token)
	assert.Equal(t, "something else", receipts[3].Detail)
}

func TestSendBatchRateLimitedIsTransient(t *testing.T) {
	srv := gatewayServer(t, http.StatusTooManyRequests, `{"errors":[{"code":"RATE_LIMIT_ERROR"}]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.SendBatch(context.Background(), messages("a"))
	require.ErrorIs(t, err, ErrTransient)
}

func TestSendBatchServerErrorIsTransient(t *testing.T) {
	srv := gatewayServer(t, http.StatusBadGateway, "upstream down")
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.SendBatch(context.Background(), messages("a"))
	require.ErrorIs(t, err, ErrTransient)
}

func TestSendBatchClientErrorIsNotTransient(t *testing.T) {
	srv := gatewayServer(t, http.StatusBadRequest, `{"errors":[{"code":"VALIDATION_ERROR"}]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.SendBatch(context.Background(), messages("a"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTransient)
}

func TestSendBatchTicketCountMismatch(t *testing.T) {
	srv := gatewayServer(t, http.StatusOK, `{"data":[{"status":"ok"}]}`)
	defer srv.Close()

	c := NewClient(srv.URL, "", nil)
	_, err := c.SendBatch(context.Background(), messages("a", "b"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 tickets for 2 messages")
}

func TestSendBatchEmpty(t *testing.T) {
	c := NewClient("http://unused.invalid", "", nil)
	receipts, err := c.SendBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, receipts)
}

func TestSendBatchSendsAuthorization(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var msgs []Message
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msgs))
		json.NewEncoder(w).Encode(sendResponse{Data: make([]ticket, len(msgs))})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "secret-token", nil)
	_, err := c.SendBatch(context.Background(), messages("a"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer secret-token", gotAuth)
}
