package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrTransient marks a batch-level failure worth retrying (rate limited or
// gateway 5xx). The dispatcher checks for it with errors.Is.
var ErrTransient = fmt.Errorf("transient gateway failure")

// Client talks to an Expo-style push endpoint: POST a JSON array of messages,
// receive a ticket per message in submission order.
type Client struct {
	httpClient  *http.Client
	endpoint    string
	accessToken string
	limiter     *rate.Limiter
	logger      *slog.Logger
}

// NewClient creates a push gateway client with rate limiting.
func NewClient(endpoint, accessToken string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		endpoint:    endpoint,
		accessToken: accessToken,
		limiter:     rate.NewLimiter(rate.Limit(10), 2), // gateway allows ~600 req/min
		logger:      logger,
	}
}

// ticket is one entry of the gateway response. Status is "ok" or "error";
// Details.Error carries the machine-readable failure code.
type ticket struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Details struct {
		Error string `json:"error"`
	} `json:"details"`
}

type sendResponse struct {
	Data []ticket `json:"data"`
}

// SendBatch submits one batch and maps gateway tickets onto typed receipts.
func (c *Client) SendBatch(ctx context.Context, msgs []Message) ([]Receipt, error) {
	if len(msgs) == 0 {
		return nil, nil
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(msgs)
	if err != nil {
		return nil, fmt.Errorf("encode batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: gateway returned %d: %s", ErrTransient, resp.StatusCode, truncate(body, 200))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var result sendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Data) != len(msgs) {
		return nil, fmt.Errorf("gateway returned %d tickets for %d messages", len(result.Data), len(msgs))
	}

	receipts := make([]Receipt, len(msgs))
	for i, t := range result.Data {
		receipts[i] = Receipt{
			Token:  msgs[i].Token,
			Status: classify(t),
			Detail: t.Message,
		}
	}
	return receipts, nil
}

// classify maps a gateway ticket onto the receipt taxonomy.
func classify(t ticket) ReceiptStatus {
	if t.Status == "ok" {
		return ReceiptOK
	}
	switch t.Details.Error {
	case "DeviceNotRegistered", "InvalidCredentials":
		return ReceiptInvalidToken
	case "MessageRateExceeded":
		return ReceiptTransient
	default:
		if strings.Contains(t.Message, "not a registered push notification recipient") {
			return ReceiptInvalidToken
		}
		return ReceiptOther
	}
}

// truncate returns a truncated string representation for error messages.
func truncate(b []byte, maxLen int) string {
	if len(b) <= maxLen {
		return string(b)
	}
	return string(b[:maxLen]) + "..."
}
