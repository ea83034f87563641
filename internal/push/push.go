// Package push provides the push gateway client. The gateway accepts batches
// of addressed messages and reports a per-recipient outcome, which the
// dispatcher aggregates.
package push

import "context"

// Message is one addressed notification.
type Message struct {
	Token string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// ReceiptStatus classifies a per-recipient gateway outcome.
type ReceiptStatus string

const (
	ReceiptOK ReceiptStatus = "ok"
	// ReceiptInvalidToken means the recipient is permanently unreachable and
	// should be pruned from the subscriber store.
	ReceiptInvalidToken ReceiptStatus = "invalid_token"
	ReceiptTransient    ReceiptStatus = "transient"
	ReceiptOther        ReceiptStatus = "other"
)

// Receipt is the gateway's outcome for a single message.
type Receipt struct {
	Token  string
	Status ReceiptStatus
	Detail string
}

// Gateway submits one batch of messages and returns a receipt per message.
// A non-nil error means the batch as a whole failed at the transport level
// and no receipts are available.
type Gateway interface {
	SendBatch(ctx context.Context, msgs []Message) ([]Receipt, error)
}
