package payment

import (
	"time"

	"github.com/google/uuid"
)

// Status is the processor-reported state of an invoice.
type Status string

const (
	StatusPending    Status = "pending"
	StatusWaiting    Status = "waiting"
	StatusConfirming Status = "confirming"
	StatusConfirmed  Status = "confirmed"
	StatusSending    Status = "sending"
	StatusFinished   Status = "finished"
	StatusFailed     Status = "failed"
	StatusExpired    Status = "expired"
	StatusRefunded   Status = "refunded"
)

// statusPrecedence orders statuses along the payment's progress.
// Transitions may only move forward; a redelivered or out-of-order
// webhook carrying a lower-precedence status is ignored.
var statusPrecedence = map[Status]int{
	StatusPending:    0,
	StatusWaiting:    0,
	StatusConfirming: 1,
	StatusConfirmed:  2,
	StatusSending:    3,
	StatusFinished:   4,
	StatusFailed:     4,
	StatusExpired:    4,
	StatusRefunded:   4,
}

// IsTerminal reports whether the status ends the payment's lifecycle.
// Terminal statuses are never overwritten.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusFinished, StatusFailed, StatusExpired, StatusRefunded:
		return true
	}
	return false
}

// Precedence returns the status ordering rank. Unknown statuses rank
// lowest so they can never displace a known one.
func (s Status) Precedence() int {
	return statusPrecedence[s]
}

// Known reports whether the status is one the processor can send.
func (s Status) Known() bool {
	_, ok := statusPrecedence[s]
	return ok
}

// Payment tracks one processor invoice for one subscription.
// InvoiceID is unique and immutable once set.
type Payment struct {
	ID              uuid.UUID
	SubscriptionID  uuid.UUID
	GroupID         int64
	InvoiceID       string
	AmountUSD       float64
	Currency        string
	Months          int
	Status          Status
	Confirmations   int
	TransactionHash string
	ExpiresAt       time.Time
	ConfirmedAt     *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Instructions carries the processor-visible fields needed to render
// payment instructions to the user. The raw processor response never
// leaves this package.
type Instructions struct {
	InvoiceID  string
	PayAddress string
	PayAmount  float64
	Currency   string
	InvoiceURL string
	ExpiresAt  time.Time
	// QRCode is a PNG image encoding the invoice URL.
	QRCode []byte
}

// WebhookPayload is the IPN body the processor posts on status changes.
type WebhookPayload struct {
	InvoiceID     string `json:"invoice_id"`
	PaymentStatus Status `json:"payment_status"`
	PaymentHash   string `json:"payment_hash"`
	Confirmations int    `json:"confirmations"`
}
