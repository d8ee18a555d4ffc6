package payment

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// StatusUpdate carries the fields a webhook may change on a payment.
type StatusUpdate struct {
	Status          Status
	Confirmations   int
	TransactionHash string
	ConfirmedAt     *time.Time
}

// Store persists payments. Transition must apply the status guard
// atomically: concurrent deliveries for the same invoice must serialize
// into a single read-modify-write, never a read followed by a separate
// write.
type Store interface {
	Create(ctx context.Context, p *Payment) error
	GetByInvoiceID(ctx context.Context, invoiceID string) (*Payment, error)
	// Transition updates the payment's status if the guard allows it:
	// the current status must not be terminal and the new status must
	// not rank below the current one. Returns the payment as stored
	// after the call and whether the update was applied.
	Transition(ctx context.Context, invoiceID string, update StatusUpdate) (*Payment, bool, error)
}

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.Mutex
	payments map[string]Payment // keyed by invoice ID
}

// NewMemoryStore creates an empty in-memory payment store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{payments: make(map[string]Payment)}
}

func (s *MemoryStore) Create(_ context.Context, p *Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.payments[p.InvoiceID]; ok {
		return ErrAlreadyExists
	}
	s.payments[p.InvoiceID] = *p
	return nil
}

func (s *MemoryStore) GetByInvoiceID(_ context.Context, invoiceID string) (*Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[invoiceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (s *MemoryStore) Transition(_ context.Context, invoiceID string, update StatusUpdate) (*Payment, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.payments[invoiceID]
	if !ok {
		return nil, false, ErrNotFound
	}

	if p.Status.IsTerminal() || update.Status.Precedence() < p.Status.Precedence() {
		return &p, false, nil
	}

	p.Status = update.Status
	p.Confirmations = update.Confirmations
	if update.TransactionHash != "" {
		p.TransactionHash = update.TransactionHash
	}
	if update.ConfirmedAt != nil {
		p.ConfirmedAt = update.ConfirmedAt
	}
	p.UpdatedAt = time.Now().UTC()
	s.payments[invoiceID] = p

	return &p, true, nil
}

// GetBySubscriptionID returns all payments for a subscription, used by
// the bot's payment history surface.
func (s *MemoryStore) GetBySubscriptionID(_ context.Context, subscriptionID uuid.UUID) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Payment
	for _, p := range s.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, p)
		}
	}
	return out, nil
}
