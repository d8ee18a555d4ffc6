package subscription

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a group's subscription.
type Status string

const (
	StatusTrial       Status = "trial"
	StatusActive      Status = "active"
	StatusGracePeriod Status = "grace_period"
	StatusExpired     Status = "expired"
)

// Subscription tracks one group's entitlement window. Exactly one
// subscription exists per group; it is created on trial start and never
// deleted in normal operation.
type Subscription struct {
	ID                uuid.UUID
	GroupID           int64
	Status            Status
	TrialStart        time.Time
	TrialEnd          time.Time
	SubscriptionStart *time.Time
	SubscriptionEnd   *time.Time
	NextBilling       *time.Time
	GracePeriodEnd    *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// PostingAllowedAt reports whether the subscription grants posting
// access at the given instant.
func (s *Subscription) PostingAllowedAt(now time.Time) bool {
	switch s.Status {
	case StatusActive:
		return s.SubscriptionEnd != nil && now.Before(*s.SubscriptionEnd)
	case StatusTrial:
		return now.Before(s.TrialEnd)
	case StatusGracePeriod:
		return s.GracePeriodEnd != nil && now.Before(*s.GracePeriodEnd)
	default:
		return false
	}
}

// AccessEndsAt returns when the current entitlement window closes, or
// the zero time when the subscription grants no access.
func (s *Subscription) AccessEndsAt() time.Time {
	switch s.Status {
	case StatusActive:
		if s.SubscriptionEnd != nil {
			return *s.SubscriptionEnd
		}
	case StatusTrial:
		return s.TrialEnd
	case StatusGracePeriod:
		if s.GracePeriodEnd != nil {
			return *s.GracePeriodEnd
		}
	}
	return time.Time{}
}

// Group is the tenant identity. Status mirrors the subscription status
// for fast reads on the posting path.
type Group struct {
	ID        int64
	Title     string
	CreatorID int64
	Status    Status
	Active    bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Event is an append-only audit record of a subscription transition.
type Event struct {
	ID             uuid.UUID
	SubscriptionID uuid.UUID
	Type           EventType
	Data           map[string]any
	CreatedAt      time.Time
}

// EventType identifies a subscription transition in the audit log.
type EventType string

const (
	EventTrialStarted    EventType = "trial_started"
	EventTrialWarning    EventType = "trial_warning"
	EventTrialExpired    EventType = "trial_expired"
	EventGraceWarning    EventType = "grace_warning"
	EventExpired         EventType = "subscription_expired"
	EventActivated       EventType = "subscription_activated"
	EventInvoiceCreated  EventType = "invoice_created"
	EventPaymentReceived EventType = "payment_received"
	EventPaymentFailed   EventType = "payment_failed"
)

// TrialAbuseRecord marks one granted trial for abuse tracking. One row
// is written per trial creation that is allowed to proceed.
type TrialAbuseRecord struct {
	GroupID        int64
	Fingerprint    string
	CreatorID      int64
	TrialStartedAt time.Time
	Flagged        bool
}

// StatusInfo is a read-only snapshot of a group's entitlement, used by
// the bot's status command surface.
type StatusInfo struct {
	Status         Status
	PostingAllowed bool
	AccessEndsAt   time.Time
	DaysLeft       int
	NextBilling    *time.Time
}
