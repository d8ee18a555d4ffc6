package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store persists groups and subscriptions. Implementations must return
// ErrNotFound / ErrGroupNotFound for missing rows and ErrAlreadyExists
// for duplicate inserts.
type Store interface {
	UpsertGroup(ctx context.Context, group *Group) error
	GetGroup(ctx context.Context, groupID int64) (*Group, error)
	UpdateGroupStatus(ctx context.Context, groupID int64, status Status, active bool) error

	CreateSubscription(ctx context.Context, sub *Subscription) error
	GetSubscription(ctx context.Context, id uuid.UUID) (*Subscription, error)
	GetSubscriptionByGroup(ctx context.Context, groupID int64) (*Subscription, error)
	UpdateSubscription(ctx context.Context, sub *Subscription) error
	ListSubscriptionsByStatus(ctx context.Context, status Status) ([]Subscription, error)
}

// EventStore is the append-only audit log.
type EventStore interface {
	Append(ctx context.Context, event Event) error
	ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]Event, error)
	// HasEventOn reports whether an event of the given type was already
	// recorded for the subscription on the given calendar day. Used to
	// dedupe daily warning notifications.
	HasEventOn(ctx context.Context, subscriptionID uuid.UUID, eventType EventType, day time.Time) (bool, error)
}

// AbuseStore persists trial abuse tracking records.
type AbuseStore interface {
	RecordTrial(ctx context.Context, record TrialAbuseRecord) error
	LatestByFingerprint(ctx context.Context, fingerprint string) (*TrialAbuseRecord, error)
	CountByCreator(ctx context.Context, creatorID int64) (int, error)
}
