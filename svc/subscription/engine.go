package subscription

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const (
	daysPerMonth    = 30
	billingReminder = 7 * 24 * time.Hour
	day             = 24 * time.Hour
)

// Notifier receives lifecycle notifications for a group. Delivery is
// best-effort: the engine logs failures and continues, a missed message
// must never roll back a state transition.
type Notifier interface {
	TrialStarted(ctx context.Context, groupID int64, trialEnd time.Time) error
	SubscriptionActivated(ctx context.Context, groupID int64, subscriptionEnd time.Time) error
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) TrialStarted(context.Context, int64, time.Time) error          { return nil }
func (NopNotifier) SubscriptionActivated(context.Context, int64, time.Time) error { return nil }

// Engine owns the subscription state machine: trial, grace period and
// expiry ageing, activation on confirmed payment, and the posting
// permission predicate.
type Engine struct {
	store     Store
	events    EventStore
	guard     *TrialAbuseGuard
	notifier  Notifier
	trialDays int
	now       func() time.Time
	log       *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithNotifier sets the lifecycle notifier. Default discards.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) {
		if n != nil {
			e.notifier = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// NewEngine creates the subscription engine. Panics on nil dependencies
// to fail fast during initialization.
func NewEngine(store Store, events EventStore, guard *TrialAbuseGuard, trialDays int, opts ...EngineOption) *Engine {
	if store == nil {
		panic("subscription: Store is required")
	}
	if events == nil {
		panic("subscription: EventStore is required")
	}
	if guard == nil {
		panic("subscription: TrialAbuseGuard is required")
	}

	e := &Engine{
		store:     store,
		events:    events,
		guard:     guard,
		notifier:  NopNotifier{},
		trialDays: trialDays,
		now:       func() time.Time { return time.Now().UTC() },
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	return e
}

// CreateTrial registers the group and opens its trial. Idempotent: when
// a subscription already exists for the group it is returned unchanged.
// Returns ErrTrialDenied when the abuse guard rejects the request; no
// record is created in that case.
func (e *Engine) CreateTrial(ctx context.Context, groupID int64, groupTitle string, creatorID int64) (*Subscription, error) {
	now := e.now()

	if err := e.store.UpsertGroup(ctx, &Group{
		ID:        groupID,
		Title:     groupTitle,
		CreatorID: creatorID,
		Status:    StatusTrial,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		return nil, err
	}

	existing, err := e.store.GetSubscriptionByGroup(ctx, groupID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	allowed, fp := e.guard.Check(ctx, groupID, groupTitle, creatorID)
	if !allowed {
		return nil, ErrTrialDenied
	}

	sub := &Subscription{
		ID:         uuid.New(),
		GroupID:    groupID,
		Status:     StatusTrial,
		TrialStart: now,
		TrialEnd:   now.Add(time.Duration(e.trialDays) * day),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			// Lost a race with a concurrent registration for the same group.
			return e.store.GetSubscriptionByGroup(ctx, groupID)
		}
		return nil, err
	}

	if err := e.guard.Record(ctx, TrialAbuseRecord{
		GroupID:        groupID,
		Fingerprint:    fp,
		CreatorID:      creatorID,
		TrialStartedAt: now,
	}); err != nil {
		e.log.ErrorContext(ctx, "failed to record trial abuse entry",
			slog.Int64("group_id", groupID),
			slog.String("error", err.Error()))
	}

	e.appendEvent(ctx, sub.ID, EventTrialStarted, map[string]any{
		"group_id":  groupID,
		"trial_end": sub.TrialEnd,
	})

	if err := e.notifier.TrialStarted(ctx, groupID, sub.TrialEnd); err != nil {
		e.log.WarnContext(ctx, "trial started notification failed",
			slog.Int64("group_id", groupID),
			slog.String("error", err.Error()))
	}

	return sub, nil
}

// IsPostingAllowed reports whether the group may receive output right
// now. Fails closed: no subscription, expired state, or any store error
// all deny posting.
func (e *Engine) IsPostingAllowed(ctx context.Context, groupID int64) bool {
	sub, err := e.store.GetSubscriptionByGroup(ctx, groupID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.log.ErrorContext(ctx, "posting permission lookup failed, denying",
				slog.Int64("group_id", groupID),
				slog.String("error", err.Error()))
		}
		return false
	}
	return sub.PostingAllowedAt(e.now())
}

// Activate moves the subscription to active after a confirmed payment.
// The paid window starts at trial end for trialing subscriptions and at
// max(current end, now) otherwise, so renewing early never loses paid
// days and renewing late never backdates.
func (e *Engine) Activate(ctx context.Context, subscriptionID, paymentID uuid.UUID, months int) error {
	if months <= 0 {
		return ErrInvalidMonths
	}

	sub, err := e.store.GetSubscription(ctx, subscriptionID)
	if err != nil {
		return err
	}

	now := e.now()
	var start time.Time
	if sub.Status == StatusTrial {
		start = sub.TrialEnd
	} else if sub.SubscriptionEnd != nil && sub.SubscriptionEnd.After(now) {
		start = *sub.SubscriptionEnd
	} else {
		start = now
	}

	end := start.Add(time.Duration(daysPerMonth*months) * day)
	nextBilling := end.Add(-billingReminder)

	sub.Status = StatusActive
	sub.SubscriptionStart = &start
	sub.SubscriptionEnd = &end
	sub.NextBilling = &nextBilling
	sub.UpdatedAt = now

	if err := e.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := e.store.UpdateGroupStatus(ctx, sub.GroupID, StatusActive, true); err != nil {
		e.log.ErrorContext(ctx, "failed to mirror group status",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	e.appendEvent(ctx, sub.ID, EventActivated, map[string]any{
		"payment_id":       paymentID.String(),
		"months":           months,
		"subscription_end": end,
	})

	if err := e.notifier.SubscriptionActivated(ctx, sub.GroupID, end); err != nil {
		e.log.WarnContext(ctx, "activation notification failed",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	return nil
}

// Status returns a read-only entitlement snapshot for the group.
func (e *Engine) Status(ctx context.Context, groupID int64) (*StatusInfo, error) {
	sub, err := e.store.GetSubscriptionByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	now := e.now()
	endsAt := sub.AccessEndsAt()

	daysLeft := 0
	if !endsAt.IsZero() && endsAt.After(now) {
		daysLeft = int(endsAt.Sub(now).Hours() / 24)
	}

	return &StatusInfo{
		Status:         sub.Status,
		PostingAllowed: sub.PostingAllowedAt(now),
		AccessEndsAt:   endsAt,
		DaysLeft:       daysLeft,
		NextBilling:    sub.NextBilling,
	}, nil
}

func (e *Engine) appendEvent(ctx context.Context, subscriptionID uuid.UUID, eventType EventType, data map[string]any) {
	if err := e.events.Append(ctx, Event{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Type:           eventType,
		Data:           data,
		CreatedAt:      e.now(),
	}); err != nil {
		e.log.ErrorContext(ctx, "failed to append subscription event",
			slog.String("subscription_id", subscriptionID.String()),
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}
