// Package checker runs the daily subscription lifecycle sweep: trial
// warnings, trial-to-grace ageing, grace warnings, and expiry.
package checker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/insightbot/subgate/svc/subscription"
)

const day = 24 * time.Hour

// trialWarningDays are the reminder tiers before trial end.
var trialWarningDays = []int{7, 3, 1}

// Notifier receives the sweep's outbound notifications. Delivery is
// best-effort; state transitions never roll back on a failed send.
type Notifier interface {
	TrialWarning(ctx context.Context, groupID int64, daysLeft int) error
	TrialExpired(ctx context.Context, groupID int64, graceEnd time.Time) error
	GraceWarning(ctx context.Context, groupID int64) error
	SubscriptionExpired(ctx context.Context, groupID int64) error
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) TrialWarning(context.Context, int64, int) error       { return nil }
func (NopNotifier) TrialExpired(context.Context, int64, time.Time) error { return nil }
func (NopNotifier) GraceWarning(context.Context, int64) error            { return nil }
func (NopNotifier) SubscriptionExpired(context.Context, int64) error     { return nil }

// Checker ages trials into grace periods and grace periods into expiry.
// Note the deliberate asymmetry: only trials are swept into grace; an
// active subscription passing its end date is not aged here, it simply
// stops granting access through the posting predicate.
type Checker struct {
	store         subscription.Store
	events        subscription.EventStore
	notifier      Notifier
	graceDays     int
	checkHour     int
	errorCooldown time.Duration
	now           func() time.Time
	log           *slog.Logger
}

// Option configures a Checker.
type Option func(*Checker)

// WithNotifier sets the sweep notifier. Default discards.
func WithNotifier(n Notifier) Option {
	return func(c *Checker) {
		if n != nil {
			c.notifier = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(c *Checker) {
		if log != nil {
			c.log = log
		}
	}
}

// WithErrorCooldown sets how long a failed sweep waits before retrying.
func WithErrorCooldown(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.errorCooldown = d
		}
	}
}

// New creates the checker. checkHour is the local hour of day (0-23)
// the sweep fires at.
func New(store subscription.Store, events subscription.EventStore, graceDays, checkHour int, opts ...Option) *Checker {
	if store == nil {
		panic("checker: Store is required")
	}
	if events == nil {
		panic("checker: EventStore is required")
	}

	c := &Checker{
		store:         store,
		events:        events,
		notifier:      NopNotifier{},
		graceDays:     graceDays,
		checkHour:     checkHour,
		errorCooldown: time.Hour,
		now:           func() time.Time { return time.Now().UTC() },
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Run executes the sweep at the configured hour every day until the
// context is cancelled. A failed sweep is logged and retried after the
// error cooldown instead of crashing the loop.
func (c *Checker) Run(ctx context.Context) error {
	for {
		wait := c.nextRun(c.now()).Sub(c.now())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}

		for {
			err := c.Sweep(ctx)
			if err == nil {
				break
			}
			c.log.ErrorContext(ctx, "subscription sweep failed, retrying after cooldown",
				slog.Duration("cooldown", c.errorCooldown),
				slog.String("error", err.Error()))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.errorCooldown):
			}
		}
	}
}

// Sweep runs one full pass over trialing and grace subscriptions.
// Per-subscription failures are collected and joined so one broken row
// never blocks the rest of the sweep.
func (c *Checker) Sweep(ctx context.Context) error {
	var errs []error

	if err := c.sweepTrials(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := c.sweepGracePeriods(ctx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (c *Checker) sweepTrials(ctx context.Context) error {
	trials, err := c.store.ListSubscriptionsByStatus(ctx, subscription.StatusTrial)
	if err != nil {
		return fmt.Errorf("list trials: %w", err)
	}

	now := c.now()
	var errs []error
	for i := range trials {
		sub := trials[i]
		daysLeft := daysUntil(now, sub.TrialEnd)

		if daysLeft <= 0 {
			if err := c.expireTrial(ctx, &sub, now); err != nil {
				errs = append(errs, fmt.Errorf("expire trial for group %d: %w", sub.GroupID, err))
			}
			continue
		}

		for _, tier := range trialWarningDays {
			if daysLeft != tier {
				continue
			}
			if err := c.warnTrial(ctx, &sub, now, daysLeft); err != nil {
				errs = append(errs, fmt.Errorf("warn trial for group %d: %w", sub.GroupID, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Checker) expireTrial(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	graceEnd := now.Add(time.Duration(c.graceDays) * day)
	sub.Status = subscription.StatusGracePeriod
	sub.GracePeriodEnd = &graceEnd
	sub.UpdatedAt = now

	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := c.store.UpdateGroupStatus(ctx, sub.GroupID, subscription.StatusGracePeriod, true); err != nil {
		c.log.ErrorContext(ctx, "failed to mirror group status",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	c.appendEvent(ctx, sub.ID, subscription.EventTrialExpired, map[string]any{
		"group_id":         sub.GroupID,
		"grace_period_end": graceEnd,
	})

	if err := c.notifier.TrialExpired(ctx, sub.GroupID, graceEnd); err != nil {
		c.log.WarnContext(ctx, "trial expired notification failed",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	return nil
}

func (c *Checker) warnTrial(ctx context.Context, sub *subscription.Subscription, now time.Time, daysLeft int) error {
	sent, err := c.events.HasEventOn(ctx, sub.ID, subscription.EventTrialWarning, now)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}

	c.appendEvent(ctx, sub.ID, subscription.EventTrialWarning, map[string]any{
		"group_id":  sub.GroupID,
		"days_left": daysLeft,
	})

	if err := c.notifier.TrialWarning(ctx, sub.GroupID, daysLeft); err != nil {
		c.log.WarnContext(ctx, "trial warning notification failed",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	return nil
}

func (c *Checker) sweepGracePeriods(ctx context.Context) error {
	graced, err := c.store.ListSubscriptionsByStatus(ctx, subscription.StatusGracePeriod)
	if err != nil {
		return fmt.Errorf("list grace periods: %w", err)
	}

	now := c.now()
	var errs []error
	for i := range graced {
		sub := graced[i]
		if sub.GracePeriodEnd == nil {
			continue
		}
		daysLeft := daysUntil(now, *sub.GracePeriodEnd)

		if daysLeft <= 0 {
			if err := c.expireGrace(ctx, &sub, now); err != nil {
				errs = append(errs, fmt.Errorf("expire grace for group %d: %w", sub.GroupID, err))
			}
			continue
		}

		if daysLeft == 1 {
			if err := c.warnGrace(ctx, &sub, now); err != nil {
				errs = append(errs, fmt.Errorf("warn grace for group %d: %w", sub.GroupID, err))
			}
		}
	}

	return errors.Join(errs...)
}

func (c *Checker) expireGrace(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	sub.Status = subscription.StatusExpired
	sub.UpdatedAt = now

	if err := c.store.UpdateSubscription(ctx, sub); err != nil {
		return err
	}
	if err := c.store.UpdateGroupStatus(ctx, sub.GroupID, subscription.StatusExpired, false); err != nil {
		c.log.ErrorContext(ctx, "failed to deactivate group",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	c.appendEvent(ctx, sub.ID, subscription.EventExpired, map[string]any{
		"group_id": sub.GroupID,
	})

	if err := c.notifier.SubscriptionExpired(ctx, sub.GroupID); err != nil {
		c.log.WarnContext(ctx, "expiry notification failed",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	return nil
}

func (c *Checker) warnGrace(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	sent, err := c.events.HasEventOn(ctx, sub.ID, subscription.EventGraceWarning, now)
	if err != nil {
		return err
	}
	if sent {
		return nil
	}

	c.appendEvent(ctx, sub.ID, subscription.EventGraceWarning, map[string]any{
		"group_id": sub.GroupID,
	})

	if err := c.notifier.GraceWarning(ctx, sub.GroupID); err != nil {
		c.log.WarnContext(ctx, "grace warning notification failed",
			slog.Int64("group_id", sub.GroupID),
			slog.String("error", err.Error()))
	}

	return nil
}

func (c *Checker) appendEvent(ctx context.Context, subscriptionID uuid.UUID, eventType subscription.EventType, data map[string]any) {
	if err := c.events.Append(ctx, subscription.Event{
		ID:             uuid.New(),
		SubscriptionID: subscriptionID,
		Type:           eventType,
		Data:           data,
		CreatedAt:      c.now(),
	}); err != nil {
		c.log.ErrorContext(ctx, "failed to append sweep event",
			slog.String("event_type", string(eventType)),
			slog.String("error", err.Error()))
	}
}

// nextRun returns the next occurrence of the configured check hour.
func (c *Checker) nextRun(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), c.checkHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(day)
	}
	return next
}

// daysUntil counts whole calendar days from now's date to deadline's date.
func daysUntil(now, deadline time.Time) int {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(deadline.Year(), deadline.Month(), deadline.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a) / day)
}
