// Package notify renders lifecycle notifications and delivers them to
// groups through the rate-limited outbound dispatcher.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/insightbot/subgate/pkg/dispatch"
	"github.com/insightbot/subgate/pkg/ratelimit"
)

// Messenger is the raw send primitive to the messaging platform.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

// Service renders templated lifecycle notifications and pushes them
// through pkg/dispatch, so every outbound message is rate limited,
// bounded in parallelism, and retried with backoff.
type Service struct {
	dispatcher *dispatch.Dispatcher
	log        *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// New creates the notification service on top of a messenger and a
// shared outbound rate limiter.
func New(messenger Messenger, limiter *ratelimit.Limiter, opts ...Option) (*Service, error) {
	if messenger == nil {
		return nil, dispatch.ErrSendFuncRequired
	}

	dispatcher, err := dispatch.New(messenger.SendMessage, limiter)
	if err != nil {
		return nil, err
	}

	s := &Service{
		dispatcher: dispatcher,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// NewWithDispatcher wires a preconfigured dispatcher, for callers that
// tune concurrency or retry policy.
func NewWithDispatcher(dispatcher *dispatch.Dispatcher, opts ...Option) *Service {
	if dispatcher == nil {
		panic("notify: Dispatcher is required")
	}

	s := &Service{
		dispatcher: dispatcher,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

// TrialStarted announces a fresh trial to the group.
func (s *Service) TrialStarted(ctx context.Context, groupID int64, trialEnd time.Time) error {
	return s.send(ctx, groupID, fmt.Sprintf(
		"🎉 Welcome! Your free trial is active until %s. Enjoy full access while it lasts.",
		trialEnd.Format("January 2, 2006")))
}

// TrialWarning warns that the trial ends in the given number of days.
func (s *Service) TrialWarning(ctx context.Context, groupID int64, daysLeft int) error {
	plural := "days"
	if daysLeft == 1 {
		plural = "day"
	}
	return s.send(ctx, groupID, fmt.Sprintf(
		"⏳ Your free trial ends in %d %s. Subscribe now to keep receiving updates without interruption.",
		daysLeft, plural))
}

// TrialExpired announces the grace period that follows the trial.
func (s *Service) TrialExpired(ctx context.Context, groupID int64, graceEnd time.Time) error {
	return s.send(ctx, groupID, fmt.Sprintf(
		"⚠️ Your free trial has ended. You have a grace period until %s to subscribe before access is suspended.",
		graceEnd.Format("January 2, 2006")))
}

// GraceWarning warns that the grace period ends tomorrow.
func (s *Service) GraceWarning(ctx context.Context, groupID int64) error {
	return s.send(ctx, groupID,
		"🚨 Last chance! Your grace period ends tomorrow. Subscribe today to avoid losing access.")
}

// SubscriptionExpired announces the loss of access.
func (s *Service) SubscriptionExpired(ctx context.Context, groupID int64) error {
	return s.send(ctx, groupID,
		"❌ Your subscription has expired and updates are paused. Subscribe anytime to restore access.")
}

// SubscriptionActivated confirms a successful payment.
func (s *Service) SubscriptionActivated(ctx context.Context, groupID int64, subscriptionEnd time.Time) error {
	return s.send(ctx, groupID, fmt.Sprintf(
		"✅ Payment received, thank you! Your subscription is active until %s.",
		subscriptionEnd.Format("January 2, 2006")))
}

// Broadcast fans one message out to many groups with an independent
// result per group.
func (s *Service) Broadcast(ctx context.Context, groupIDs []int64, message string) map[int64]error {
	return s.dispatcher.Broadcast(ctx, groupIDs, message)
}

func (s *Service) send(ctx context.Context, groupID int64, text string) error {
	if err := s.dispatcher.Send(ctx, groupID, text); err != nil {
		s.log.WarnContext(ctx, "notification delivery failed",
			slog.Int64("group_id", groupID),
			slog.String("error", err.Error()))
		return err
	}
	return nil
}
