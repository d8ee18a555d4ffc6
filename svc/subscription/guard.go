package subscription

import (
	"context"
	"log/slog"
	"time"

	"github.com/insightbot/subgate/pkg/fingerprint"
)

// TrialAbuseGuard decides whether a trial request may proceed. It denies
// repeat claims for the same group identity within the cooldown window
// and caps the number of trials any single creator can start. On lookup
// failure it allows the trial: availability over strictness, the posting
// predicate is the enforcement point that fails closed.
type TrialAbuseGuard struct {
	store         AbuseStore
	cooldown      time.Duration
	maxPerCreator int
	now           func() time.Time
	log           *slog.Logger
}

// GuardOption configures a TrialAbuseGuard.
type GuardOption func(*TrialAbuseGuard)

// WithGuardClock overrides the time source, for tests.
func WithGuardClock(now func() time.Time) GuardOption {
	return func(g *TrialAbuseGuard) {
		if now != nil {
			g.now = now
		}
	}
}

// WithGuardLogger sets the logger.
func WithGuardLogger(log *slog.Logger) GuardOption {
	return func(g *TrialAbuseGuard) {
		if log != nil {
			g.log = log
		}
	}
}

// NewTrialAbuseGuard creates a guard with the given cooldown window and
// per-creator trial cap. Panics on a nil store to fail fast at startup.
func NewTrialAbuseGuard(store AbuseStore, cooldownDays, maxPerCreator int, opts ...GuardOption) *TrialAbuseGuard {
	if store == nil {
		panic("subscription: AbuseStore is required")
	}

	g := &TrialAbuseGuard{
		store:         store,
		cooldown:      time.Duration(cooldownDays) * 24 * time.Hour,
		maxPerCreator: maxPerCreator,
		now:           func() time.Time { return time.Now().UTC() },
		log:           slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Record persists the abuse tracking entry for a trial that was allowed
// to proceed.
func (g *TrialAbuseGuard) Record(ctx context.Context, record TrialAbuseRecord) error {
	return g.store.RecordTrial(ctx, record)
}

// Check reports whether a trial for the group may be created. The
// returned fingerprint is recorded with the trial when allowed.
func (g *TrialAbuseGuard) Check(ctx context.Context, groupID int64, groupTitle string, creatorID int64) (allowed bool, fp string) {
	fp = fingerprint.Group(groupID, groupTitle)

	prior, err := g.store.LatestByFingerprint(ctx, fp)
	if err != nil {
		g.log.WarnContext(ctx, "trial abuse lookup failed, allowing trial",
			slog.Int64("group_id", groupID),
			slog.String("error", err.Error()))
		return true, fp
	}
	if prior != nil && g.now().Sub(prior.TrialStartedAt) < g.cooldown {
		g.log.InfoContext(ctx, "trial denied: fingerprint within cooldown",
			slog.Int64("group_id", groupID),
			slog.String("fingerprint", fp))
		return false, fp
	}

	count, err := g.store.CountByCreator(ctx, creatorID)
	if err != nil {
		g.log.WarnContext(ctx, "creator trial count lookup failed, allowing trial",
			slog.Int64("creator_id", creatorID),
			slog.String("error", err.Error()))
		return true, fp
	}
	if count >= g.maxPerCreator {
		g.log.InfoContext(ctx, "trial denied: creator trial cap reached",
			slog.Int64("creator_id", creatorID),
			slog.Int("trials", count))
		return false, fp
	}

	return true, fp
}
