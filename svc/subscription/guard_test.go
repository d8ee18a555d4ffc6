package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/insightbot/subgate/pkg/fingerprint"
	"github.com/insightbot/subgate/svc/subscription"
)

type failingAbuseStore struct{}

func (failingAbuseStore) RecordTrial(context.Context, subscription.TrialAbuseRecord) error {
	return errors.New("store down")
}

func (failingAbuseStore) LatestByFingerprint(context.Context, string) (*subscription.TrialAbuseRecord, error) {
	return nil, errors.New("store down")
}

func (failingAbuseStore) CountByCreator(context.Context, int64) (int, error) {
	return 0, errors.New("store down")
}

func TestTrialAbuseGuard_AllowsFreshGroup(t *testing.T) {
	t.Parallel()

	guard := subscription.NewTrialAbuseGuard(subscription.NewMemoryAbuseStore(), 30, 3,
		subscription.WithGuardLogger(quietLogger()))

	allowed, fp := guard.Check(context.Background(), -500, "Fresh Group", 1)
	assert.True(t, allowed)
	assert.Equal(t, fingerprint.Group(-500, "Fresh Group"), fp)
}

func TestTrialAbuseGuard_DeniesWithinCooldown(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryAbuseStore()
	guard := subscription.NewTrialAbuseGuard(store, 30, 3,
		subscription.WithGuardClock(func() time.Time { return now }),
		subscription.WithGuardLogger(quietLogger()))

	ctx := context.Background()
	fp := fingerprint.Group(-500, "Recycled")
	require.NoError(t, store.RecordTrial(ctx, subscription.TrialAbuseRecord{
		GroupID:        -500,
		Fingerprint:    fp,
		CreatorID:      1,
		TrialStartedAt: now.Add(-10 * 24 * time.Hour),
	}))

	allowed, _ := guard.Check(ctx, -500, "Recycled", 2)
	assert.False(t, allowed, "same fingerprint within cooldown must be denied")

	// Once the cooldown has fully elapsed the identity may trial again.
	now = now.Add(25 * 24 * time.Hour)
	allowed, _ = guard.Check(ctx, -500, "Recycled", 2)
	assert.True(t, allowed)
}

func TestTrialAbuseGuard_CreatorCap(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	store := subscription.NewMemoryAbuseStore()
	guard := subscription.NewTrialAbuseGuard(store, 30, 3,
		subscription.WithGuardClock(func() time.Time { return now }),
		subscription.WithGuardLogger(quietLogger()))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		groupID := int64(-600 - i)
		allowed, fp := guard.Check(ctx, groupID, "Group", 42)
		require.True(t, allowed)
		require.NoError(t, guard.Record(ctx, subscription.TrialAbuseRecord{
			GroupID:        groupID,
			Fingerprint:    fp,
			CreatorID:      42,
			TrialStartedAt: now,
		}))
	}

	allowed, _ := guard.Check(ctx, -700, "Fourth Group", 42)
	assert.False(t, allowed, "creator cap must deny the fourth trial")

	// Another creator is unaffected.
	allowed, _ = guard.Check(ctx, -700, "Fourth Group", 43)
	assert.True(t, allowed)
}

func TestTrialAbuseGuard_FailsOpen(t *testing.T) {
	t.Parallel()

	guard := subscription.NewTrialAbuseGuard(failingAbuseStore{}, 30, 3,
		subscription.WithGuardLogger(quietLogger()))

	allowed, _ := guard.Check(context.Background(), -500, "Group", 1)
	assert.True(t, allowed, "lookup failure must allow the trial")
}
