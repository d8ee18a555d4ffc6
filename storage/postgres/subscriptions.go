// Package postgres implements the service store interfaces on pgx.
package postgres

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightbot/subgate/pkg/pg"
	"github.com/insightbot/subgate/svc/subscription"
)

// SubscriptionRepository implements subscription.Store.
type SubscriptionRepository struct {
	pool *pgxpool.Pool
}

// NewSubscriptionRepository creates the repository.
func NewSubscriptionRepository(pool *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{pool: pool}
}

func (r *SubscriptionRepository) UpsertGroup(ctx context.Context, group *subscription.Group) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO groups (group_id, title, creator_id, subscription_status, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (group_id) DO UPDATE SET
			title = EXCLUDED.title,
			updated_at = EXCLUDED.updated_at`,
		group.ID, group.Title, group.CreatorID, group.Status, group.Active, group.CreatedAt, group.UpdatedAt)
	return err
}

func (r *SubscriptionRepository) GetGroup(ctx context.Context, groupID int64) (*subscription.Group, error) {
	var g subscription.Group
	err := r.pool.QueryRow(ctx, `
		SELECT group_id, title, creator_id, subscription_status, is_active, created_at, updated_at
		FROM groups WHERE group_id = $1`, groupID).
		Scan(&g.ID, &g.Title, &g.CreatorID, &g.Status, &g.Active, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrGroupNotFound
		}
		return nil, err
	}
	return &g, nil
}

func (r *SubscriptionRepository) UpdateGroupStatus(ctx context.Context, groupID int64, status subscription.Status, active bool) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE groups SET subscription_status = $2, is_active = $3, updated_at = now()
		WHERE group_id = $1`, groupID, status, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrGroupNotFound
	}
	return nil
}

func (r *SubscriptionRepository) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			subscription_id, group_id, subscription_status,
			trial_start_date, trial_end_date,
			subscription_start_date, subscription_end_date,
			next_billing_date, grace_period_end,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.GroupID, sub.Status,
		sub.TrialStart, sub.TrialEnd,
		sub.SubscriptionStart, sub.SubscriptionEnd,
		sub.NextBilling, sub.GracePeriodEnd,
		sub.CreatedAt, sub.UpdatedAt)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return subscription.ErrAlreadyExists
		}
		return err
	}
	return nil
}

const subscriptionColumns = `
	subscription_id, group_id, subscription_status,
	trial_start_date, trial_end_date,
	subscription_start_date, subscription_end_date,
	next_billing_date, grace_period_end,
	created_at, updated_at`

func scanSubscription(row interface{ Scan(...any) error }) (*subscription.Subscription, error) {
	var s subscription.Subscription
	err := row.Scan(
		&s.ID, &s.GroupID, &s.Status,
		&s.TrialStart, &s.TrialEnd,
		&s.SubscriptionStart, &s.SubscriptionEnd,
		&s.NextBilling, &s.GracePeriodEnd,
		&s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *SubscriptionRepository) GetSubscription(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE subscription_id = $1`, id))
}

func (r *SubscriptionRepository) GetSubscriptionByGroup(ctx context.Context, groupID int64) (*subscription.Subscription, error) {
	return scanSubscription(r.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE group_id = $1`, groupID))
}

func (r *SubscriptionRepository) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE subscriptions SET
			subscription_status = $2,
			trial_start_date = $3, trial_end_date = $4,
			subscription_start_date = $5, subscription_end_date = $6,
			next_billing_date = $7, grace_period_end = $8,
			updated_at = $9
		WHERE subscription_id = $1`,
		sub.ID, sub.Status,
		sub.TrialStart, sub.TrialEnd,
		sub.SubscriptionStart, sub.SubscriptionEnd,
		sub.NextBilling, sub.GracePeriodEnd,
		sub.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrNotFound
	}
	return nil
}

func (r *SubscriptionRepository) ListSubscriptionsByStatus(ctx context.Context, status subscription.Status) ([]subscription.Subscription, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE subscription_status = $1`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []subscription.Subscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}
