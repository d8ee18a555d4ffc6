package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightbot/subgate/pkg/pg"
	"github.com/insightbot/subgate/svc/subscription"
)

// AbuseRepository implements subscription.AbuseStore.
type AbuseRepository struct {
	pool *pgxpool.Pool
}

// NewAbuseRepository creates the repository.
func NewAbuseRepository(pool *pgxpool.Pool) *AbuseRepository {
	return &AbuseRepository{pool: pool}
}

func (r *AbuseRepository) RecordTrial(ctx context.Context, record subscription.TrialAbuseRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO trial_abuse_tracking (group_id, group_title_hash, creator_user_id, trial_started_at, is_flagged)
		VALUES ($1, $2, $3, $4, $5)`,
		record.GroupID, record.Fingerprint, record.CreatorID, record.TrialStartedAt, record.Flagged)
	return err
}

func (r *AbuseRepository) LatestByFingerprint(ctx context.Context, fingerprint string) (*subscription.TrialAbuseRecord, error) {
	var rec subscription.TrialAbuseRecord
	err := r.pool.QueryRow(ctx, `
		SELECT group_id, group_title_hash, creator_user_id, trial_started_at, is_flagged
		FROM trial_abuse_tracking
		WHERE group_title_hash = $1
		ORDER BY trial_started_at DESC
		LIMIT 1`, fingerprint).
		Scan(&rec.GroupID, &rec.Fingerprint, &rec.CreatorID, &rec.TrialStartedAt, &rec.Flagged)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

func (r *AbuseRepository) CountByCreator(ctx context.Context, creatorID int64) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM trial_abuse_tracking WHERE creator_user_id = $1`, creatorID).
		Scan(&count)
	return count, err
}
