package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/insightbot/subgate/svc/subscription"
)

// EventRepository implements subscription.EventStore. Events are
// append-only; there is no update or delete path.
type EventRepository struct {
	pool *pgxpool.Pool
}

// NewEventRepository creates the repository.
func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

func (r *EventRepository) Append(ctx context.Context, event subscription.Event) error {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO subscription_events (event_id, subscription_id, event_type, event_data, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		event.ID, event.SubscriptionID, event.Type, data, event.CreatedAt)
	return err
}

func (r *EventRepository) ListBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]subscription.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT event_id, subscription_id, event_type, event_data, created_at
		FROM subscription_events
		WHERE subscription_id = $1
		ORDER BY created_at`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []subscription.Event
	for rows.Next() {
		var e subscription.Event
		var data []byte
		if err := rows.Scan(&e.ID, &e.SubscriptionID, &e.Type, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &e.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EventRepository) HasEventOn(ctx context.Context, subscriptionID uuid.UUID, eventType subscription.EventType, day time.Time) (bool, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM subscription_events
			WHERE subscription_id = $1
			  AND event_type = $2
			  AND created_at >= $3
			  AND created_at < $4)`,
		subscriptionID, eventType, dayStart, dayStart.Add(24*time.Hour)).Scan(&exists)
	return exists, err
}
