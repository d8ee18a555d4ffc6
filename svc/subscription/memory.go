package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[int64]Group
	subs   map[uuid.UUID]Subscription
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: make(map[int64]Group),
		subs:   make(map[uuid.UUID]Subscription),
	}
}

func (s *MemoryStore) UpsertGroup(_ context.Context, group *Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.groups[group.ID]; ok {
		existing.Title = group.Title
		existing.UpdatedAt = group.UpdatedAt
		s.groups[group.ID] = existing
		return nil
	}
	s.groups[group.ID] = *group
	return nil
}

func (s *MemoryStore) GetGroup(_ context.Context, groupID int64) (*Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	group, ok := s.groups[groupID]
	if !ok {
		return nil, ErrGroupNotFound
	}
	return &group, nil
}

func (s *MemoryStore) UpdateGroupStatus(_ context.Context, groupID int64, status Status, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	group, ok := s.groups[groupID]
	if !ok {
		return ErrGroupNotFound
	}
	group.Status = status
	group.Active = active
	group.UpdatedAt = time.Now().UTC()
	s.groups[groupID] = group
	return nil
}

func (s *MemoryStore) CreateSubscription(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.subs {
		if existing.GroupID == sub.GroupID {
			return ErrAlreadyExists
		}
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) GetSubscription(_ context.Context, id uuid.UUID) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sub, ok := s.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (s *MemoryStore) GetSubscriptionByGroup(_ context.Context, groupID int64) (*Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, sub := range s.subs {
		if sub.GroupID == groupID {
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) UpdateSubscription(_ context.Context, sub *Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ErrNotFound
	}
	s.subs[sub.ID] = *sub
	return nil
}

func (s *MemoryStore) ListSubscriptionsByStatus(_ context.Context, status Status) ([]Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Subscription
	for _, sub := range s.subs {
		if sub.Status == status {
			out = append(out, sub)
		}
	}
	return out, nil
}

// MemoryEventStore is an in-memory append-only event log.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (s *MemoryEventStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemoryEventStore) ListBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Event
	for _, e := range s.events {
		if e.SubscriptionID == subscriptionID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryEventStore) HasEventOn(_ context.Context, subscriptionID uuid.UUID, eventType EventType, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	y, m, d := day.Date()
	for _, e := range s.events {
		if e.SubscriptionID != subscriptionID || e.Type != eventType {
			continue
		}
		ey, em, ed := e.CreatedAt.Date()
		if ey == y && em == m && ed == d {
			return true, nil
		}
	}
	return false, nil
}

// MemoryAbuseStore is an in-memory AbuseStore.
type MemoryAbuseStore struct {
	mu      sync.RWMutex
	records []TrialAbuseRecord
}

func NewMemoryAbuseStore() *MemoryAbuseStore {
	return &MemoryAbuseStore{}
}

func (s *MemoryAbuseStore) RecordTrial(_ context.Context, record TrialAbuseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemoryAbuseStore) LatestByFingerprint(_ context.Context, fp string) (*TrialAbuseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *TrialAbuseRecord
	for i := range s.records {
		r := s.records[i]
		if r.Fingerprint != fp {
			continue
		}
		if latest == nil || r.TrialStartedAt.After(latest.TrialStartedAt) {
			latest = &r
		}
	}
	return latest, nil
}

func (s *MemoryAbuseStore) CountByCreator(_ context.Context, creatorID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, r := range s.records {
		if r.CreatorID == creatorID {
			count++
		}
	}
	return count, nil
}
