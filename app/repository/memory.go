package repository

import (
	"context"
	"sync"
	"time"

	"github.com/motorlane/ms-go-entitlements/app/entity"
)

// MemorySubscriptionStore implements the subscription repository contract
// in-process, with the same compare-and-swap semantics as the MySQL
// repository. It backs tests and local development without a database.
type MemorySubscriptionStore struct {
	mu     sync.Mutex
	nextID uint64
	byID   map[uint64]*entity.UserSubscription
	byUser map[string]uint64
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		nextID: 1,
		byID:   make(map[uint64]*entity.UserSubscription),
		byUser: make(map[string]uint64),
	}
}

func (s *MemorySubscriptionStore) Create(_ context.Context, subscription *entity.UserSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUser[subscription.UserID]; exists {
		return ErrSubscriptionAlreadyExists
	}

	subscription.ID = s.nextID
	s.nextID++
	s.byID[subscription.ID] = cloneSubscription(subscription)
	s.byUser[subscription.UserID] = subscription.ID
	return nil
}

func (s *MemorySubscriptionStore) Update(_ context.Context, subscription *entity.UserSubscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[subscription.ID]
	if !ok {
		return ErrSubscriptionNotFound
	}
	if stored.Version != subscription.Version {
		return ErrVersionConflict
	}

	subscription.Version++
	s.byID[subscription.ID] = cloneSubscription(subscription)
	return nil
}

func (s *MemorySubscriptionStore) FindByID(_ context.Context, id uint64) (*entity.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.byID[id]
	if !ok {
		return nil, nil
	}
	return cloneSubscription(stored), nil
}

func (s *MemorySubscriptionStore) FindByUserID(_ context.Context, userID string) (*entity.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byUser[userID]
	if !ok {
		return nil, nil
	}
	return cloneSubscription(s.byID[id]), nil
}

func (s *MemorySubscriptionStore) ListExpiredActive(_ context.Context, now time.Time) ([]*entity.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.UserSubscription, 0)
	for _, stored := range s.byID {
		if stored.Status == entity.SubscriptionStatusActive && stored.EndAt.Before(now) {
			items = append(items, cloneSubscription(stored))
		}
	}
	return items, nil
}

func (s *MemorySubscriptionStore) ListExpiringBetween(_ context.Context, from, to time.Time) ([]*entity.UserSubscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.UserSubscription, 0)
	for _, stored := range s.byID {
		if stored.Status != entity.SubscriptionStatusActive {
			continue
		}
		if !stored.EndAt.Before(from) && !stored.EndAt.After(to) {
			items = append(items, cloneSubscription(stored))
		}
	}
	return items, nil
}

func cloneSubscription(src *entity.UserSubscription) *entity.UserSubscription {
	cp := *src
	if src.CancelledAt != nil {
		t := *src.CancelledAt
		cp.CancelledAt = &t
	}
	return &cp
}

// MemoryPlanStore is the in-process counterpart of PlanRepository.
type MemoryPlanStore struct {
	mu    sync.Mutex
	plans map[uint64]*entity.Plan
}

func NewMemoryPlanStore(plans ...*entity.Plan) *MemoryPlanStore {
	s := &MemoryPlanStore{plans: make(map[uint64]*entity.Plan)}
	for _, plan := range plans {
		cp := *plan
		s.plans[plan.ID] = &cp
	}
	return s
}

func (s *MemoryPlanStore) FindByID(_ context.Context, id uint64) (*entity.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	plan, ok := s.plans[id]
	if !ok {
		return nil, nil
	}
	cp := *plan
	return &cp, nil
}

func (s *MemoryPlanStore) List(_ context.Context, activeOnly bool) ([]*entity.Plan, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.Plan, 0, len(s.plans))
	for _, plan := range s.plans {
		if activeOnly && !plan.IsActive {
			continue
		}
		cp := *plan
		items = append(items, &cp)
	}
	return items, nil
}
