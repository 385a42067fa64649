package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motorlane/ms-go-entitlements/app/entity"
	"github.com/motorlane/ms-go-entitlements/app/notification"
	"github.com/motorlane/ms-go-entitlements/app/repository"
	"github.com/motorlane/ms-go-entitlements/config"
)

type AssignParams struct {
	UserID     string
	PlanID     uint64
	StartAt    time.Time
	EndAt      time.Time
	AssignedBy string
	Notes      string
}

// LifecycleService owns the subscription state machine: assignment,
// suspension, reactivation, extension, plan changes, cancellation and the
// expiry batches. Transition errors are returned to the admin caller
// explicitly; they are mistakes, not business states.
type LifecycleService struct {
	subscriptionRepo subscriptionRepository
	planRepo         planRepository
	notifier         notification.Trigger
	cfg              config.EntitlementConfig
	logger           logrus.FieldLogger
}

func NewLifecycleService(
	subscriptionRepo subscriptionRepository,
	planRepo planRepository,
	notifier notification.Trigger,
	cfg config.EntitlementConfig,
) *LifecycleService {
	return &LifecycleService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		notifier:         notifier,
		cfg:              cfg,
		logger:           logrus.WithField("module", "lifecycle-service"),
	}
}

// Assign creates the user's subscription record or replaces it in place; a
// user has exactly one authoritative record, never deleted. All counters
// restart with the new period.
func (s *LifecycleService) Assign(ctx context.Context, params AssignParams) (*entity.UserSubscription, error) {
	if strings.TrimSpace(params.UserID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	if params.EndAt.Before(params.StartAt) {
		return nil, ErrInvalidPeriod
	}

	plan, err := s.planRepo.FindByID(ctx, params.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	for attempt := 0; attempt <= s.cfg.MaxUpdateRetries; attempt++ {
		existing, err := s.subscriptionRepo.FindByUserID(ctx, params.UserID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		if existing == nil {
			sub := &entity.UserSubscription{
				UserID:            params.UserID,
				PlanID:            params.PlanID,
				StartAt:           params.StartAt,
				EndAt:             params.EndAt,
				Status:            entity.SubscriptionStatusActive,
				LastBrowseResetAt: params.StartAt,
				AssignedBy:        params.AssignedBy,
				Notes:             params.Notes,
				CreatedAt:         now,
				UpdatedAt:         now,
			}
			if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
				if err == repository.ErrSubscriptionAlreadyExists {
					continue
				}
				return nil, err
			}
			return sub, nil
		}

		existing.PlanID = params.PlanID
		existing.StartAt = params.StartAt
		existing.EndAt = params.EndAt
		existing.Status = entity.SubscriptionStatusActive
		existing.BrowseCountUsed = 0
		existing.LastBrowseResetAt = params.StartAt
		existing.ListingCountUsed = 0
		existing.JobPostsUsed = 0
		existing.AssignedBy = params.AssignedBy
		existing.Notes = params.Notes
		existing.CancelledAt = nil
		existing.UpdatedAt = now

		if err := s.subscriptionRepo.Update(ctx, existing); err != nil {
			if err == repository.ErrVersionConflict {
				continue
			}
			return nil, err
		}
		return existing, nil
	}

	return nil, ErrConcurrencyConflict
}

func (s *LifecycleService) Extend(ctx context.Context, subID uint64, additional time.Duration) (*entity.UserSubscription, error) {
	if additional <= 0 {
		return nil, fmt.Errorf("%w: extension must be positive", ErrInvalidRequest)
	}

	return s.mutate(ctx, subID, func(sub *entity.UserSubscription, now time.Time) error {
		if sub.IsCancelled() {
			return fmt.Errorf("%w: cannot extend a cancelled subscription", ErrInvalidTransition)
		}
		sub.EndAt = sub.EndAt.Add(additional)
		if sub.Status == entity.SubscriptionStatusExpired {
			sub.Status = entity.SubscriptionStatusActive
		}
		return nil
	})
}

func (s *LifecycleService) Suspend(ctx context.Context, subID uint64, reason string) (*entity.UserSubscription, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	return s.mutate(ctx, subID, func(sub *entity.UserSubscription, now time.Time) error {
		if sub.Status != entity.SubscriptionStatusActive {
			return fmt.Errorf("%w: can only suspend an active subscription", ErrInvalidTransition)
		}
		sub.Status = entity.SubscriptionStatusSuspended
		sub.Notes = appendNote(sub.Notes, "suspended: "+strings.TrimSpace(reason))
		return nil
	})
}

// Reactivate lifts a suspension; it does not move EndAt, so an overdue
// subscription will lazily expire on its next read.
func (s *LifecycleService) Reactivate(ctx context.Context, subID uint64) (*entity.UserSubscription, error) {
	return s.mutate(ctx, subID, func(sub *entity.UserSubscription, now time.Time) error {
		if sub.Status != entity.SubscriptionStatusSuspended {
			return fmt.Errorf("%w: can only reactivate a suspended subscription", ErrInvalidTransition)
		}
		sub.Status = entity.SubscriptionStatusActive
		return nil
	})
}

// ChangePlan swaps the plan reference; plan rows themselves are immutable.
// Listing and job-post counters are plan-scoped and restart, the browse
// counter follows its own monthly cycle and carries over.
func (s *LifecycleService) ChangePlan(ctx context.Context, subID uint64, newPlanID uint64) (*entity.UserSubscription, error) {
	plan, err := s.planRepo.FindByID(ctx, newPlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return nil, ErrPlanNotFound
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}

	return s.mutate(ctx, subID, func(sub *entity.UserSubscription, now time.Time) error {
		if sub.IsCancelled() {
			return fmt.Errorf("%w: cannot change plan of a cancelled subscription", ErrInvalidTransition)
		}
		sub.PlanID = newPlanID
		sub.ListingCountUsed = 0
		sub.JobPostsUsed = 0
		return nil
	})
}

func (s *LifecycleService) Cancel(ctx context.Context, subID uint64, reason string) (*entity.UserSubscription, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	return s.mutate(ctx, subID, func(sub *entity.UserSubscription, now time.Time) error {
		if sub.IsCancelled() {
			return fmt.Errorf("%w: subscription is already cancelled", ErrInvalidTransition)
		}
		sub.Status = entity.SubscriptionStatusExpired
		cancelledAt := now
		sub.CancelledAt = &cancelledAt
		sub.Notes = appendNote(sub.Notes, "cancelled: "+strings.TrimSpace(reason))
		return nil
	})
}

func (s *LifecycleService) ResetBrowseCount(ctx context.Context, subID uint64, reason string) (*entity.UserSubscription, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, ErrReasonRequired
	}

	return s.mutate(ctx, subID, func(sub *entity.UserSubscription, now time.Time) error {
		sub.BrowseCountUsed = 0
		sub.LastBrowseResetAt = now
		sub.Notes = appendNote(sub.Notes, "browse count reset: "+strings.TrimSpace(reason))
		return nil
	})
}

func (s *LifecycleService) GetSubscription(ctx context.Context, subID uint64) (*entity.UserSubscription, error) {
	sub, err := s.subscriptionRepo.FindByID(ctx, subID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

func (s *LifecycleService) GetSubscriptionByUserID(ctx context.Context, userID string) (*entity.UserSubscription, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}
	sub, err := s.subscriptionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return sub, nil
}

// RunExpirationBatch sweeps subscriptions whose period lapsed without any
// read having corrected them. Lazy read-time correction remains the
// authoritative mechanism; the batch covers users who never come back.
func (s *LifecycleService) RunExpirationBatch(ctx context.Context) error {
	now := time.Now().UTC()
	items, err := s.subscriptionRepo.ListExpiredActive(ctx, now)
	if err != nil {
		return err
	}

	for _, item := range items {
		item.Status = entity.SubscriptionStatusExpired
		item.UpdatedAt = now
		if err := s.subscriptionRepo.Update(ctx, item); err != nil {
			// A concurrent read already corrected it; nothing lost.
			if err == repository.ErrVersionConflict {
				continue
			}
			s.logger.WithError(err).WithField("subscription_id", item.ID).Error("expiration update failed")
			continue
		}
		s.emitEvent(ctx, item, notification.EventSubscriptionExpired, map[string]interface{}{
			"subscription_id": item.ID,
			"plan_id":         item.PlanID,
			"end_at":          item.EndAt.UTC().Format(time.RFC3339),
		})
	}

	return nil
}

// RunExpiryNoticeBatch emits subscription_expiring_soon for active
// subscriptions ending within the configured window.
func (s *LifecycleService) RunExpiryNoticeBatch(ctx context.Context) error {
	now := time.Now().UTC()
	to := now.Add(time.Duration(s.cfg.ExpiringSoonDays) * 24 * time.Hour)
	items, err := s.subscriptionRepo.ListExpiringBetween(ctx, now, to)
	if err != nil {
		return err
	}

	for _, item := range items {
		s.emitEvent(ctx, item, notification.EventSubscriptionExpiringSoon, map[string]interface{}{
			"subscription_id": item.ID,
			"plan_id":         item.PlanID,
			"end_at":          item.EndAt.UTC().Format(time.RFC3339),
			"days_remaining":  item.DaysRemaining(now),
		})
	}

	return nil
}

func (s *LifecycleService) mutate(ctx context.Context, subID uint64, fn func(sub *entity.UserSubscription, now time.Time) error) (*entity.UserSubscription, error) {
	for attempt := 0; attempt <= s.cfg.MaxUpdateRetries; attempt++ {
		sub, err := s.subscriptionRepo.FindByID(ctx, subID)
		if err != nil {
			return nil, err
		}
		if sub == nil {
			return nil, ErrSubscriptionNotFound
		}

		now := time.Now().UTC()
		// Correct a stale status before judging the transition.
		if sub.Status == entity.SubscriptionStatusActive && sub.IsExpiredAt(now) {
			sub.Status = entity.SubscriptionStatusExpired
		}

		if err := fn(sub, now); err != nil {
			return nil, err
		}
		sub.UpdatedAt = now

		if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
			if err == repository.ErrVersionConflict {
				continue
			}
			if err == repository.ErrSubscriptionNotFound {
				return nil, ErrSubscriptionNotFound
			}
			return nil, err
		}
		return sub, nil
	}

	return nil, ErrConcurrencyConflict
}

func (s *LifecycleService) emitEvent(ctx context.Context, sub *entity.UserSubscription, eventType notification.EventType, payload map[string]interface{}) {
	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil || plan == nil || !plan.NotificationsEnabled {
		return
	}
	s.notifier.Notify(ctx, notification.Event{
		UserID:  sub.UserID,
		Type:    eventType,
		Payload: payload,
	})
}

func appendNote(notes, entry string) string {
	if notes == "" {
		return entry
	}
	return notes + "\n" + entry
}
