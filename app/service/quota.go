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

type subscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.UserSubscription) error
	Update(ctx context.Context, subscription *entity.UserSubscription) error
	FindByID(ctx context.Context, id uint64) (*entity.UserSubscription, error)
	FindByUserID(ctx context.Context, userID string) (*entity.UserSubscription, error)
	ListExpiredActive(ctx context.Context, now time.Time) ([]*entity.UserSubscription, error)
	ListExpiringBetween(ctx context.Context, from, to time.Time) ([]*entity.UserSubscription, error)
}

type planRepository interface {
	FindByID(ctx context.Context, id uint64) (*entity.Plan, error)
	List(ctx context.Context, activeOnly bool) ([]*entity.Plan, error)
}

// CheckResult is the decision returned for every metered action. Denials are
// data, not errors: Allowed=false with a populated Message and Remaining.
type CheckResult struct {
	Allowed      bool
	Remaining    int32
	Unlimited    bool
	LimitReached bool
	Message      string
	Subscription *entity.UserSubscription
	Plan         *entity.Plan
}

// meterKind selects which counter an operation meters. Browse is the only
// periodic one; listing and job-post caps are cumulative for the life of the
// subscription and reset only on plan change.
type meterKind int

const (
	meterBrowse meterKind = iota
	meterListing
	meterJobPost
)

func (k meterKind) label() string {
	switch k {
	case meterBrowse:
		return "browse"
	case meterListing:
		return "listing"
	default:
		return "job post"
	}
}

func (k meterKind) periodic() bool {
	return k == meterBrowse
}

func (k meterKind) quota(plan *entity.Plan) entity.Quota {
	switch k {
	case meterBrowse:
		return plan.MaxBrowseCount
	case meterListing:
		return plan.MaxListingCount
	default:
		return plan.MaxJobPosts
	}
}

func (k meterKind) used(sub *entity.UserSubscription) int32 {
	switch k {
	case meterBrowse:
		return sub.BrowseCountUsed
	case meterListing:
		return sub.ListingCountUsed
	default:
		return sub.JobPostsUsed
	}
}

func (k meterKind) setUsed(sub *entity.UserSubscription, used int32) {
	switch k {
	case meterBrowse:
		sub.BrowseCountUsed = used
	case meterListing:
		sub.ListingCountUsed = used
	default:
		sub.JobPostsUsed = used
	}
}

type QuotaService struct {
	subscriptionRepo subscriptionRepository
	planRepo         planRepository
	notifier         notification.Trigger
	cfg              config.EntitlementConfig
	logger           logrus.FieldLogger
}

func NewQuotaService(
	subscriptionRepo subscriptionRepository,
	planRepo planRepository,
	notifier notification.Trigger,
	cfg config.EntitlementConfig,
) *QuotaService {
	return &QuotaService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		notifier:         notifier,
		cfg:              cfg,
		logger:           logrus.WithField("module", "quota-service"),
	}
}

func (s *QuotaService) CheckBrowseLimit(ctx context.Context, userID string) (*CheckResult, error) {
	return s.check(ctx, userID, meterBrowse)
}

func (s *QuotaService) ConsumeBrowse(ctx context.Context, userID string) (*CheckResult, error) {
	return s.consume(ctx, userID, meterBrowse)
}

func (s *QuotaService) CheckListingLimit(ctx context.Context, userID string) (*CheckResult, error) {
	return s.check(ctx, userID, meterListing)
}

func (s *QuotaService) ConsumeListing(ctx context.Context, userID string) (*CheckResult, error) {
	return s.consume(ctx, userID, meterListing)
}

func (s *QuotaService) CheckJobPostLimit(ctx context.Context, userID string) (*CheckResult, error) {
	return s.check(ctx, userID, meterJobPost)
}

func (s *QuotaService) ConsumeJobPost(ctx context.Context, userID string) (*CheckResult, error) {
	return s.consume(ctx, userID, meterJobPost)
}

func (s *QuotaService) ListPlans(ctx context.Context, activeOnly bool) ([]*entity.Plan, error) {
	return s.planRepo.List(ctx, activeOnly)
}

// check evaluates a limit without consuming it. Reads do not mutate state
// except for the two lazy corrections: an overdue expiry and a due monthly
// browse reset, both persisted through the version stamp so concurrent reads
// cannot double-apply them.
func (s *QuotaService) check(ctx context.Context, userID string, kind meterKind) (*CheckResult, error) {
	for attempt := 0; attempt <= s.cfg.MaxUpdateRetries; attempt++ {
		sub, plan, persisted, err := s.loadEntitlement(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		mutated := s.applyLazyExpiry(sub, now)

		if sub.Status != entity.SubscriptionStatusActive {
			if mutated && persisted {
				if conflict, err := s.persistUpdate(ctx, sub); conflict {
					continue
				} else if err != nil {
					return nil, err
				}
				s.emitExpired(sub, plan)
			}
			return deniedResult(sub, plan, statusMessage(sub.Status)), nil
		}

		if kind.periodic() && s.browseResetDue(sub, now) {
			s.applyBrowseReset(sub, now)
			mutated = true
		}

		if mutated && persisted {
			if conflict, err := s.persistUpdate(ctx, sub); conflict {
				continue
			} else if err != nil {
				return nil, err
			}
		}

		return decideResult(sub, plan, kind), nil
	}

	return nil, ErrConcurrencyConflict
}

// consume re-runs the check and increments the counter as one atomic unit:
// the increment is written under the same version stamp the check read, so a
// concurrent consumer forces a reload instead of breaching the cap.
func (s *QuotaService) consume(ctx context.Context, userID string, kind meterKind) (*CheckResult, error) {
	for attempt := 0; attempt <= s.cfg.MaxUpdateRetries; attempt++ {
		sub, plan, persisted, err := s.loadEntitlement(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := time.Now().UTC()
		mutated := s.applyLazyExpiry(sub, now)

		if sub.Status != entity.SubscriptionStatusActive {
			if mutated && persisted {
				if conflict, err := s.persistUpdate(ctx, sub); conflict {
					continue
				} else if err != nil {
					return nil, err
				}
				s.emitExpired(sub, plan)
			}
			return deniedResult(sub, plan, statusMessage(sub.Status)), nil
		}

		if kind.periodic() && s.browseResetDue(sub, now) {
			s.applyBrowseReset(sub, now)
			mutated = true
		}

		quota := kind.quota(plan)
		if quota.IsUnlimited() {
			// Short-circuit before any counter arithmetic.
			if mutated && persisted {
				if conflict, err := s.persistUpdate(ctx, sub); conflict {
					continue
				} else if err != nil {
					return nil, err
				}
			}
			return &CheckResult{Allowed: true, Unlimited: true, Subscription: sub, Plan: plan}, nil
		}

		used := kind.used(sub)
		if used >= quota.Limit() {
			if mutated && persisted {
				if conflict, err := s.persistUpdate(ctx, sub); conflict {
					continue
				} else if err != nil {
					return nil, err
				}
			}
			return deniedResult(sub, plan, limitMessage(kind, used, quota.Limit())), nil
		}

		kind.setUsed(sub, used+1)
		sub.UpdatedAt = now

		if persisted {
			if conflict, err := s.persistUpdate(ctx, sub); conflict {
				continue
			} else if err != nil {
				return nil, err
			}
		} else {
			// First metered action of a free-tier user: persist the
			// synthesized record so counting survives this call.
			if err := s.subscriptionRepo.Create(ctx, sub); err != nil {
				if err == repository.ErrSubscriptionAlreadyExists {
					continue
				}
				return nil, err
			}
		}

		s.emitThreshold(kind, sub, plan, quota)

		// The increment succeeded, so Allowed stays true even when it
		// consumed the last unit.
		remaining := quota.Remaining(kind.used(sub))
		return &CheckResult{
			Allowed:      true,
			Remaining:    remaining,
			LimitReached: remaining == 0,
			Subscription: sub,
			Plan:         plan,
		}, nil
	}

	return nil, ErrConcurrencyConflict
}

func (s *QuotaService) loadEntitlement(ctx context.Context, userID string) (*entity.UserSubscription, *entity.Plan, bool, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, nil, false, fmt.Errorf("%w: user id is required", ErrInvalidRequest)
	}

	sub, err := s.subscriptionRepo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, nil, false, err
	}

	persisted := sub != nil
	if sub == nil {
		sub = entity.NewFreeSubscription(userID, time.Now().UTC())
	}

	plan, err := s.resolvePlan(ctx, sub)
	if err != nil {
		return nil, nil, false, err
	}

	return sub, plan, persisted, nil
}

func (s *QuotaService) resolvePlan(ctx context.Context, sub *entity.UserSubscription) (*entity.Plan, error) {
	if sub.PlanID == entity.DefaultFreePlanID {
		return entity.DefaultFreePlan(), nil
	}

	plan, err := s.planRepo.FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		s.logger.WithFields(logrus.Fields{
			"user_id": sub.UserID,
			"plan_id": sub.PlanID,
		}).Warn("plan missing, falling back to free plan")
		return entity.DefaultFreePlan(), nil
	}
	return plan, nil
}

func (s *QuotaService) applyLazyExpiry(sub *entity.UserSubscription, now time.Time) bool {
	if sub.Status == entity.SubscriptionStatusActive && sub.IsExpiredAt(now) {
		sub.Status = entity.SubscriptionStatusExpired
		sub.UpdatedAt = now
		return true
	}
	return false
}

func (s *QuotaService) browseResetDue(sub *entity.UserSubscription, now time.Time) bool {
	return now.Sub(sub.LastBrowseResetAt) >= s.cfg.BrowseResetInterval
}

func (s *QuotaService) applyBrowseReset(sub *entity.UserSubscription, now time.Time) {
	sub.BrowseCountUsed = 0
	sub.LastBrowseResetAt = now
	sub.UpdatedAt = now
}

// persistUpdate reports a version conflict separately so callers can reload
// and retry instead of failing.
func (s *QuotaService) persistUpdate(ctx context.Context, sub *entity.UserSubscription) (conflict bool, err error) {
	err = s.subscriptionRepo.Update(ctx, sub)
	if err == repository.ErrVersionConflict {
		return true, nil
	}
	return false, err
}

func (s *QuotaService) emitThreshold(kind meterKind, sub *entity.UserSubscription, plan *entity.Plan, quota entity.Quota) {
	if !plan.NotificationsEnabled {
		return
	}

	used := kind.used(sub)
	limit := quota.Limit()
	if limit <= 0 {
		return
	}

	switch kind {
	case meterBrowse:
		if int(used)*100/int(limit) >= s.cfg.WarnThresholdPercent {
			s.notifier.Notify(context.Background(), notification.Event{
				UserID: sub.UserID,
				Type:   notification.EventBrowseLimitWarning,
				Payload: map[string]interface{}{
					"used":      used,
					"limit":     limit,
					"remaining": quota.Remaining(used),
				},
			})
		}
	case meterListing:
		if used >= limit {
			s.notifier.Notify(context.Background(), notification.Event{
				UserID: sub.UserID,
				Type:   notification.EventListingLimitReached,
				Payload: map[string]interface{}{
					"used":  used,
					"limit": limit,
				},
			})
		}
	}
}

func (s *QuotaService) emitExpired(sub *entity.UserSubscription, plan *entity.Plan) {
	if !plan.NotificationsEnabled {
		return
	}
	s.notifier.Notify(context.Background(), notification.Event{
		UserID: sub.UserID,
		Type:   notification.EventSubscriptionExpired,
		Payload: map[string]interface{}{
			"subscription_id": sub.ID,
			"plan_id":         sub.PlanID,
			"end_at":          sub.EndAt.UTC().Format(time.RFC3339),
		},
	})
}

func decideResult(sub *entity.UserSubscription, plan *entity.Plan, kind meterKind) *CheckResult {
	quota := kind.quota(plan)
	if quota.IsUnlimited() {
		return &CheckResult{Allowed: true, Unlimited: true, Subscription: sub, Plan: plan}
	}

	used := kind.used(sub)
	remaining := quota.Remaining(used)
	result := &CheckResult{
		Allowed:      remaining > 0,
		Remaining:    remaining,
		LimitReached: remaining == 0,
		Subscription: sub,
		Plan:         plan,
	}
	if !result.Allowed {
		result.Message = limitMessage(kind, used, quota.Limit())
	}
	return result
}

func deniedResult(sub *entity.UserSubscription, plan *entity.Plan, message string) *CheckResult {
	return &CheckResult{
		Allowed:      false,
		LimitReached: true,
		Message:      message,
		Subscription: sub,
		Plan:         plan,
	}
}

func statusMessage(status entity.SubscriptionStatus) string {
	switch status {
	case entity.SubscriptionStatusExpired:
		return "subscription has expired; renew to continue"
	case entity.SubscriptionStatusSuspended:
		return "subscription is suspended; contact support"
	default:
		return fmt.Sprintf("subscription is %s", status)
	}
}

func limitMessage(kind meterKind, used, limit int32) string {
	return fmt.Sprintf("%s limit reached (%d of %d used)", kind.label(), used, limit)
}
