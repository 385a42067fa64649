package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/motorlane/ms-go-entitlements/app/entity"
	"github.com/motorlane/ms-go-entitlements/config"
)

type VisibilityResult struct {
	Visible      bool
	DelayHours   int32
	AvailableAt  time.Time
	Subscription *entity.UserSubscription
	Plan         *entity.Plan
}

// VisibilityService computes when a listing becomes visible to a viewer.
// Higher tiers see new listings immediately; the free tier waits up to a
// week. A viewer whose subscription is no longer active is served the free
// tier's delay.
type VisibilityService struct {
	subscriptionRepo subscriptionRepository
	planRepo         planRepository
	cfg              config.EntitlementConfig
	logger           logrus.FieldLogger
}

func NewVisibilityService(
	subscriptionRepo subscriptionRepository,
	planRepo planRepository,
	cfg config.EntitlementConfig,
) *VisibilityService {
	return &VisibilityService{
		subscriptionRepo: subscriptionRepo,
		planRepo:         planRepo,
		cfg:              cfg,
		logger:           logrus.WithField("module", "visibility-service"),
	}
}

func (s *VisibilityService) CheckVisibility(ctx context.Context, listingCreatedAt time.Time, viewerUserID string) (*VisibilityResult, error) {
	if strings.TrimSpace(viewerUserID) == "" {
		return nil, fmt.Errorf("%w: viewer user id is required", ErrInvalidRequest)
	}

	now := time.Now().UTC()

	sub, err := s.subscriptionRepo.FindByUserID(ctx, viewerUserID)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		sub = entity.NewFreeSubscription(viewerUserID, now)
	}

	plan, err := s.resolveViewerPlan(ctx, sub, now)
	if err != nil {
		return nil, err
	}

	delay := plan.ListingVisibilityDelayHours
	availableAt := listingCreatedAt.Add(time.Duration(delay) * time.Hour)

	return &VisibilityResult{
		Visible:      !now.Before(availableAt),
		DelayHours:   delay,
		AvailableAt:  availableAt,
		Subscription: sub,
		Plan:         plan,
	}, nil
}

func (s *VisibilityService) resolveViewerPlan(ctx context.Context, sub *entity.UserSubscription, now time.Time) (*entity.Plan, error) {
	// Expired or suspended viewers fall back to the lowest tier; an
	// expired-but-unmarked record counts as inactive here, the enforcer
	// persists the correction on its next read.
	if sub.Status != entity.SubscriptionStatusActive || sub.IsExpiredAt(now) {
		return entity.DefaultFreePlan(), nil
	}
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
