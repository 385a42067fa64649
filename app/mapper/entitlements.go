package mapper

import (
	"time"

	"github.com/motorlane/ms-go-entitlements/app/dto"
	"github.com/motorlane/ms-go-entitlements/app/entity"
	"github.com/motorlane/ms-go-entitlements/app/service"
)

func PlanToResponse(item *entity.Plan) dto.PlanResponse {
	return dto.PlanResponse{
		ID:                          item.ID,
		Code:                        item.Code,
		Name:                        item.Name,
		MaxBrowseCount:              quotaToLimit(item.MaxBrowseCount),
		MaxListingCount:             quotaToLimit(item.MaxListingCount),
		MaxJobPosts:                 quotaToLimit(item.MaxJobPosts),
		ListingVisibilityDelayHours: item.ListingVisibilityDelayHours,
		NotificationsEnabled:        item.NotificationsEnabled,
		PriceCents:                  item.PriceCents,
		Currency:                    item.Currency,
		BillingPeriodDays:           item.BillingPeriodDays,
		IsActive:                    item.IsActive,
	}
}

func PlansToResponse(items []*entity.Plan) []dto.PlanResponse {
	result := make([]dto.PlanResponse, 0, len(items))
	for _, item := range items {
		result = append(result, PlanToResponse(item))
	}
	return result
}

func SubscriptionToResponse(item *entity.UserSubscription, expiringSoonDays int) *dto.SubscriptionResponse {
	if item == nil {
		return nil
	}

	now := time.Now().UTC()
	return &dto.SubscriptionResponse{
		ID:                item.ID,
		UserID:            item.UserID,
		PlanID:            item.PlanID,
		Status:            string(item.Status),
		StartAt:           item.StartAt.UTC().Format(time.RFC3339),
		EndAt:             item.EndAt.UTC().Format(time.RFC3339),
		BrowseCountUsed:   item.BrowseCountUsed,
		LastBrowseResetAt: item.LastBrowseResetAt.UTC().Format(time.RFC3339),
		ListingCountUsed:  item.ListingCountUsed,
		JobPostsUsed:      item.JobPostsUsed,
		AssignedBy:        item.AssignedBy,
		Notes:             item.Notes,
		CancelledAt:       formatOptionalTime(item.CancelledAt),
		DaysRemaining:     item.DaysRemaining(now),
		ExpiringSoon:      item.IsExpiringSoon(now, expiringSoonDays),
		CreatedAt:         item.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         item.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func DecisionToResponse(result *service.CheckResult, expiringSoonDays int) *dto.DecisionResponse {
	return &dto.DecisionResponse{
		Allowed:      result.Allowed,
		Remaining:    result.Remaining,
		Unlimited:    result.Unlimited,
		LimitReached: result.LimitReached,
		Message:      result.Message,
		Subscription: SubscriptionToResponse(result.Subscription, expiringSoonDays),
	}
}

func VisibilityToResponse(result *service.VisibilityResult) *dto.VisibilityResponse {
	return &dto.VisibilityResponse{
		Visible:     result.Visible,
		DelayHours:  result.DelayHours,
		AvailableAt: result.AvailableAt.UTC().Format(time.RFC3339),
		PlanCode:    result.Plan.Code,
	}
}

func quotaToLimit(q entity.Quota) *int32 {
	if q.IsUnlimited() {
		return nil
	}
	limit := q.Limit()
	return &limit
}

func formatOptionalTime(v *time.Time) *string {
	if v == nil {
		return nil
	}
	s := v.UTC().Format(time.RFC3339)
	return &s
}
