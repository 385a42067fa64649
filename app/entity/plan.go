package entity

import "time"

// DefaultFreePlanID marks a subscription served from the built-in free plan
// rather than a catalog row.
const DefaultFreePlanID uint64 = 0

type Plan struct {
	ID                          uint64
	Code                        string
	Name                        string
	MaxBrowseCount              Quota
	MaxListingCount             Quota
	MaxJobPosts                 Quota
	ListingVisibilityDelayHours int32
	NotificationsEnabled        bool
	PriceCents                  int64
	Currency                    string
	BillingPeriodDays           int32
	IsActive                    bool
	CreatedAt                   time.Time
	UpdatedAt                   time.Time
}

// DefaultFreePlan is the fallback entitlement for users with no assigned
// subscription. It is never persisted; a fresh copy is returned so callers
// cannot mutate shared plan state.
func DefaultFreePlan() *Plan {
	return &Plan{
		ID:                          DefaultFreePlanID,
		Code:                        "free",
		Name:                        "Free",
		MaxBrowseCount:              BoundedQuota(50),
		MaxListingCount:             BoundedQuota(2),
		MaxJobPosts:                 BoundedQuota(1),
		ListingVisibilityDelayHours: 168,
		NotificationsEnabled:        false,
		PriceCents:                  0,
		Currency:                    "USD",
		BillingPeriodDays:           0,
		IsActive:                    true,
	}
}
