package entity

import (
	"math"
	"time"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusSuspended SubscriptionStatus = "suspended"
)

// freeSubscriptionYears sizes the open-ended period of a synthesized free
// subscription; the free tier has no billing period and never expires.
const freeSubscriptionYears = 100

// UserSubscription is the single authoritative usage record per user. Records
// are never deleted; terminal states are recorded in Status and CancelledAt.
type UserSubscription struct {
	ID                uint64
	UserID            string
	PlanID            uint64
	StartAt           time.Time
	EndAt             time.Time
	Status            SubscriptionStatus
	BrowseCountUsed   int32
	LastBrowseResetAt time.Time
	ListingCountUsed  int32
	JobPostsUsed      int32
	AssignedBy        string
	Notes             string
	CancelledAt       *time.Time
	Version           uint64
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewFreeSubscription synthesizes the non-persisted record backing a user who
// has no assigned subscription. It is only written to storage when the user's
// first metered action succeeds.
func NewFreeSubscription(userID string, now time.Time) *UserSubscription {
	return &UserSubscription{
		UserID:            userID,
		PlanID:            DefaultFreePlanID,
		StartAt:           now,
		EndAt:             now.AddDate(freeSubscriptionYears, 0, 0),
		Status:            SubscriptionStatusActive,
		LastBrowseResetAt: now,
		AssignedBy:        "system",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func (s *UserSubscription) IsExpiredAt(now time.Time) bool {
	return now.After(s.EndAt)
}

func (s *UserSubscription) IsCancelled() bool {
	return s.CancelledAt != nil
}

// DaysRemaining rounds up: a subscription ending in one hour has 1 day left.
func (s *UserSubscription) DaysRemaining(now time.Time) int {
	remaining := s.EndAt.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Hours() / 24))
}

func (s *UserSubscription) IsExpiringSoon(now time.Time, withinDays int) bool {
	d := s.DaysRemaining(now)
	return d > 0 && d <= withinDays
}
