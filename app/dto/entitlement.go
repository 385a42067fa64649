package dto

type HealthResponse struct {
	Status string `json:"status"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type PlanResponse struct {
	ID                          uint64 `json:"id"`
	Code                        string `json:"code"`
	Name                        string `json:"name"`
	MaxBrowseCount              *int32 `json:"max_browse_count"`
	MaxListingCount             *int32 `json:"max_listing_count"`
	MaxJobPosts                 *int32 `json:"max_job_posts"`
	ListingVisibilityDelayHours int32  `json:"listing_visibility_delay_hours"`
	NotificationsEnabled        bool   `json:"notifications_enabled"`
	PriceCents                  int64  `json:"price_cents"`
	Currency                    string `json:"currency"`
	BillingPeriodDays           int32  `json:"billing_period_days"`
	IsActive                    bool   `json:"is_active"`
}

type ListPlansResponse struct {
	Plans []PlanResponse `json:"plans"`
}

type SubscriptionResponse struct {
	ID                uint64  `json:"id"`
	UserID            string  `json:"user_id"`
	PlanID            uint64  `json:"plan_id"`
	Status            string  `json:"status"`
	StartAt           string  `json:"start_at"`
	EndAt             string  `json:"end_at"`
	BrowseCountUsed   int32   `json:"browse_count_used"`
	LastBrowseResetAt string  `json:"last_browse_reset_at"`
	ListingCountUsed  int32   `json:"listing_count_used"`
	JobPostsUsed      int32   `json:"job_posts_used"`
	AssignedBy        string  `json:"assigned_by,omitempty"`
	Notes             string  `json:"notes,omitempty"`
	CancelledAt       *string `json:"cancelled_at,omitempty"`
	DaysRemaining     int     `json:"days_remaining"`
	ExpiringSoon      bool    `json:"expiring_soon"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type DecisionResponse struct {
	Allowed      bool                  `json:"allowed"`
	Remaining    int32                 `json:"remaining"`
	Unlimited    bool                  `json:"unlimited"`
	LimitReached bool                  `json:"limit_reached"`
	Message      string                `json:"message,omitempty"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}

type VisibilityResponse struct {
	Visible     bool   `json:"visible"`
	DelayHours  int32  `json:"delay_hours"`
	AvailableAt string `json:"available_at"`
	PlanCode    string `json:"plan_code"`
}

type SubscriptionEnvelopeResponse struct {
	Subscription SubscriptionResponse `json:"subscription"`
}

type MessageResponse struct {
	Message      string                `json:"message"`
	Subscription *SubscriptionResponse `json:"subscription,omitempty"`
}
