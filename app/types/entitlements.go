package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type EntitlementRequest struct {
	UserID string
}

func NewEntitlementRequestFromContext(ctx echo.Context) (*EntitlementRequest, error) {
	return &EntitlementRequest{UserID: strings.TrimSpace(ctx.Param("user_id"))}, nil
}

func (r *EntitlementRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}

type CheckVisibilityRequest struct {
	ListingCreatedAt string `json:"listing_created_at"`
	ViewerUserID     string `json:"viewer_user_id"`
}

func NewCheckVisibilityRequestFromContext(ctx echo.Context) (*CheckVisibilityRequest, error) {
	var body CheckVisibilityRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.ListingCreatedAt = strings.TrimSpace(body.ListingCreatedAt)
	body.ViewerUserID = strings.TrimSpace(body.ViewerUserID)
	return &body, nil
}

func (r *CheckVisibilityRequest) Validate() error {
	if r.ViewerUserID == "" {
		return errors.New("viewer_user_id is required")
	}
	if r.ListingCreatedAt == "" {
		return errors.New("listing_created_at is required")
	}
	if _, err := time.Parse(time.RFC3339, r.ListingCreatedAt); err != nil {
		return errors.New("listing_created_at must be RFC3339")
	}
	return nil
}

func (r *CheckVisibilityRequest) CreatedAt() time.Time {
	t, _ := time.Parse(time.RFC3339, r.ListingCreatedAt)
	return t.UTC()
}

type ListPlansRequest struct {
	ActiveOnly bool
}

func NewListPlansRequestFromContext(ctx echo.Context) (*ListPlansRequest, error) {
	activeRaw := strings.TrimSpace(ctx.QueryParam("active"))
	req := &ListPlansRequest{}
	if activeRaw != "" {
		active, err := strconv.ParseBool(activeRaw)
		if err != nil {
			return nil, err
		}
		req.ActiveOnly = active
	}
	return req, nil
}

func (r *ListPlansRequest) Validate() error {
	return nil
}
