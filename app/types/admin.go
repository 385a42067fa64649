package types

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

type AssignSubscriptionRequest struct {
	UserID     string `json:"user_id"`
	PlanID     uint64 `json:"plan_id"`
	StartAt    string `json:"start_at"`
	EndAt      string `json:"end_at"`
	AssignedBy string `json:"assigned_by"`
	Notes      string `json:"notes"`
}

func NewAssignSubscriptionRequestFromContext(ctx echo.Context) (*AssignSubscriptionRequest, error) {
	var body AssignSubscriptionRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.UserID = strings.TrimSpace(body.UserID)
	body.StartAt = strings.TrimSpace(body.StartAt)
	body.EndAt = strings.TrimSpace(body.EndAt)
	body.AssignedBy = strings.TrimSpace(body.AssignedBy)
	return &body, nil
}

func (r *AssignSubscriptionRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	if r.PlanID == 0 {
		return errors.New("plan_id is required")
	}
	if r.StartAt == "" || r.EndAt == "" {
		return errors.New("start_at and end_at are required")
	}
	if _, err := time.Parse(time.RFC3339, r.StartAt); err != nil {
		return errors.New("start_at must be RFC3339")
	}
	if _, err := time.Parse(time.RFC3339, r.EndAt); err != nil {
		return errors.New("end_at must be RFC3339")
	}
	return nil
}

func (r *AssignSubscriptionRequest) Period() (time.Time, time.Time) {
	start, _ := time.Parse(time.RFC3339, r.StartAt)
	end, _ := time.Parse(time.RFC3339, r.EndAt)
	return start.UTC(), end.UTC()
}

type SubscriptionIDRequest struct {
	ID uint64
}

func NewSubscriptionIDRequestFromContext(ctx echo.Context) (*SubscriptionIDRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}
	return &SubscriptionIDRequest{ID: id}, nil
}

func (r *SubscriptionIDRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid subscription id")
	}
	return nil
}

type ExtendSubscriptionRequest struct {
	ID             uint64
	AdditionalDays int32 `json:"additional_days"`
}

func NewExtendSubscriptionRequestFromContext(ctx echo.Context) (*ExtendSubscriptionRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body struct {
		AdditionalDays int32 `json:"additional_days"`
	}
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &ExtendSubscriptionRequest{ID: id, AdditionalDays: body.AdditionalDays}, nil
}

func (r *ExtendSubscriptionRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid subscription id")
	}
	if r.AdditionalDays <= 0 {
		return errors.New("additional_days must be positive")
	}
	return nil
}

func (r *ExtendSubscriptionRequest) Additional() time.Duration {
	return time.Duration(r.AdditionalDays) * 24 * time.Hour
}

type ReasonRequest struct {
	ID     uint64
	Reason string `json:"reason"`
}

func NewReasonRequestFromContext(ctx echo.Context) (*ReasonRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body struct {
		Reason string `json:"reason"`
	}
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &ReasonRequest{ID: id, Reason: strings.TrimSpace(body.Reason)}, nil
}

func (r *ReasonRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid subscription id")
	}
	if r.Reason == "" {
		return errors.New("reason is required")
	}
	return nil
}

type ChangePlanRequest struct {
	ID     uint64
	PlanID uint64 `json:"plan_id"`
}

func NewChangePlanRequestFromContext(ctx echo.Context) (*ChangePlanRequest, error) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return nil, err
	}

	var body struct {
		PlanID uint64 `json:"plan_id"`
	}
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	return &ChangePlanRequest{ID: id, PlanID: body.PlanID}, nil
}

func (r *ChangePlanRequest) Validate() error {
	if r.ID == 0 {
		return errors.New("invalid subscription id")
	}
	if r.PlanID == 0 {
		return errors.New("plan_id is required")
	}
	return nil
}

type GetSubscriptionByUserRequest struct {
	UserID string
}

func NewGetSubscriptionByUserRequestFromContext(ctx echo.Context) (*GetSubscriptionByUserRequest, error) {
	return &GetSubscriptionByUserRequest{UserID: strings.TrimSpace(ctx.QueryParam("user_id"))}, nil
}

func (r *GetSubscriptionByUserRequest) Validate() error {
	if r.UserID == "" {
		return errors.New("user_id is required")
	}
	return nil
}
