package controller

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/motorlane/ms-go-entitlements/app/dto"
	"github.com/motorlane/ms-go-entitlements/app/entity"
	"github.com/motorlane/ms-go-entitlements/app/mapper"
	"github.com/motorlane/ms-go-entitlements/app/service"
	"github.com/motorlane/ms-go-entitlements/app/types"
	"github.com/motorlane/ms-go-entitlements/config"
)

type lifecycleService interface {
	Assign(ctx context.Context, params service.AssignParams) (*entity.UserSubscription, error)
	Extend(ctx context.Context, subID uint64, additional time.Duration) (*entity.UserSubscription, error)
	Suspend(ctx context.Context, subID uint64, reason string) (*entity.UserSubscription, error)
	Reactivate(ctx context.Context, subID uint64) (*entity.UserSubscription, error)
	ChangePlan(ctx context.Context, subID uint64, newPlanID uint64) (*entity.UserSubscription, error)
	Cancel(ctx context.Context, subID uint64, reason string) (*entity.UserSubscription, error)
	ResetBrowseCount(ctx context.Context, subID uint64, reason string) (*entity.UserSubscription, error)
	GetSubscription(ctx context.Context, subID uint64) (*entity.UserSubscription, error)
	GetSubscriptionByUserID(ctx context.Context, userID string) (*entity.UserSubscription, error)
}

type AdminController struct {
	lifecycleService lifecycleService
	cfg              config.EntitlementConfig
	logger           logrus.FieldLogger
}

func NewAdminController(lifecycleService lifecycleService, cfg config.EntitlementConfig) *AdminController {
	return &AdminController{
		lifecycleService: lifecycleService,
		cfg:              cfg,
		logger:           logrus.WithField("module", "admin-controller"),
	}
}

func (c *AdminController) AssignSubscription(ctx echo.Context) error {
	req, err := types.NewAssignSubscriptionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	startAt, endAt := req.Period()
	item, err := c.lifecycleService.Assign(ctx.Request().Context(), service.AssignParams{
		UserID:     req.UserID,
		PlanID:     req.PlanID,
		StartAt:    startAt,
		EndAt:      endAt,
		AssignedBy: req.AssignedBy,
		Notes:      req.Notes,
	})
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Assign subscription failed")
	}

	return ctx.JSON(http.StatusCreated, &dto.SubscriptionEnvelopeResponse{
		Subscription: *mapper.SubscriptionToResponse(item, c.cfg.ExpiringSoonDays),
	})
}

func (c *AdminController) GetSubscription(ctx echo.Context) error {
	req, err := types.NewSubscriptionIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.GetSubscription(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Get subscription failed")
	}

	return ctx.JSON(http.StatusOK, &dto.SubscriptionEnvelopeResponse{
		Subscription: *mapper.SubscriptionToResponse(item, c.cfg.ExpiringSoonDays),
	})
}

func (c *AdminController) GetSubscriptionByUser(ctx echo.Context) error {
	req, err := types.NewGetSubscriptionByUserRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.GetSubscriptionByUserID(ctx.Request().Context(), req.UserID)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Get subscription by user failed")
	}

	return ctx.JSON(http.StatusOK, &dto.SubscriptionEnvelopeResponse{
		Subscription: *mapper.SubscriptionToResponse(item, c.cfg.ExpiringSoonDays),
	})
}

func (c *AdminController) ExtendSubscription(ctx echo.Context) error {
	req, err := types.NewExtendSubscriptionRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.Extend(ctx.Request().Context(), req.ID, req.Additional())
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Extend subscription failed")
	}

	return c.writeMessage(ctx, "Subscription extended successfully", item)
}

func (c *AdminController) SuspendSubscription(ctx echo.Context) error {
	req, err := types.NewReasonRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.Suspend(ctx.Request().Context(), req.ID, req.Reason)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Suspend subscription failed")
	}

	return c.writeMessage(ctx, "Subscription suspended successfully", item)
}

func (c *AdminController) ReactivateSubscription(ctx echo.Context) error {
	req, err := types.NewSubscriptionIDRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.Reactivate(ctx.Request().Context(), req.ID)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Reactivate subscription failed")
	}

	return c.writeMessage(ctx, "Subscription reactivated successfully", item)
}

func (c *AdminController) ChangePlan(ctx echo.Context) error {
	req, err := types.NewChangePlanRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.ChangePlan(ctx.Request().Context(), req.ID, req.PlanID)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Change plan failed")
	}

	return c.writeMessage(ctx, "Plan changed successfully", item)
}

func (c *AdminController) CancelSubscription(ctx echo.Context) error {
	req, err := types.NewReasonRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.Cancel(ctx.Request().Context(), req.ID, req.Reason)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Cancel subscription failed")
	}

	return c.writeMessage(ctx, "Subscription cancelled successfully", item)
}

func (c *AdminController) ResetBrowseCount(ctx echo.Context) error {
	req, err := types.NewReasonRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.lifecycleService.ResetBrowseCount(ctx.Request().Context(), req.ID, req.Reason)
	if err != nil {
		return c.writeLifecycleError(ctx, err, "Reset browse count failed")
	}

	return c.writeMessage(ctx, "Browse count reset successfully", item)
}

func (c *AdminController) writeMessage(ctx echo.Context, message string, item *entity.UserSubscription) error {
	return ctx.JSON(http.StatusOK, &dto.MessageResponse{
		Message:      message,
		Subscription: mapper.SubscriptionToResponse(item, c.cfg.ExpiringSoonDays),
	})
}

func (c *AdminController) writeLifecycleError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrInvalidPeriod),
		errors.Is(err, service.ErrPlanInactive):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrSubscriptionNotFound), errors.Is(err, service.ErrPlanNotFound):
		return writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrConcurrencyConflict):
		return writeError(ctx, http.StatusConflict, err.Error())
	default:
		c.logger.WithError(err).Error(logMessage)
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}
