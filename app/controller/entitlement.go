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

type quotaService interface {
	CheckBrowseLimit(ctx context.Context, userID string) (*service.CheckResult, error)
	ConsumeBrowse(ctx context.Context, userID string) (*service.CheckResult, error)
	CheckListingLimit(ctx context.Context, userID string) (*service.CheckResult, error)
	ConsumeListing(ctx context.Context, userID string) (*service.CheckResult, error)
	CheckJobPostLimit(ctx context.Context, userID string) (*service.CheckResult, error)
	ConsumeJobPost(ctx context.Context, userID string) (*service.CheckResult, error)
	ListPlans(ctx context.Context, activeOnly bool) ([]*entity.Plan, error)
}

type visibilityService interface {
	CheckVisibility(ctx context.Context, listingCreatedAt time.Time, viewerUserID string) (*service.VisibilityResult, error)
}

type EntitlementController struct {
	quotaService      quotaService
	visibilityService visibilityService
	cfg               config.EntitlementConfig
	logger            logrus.FieldLogger
}

func NewEntitlementController(
	quotaService quotaService,
	visibilityService visibilityService,
	cfg config.EntitlementConfig,
) *EntitlementController {
	return &EntitlementController{
		quotaService:      quotaService,
		visibilityService: visibilityService,
		cfg:               cfg,
		logger:            logrus.WithField("module", "entitlement-controller"),
	}
}

func (c *EntitlementController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &dto.HealthResponse{Status: "ok"})
}

func (c *EntitlementController) ListPlans(ctx echo.Context) error {
	req, err := types.NewListPlansRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid query params")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.quotaService.ListPlans(ctx.Request().Context(), req.ActiveOnly)
	if err != nil {
		c.logger.WithError(err).Error("List plans failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, &dto.ListPlansResponse{Plans: mapper.PlansToResponse(items)})
}

func (c *EntitlementController) CheckBrowse(ctx echo.Context) error {
	return c.decide(ctx, c.quotaService.CheckBrowseLimit, "Check browse limit failed")
}

func (c *EntitlementController) ConsumeBrowse(ctx echo.Context) error {
	return c.decide(ctx, c.quotaService.ConsumeBrowse, "Consume browse failed")
}

func (c *EntitlementController) CheckListing(ctx echo.Context) error {
	return c.decide(ctx, c.quotaService.CheckListingLimit, "Check listing limit failed")
}

func (c *EntitlementController) ConsumeListing(ctx echo.Context) error {
	return c.decide(ctx, c.quotaService.ConsumeListing, "Consume listing failed")
}

func (c *EntitlementController) CheckJobPost(ctx echo.Context) error {
	return c.decide(ctx, c.quotaService.CheckJobPostLimit, "Check job post limit failed")
}

func (c *EntitlementController) ConsumeJobPost(ctx echo.Context) error {
	return c.decide(ctx, c.quotaService.ConsumeJobPost, "Consume job post failed")
}

func (c *EntitlementController) CheckVisibility(ctx echo.Context) error {
	req, err := types.NewCheckVisibilityRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.visibilityService.CheckVisibility(ctx.Request().Context(), req.CreatedAt(), req.ViewerUserID)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRequest) {
			return writeError(ctx, http.StatusBadRequest, err.Error())
		}
		c.logger.WithError(err).Error("Check visibility failed")
		return writeError(ctx, http.StatusInternalServerError, "internal server error")
	}

	return ctx.JSON(http.StatusOK, mapper.VisibilityToResponse(result))
}

func (c *EntitlementController) decide(ctx echo.Context, fn func(ctx context.Context, userID string) (*service.CheckResult, error), logMessage string) error {
	req, err := types.NewEntitlementRequestFromContext(ctx)
	if err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := fn(ctx.Request().Context(), req.UserID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidRequest):
			return writeError(ctx, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrConcurrencyConflict):
			return writeError(ctx, http.StatusConflict, "subscription is being updated, retry")
		default:
			c.logger.WithError(err).Error(logMessage)
			return writeError(ctx, http.StatusInternalServerError, "internal server error")
		}
	}

	// Denials are still HTTP 200: the decision is data for the caller to
	// render, not a transport failure.
	return ctx.JSON(http.StatusOK, mapper.DecisionToResponse(result, c.cfg.ExpiringSoonDays))
}

func writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &dto.ErrorResponse{Error: message})
}
