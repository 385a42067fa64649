package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/motorlane/ms-go-entitlements/app/entity"
	"github.com/motorlane/ms-go-entitlements/app/repository"
)

func newVisibilityServiceForTest(plans ...*entity.Plan) (*VisibilityService, *repository.MemorySubscriptionStore) {
	subs := repository.NewMemorySubscriptionStore()
	return NewVisibilityService(subs, repository.NewMemoryPlanStore(plans...), testEntitlementConfig()), subs
}

func TestVisibilityDelayedForFreeViewer(t *testing.T) {
	svc, _ := newVisibilityServiceForTest()
	created := time.Now().UTC().Add(-100 * time.Hour)

	res, err := svc.CheckVisibility(context.Background(), created, "ghost")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Visible {
		t.Fatal("free tier must wait out the full delay")
	}
	if res.DelayHours != 168 {
		t.Fatalf("expected 168h delay, got %d", res.DelayHours)
	}
	if want := created.Add(168 * time.Hour); !res.AvailableAt.Equal(want) {
		t.Fatalf("expected available at %v, got %v", want, res.AvailableAt)
	}
}

func TestVisibilityAfterDelayElapsed(t *testing.T) {
	svc, _ := newVisibilityServiceForTest()
	created := time.Now().UTC().Add(-169 * time.Hour)

	res, err := svc.CheckVisibility(context.Background(), created, "ghost")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !res.Visible {
		t.Fatal("expected listing visible once the delay elapsed")
	}
}

func TestVisibilityImmediateForZeroDelayPlan(t *testing.T) {
	plan := basicPlan()
	plan.ListingVisibilityDelayHours = 0
	svc, subs := newVisibilityServiceForTest(plan)
	seedSubscription(t, subs)

	res, err := svc.CheckVisibility(context.Background(), time.Now().UTC(), "u-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if !res.Visible || res.DelayHours != 0 {
		t.Fatalf("expected immediate visibility, got %+v", res)
	}
}

func TestVisibilityExpiredViewerFallsBackToFreeDelay(t *testing.T) {
	plan := basicPlan()
	plan.ListingVisibilityDelayHours = 0
	svc, subs := newVisibilityServiceForTest(plan)
	seedSubscription(t, subs, func(s *entity.UserSubscription) {
		s.EndAt = time.Now().UTC().Add(-time.Hour)
	})

	res, err := svc.CheckVisibility(context.Background(), time.Now().UTC().Add(-time.Hour), "u-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Visible || res.DelayHours != 168 {
		t.Fatalf("lapsed viewer must be served the free delay, got %+v", res)
	}
}

func TestVisibilitySuspendedViewerFallsBackToFreeDelay(t *testing.T) {
	plan := basicPlan()
	plan.ListingVisibilityDelayHours = 0
	svc, subs := newVisibilityServiceForTest(plan)
	seedSubscription(t, subs, func(s *entity.UserSubscription) {
		s.Status = entity.SubscriptionStatusSuspended
	})

	res, err := svc.CheckVisibility(context.Background(), time.Now().UTC(), "u-1")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	if res.Visible || res.DelayHours != 168 {
		t.Fatalf("suspended viewer must be served the free delay, got %+v", res)
	}
}

func TestVisibilityDoesNotMutateState(t *testing.T) {
	svc, subs := newVisibilityServiceForTest(basicPlan())
	seed := seedSubscription(t, subs, func(s *entity.UserSubscription) {
		s.EndAt = time.Now().UTC().Add(-time.Hour)
	})

	if _, err := svc.CheckVisibility(context.Background(), time.Now().UTC(), "u-1"); err != nil {
		t.Fatalf("check failed: %v", err)
	}

	stored, _ := subs.FindByUserID(context.Background(), "u-1")
	if stored.Status != entity.SubscriptionStatusActive || stored.Version != seed.Version {
		t.Fatalf("visibility reads must not write, got %+v", stored)
	}
}

func TestVisibilityRequiresViewer(t *testing.T) {
	svc, _ := newVisibilityServiceForTest()
	if _, err := svc.CheckVisibility(context.Background(), time.Now().UTC(), " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}
