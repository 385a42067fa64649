package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/motorlane/ms-go-entitlements/app/entity"
	"github.com/motorlane/ms-go-entitlements/app/notification"
	"github.com/motorlane/ms-go-entitlements/app/repository"
)

func newLifecycleServiceForTest(plans ...*entity.Plan) (*LifecycleService, *repository.MemorySubscriptionStore, *captureTrigger) {
	subs := repository.NewMemorySubscriptionStore()
	trigger := &captureTrigger{}
	svc := NewLifecycleService(subs, repository.NewMemoryPlanStore(plans...), trigger, testEntitlementConfig())
	return svc, subs, trigger
}

func assignParams(userID string) AssignParams {
	now := time.Now().UTC()
	return AssignParams{
		UserID:     userID,
		PlanID:     1,
		StartAt:    now,
		EndAt:      now.Add(30 * 24 * time.Hour),
		AssignedBy: "admin",
	}
}

func TestAssignCreatesSubscription(t *testing.T) {
	svc, subs, _ := newLifecycleServiceForTest(basicPlan())

	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if item.ID == 0 || item.Status != entity.SubscriptionStatusActive {
		t.Fatalf("unexpected subscription: %+v", item)
	}
	if !item.LastBrowseResetAt.Equal(item.StartAt) {
		t.Fatal("browse cycle must anchor at period start")
	}

	stored, _ := subs.FindByUserID(context.Background(), "u-1")
	if stored == nil || stored.ID != item.ID {
		t.Fatalf("expected persisted record, got %+v", stored)
	}
}

func TestAssignReplacesExistingInPlace(t *testing.T) {
	svc, subs, _ := newLifecycleServiceForTest(basicPlan())

	first, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	worn, _ := subs.FindByID(context.Background(), first.ID)
	worn.BrowseCountUsed = 9
	worn.ListingCountUsed = 2
	worn.Status = entity.SubscriptionStatusExpired
	cancelledAt := time.Now().UTC()
	worn.CancelledAt = &cancelledAt
	if err := subs.Update(context.Background(), worn); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	second, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("re-assign failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected same record id %d, got %d", first.ID, second.ID)
	}
	if second.Status != entity.SubscriptionStatusActive || second.CancelledAt != nil {
		t.Fatalf("expected fresh active period, got %+v", second)
	}
	if second.BrowseCountUsed != 0 || second.ListingCountUsed != 0 || second.JobPostsUsed != 0 {
		t.Fatalf("expected counters reset, got %+v", second)
	}
}

func TestAssignValidation(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())

	params := assignParams(" ")
	if _, err := svc.Assign(context.Background(), params); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	params = assignParams("u-1")
	params.EndAt = params.StartAt.Add(-time.Hour)
	if _, err := svc.Assign(context.Background(), params); !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}

	params = assignParams("u-1")
	params.PlanID = 99
	if _, err := svc.Assign(context.Background(), params); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestAssignRejectsInactivePlan(t *testing.T) {
	retired := basicPlan()
	retired.IsActive = false
	svc, _, _ := newLifecycleServiceForTest(retired)

	if _, err := svc.Assign(context.Background(), assignParams("u-1")); !errors.Is(err, ErrPlanInactive) {
		t.Fatalf("expected ErrPlanInactive, got %v", err)
	}
}

func TestSuspendRequiresReasonAndActiveState(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if _, err := svc.Suspend(context.Background(), item.ID, "  "); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	suspended, err := svc.Suspend(context.Background(), item.ID, "payment dispute")
	if err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	if suspended.Status != entity.SubscriptionStatusSuspended {
		t.Fatalf("expected suspended, got %s", suspended.Status)
	}
	if !strings.Contains(suspended.Notes, "suspended: payment dispute") {
		t.Fatalf("expected reason recorded in notes, got %q", suspended.Notes)
	}

	if _, err := svc.Suspend(context.Background(), item.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double suspend, got %v", err)
	}
}

func TestReactivateOnlyFromSuspended(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if _, err := svc.Reactivate(context.Background(), item.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for active record, got %v", err)
	}

	if _, err := svc.Suspend(context.Background(), item.ID, "fraud review"); err != nil {
		t.Fatalf("suspend failed: %v", err)
	}
	restored, err := svc.Reactivate(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("reactivate failed: %v", err)
	}
	if restored.Status != entity.SubscriptionStatusActive {
		t.Fatalf("expected active, got %s", restored.Status)
	}
	if !restored.EndAt.Equal(item.EndAt) {
		t.Fatal("reactivation must not move the end date")
	}
}

func TestExtendReactivatesExpired(t *testing.T) {
	svc, subs, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	worn, _ := subs.FindByID(context.Background(), item.ID)
	worn.Status = entity.SubscriptionStatusExpired
	worn.EndAt = time.Now().UTC().Add(-24 * time.Hour)
	if err := subs.Update(context.Background(), worn); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	extended, err := svc.Extend(context.Background(), item.ID, 30*24*time.Hour)
	if err != nil {
		t.Fatalf("extend failed: %v", err)
	}
	if extended.Status != entity.SubscriptionStatusActive {
		t.Fatalf("expected reactivated, got %s", extended.Status)
	}
	if want := worn.EndAt.Add(30 * 24 * time.Hour); !extended.EndAt.Equal(want) {
		t.Fatalf("expected end at %v, got %v", want, extended.EndAt)
	}
}

func TestExtendRejectsNonPositiveAndCancelled(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if _, err := svc.Extend(context.Background(), item.ID, 0); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}

	if _, err := svc.Cancel(context.Background(), item.ID, "user request"); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if _, err := svc.Extend(context.Background(), item.ID, 24*time.Hour); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for cancelled record, got %v", err)
	}
}

func TestChangePlanResetsPlanScopedCounters(t *testing.T) {
	premium := basicPlan()
	premium.ID = 2
	premium.Code = "premium"
	svc, subs, _ := newLifecycleServiceForTest(basicPlan(), premium)

	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	worn, _ := subs.FindByID(context.Background(), item.ID)
	worn.BrowseCountUsed = 7
	worn.ListingCountUsed = 2
	worn.JobPostsUsed = 1
	if err := subs.Update(context.Background(), worn); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	changed, err := svc.ChangePlan(context.Background(), item.ID, 2)
	if err != nil {
		t.Fatalf("change plan failed: %v", err)
	}
	if changed.PlanID != 2 {
		t.Fatalf("expected plan 2, got %d", changed.PlanID)
	}
	if changed.ListingCountUsed != 0 || changed.JobPostsUsed != 0 {
		t.Fatalf("expected plan-scoped counters reset, got %+v", changed)
	}
	if changed.BrowseCountUsed != 7 {
		t.Fatalf("browse counter follows its own cycle and must carry over, got %d", changed.BrowseCountUsed)
	}
}

func TestChangePlanUnknownPlan(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if _, err := svc.ChangePlan(context.Background(), item.ID, 99); !errors.Is(err, ErrPlanNotFound) {
		t.Fatalf("expected ErrPlanNotFound, got %v", err)
	}
}

func TestCancelIsTerminal(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if _, err := svc.Cancel(context.Background(), item.ID, ""); !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}

	cancelled, err := svc.Cancel(context.Background(), item.ID, "user request")
	if err != nil {
		t.Fatalf("cancel failed: %v", err)
	}
	if cancelled.Status != entity.SubscriptionStatusExpired || cancelled.CancelledAt == nil {
		t.Fatalf("unexpected cancelled state: %+v", cancelled)
	}
	if !strings.Contains(cancelled.Notes, "cancelled: user request") {
		t.Fatalf("expected reason recorded, got %q", cancelled.Notes)
	}

	if _, err := svc.Cancel(context.Background(), item.ID, "again"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition on double cancel, got %v", err)
	}
}

func TestResetBrowseCount(t *testing.T) {
	svc, subs, _ := newLifecycleServiceForTest(basicPlan())
	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	worn, _ := subs.FindByID(context.Background(), item.ID)
	worn.BrowseCountUsed = 10
	if err := subs.Update(context.Background(), worn); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	reset, err := svc.ResetBrowseCount(context.Background(), item.ID, "support ticket 812")
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset.BrowseCountUsed != 0 {
		t.Fatalf("expected counter cleared, got %d", reset.BrowseCountUsed)
	}
	if time.Since(reset.LastBrowseResetAt) > time.Minute {
		t.Fatalf("expected reset anchor moved, got %v", reset.LastBrowseResetAt)
	}
}

func TestGetSubscriptionNotFound(t *testing.T) {
	svc, _, _ := newLifecycleServiceForTest(basicPlan())

	if _, err := svc.GetSubscription(context.Background(), 7); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
	if _, err := svc.GetSubscriptionByUserID(context.Background(), "ghost"); !errors.Is(err, ErrSubscriptionNotFound) {
		t.Fatalf("expected ErrSubscriptionNotFound, got %v", err)
	}
}

func TestRunExpirationBatch(t *testing.T) {
	plan := basicPlan()
	plan.NotificationsEnabled = true
	svc, subs, trigger := newLifecycleServiceForTest(plan)

	item, err := svc.Assign(context.Background(), assignParams("u-1"))
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	worn, _ := subs.FindByID(context.Background(), item.ID)
	worn.EndAt = time.Now().UTC().Add(-time.Hour)
	if err := subs.Update(context.Background(), worn); err != nil {
		t.Fatalf("seed update failed: %v", err)
	}

	if err := svc.RunExpirationBatch(context.Background()); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	stored, _ := subs.FindByID(context.Background(), item.ID)
	if stored.Status != entity.SubscriptionStatusExpired {
		t.Fatalf("expected expired, got %s", stored.Status)
	}
	if got := trigger.byType(notification.EventSubscriptionExpired); len(got) != 1 {
		t.Fatalf("expected one expiry event, got %d", len(got))
	}
}

func TestRunExpiryNoticeBatch(t *testing.T) {
	plan := basicPlan()
	plan.NotificationsEnabled = true
	svc, _, trigger := newLifecycleServiceForTest(plan)

	params := assignParams("u-soon")
	params.EndAt = time.Now().UTC().Add(5 * 24 * time.Hour)
	if _, err := svc.Assign(context.Background(), params); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := svc.Assign(context.Background(), assignParams("u-far")); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	if err := svc.RunExpiryNoticeBatch(context.Background()); err != nil {
		t.Fatalf("batch failed: %v", err)
	}

	notices := trigger.byType(notification.EventSubscriptionExpiringSoon)
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %d", len(notices))
	}
	if notices[0].UserID != "u-soon" {
		t.Fatalf("unexpected notice target: %+v", notices[0])
	}
	if notices[0].Payload["days_remaining"] != 5 {
		t.Fatalf("expected 5 days remaining, got %v", notices[0].Payload["days_remaining"])
	}
}
