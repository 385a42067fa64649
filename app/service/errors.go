package service

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPlanNotFound         = errors.New("plan not found")
	ErrPlanInactive         = errors.New("plan is not active")
	ErrInvalidTransition    = errors.New("invalid subscription state transition")
	ErrReasonRequired       = errors.New("a non-empty reason is required")
	ErrInvalidPeriod        = errors.New("end date must not precede start date")
	ErrConcurrencyConflict  = errors.New("concurrent subscription update conflict")
	ErrInvalidRequest       = errors.New("invalid request")
)
