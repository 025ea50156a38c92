package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound             = errors.New("entity not found")
	ErrNoActiveSubscription = errors.New("no active subscription")
	ErrUnknownFeature       = errors.New("plan does not define this feature")
	ErrInvalidQuotaValue    = errors.New("quota value must be >= -1")
	ErrInvalidDuration      = errors.New("duration must be between 1 and 3650 days")
	ErrAlreadyFreePlan      = errors.New("user is already on the free plan")
	ErrNotPaused            = errors.New("subscription is not paused")
	ErrAlreadyPaused        = errors.New("subscription is already paused")
	ErrInvalidArgument      = errors.New("invalid argument")

	// Infrastructure-level errors surfaced through repositories
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)
