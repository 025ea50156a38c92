package repository

import (
	"context"
	"time"

	"saas-billing/internal/domain/model"
)

// SubscriptionRepository is the port for user subscription state. All writes
// go through the lifecycle engine; rows are demoted, never deleted.
type SubscriptionRepository interface {
	// FindActiveByUser returns the unique active, non-expired row for the
	// user, or domain.ErrNoActiveSubscription.
	FindActiveByUser(ctx context.Context, tx Tx, userID string) (*model.UserSubscription, error)

	// LockActiveByUser is FindActiveByUser with SELECT ... FOR UPDATE.
	// It requires a transaction and serializes concurrent lifecycle
	// operations on the same user.
	LockActiveByUser(ctx context.Context, tx Tx, userID string) (*model.UserSubscription, error)

	FindByID(ctx context.Context, tx Tx, id string) (*model.UserSubscription, error)

	// Create inserts a new active row. The caller is responsible for
	// demoting any prior active row first, in the same transaction.
	Create(ctx context.Context, tx Tx, sub *model.UserSubscription) error

	// DemoteActive moves all currently active rows of the user to the given
	// terminal status. `replaced` is used by gift (superseded), `cancelled`
	// by operator-initiated termination.
	DemoteActive(ctx context.Context, tx Tx, userID string, to model.SubscriptionStatus, endDate *time.Time) error

	// Narrow, auditable mutators.
	UpdatePlan(ctx context.Context, tx Tx, subID, planID string, endDate time.Time) error
	UpdateEndDate(ctx context.Context, tx Tx, subID string, endDate time.Time) error
	SetPaused(ctx context.Context, tx Tx, subID string, pausedAt *time.Time, reason *string) error
	SetAutoRenew(ctx context.Context, tx Tx, subID string, autoRenew bool) error
	SetCustomQuotas(ctx context.Context, tx Tx, subID string, quotas model.CustomQuotas) error

	// CountByStatus feeds the subscriptions-by-status gauge.
	CountByStatus(ctx context.Context, tx Tx) (map[model.SubscriptionStatus]int, error)
}
