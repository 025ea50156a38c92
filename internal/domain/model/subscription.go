package model

import (
	"time"

	"saas-billing/internal/domain"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusPaused    SubscriptionStatus = "paused"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusReplaced  SubscriptionStatus = "replaced"
)

// UserSubscription is the central entity of the billing engine.
//
// Invariant: for a given UserID, at most one row has status='active' with
// EndDate in the future. Rows are never hard-deleted; terminal states
// (cancelled, replaced) are never re-activated — a new row is created
// instead.
type UserSubscription struct {
	ID          string // UUID
	UserID      string // UUID of user
	PlanID      string // UUID of plan
	Status      SubscriptionStatus
	StartDate   time.Time
	EndDate     time.Time
	PausedAt    *time.Time // advisory; expiry keeps elapsing while paused
	PauseReason *string
	IsGift      bool
	GiftReason  *string
	AutoRenew   bool
	// CustomQuotas overrides the plan's default quota table per feature.
	// nil when the plan defaults apply unmodified.
	CustomQuotas CustomQuotas
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsPaused reports whether the subscription carries pause metadata.
func (s *UserSubscription) IsPaused() bool { return s.PausedAt != nil }

// NewUserSubscription creates a new active subscription row starting now.
func NewUserSubscription(id, userID string, plan *Plan, endDate time.Time, isGift bool, giftReason string) (*UserSubscription, error) {
	if id == "" || userID == "" || plan.IsZero() {
		return nil, domain.ErrInvalidArgument
	}
	now := time.Now()
	sub := &UserSubscription{
		ID:        id,
		UserID:    userID,
		PlanID:    plan.ID,
		Status:    SubscriptionStatusActive,
		StartDate: now,
		EndDate:   endDate,
		IsGift:    isGift,
		AutoRenew: !isGift,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if giftReason != "" {
		sub.GiftReason = &giftReason
	}
	return sub, nil
}

// EndOfDay truncates t to 23:59:59 of the same calendar day. Subscription
// end dates always land on this boundary.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, 0, t.Location())
}
