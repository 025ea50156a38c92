package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

// AdjustmentRepository is the port for the append-only audit ledger.
// Record always runs inside the caller's transaction: an unaudited state
// mutation is worse than no mutation, so a failed insert fails the whole
// operation.
type AdjustmentRepository interface {
	Record(ctx context.Context, tx Tx, adj *model.SubscriptionAdjustment) error

	// HistoryByUser returns one page ordered by created_at DESC plus the
	// total row count for the user.
	HistoryByUser(ctx context.Context, tx Tx, userID string, offset, limit int) ([]*model.SubscriptionAdjustment, int, error)
}
