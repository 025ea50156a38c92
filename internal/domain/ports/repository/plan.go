package repository

import (
	"context"

	"saas-billing/internal/domain/model"
)

// PlanRepository is the read-only port for the plan catalog. The lifecycle
// engine never writes plans; a separate catalog-management flow owns that.
type PlanRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Plan, error)
	FindByCode(ctx context.Context, tx Tx, code string) (*model.Plan, error)
	ListActive(ctx context.Context, tx Tx) ([]*model.Plan, error)

	// FindFeature returns the default quota row for (plan, feature), or
	// domain.ErrUnknownFeature if the plan does not define the feature.
	FindFeature(ctx context.Context, tx Tx, planID string, code model.FeatureCode) (*model.PlanFeature, error)
	ListFeatures(ctx context.Context, tx Tx, planID string) ([]*model.PlanFeature, error)
}
