package usecase

import (
	"context"

	"github.com/rs/zerolog"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PlanUseCase = (*planUC)(nil)

// PlanUseCase is the read-only plan catalog. Plan management itself lives in
// a separate flow; the lifecycle engine only resolves plans and their
// default quota tables.
type PlanUseCase interface {
	Get(ctx context.Context, planID string) (*model.Plan, error)
	GetByCode(ctx context.Context, code string) (*model.Plan, error)
	List(ctx context.Context) ([]*model.Plan, error)
	Features(ctx context.Context, planID string) ([]*model.PlanFeature, error)
}

type planUC struct {
	plans repository.PlanRepository
	log   *zerolog.Logger
}

func NewPlanUseCase(plans repository.PlanRepository, logger *zerolog.Logger) *planUC {
	return &planUC{plans: plans, log: logger}
}

func (uc *planUC) Get(ctx context.Context, planID string) (*model.Plan, error) {
	return uc.plans.FindByID(ctx, repository.NoTX, planID)
}

func (uc *planUC) GetByCode(ctx context.Context, code string) (*model.Plan, error) {
	return uc.plans.FindByCode(ctx, repository.NoTX, code)
}

func (uc *planUC) List(ctx context.Context) ([]*model.Plan, error) {
	return uc.plans.ListActive(ctx, repository.NoTX)
}

func (uc *planUC) Features(ctx context.Context, planID string) ([]*model.PlanFeature, error) {
	return uc.plans.ListFeatures(ctx, repository.NoTX, planID)
}
