package usecase

import (
	"context"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// QuotaOverlay resolves effective quotas by layering a subscription's
// override map on top of its plan's default feature table. The derivation is
// recomputed on every call, never cached: a plan change or an override change
// must be visible immediately.
type QuotaOverlay struct {
	plans repository.PlanRepository
}

func NewQuotaOverlay(plans repository.PlanRepository) *QuotaOverlay {
	return &QuotaOverlay{plans: plans}
}

// Effective returns the quota ceiling for a feature on the given
// subscription: the override if one exists, the plan default otherwise.
// Returns domain.ErrUnknownFeature when the plan has no row for the code.
func (o *QuotaOverlay) Effective(ctx context.Context, tx repository.Tx, sub *model.UserSubscription, code model.FeatureCode) (int, error) {
	if sub == nil {
		return 0, domain.ErrInvalidArgument
	}
	if !code.Valid() {
		return 0, domain.ErrUnknownFeature
	}
	// The plan must define the feature even when an override exists;
	// overrides on unknown features are rejected, not silently stored.
	feature, err := o.plans.FindFeature(ctx, tx, sub.PlanID, code)
	if err != nil {
		return 0, err
	}
	if v, ok := sub.CustomQuotas.Lookup(code); ok {
		return v, nil
	}
	return feature.Value, nil
}

// Merge validates an override and returns the subscription's override map
// with the new value merged in, plus the value it replaces (override or plan
// default). Persistence is the caller's job so it happens inside the
// caller's transaction.
func (o *QuotaOverlay) Merge(ctx context.Context, tx repository.Tx, sub *model.UserSubscription, code model.FeatureCode, newValue int) (model.CustomQuotas, int, error) {
	if newValue < model.UnlimitedQuota {
		return nil, 0, domain.ErrInvalidQuotaValue
	}
	oldValue, err := o.Effective(ctx, tx, sub, code)
	if err != nil {
		return nil, 0, err
	}
	quotas := sub.CustomQuotas.Clone()
	if quotas == nil {
		quotas = make(model.CustomQuotas, 1)
	}
	quotas[code] = newValue
	return quotas, oldValue, nil
}
