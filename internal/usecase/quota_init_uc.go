package usecase

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// preserveOnPlanChange lists feature codes whose usage must survive a plan
// change. platform_accounts counts real connected resources, not a
// period-scoped allowance.
var preserveOnPlanChange = []model.FeatureCode{model.FeaturePlatformAccounts}

// monthlyFeatures reset on a monthly window anchored to the subscription
// start day; everything else spans the whole subscription.
var monthlyFeatures = map[model.FeatureCode]bool{
	model.FeatureArticlesPerMonth: true,
	model.FeatureAIGenerations:    true,
}

// QuotaInitUseCase reseeds default per-feature usage rows and refreshes the
// denormalized storage-quota-bytes field read by the storage-accounting
// subsystem. Invoked on every plan change (upgrade, cancel-to-free, gift),
// after the lifecycle transaction commits.
type QuotaInitUseCase struct {
	plans   repository.PlanRepository
	usage   repository.UsageRepository
	storage repository.StorageRepository
	log     *zerolog.Logger
}

func NewQuotaInitUseCase(plans repository.PlanRepository, usage repository.UsageRepository, storage repository.StorageRepository, logger *zerolog.Logger) *QuotaInitUseCase {
	return &QuotaInitUseCase{plans: plans, usage: usage, storage: storage, log: logger}
}

// InitializeForPlan seeds one usage row per plan feature. When resetUsage is
// true (plan change) existing counters are zeroed, except the preserved
// features; when false (renewal) existing counters are kept.
// Returns the number of seeded rows.
func (uc *QuotaInitUseCase) InitializeForPlan(ctx context.Context, tx repository.Tx, userID, planID string, startDate time.Time, resetUsage bool) (int, error) {
	features, err := uc.plans.ListFeatures(ctx, tx, planID)
	if err != nil {
		return 0, err
	}
	if len(features) == 0 {
		uc.log.Warn().Str("plan_id", planID).Msg("plan has no features; skipping quota init")
		return 0, nil
	}

	now := time.Now()
	seeded := 0
	for _, f := range features {
		periodStart, periodEnd := periodFor(f.FeatureCode, now, startDate)
		reset := resetUsage && !isPreserved(f.FeatureCode)
		if err := uc.usage.Upsert(ctx, tx, userID, f.FeatureCode, periodStart, periodEnd, reset); err != nil {
			return seeded, err
		}
		seeded++

		if f.FeatureCode == model.FeatureStorageSpace && f.Value >= 0 {
			// feature_value is megabytes; the storage subsystem tracks bytes.
			if err := uc.storage.SetQuotaBytes(ctx, tx, userID, int64(f.Value)<<20); err != nil {
				return seeded, err
			}
		}
	}

	uc.log.Info().
		Str("user_id", userID).
		Str("plan_id", planID).
		Int("features", seeded).
		Bool("reset_usage", resetUsage).
		Msg("quotas initialized")
	return seeded, nil
}

// ClearUsage removes the user's usage rows except preserved features.
func (uc *QuotaInitUseCase) ClearUsage(ctx context.Context, tx repository.Tx, userID string) error {
	return uc.usage.ClearAll(ctx, tx, userID, preserveOnPlanChange)
}

func isPreserved(code model.FeatureCode) bool {
	for _, p := range preserveOnPlanChange {
		if p == code {
			return true
		}
	}
	return false
}

// periodFor computes the usage window for a feature. Monthly features roll
// on the subscription's start day; subscription-scoped features span from
// start until far past any plausible end date.
func periodFor(code model.FeatureCode, now, startDate time.Time) (time.Time, time.Time) {
	if monthlyFeatures[code] {
		start := startDate
		for !start.AddDate(0, 1, 0).After(now) {
			start = start.AddDate(0, 1, 0)
		}
		return start, start.AddDate(0, 1, 0)
	}
	return startDate, startDate.AddDate(10, 0, 0)
}
