//go:build !integration

package usecase_test

import (
	"context"
	"testing"
	"time"

	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/usecase"
)

func quotaInitFixture() (*usecase.QuotaInitUseCase, *MockUsageRepo, *MockStorageRepo) {
	plans := NewMockPlanRepo()
	plans.Add(
		&model.Plan{ID: "plan-pro", Code: "professional", Name: "Professional", BillingCycle: model.BillingCycleMonthly, IsActive: true},
		&model.PlanFeature{PlanID: "plan-pro", FeatureCode: model.FeatureStorageSpace, FeatureName: "Storage Space", Value: 1024},
		&model.PlanFeature{PlanID: "plan-pro", FeatureCode: model.FeatureArticlesPerMonth, FeatureName: "Articles per Month", Value: 50},
		&model.PlanFeature{PlanID: "plan-pro", FeatureCode: model.FeaturePlatformAccounts, FeatureName: "Platform Accounts", Value: 3},
	)
	plans.Add(
		&model.Plan{ID: "plan-unlimited", Code: "unlimited", Name: "Unlimited", BillingCycle: model.BillingCycleYearly, IsActive: true},
		&model.PlanFeature{PlanID: "plan-unlimited", FeatureCode: model.FeatureStorageSpace, FeatureName: "Storage Space", Value: -1},
	)
	usage := NewMockUsageRepo()
	storage := NewMockStorageRepo()
	return usecase.NewQuotaInitUseCase(plans, usage, storage, newTestLogger()), usage, storage
}

func TestQuotaInitInitializeForPlan(t *testing.T) {
	ctx := context.Background()
	start := time.Now().AddDate(0, 0, -3)

	t.Run("seeds one row per plan feature", func(t *testing.T) {
		uc, _, _ := quotaInitFixture()
		n, err := uc.InitializeForPlan(ctx, repository.NoTX, "user-1", "plan-pro", start, true)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n != 3 {
			t.Errorf("expected 3 seeded rows, got %d", n)
		}
	})

	t.Run("converts the storage feature from megabytes to bytes", func(t *testing.T) {
		uc, _, storage := quotaInitFixture()
		if _, err := uc.InitializeForPlan(ctx, repository.NoTX, "user-1", "plan-pro", start, true); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if got := storage.QuotaBytes["user-1"]; got != 1024<<20 {
			t.Errorf("expected %d quota bytes, got %d", int64(1024)<<20, got)
		}
	})

	t.Run("skips the storage write for unlimited plans", func(t *testing.T) {
		uc, _, storage := quotaInitFixture()
		if _, err := uc.InitializeForPlan(ctx, repository.NoTX, "user-1", "plan-unlimited", start, true); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if _, ok := storage.QuotaBytes["user-1"]; ok {
			t.Error("unlimited storage must not overwrite quota bytes")
		}
	})

	t.Run("resets counters except preserved features", func(t *testing.T) {
		uc, usage, _ := quotaInitFixture()
		usage.SetUsage("user-1", model.FeatureArticlesPerMonth, 40)
		usage.SetUsage("user-1", model.FeaturePlatformAccounts, 2)

		if _, err := uc.InitializeForPlan(ctx, repository.NoTX, "user-1", "plan-pro", start, true); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n, _ := usage.CurrentUsage(ctx, repository.NoTX, "user-1", model.FeatureArticlesPerMonth); n != 0 {
			t.Errorf("expected articles usage reset, got %d", n)
		}
		if n, _ := usage.CurrentUsage(ctx, repository.NoTX, "user-1", model.FeaturePlatformAccounts); n != 2 {
			t.Errorf("expected platform accounts preserved, got %d", n)
		}
	})

	t.Run("keeps counters on renewal", func(t *testing.T) {
		uc, usage, _ := quotaInitFixture()
		usage.SetUsage("user-1", model.FeatureArticlesPerMonth, 40)

		if _, err := uc.InitializeForPlan(ctx, repository.NoTX, "user-1", "plan-pro", start, false); err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n, _ := usage.CurrentUsage(ctx, repository.NoTX, "user-1", model.FeatureArticlesPerMonth); n != 40 {
			t.Errorf("expected usage kept on renewal, got %d", n)
		}
	})

	t.Run("plans without features are a no-op", func(t *testing.T) {
		uc, _, _ := quotaInitFixture()
		n, err := uc.InitializeForPlan(ctx, repository.NoTX, "user-1", "plan-empty", start, true)
		if err != nil {
			t.Fatalf("expected no error, got: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0 seeded rows, got %d", n)
		}
	})
}
