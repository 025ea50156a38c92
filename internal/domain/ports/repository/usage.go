package repository

import (
	"context"
	"time"

	"saas-billing/internal/domain/model"
)

// UsageRepository is the port for period-scoped consumption counters
// (user_usage). The engine owns resets and reseeds; external metering code
// owns increments. Usage is independent of the quota ceiling: resetting
// usage never changes the ceiling and vice versa.
type UsageRepository interface {
	// CurrentUsage returns the counter for the feature's current period,
	// or 0 if no row exists.
	CurrentUsage(ctx context.Context, tx Tx, userID string, code model.FeatureCode) (int, error)

	// DeleteByFeature removes all usage rows for (user, feature).
	DeleteByFeature(ctx context.Context, tx Tx, userID string, code model.FeatureCode) error

	// Upsert seeds one usage row for a feature period. When reset is true
	// an existing row's counter is zeroed; otherwise it is left as is.
	Upsert(ctx context.Context, tx Tx, userID string, code model.FeatureCode, periodStart, periodEnd time.Time, reset bool) error

	// ClearAll removes usage rows for the user except the preserved
	// feature codes (resources that survive plan changes).
	ClearAll(ctx context.Context, tx Tx, userID string, preserve []model.FeatureCode) error
}

// StorageRepository maintains the denormalized storage-quota-bytes field a
// separate storage-accounting subsystem reads.
type StorageRepository interface {
	SetQuotaBytes(ctx context.Context, tx Tx, userID string, quotaBytes int64) error
}
