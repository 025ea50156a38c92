package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

var (
	_ repository.UsageRepository   = (*usageRepo)(nil)
	_ repository.StorageRepository = (*storageRepo)(nil)
)

type usageRepo struct {
	pool *pgxpool.Pool
}

func NewUsageRepo(pool *pgxpool.Pool) *usageRepo {
	return &usageRepo{pool: pool}
}

func (r *usageRepo) CurrentUsage(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode) (int, error) {
	const q = `
SELECT usage_count
  FROM user_usage
 WHERE user_id=$1 AND feature_code=$2 AND period_end > NOW()
 ORDER BY period_start DESC
 LIMIT 1;`
	row, err := pickRow(ctx, r.pool, tx, q, userID, string(code))
	if err != nil {
		return 0, err
	}
	var n int
	if err := row.Scan(&n); err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, domain.ErrReadDatabaseRow
	}
	return n, nil
}

func (r *usageRepo) DeleteByFeature(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode) error {
	const q = `DELETE FROM user_usage WHERE user_id=$1 AND feature_code=$2;`
	_, err := execSQL(ctx, r.pool, tx, q, userID, string(code))
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *usageRepo) Upsert(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode, periodStart, periodEnd time.Time, reset bool) error {
	if reset {
		const q = `
INSERT INTO user_usage (user_id, feature_code, usage_count, period_start, period_end, last_reset_at)
VALUES ($1,$2,0,$3,$4,$3)
ON CONFLICT (user_id, feature_code, period_start)
DO UPDATE SET usage_count=0, last_reset_at=NOW();`
		_, err := execSQL(ctx, r.pool, tx, q, userID, string(code), periodStart, periodEnd)
		if err != nil {
			return translateErr(err)
		}
		return nil
	}
	const q = `
INSERT INTO user_usage (user_id, feature_code, usage_count, period_start, period_end, last_reset_at)
VALUES ($1,$2,0,$3,$4,$3)
ON CONFLICT (user_id, feature_code, period_start) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, userID, string(code), periodStart, periodEnd)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *usageRepo) ClearAll(ctx context.Context, tx repository.Tx, userID string, preserve []model.FeatureCode) error {
	codes := make([]string, 0, len(preserve))
	for _, c := range preserve {
		codes = append(codes, string(c))
	}
	const q = `
DELETE FROM user_usage
 WHERE user_id=$1
   AND feature_code <> ALL($2::varchar[]);`
	_, err := execSQL(ctx, r.pool, tx, q, userID, codes)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

type storageRepo struct {
	pool *pgxpool.Pool
}

func NewStorageRepo(pool *pgxpool.Pool) *storageRepo {
	return &storageRepo{pool: pool}
}

func (r *storageRepo) SetQuotaBytes(ctx context.Context, tx repository.Tx, userID string, quotaBytes int64) error {
	const q = `
INSERT INTO user_storage (user_id, quota_bytes, updated_at)
VALUES ($1,$2,NOW())
ON CONFLICT (user_id)
DO UPDATE SET quota_bytes=$2, updated_at=NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID, quotaBytes)
	if err != nil {
		return translateErr(err)
	}
	return nil
}
