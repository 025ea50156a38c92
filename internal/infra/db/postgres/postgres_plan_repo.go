package postgres

import (
	"context"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Ensure planRepo implements repository.PlanRepository
var _ repository.PlanRepository = (*planRepo)(nil)

type planRepo struct {
	pool *pgxpool.Pool
}

func NewPlanRepo(pool *pgxpool.Pool) *planRepo {
	return &planRepo{pool: pool}
}

const planColumns = `id, plan_code, plan_name, price_cents, billing_cycle, COALESCE(duration_days, 0), is_active, created_at`

func (r *planRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *planRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE plan_code=$1 AND is_active=TRUE;`
	return r.queryOne(ctx, tx, q, code)
}

func (r *planRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	q := `SELECT ` + planColumns + ` FROM subscription_plans WHERE is_active=TRUE ORDER BY price_cents ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*model.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *planRepo) FindFeature(ctx context.Context, tx repository.Tx, planID string, code model.FeatureCode) (*model.PlanFeature, error) {
	const q = `
SELECT plan_id, feature_code, feature_name, feature_value
  FROM plan_features
 WHERE plan_id=$1 AND feature_code=$2;`
	row, err := pickRow(ctx, r.pool, tx, q, planID, string(code))
	if err != nil {
		return nil, err
	}
	f := &model.PlanFeature{}
	var fc string
	if err := row.Scan(&f.PlanID, &fc, &f.FeatureName, &f.Value); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrUnknownFeature
		}
		return nil, domain.ErrReadDatabaseRow
	}
	f.FeatureCode = model.FeatureCode(fc)
	return f, nil
}

func (r *planRepo) ListFeatures(ctx context.Context, tx repository.Tx, planID string) ([]*model.PlanFeature, error) {
	const q = `
SELECT plan_id, feature_code, feature_name, feature_value
  FROM plan_features
 WHERE plan_id=$1
 ORDER BY feature_code ASC;`
	rows, err := queryRows(ctx, r.pool, tx, q, planID)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var out []*model.PlanFeature
	for rows.Next() {
		f := &model.PlanFeature{}
		var fc string
		if err := rows.Scan(&f.PlanID, &fc, &f.FeatureName, &f.Value); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		f.FeatureCode = model.FeatureCode(fc)
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return out, nil
}

func (r *planRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.Plan, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}
	return scanPlanRow(row)
}

func scanPlan(rows pgx.Rows) (*model.Plan, error) {
	p := &model.Plan{}
	var cycle string
	if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &cycle, &p.DurationDays, &p.IsActive, &p.CreatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	p.BillingCycle = model.BillingCycle(cycle)
	return p, nil
}

func scanPlanRow(row pgx.Row) (*model.Plan, error) {
	p := &model.Plan{}
	var cycle string
	if err := row.Scan(&p.ID, &p.Code, &p.Name, &p.PriceCents, &cycle, &p.DurationDays, &p.IsActive, &p.CreatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	p.BillingCycle = model.BillingCycle(cycle)
	return p, nil
}

func translateErr(err error) error {
	switch err {
	case pgx.ErrNoRows:
		return domain.ErrNotFound
	case domain.ErrInvalidArgument, domain.ErrInvalidExecContext:
		return err
	default:
		return domain.ErrOperationFailed
	}
}
