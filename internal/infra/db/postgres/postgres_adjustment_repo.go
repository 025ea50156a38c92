package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Ensure adjustmentRepo implements repository.AdjustmentRepository
var _ repository.AdjustmentRepository = (*adjustmentRepo)(nil)

type adjustmentRepo struct {
	pool *pgxpool.Pool
}

func NewAdjustmentRepo(pool *pgxpool.Pool) *adjustmentRepo {
	return &adjustmentRepo{pool: pool}
}

// Record is a single INSERT inside the caller's transaction. It is never
// retried or batched: correctness requires exactly one row per lifecycle
// operation, created atomically with the state change it describes.
func (r *adjustmentRepo) Record(ctx context.Context, tx repository.Tx, a *model.SubscriptionAdjustment) error {
	const q = `
INSERT INTO subscription_adjustments (
  id, user_id, subscription_id, adjustment_type, old_plan_id, new_plan_id,
  old_end_date, new_end_date, days_added, quota_adjustments, reason,
  admin_id, ip_address, user_agent, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15);`

	var quotaJSON []byte
	if len(a.QuotaChanges) > 0 {
		var err error
		quotaJSON, err = json.Marshal(a.QuotaChanges)
		if err != nil {
			return domain.ErrInvalidArgument
		}
	}

	_, err := execSQL(ctx, r.pool, tx, q,
		a.ID, a.UserID, a.SubscriptionID, a.Type, a.OldPlanID, a.NewPlanID,
		a.OldEndDate, a.NewEndDate, a.DaysAdded, quotaJSON, a.Reason,
		a.AdminID, a.IPAddress, a.UserAgent, a.CreatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

const adjColumns = `id, user_id, subscription_id, adjustment_type, old_plan_id, new_plan_id, old_end_date, new_end_date, days_added, quota_adjustments, reason, admin_id, ip_address, user_agent, created_at`

func (r *adjustmentRepo) HistoryByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.SubscriptionAdjustment, int, error) {
	q := `
SELECT ` + adjColumns + `
  FROM subscription_adjustments
 WHERE user_id=$1
 ORDER BY created_at DESC
 LIMIT $2 OFFSET $3;`
	rows, err := queryRows(ctx, r.pool, tx, q, userID, limit, offset)
	if err != nil {
		return nil, 0, translateErr(err)
	}
	defer rows.Close()

	var out []*model.SubscriptionAdjustment
	for rows.Next() {
		a, err := scanAdjustment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}

	const countQ = `SELECT COUNT(*) FROM subscription_adjustments WHERE user_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, countQ, userID)
	if err != nil {
		return nil, 0, err
	}
	var total int
	if err := row.Scan(&total); err != nil {
		return nil, 0, domain.ErrReadDatabaseRow
	}
	return out, total, nil
}

func scanAdjustment(rows pgx.Rows) (*model.SubscriptionAdjustment, error) {
	a := &model.SubscriptionAdjustment{}
	var typ string
	var quotaJSON []byte
	if err := rows.Scan(&a.ID, &a.UserID, &a.SubscriptionID, &typ, &a.OldPlanID, &a.NewPlanID,
		&a.OldEndDate, &a.NewEndDate, &a.DaysAdded, &quotaJSON, &a.Reason,
		&a.AdminID, &a.IPAddress, &a.UserAgent, &a.CreatedAt); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	a.Type = model.AdjustmentType(typ)
	if len(quotaJSON) > 0 {
		if err := json.Unmarshal(quotaJSON, &a.QuotaChanges); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return a, nil
}
