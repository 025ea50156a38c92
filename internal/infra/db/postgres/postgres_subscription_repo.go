package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/repository"
)

// Ensure subscriptionRepo implements repository.SubscriptionRepository
var _ repository.SubscriptionRepository = (*subscriptionRepo)(nil)

type subscriptionRepo struct {
	pool *pgxpool.Pool
}

func NewSubscriptionRepo(pool *pgxpool.Pool) *subscriptionRepo {
	return &subscriptionRepo{pool: pool}
}

const subColumns = `id, user_id, plan_id, status, start_date, end_date, paused_at, pause_reason, is_gift, gift_reason, auto_renew, custom_quotas, created_at, updated_at`

func (r *subscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	q := `
SELECT ` + subColumns + `
  FROM user_subscriptions
 WHERE user_id=$1 AND status='active' AND end_date > NOW()
 ORDER BY end_date DESC
 LIMIT 1;`
	sub, err := r.queryOne(ctx, tx, q, userID)
	if err == domain.ErrNotFound {
		return nil, domain.ErrNoActiveSubscription
	}
	return sub, err
}

// LockActiveByUser serializes lifecycle operations per user. It must run
// inside a transaction; the row lock is held until commit or rollback.
func (r *subscriptionRepo) LockActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	if _, ok := tx.(pgx.Tx); !ok {
		return nil, domain.ErrInvalidExecContext
	}
	q := `
SELECT ` + subColumns + `
  FROM user_subscriptions
 WHERE user_id=$1 AND status='active' AND end_date > NOW()
 ORDER BY end_date DESC
 LIMIT 1
 FOR UPDATE;`
	sub, err := r.queryOne(ctx, tx, q, userID)
	if err == domain.ErrNotFound {
		return nil, domain.ErrNoActiveSubscription
	}
	return sub, err
}

func (r *subscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserSubscription, error) {
	q := `SELECT ` + subColumns + ` FROM user_subscriptions WHERE id=$1;`
	return r.queryOne(ctx, tx, q, id)
}

func (r *subscriptionRepo) Create(ctx context.Context, tx repository.Tx, s *model.UserSubscription) error {
	const q = `
INSERT INTO user_subscriptions (
  id, user_id, plan_id, status, start_date, end_date, paused_at, pause_reason,
  is_gift, gift_reason, auto_renew, custom_quotas, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14);`

	quotas, err := marshalQuotas(s.CustomQuotas)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		s.ID, s.UserID, s.PlanID, s.Status, s.StartDate, s.EndDate,
		s.PausedAt, s.PauseReason, s.IsGift, s.GiftReason, s.AutoRenew,
		quotas, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) DemoteActive(ctx context.Context, tx repository.Tx, userID string, to model.SubscriptionStatus, endDate *time.Time) error {
	if endDate != nil {
		const q = `
UPDATE user_subscriptions
   SET status=$2, end_date=$3, updated_at=NOW()
 WHERE user_id=$1 AND status='active';`
		_, err := execSQL(ctx, r.pool, tx, q, userID, to, *endDate)
		if err != nil {
			return translateErr(err)
		}
		return nil
	}
	const q = `
UPDATE user_subscriptions
   SET status=$2, updated_at=NOW()
 WHERE user_id=$1 AND status='active';`
	_, err := execSQL(ctx, r.pool, tx, q, userID, to)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) UpdatePlan(ctx context.Context, tx repository.Tx, subID, planID string, endDate time.Time) error {
	const q = `
UPDATE user_subscriptions
   SET plan_id=$2, end_date=$3, custom_quotas=NULL, updated_at=NOW()
 WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subID, planID, endDate)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) UpdateEndDate(ctx context.Context, tx repository.Tx, subID string, endDate time.Time) error {
	const q = `UPDATE user_subscriptions SET end_date=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subID, endDate)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) SetPaused(ctx context.Context, tx repository.Tx, subID string, pausedAt *time.Time, reason *string) error {
	const q = `UPDATE user_subscriptions SET paused_at=$2, pause_reason=$3, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subID, pausedAt, reason)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) SetAutoRenew(ctx context.Context, tx repository.Tx, subID string, autoRenew bool) error {
	const q = `UPDATE user_subscriptions SET auto_renew=$2, updated_at=NOW() WHERE id=$1;`
	_, err := execSQL(ctx, r.pool, tx, q, subID, autoRenew)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) SetCustomQuotas(ctx context.Context, tx repository.Tx, subID string, quotas model.CustomQuotas) error {
	const q = `UPDATE user_subscriptions SET custom_quotas=$2, updated_at=NOW() WHERE id=$1;`
	raw, err := marshalQuotas(quotas)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q, subID, raw)
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (r *subscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	const q = `SELECT status, COUNT(*) FROM user_subscriptions GROUP BY status;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	defer rows.Close()

	counts := make(map[model.SubscriptionStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		counts[model.SubscriptionStatus(status)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return counts, nil
}

func (r *subscriptionRepo) queryOne(ctx context.Context, tx repository.Tx, sql string, args ...any) (*model.UserSubscription, error) {
	row, err := pickRow(ctx, r.pool, tx, sql, args...)
	if err != nil {
		return nil, err
	}

	s := &model.UserSubscription{}
	var status string
	var quotas []byte
	if err := row.Scan(&s.ID, &s.UserID, &s.PlanID, &status, &s.StartDate, &s.EndDate,
		&s.PausedAt, &s.PauseReason, &s.IsGift, &s.GiftReason, &s.AutoRenew,
		&quotas, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s.Status = model.SubscriptionStatus(status)
	if len(quotas) > 0 {
		if err := json.Unmarshal(quotas, &s.CustomQuotas); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return s, nil
}

// marshalQuotas keeps NULL in the column when no overrides exist.
func marshalQuotas(q model.CustomQuotas) ([]byte, error) {
	if len(q) == 0 {
		return nil, nil
	}
	return json.Marshal(q)
}
