package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/notify"
	"saas-billing/internal/domain/ports/repository"
	"saas-billing/internal/infra/metrics"
)

const (
	minDurationDays = 1
	maxDurationDays = 3650
)

// ActionMeta carries the request context recorded on every audit row.
type ActionMeta struct {
	AdminID   string
	IPAddress string
	UserAgent string
}

// FeatureDetail is one row of a subscription detail view: the plan default,
// the effective ceiling after overrides, and current-period consumption.
type FeatureDetail struct {
	FeatureCode    model.FeatureCode `json:"feature_code"`
	FeatureName    string            `json:"feature_name"`
	DefaultValue   int               `json:"default_value"`
	EffectiveValue int               `json:"effective_value"`
	CurrentUsage   int               `json:"current_usage"`
	Overridden     bool              `json:"overridden"`
}

// SubscriptionDetail is the admin-facing view of a user's subscription.
type SubscriptionDetail struct {
	Subscription  *model.UserSubscription `json:"subscription"`
	Plan          *model.Plan             `json:"plan"`
	Features      []FeatureDetail         `json:"features"`
	DaysRemaining int                     `json:"days_remaining"`
}

// Compile-time check
var _ LifecycleUseCase = (*lifecycleUC)(nil)

// LifecycleUseCase orchestrates the subscription lifecycle operations. Each
// operation is one database transaction: lock the user's active row, validate
// preconditions, mutate state, append exactly one audit record, commit.
// Post-commit, events are pushed to the user's live sessions and quotas are
// re-initialized on plan changes; neither can undo the committed write.
type LifecycleUseCase interface {
	Detail(ctx context.Context, userID string) (*SubscriptionDetail, error)
	History(ctx context.Context, userID string, page, pageSize int) ([]*model.SubscriptionAdjustment, int, error)

	UpgradePlan(ctx context.Context, userID, newPlanID, reason string, meta ActionMeta) error
	ExtendSubscription(ctx context.Context, userID string, days int, reason string, meta ActionMeta) error
	AdjustQuota(ctx context.Context, userID string, code model.FeatureCode, newValue int, isPermanent bool, reason string, meta ActionMeta) error
	ResetQuota(ctx context.Context, userID string, code model.FeatureCode, reason string, meta ActionMeta) error
	PauseSubscription(ctx context.Context, userID, reason string, meta ActionMeta) error
	ResumeSubscription(ctx context.Context, userID, reason string, meta ActionMeta) error
	CancelSubscription(ctx context.Context, userID string, immediate bool, reason string, meta ActionMeta) error
	GiftSubscription(ctx context.Context, userID, planID string, durationDays int, reason string, meta ActionMeta) error
}

type lifecycleUC struct {
	plans        repository.PlanRepository
	subs         repository.SubscriptionRepository
	adjustments  repository.AdjustmentRepository
	usage        repository.UsageRepository
	overlay      *QuotaOverlay
	quotaInit    *QuotaInitUseCase
	tm           repository.TransactionManager
	notifier     notify.Notifier
	freePlanCode string
	log          *zerolog.Logger
}

func NewLifecycleUseCase(
	plans repository.PlanRepository,
	subs repository.SubscriptionRepository,
	adjustments repository.AdjustmentRepository,
	usage repository.UsageRepository,
	overlay *QuotaOverlay,
	quotaInit *QuotaInitUseCase,
	tm repository.TransactionManager,
	notifier notify.Notifier,
	freePlanCode string,
	logger *zerolog.Logger,
) *lifecycleUC {
	if freePlanCode == "" {
		freePlanCode = model.FreePlanCode
	}
	return &lifecycleUC{
		plans:        plans,
		subs:         subs,
		adjustments:  adjustments,
		usage:        usage,
		overlay:      overlay,
		quotaInit:    quotaInit,
		tm:           tm,
		notifier:     notifier,
		freePlanCode: freePlanCode,
		log:          logger,
	}
}

// pendingEvent defers notification until after commit.
type pendingEvent struct {
	event   notify.Event
	payload any
}

// planChange defers quota re-initialization until after commit.
type planChange struct {
	planID    string
	startDate time.Time
}

// --- operations ---

func (uc *lifecycleUC) UpgradePlan(ctx context.Context, userID, newPlanID, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeUpgrade, err) }()

	var events []pendingEvent
	var change *planChange
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		plan, err := uc.plans.FindByID(ctx, tx, newPlanID)
		if err != nil {
			return err
		}

		now := time.Now()
		newEnd := model.EndOfDay(now.AddDate(0, 0, plan.PeriodDays()))
		oldPlanID := sub.PlanID
		oldEnd := sub.EndDate

		// In-place mutation; clears custom_quotas so the new plan's
		// defaults take effect cleanly.
		if err := uc.subs.UpdatePlan(ctx, tx, sub.ID, plan.ID, newEnd); err != nil {
			return err
		}

		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypeUpgrade,
			OldPlanID:      &oldPlanID,
			NewPlanID:      &plan.ID,
			OldEndDate:     &oldEnd,
			NewEndDate:     &newEnd,
			Reason:         reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventSubscriptionUpgraded, map[string]any{
			"newPlanName": plan.Name,
			"newEndDate":  newEnd,
		}})
		change = &planChange{planID: plan.ID, startDate: now}
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, change)
	return nil
}

func (uc *lifecycleUC) ExtendSubscription(ctx context.Context, userID string, days int, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeExtend, err) }()

	if days < minDurationDays || days > maxDurationDays {
		return domain.ErrInvalidDuration
	}

	var events []pendingEvent
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		// Additive from the old end date, not from now.
		oldEnd := sub.EndDate
		newEnd := oldEnd.AddDate(0, 0, days)
		if err := uc.subs.UpdateEndDate(ctx, tx, sub.ID, newEnd); err != nil {
			return err
		}

		daysAdded := days
		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypeExtend,
			OldEndDate:     &oldEnd,
			NewEndDate:     &newEnd,
			DaysAdded:      &daysAdded,
			Reason:         reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventSubscriptionExtended, map[string]any{
			"daysAdded":  days,
			"newEndDate": newEnd,
		}})
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, nil)
	return nil
}

func (uc *lifecycleUC) AdjustQuota(ctx context.Context, userID string, code model.FeatureCode, newValue int, isPermanent bool, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeQuotaAdjust, err) }()

	if newValue < model.UnlimitedQuota {
		return domain.ErrInvalidQuotaValue
	}
	if !code.Valid() {
		return domain.ErrUnknownFeature
	}

	var events []pendingEvent
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		feature, err := uc.plans.FindFeature(ctx, tx, sub.PlanID, code)
		if err != nil {
			return err
		}

		quotas, oldValue, err := uc.overlay.Merge(ctx, tx, sub, code, newValue)
		if err != nil {
			return err
		}
		if err := uc.subs.SetCustomQuotas(ctx, tx, sub.ID, quotas); err != nil {
			return err
		}

		oldV, newV := oldValue, newValue
		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypeQuotaAdjust,
			QuotaChanges: model.QuotaAdjustments{code: {
				FeatureName: feature.FeatureName,
				Old:         &oldV,
				New:         &newV,
				IsPermanent: isPermanent,
			}},
			Reason: reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventQuotaAdjusted, map[string]any{
			"featureCode": code,
			"oldValue":    oldValue,
			"newValue":    newValue,
		}})
		if code == model.FeatureStorageSpace {
			events = append(events, pendingEvent{notify.EventStorageQuotaChanged, map[string]any{
				"userId":     userID,
				"oldQuotaMB": oldValue,
				"newQuotaMB": newValue,
			}})
		}
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, nil)
	return nil
}

func (uc *lifecycleUC) ResetQuota(ctx context.Context, userID string, code model.FeatureCode, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeQuotaAdjust, err) }()

	if !code.Valid() {
		return domain.ErrUnknownFeature
	}

	var events []pendingEvent
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		oldUsage, err := uc.usage.CurrentUsage(ctx, tx, userID, code)
		if err != nil {
			return err
		}
		// Resets the consumption counter only; the ceiling is untouched.
		if err := uc.usage.DeleteByFeature(ctx, tx, userID, code); err != nil {
			return err
		}

		zero := 0
		oldU := oldUsage
		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID: userID,
			Type:   model.AdjustmentTypeQuotaAdjust,
			QuotaChanges: model.QuotaAdjustments{code: {
				Action:   "reset",
				OldUsage: &oldU,
				NewUsage: &zero,
			}},
			Reason: reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventQuotaReset, map[string]any{
			"featureCode": code,
			"oldUsage":    oldUsage,
		}})
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, nil)
	return nil
}

func (uc *lifecycleUC) PauseSubscription(ctx context.Context, userID, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypePause, err) }()

	var events []pendingEvent
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if sub.IsPaused() {
			return domain.ErrAlreadyPaused
		}

		// Advisory metadata only: end_date keeps elapsing while paused.
		now := time.Now()
		if err := uc.subs.SetPaused(ctx, tx, sub.ID, &now, &reason); err != nil {
			return err
		}

		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypePause,
			Reason:         reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventSubscriptionPaused, map[string]any{
			"reason": reason,
		}})
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, nil)
	return nil
}

func (uc *lifecycleUC) ResumeSubscription(ctx context.Context, userID, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeResume, err) }()

	var events []pendingEvent
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !sub.IsPaused() {
			return domain.ErrNotPaused
		}

		if err := uc.subs.SetPaused(ctx, tx, sub.ID, nil, nil); err != nil {
			return err
		}

		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypeResume,
			Reason:         reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventSubscriptionResumed, map[string]any{}})
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, nil)
	return nil
}

func (uc *lifecycleUC) CancelSubscription(ctx context.Context, userID string, immediate bool, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeCancel, err) }()

	var events []pendingEvent
	var change *planChange
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		sub, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		plan, err := uc.plans.FindByID(ctx, tx, sub.PlanID)
		if err != nil {
			return err
		}
		if plan.Code == uc.freePlanCode {
			return domain.ErrAlreadyFreePlan
		}

		oldPlanID := sub.PlanID
		oldEnd := sub.EndDate

		if !immediate {
			// Expiry itself happens via the scheduled sweep; we only stop
			// the renewal.
			if err := uc.subs.SetAutoRenew(ctx, tx, sub.ID, false); err != nil {
				return err
			}
			if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
				UserID:         userID,
				SubscriptionID: &sub.ID,
				Type:           model.AdjustmentTypeCancel,
				OldPlanID:      &oldPlanID,
				OldEndDate:     &oldEnd,
				NewEndDate:     &oldEnd,
				Reason:         reason,
			}, meta); err != nil {
				return err
			}
			events = append(events, pendingEvent{notify.EventSubscriptionCancelled, map[string]any{
				"immediate": false,
			}})
			return nil
		}

		// Immediate cancel: demote the paid row and fall back to the free
		// tier in the same transaction, so the user is never left without
		// an active subscription.
		now := time.Now()
		if err := uc.subs.DemoteActive(ctx, tx, userID, model.SubscriptionStatusCancelled, &now); err != nil {
			return err
		}
		if err := uc.quotaInit.ClearUsage(ctx, tx, userID); err != nil {
			return err
		}

		freePlan, err := uc.plans.FindByCode(ctx, tx, uc.freePlanCode)
		if err != nil {
			return err
		}
		newEnd := model.EndOfDay(now.AddDate(0, 0, freePlan.PeriodDays()))
		giftReason := "automatic fallback after cancellation"
		freeSub, err := model.NewUserSubscription(uuid.NewString(), userID, freePlan, newEnd, true, giftReason)
		if err != nil {
			return err
		}
		if err := uc.subs.Create(ctx, tx, freeSub); err != nil {
			return err
		}

		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypeCancel,
			OldPlanID:      &oldPlanID,
			NewPlanID:      &freePlan.ID,
			OldEndDate:     &oldEnd,
			NewEndDate:     &now,
			Reason:         reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventSubscriptionCancelled, map[string]any{
			"immediate": true,
		}})
		change = &planChange{planID: freePlan.ID, startDate: now}
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, change)
	return nil
}

func (uc *lifecycleUC) GiftSubscription(ctx context.Context, userID, planID string, durationDays int, reason string, meta ActionMeta) (err error) {
	defer func() { metrics.IncLifecycleOp(model.AdjustmentTypeGift, err) }()

	if durationDays < minDurationDays || durationDays > maxDurationDays {
		return domain.ErrInvalidDuration
	}

	var events []pendingEvent
	var change *planChange
	err = uc.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		plan, err := uc.plans.FindByID(ctx, tx, planID)
		if err != nil {
			return err
		}

		// A gift supersedes any running subscription rather than
		// cancelling it; the prior row keeps its billing history.
		var oldPlanID *string
		prior, err := uc.subs.LockActiveByUser(ctx, tx, userID)
		switch err {
		case nil:
			oldPlanID = &prior.PlanID
			if err := uc.subs.DemoteActive(ctx, tx, userID, model.SubscriptionStatusReplaced, nil); err != nil {
				return err
			}
		case domain.ErrNoActiveSubscription:
			// first subscription for this user
		default:
			return err
		}

		now := time.Now()
		newEnd := model.EndOfDay(now.AddDate(0, 0, durationDays))
		sub, err := model.NewUserSubscription(uuid.NewString(), userID, plan, newEnd, true, reason)
		if err != nil {
			return err
		}
		if err := uc.subs.Create(ctx, tx, sub); err != nil {
			return err
		}

		daysAdded := durationDays
		if err := uc.record(ctx, tx, &model.SubscriptionAdjustment{
			UserID:         userID,
			SubscriptionID: &sub.ID,
			Type:           model.AdjustmentTypeGift,
			OldPlanID:      oldPlanID,
			NewPlanID:      &plan.ID,
			NewEndDate:     &newEnd,
			DaysAdded:      &daysAdded,
			Reason:         reason,
		}, meta); err != nil {
			return err
		}

		events = append(events, pendingEvent{notify.EventSubscriptionGifted, map[string]any{
			"planName":     plan.Name,
			"durationDays": durationDays,
			"endDate":      newEnd,
		}})
		change = &planChange{planID: plan.ID, startDate: now}
		return nil
	})
	if err != nil {
		return err
	}

	uc.afterCommit(ctx, userID, events, change)
	return nil
}

// --- reads ---

func (uc *lifecycleUC) Detail(ctx context.Context, userID string) (*SubscriptionDetail, error) {
	sub, err := uc.subs.FindActiveByUser(ctx, repository.NoTX, userID)
	if err != nil {
		return nil, err
	}
	plan, err := uc.plans.FindByID(ctx, repository.NoTX, sub.PlanID)
	if err != nil {
		return nil, err
	}
	features, err := uc.plans.ListFeatures(ctx, repository.NoTX, sub.PlanID)
	if err != nil {
		return nil, err
	}

	detail := &SubscriptionDetail{
		Subscription:  sub,
		Plan:          plan,
		DaysRemaining: int(time.Until(sub.EndDate).Hours() / 24),
	}
	for _, f := range features {
		effective := f.Value
		overridden := false
		if v, ok := sub.CustomQuotas.Lookup(f.FeatureCode); ok {
			effective = v
			overridden = true
		}
		usage, err := uc.usage.CurrentUsage(ctx, repository.NoTX, userID, f.FeatureCode)
		if err != nil {
			return nil, err
		}
		detail.Features = append(detail.Features, FeatureDetail{
			FeatureCode:    f.FeatureCode,
			FeatureName:    f.FeatureName,
			DefaultValue:   f.Value,
			EffectiveValue: effective,
			CurrentUsage:   usage,
			Overridden:     overridden,
		})
	}
	return detail, nil
}

func (uc *lifecycleUC) History(ctx context.Context, userID string, page, pageSize int) ([]*model.SubscriptionAdjustment, int, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	return uc.adjustments.HistoryByUser(ctx, repository.NoTX, userID, offset, pageSize)
}

// --- helpers ---

// record fills the bookkeeping fields and appends the audit row inside the
// caller's transaction. A failed insert fails the whole operation.
func (uc *lifecycleUC) record(ctx context.Context, tx repository.Tx, adj *model.SubscriptionAdjustment, meta ActionMeta) error {
	adj.ID = uuid.NewString()
	adj.AdminID = meta.AdminID
	adj.IPAddress = meta.IPAddress
	adj.UserAgent = meta.UserAgent
	adj.CreatedAt = time.Now()
	return uc.adjustments.Record(ctx, tx, adj)
}

// afterCommit delivers deferred notifications and reseeds quotas. Both are
// best-effort: the transaction has committed and nothing here may undo it.
func (uc *lifecycleUC) afterCommit(ctx context.Context, userID string, events []pendingEvent, change *planChange) {
	for _, e := range events {
		if err := uc.notifier.Publish(ctx, userID, e.event, e.payload); err != nil {
			metrics.IncNotification(string(e.event), "failed")
			uc.log.Warn().Err(err).
				Str("user_id", userID).
				Str("event", string(e.event)).
				Msg("notification delivery failed")
			continue
		}
		metrics.IncNotification(string(e.event), "delivered")
	}

	if change != nil {
		if _, err := uc.quotaInit.InitializeForPlan(ctx, repository.NoTX, userID, change.planID, change.startDate, true); err != nil {
			uc.log.Error().Err(err).
				Str("user_id", userID).
				Str("plan_id", change.planID).
				Msg("quota re-initialization failed")
		}
	}
}
