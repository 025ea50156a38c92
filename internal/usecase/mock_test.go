//go:build !integration

package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"saas-billing/internal/domain"
	"saas-billing/internal/domain/model"
	"saas-billing/internal/domain/ports/notify"
	"saas-billing/internal/domain/ports/repository"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// Transaction manager
// =============================

type MockTxManager struct {
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

func NewMockTxManager() *MockTxManager {
	return &MockTxManager{}
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

// WithTx runs the function immediately with NoTX unless overridden. Suitable
// for tests that don't need to verify transactional behavior itself.
func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	return fn(ctx, repository.NoTX)
}

// =============================
// Plan repository
// =============================

type MockPlanRepo struct {
	mu       sync.RWMutex
	plans    map[string]*model.Plan
	features map[string]map[model.FeatureCode]*model.PlanFeature

	FindByIDFunc    func(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error)
	FindFeatureFunc func(ctx context.Context, tx repository.Tx, planID string, code model.FeatureCode) (*model.PlanFeature, error)
}

func NewMockPlanRepo() *MockPlanRepo {
	return &MockPlanRepo{
		plans:    make(map[string]*model.Plan),
		features: make(map[string]map[model.FeatureCode]*model.PlanFeature),
	}
}

var _ repository.PlanRepository = (*MockPlanRepo)(nil)

func (m *MockPlanRepo) Add(plan *model.Plan, features ...*model.PlanFeature) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	byCode := make(map[model.FeatureCode]*model.PlanFeature, len(features))
	for _, f := range features {
		byCode[f.FeatureCode] = f
	}
	m.features[plan.ID] = byCode
}

func (m *MockPlanRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Plan, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, tx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MockPlanRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.plans {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MockPlanRepo) ListActive(ctx context.Context, tx repository.Tx) ([]*model.Plan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.Plan
	for _, p := range m.plans {
		if p.IsActive {
			cp := *p
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockPlanRepo) FindFeature(ctx context.Context, tx repository.Tx, planID string, code model.FeatureCode) (*model.PlanFeature, error) {
	if m.FindFeatureFunc != nil {
		return m.FindFeatureFunc(ctx, tx, planID, code)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.features[planID][code]
	if !ok {
		return nil, domain.ErrUnknownFeature
	}
	cp := *f
	return &cp, nil
}

func (m *MockPlanRepo) ListFeatures(ctx context.Context, tx repository.Tx, planID string) ([]*model.PlanFeature, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*model.PlanFeature
	for _, f := range m.features[planID] {
		cp := *f
		out = append(out, &cp)
	}
	return out, nil
}

// =============================
// Subscription repository
// =============================

type MockSubscriptionRepo struct {
	mu   sync.RWMutex
	subs map[string]*model.UserSubscription // by subscription ID

	LockActiveByUserFunc func(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error)
	CreateFunc           func(ctx context.Context, tx repository.Tx, sub *model.UserSubscription) error
	UpdatePlanFunc       func(ctx context.Context, tx repository.Tx, subID, planID string, endDate time.Time) error
}

func NewMockSubscriptionRepo() *MockSubscriptionRepo {
	return &MockSubscriptionRepo{subs: make(map[string]*model.UserSubscription)}
}

var _ repository.SubscriptionRepository = (*MockSubscriptionRepo)(nil)

func (m *MockSubscriptionRepo) Seed(sub *model.UserSubscription) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ID] = &cp
}

// Get returns a copy of the stored row, for assertions.
func (m *MockSubscriptionRepo) Get(subID string) *model.UserSubscription {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[subID]
	if !ok {
		return nil
	}
	cp := *s
	return &cp
}

func (m *MockSubscriptionRepo) activeFor(userID string) *model.UserSubscription {
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive && s.EndDate.After(time.Now()) {
			return s
		}
	}
	return nil
}

func (m *MockSubscriptionRepo) FindActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s := m.activeFor(userID); s != nil {
		cp := *s
		return &cp, nil
	}
	return nil, domain.ErrNoActiveSubscription
}

func (m *MockSubscriptionRepo) LockActiveByUser(ctx context.Context, tx repository.Tx, userID string) (*model.UserSubscription, error) {
	if m.LockActiveByUserFunc != nil {
		return m.LockActiveByUserFunc(ctx, tx, userID)
	}
	return m.FindActiveByUser(ctx, tx, userID)
}

func (m *MockSubscriptionRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.UserSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.subs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *MockSubscriptionRepo) Create(ctx context.Context, tx repository.Tx, sub *model.UserSubscription) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, tx, sub)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}

func (m *MockSubscriptionRepo) DemoteActive(ctx context.Context, tx repository.Tx, userID string, to model.SubscriptionStatus, endDate *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.subs {
		if s.UserID == userID && s.Status == model.SubscriptionStatusActive {
			s.Status = to
			if endDate != nil {
				s.EndDate = *endDate
			}
			s.UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *MockSubscriptionRepo) UpdatePlan(ctx context.Context, tx repository.Tx, subID, planID string, endDate time.Time) error {
	if m.UpdatePlanFunc != nil {
		return m.UpdatePlanFunc(ctx, tx, subID, planID, endDate)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return domain.ErrNotFound
	}
	s.PlanID = planID
	s.EndDate = endDate
	s.CustomQuotas = nil
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepo) UpdateEndDate(ctx context.Context, tx repository.Tx, subID string, endDate time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return domain.ErrNotFound
	}
	s.EndDate = endDate
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepo) SetPaused(ctx context.Context, tx repository.Tx, subID string, pausedAt *time.Time, reason *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return domain.ErrNotFound
	}
	s.PausedAt = pausedAt
	s.PauseReason = reason
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepo) SetAutoRenew(ctx context.Context, tx repository.Tx, subID string, autoRenew bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return domain.ErrNotFound
	}
	s.AutoRenew = autoRenew
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepo) SetCustomQuotas(ctx context.Context, tx repository.Tx, subID string, quotas model.CustomQuotas) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.subs[subID]
	if !ok {
		return domain.ErrNotFound
	}
	s.CustomQuotas = quotas.Clone()
	s.UpdatedAt = time.Now()
	return nil
}

func (m *MockSubscriptionRepo) CountByStatus(ctx context.Context, tx repository.Tx) (map[model.SubscriptionStatus]int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[model.SubscriptionStatus]int)
	for _, s := range m.subs {
		out[s.Status]++
	}
	return out, nil
}

// =============================
// Adjustment ledger
// =============================

type MockAdjustmentRepo struct {
	mu      sync.Mutex
	Records []*model.SubscriptionAdjustment

	RecordFunc func(ctx context.Context, tx repository.Tx, adj *model.SubscriptionAdjustment) error
}

func NewMockAdjustmentRepo() *MockAdjustmentRepo {
	return &MockAdjustmentRepo{}
}

var _ repository.AdjustmentRepository = (*MockAdjustmentRepo)(nil)

func (m *MockAdjustmentRepo) Record(ctx context.Context, tx repository.Tx, adj *model.SubscriptionAdjustment) error {
	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, tx, adj)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *adj
	m.Records = append(m.Records, &cp)
	return nil
}

func (m *MockAdjustmentRepo) HistoryByUser(ctx context.Context, tx repository.Tx, userID string, offset, limit int) ([]*model.SubscriptionAdjustment, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var all []*model.SubscriptionAdjustment
	for _, a := range m.Records {
		if a.UserID == userID {
			all = append(all, a)
		}
	}
	total := len(all)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return all[offset:end], total, nil
}

// Last returns the most recent recorded adjustment, for assertions.
func (m *MockAdjustmentRepo) Last() *model.SubscriptionAdjustment {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Records) == 0 {
		return nil
	}
	return m.Records[len(m.Records)-1]
}

// =============================
// Usage + storage
// =============================

type usageKey struct {
	userID string
	code   model.FeatureCode
}

type MockUsageRepo struct {
	mu     sync.Mutex
	counts map[usageKey]int

	DeleteByFeatureFunc func(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode) error
}

func NewMockUsageRepo() *MockUsageRepo {
	return &MockUsageRepo{counts: make(map[usageKey]int)}
}

var _ repository.UsageRepository = (*MockUsageRepo)(nil)

func (m *MockUsageRepo) SetUsage(userID string, code model.FeatureCode, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[usageKey{userID, code}] = n
}

func (m *MockUsageRepo) CurrentUsage(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[usageKey{userID, code}], nil
}

func (m *MockUsageRepo) DeleteByFeature(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode) error {
	if m.DeleteByFeatureFunc != nil {
		return m.DeleteByFeatureFunc(ctx, tx, userID, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.counts, usageKey{userID, code})
	return nil
}

func (m *MockUsageRepo) Upsert(ctx context.Context, tx repository.Tx, userID string, code model.FeatureCode, periodStart, periodEnd time.Time, reset bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := usageKey{userID, code}
	if _, ok := m.counts[k]; !ok || reset {
		m.counts[k] = 0
	}
	return nil
}

func (m *MockUsageRepo) ClearAll(ctx context.Context, tx repository.Tx, userID string, preserve []model.FeatureCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	keep := make(map[model.FeatureCode]bool, len(preserve))
	for _, p := range preserve {
		keep[p] = true
	}
	for k := range m.counts {
		if k.userID == userID && !keep[k.code] {
			delete(m.counts, k)
		}
	}
	return nil
}

type MockStorageRepo struct {
	mu         sync.Mutex
	QuotaBytes map[string]int64
}

func NewMockStorageRepo() *MockStorageRepo {
	return &MockStorageRepo{QuotaBytes: make(map[string]int64)}
}

var _ repository.StorageRepository = (*MockStorageRepo)(nil)

func (m *MockStorageRepo) SetQuotaBytes(ctx context.Context, tx repository.Tx, userID string, quotaBytes int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.QuotaBytes[userID] = quotaBytes
	return nil
}

// =============================
// Notifier
// =============================

type publishedEvent struct {
	UserID  string
	Event   notify.Event
	Payload any
}

type MockNotifier struct {
	mu        sync.Mutex
	Published []publishedEvent

	PublishFunc func(ctx context.Context, userID string, event notify.Event, payload any) error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

var _ notify.Notifier = (*MockNotifier)(nil)

func (m *MockNotifier) Publish(ctx context.Context, userID string, event notify.Event, payload any) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, userID, event, payload)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, publishedEvent{UserID: userID, Event: event, Payload: payload})
	return nil
}

func (m *MockNotifier) Events() []notify.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]notify.Event, len(m.Published))
	for i, p := range m.Published {
		out[i] = p.Event
	}
	return out
}
