package model

import (
	"time"

	"saas-billing/internal/domain"
)

// BillingCycle is the recurrence of a plan.
type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

// cycleDays maps a billing cycle to its fixed length in days. Kept as a
// table so adding a cycle never touches transition logic.
var cycleDays = map[BillingCycle]int{
	BillingCycleMonthly:   30,
	BillingCycleQuarterly: 90,
	BillingCycleYearly:    365,
}

// Days returns the cycle length, or 0 for an unknown cycle.
func (c BillingCycle) Days() int { return cycleDays[c] }

// Plan is a purchasable subscription tier. Plans are immutable from the
// lifecycle engine's perspective; a separate catalog-management flow owns
// their creation and editing.
type Plan struct {
	ID           string // UUID
	Code         string // stable slug: free / professional / enterprise
	Name         string
	PriceCents   int64
	BillingCycle BillingCycle
	DurationDays int // optional explicit override of cycle length, 0 if unset
	IsActive     bool
	CreatedAt    time.Time
}

func (p *Plan) IsZero() bool { return p == nil || p.ID == "" }

// PeriodDays resolves the plan's effective duration: the explicit override
// wins, otherwise the billing-cycle table, otherwise 30.
func (p *Plan) PeriodDays() int {
	if p.DurationDays > 0 {
		return p.DurationDays
	}
	if d := p.BillingCycle.Days(); d > 0 {
		return d
	}
	return 30
}

// PlanFeature is one row of a plan's default quota table.
// Value of -1 means unlimited.
type PlanFeature struct {
	PlanID      string
	FeatureCode FeatureCode
	FeatureName string
	Value       int
}

// NewPlan validates and constructs a plan.
func NewPlan(id, code, name string, priceCents int64, cycle BillingCycle, durationDays int) (*Plan, error) {
	if id == "" || code == "" || name == "" || priceCents < 0 || durationDays < 0 {
		return nil, domain.ErrInvalidArgument
	}
	return &Plan{
		ID:           id,
		Code:         code,
		Name:         name,
		PriceCents:   priceCents,
		BillingCycle: cycle,
		DurationDays: durationDays,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}, nil
}

// FreePlanCode is the slug of the tier users fall back to on immediate cancel.
const FreePlanCode = "free"
