package model

import "time"

// AdjustmentType tags one audit-ledger row with the lifecycle operation that
// produced it.
type AdjustmentType string

const (
	AdjustmentTypeUpgrade     AdjustmentType = "upgrade"
	AdjustmentTypeExtend      AdjustmentType = "extend"
	AdjustmentTypeQuotaAdjust AdjustmentType = "quota_adjust"
	AdjustmentTypePause       AdjustmentType = "pause"
	AdjustmentTypeResume      AdjustmentType = "resume"
	AdjustmentTypeCancel      AdjustmentType = "cancel"
	AdjustmentTypeGift        AdjustmentType = "gift"
)

// QuotaChange records the per-feature before/after of a quota mutation.
// Ceiling adjustments fill Old/New; usage resets fill Action/OldUsage.
type QuotaChange struct {
	FeatureName string `json:"feature_name,omitempty"`
	Old         *int   `json:"old,omitempty"`
	New         *int   `json:"new,omitempty"`
	IsPermanent bool   `json:"is_permanent,omitempty"`
	Action      string `json:"action,omitempty"`
	OldUsage    *int   `json:"old_usage,omitempty"`
	NewUsage    *int   `json:"new_usage,omitempty"`
}

// QuotaAdjustments is the JSON payload of the quota_adjustments column.
type QuotaAdjustments map[FeatureCode]QuotaChange

// SubscriptionAdjustment is one append-only audit row. Rows are never
// mutated or deleted; the ledger is the sole source of truth for
// historical reporting.
type SubscriptionAdjustment struct {
	ID             string // UUID
	UserID         string
	SubscriptionID *string // nil for usage-only resets
	Type           AdjustmentType
	OldPlanID      *string
	NewPlanID      *string
	OldEndDate     *time.Time
	NewEndDate     *time.Time
	DaysAdded      *int
	QuotaChanges   QuotaAdjustments
	Reason         string
	AdminID        string
	IPAddress      string
	UserAgent      string
	CreatedAt      time.Time
}
