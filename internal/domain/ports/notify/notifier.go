package notify

import "context"

// Event is the type tag pushed to a user's live session. Payloads carry only
// what the client needs to refresh its local view; clients re-fetch full
// state rather than treating the payload as authoritative.
type Event string

const (
	EventSubscriptionUpgraded  Event = "subscription:upgraded"
	EventSubscriptionExtended  Event = "subscription:extended"
	EventQuotaAdjusted         Event = "quota:adjusted"
	EventQuotaReset            Event = "quota:reset"
	EventStorageQuotaChanged   Event = "storage_quota_changed"
	EventSubscriptionPaused    Event = "subscription:paused"
	EventSubscriptionResumed   Event = "subscription:resumed"
	EventSubscriptionCancelled Event = "subscription:cancelled"
	EventSubscriptionGifted    Event = "subscription:gifted"
)

// Notifier pushes a typed event to the affected user's live session(s).
// It is always invoked after commit; delivery failure must never surface as
// a request failure.
type Notifier interface {
	Publish(ctx context.Context, userID string, event Event, payload any) error
}

// NopNotifier discards all events. Used when no live-session transport is
// configured and in tests.
type NopNotifier struct{}

func (NopNotifier) Publish(ctx context.Context, userID string, event Event, payload any) error {
	return nil
}
