package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"saas-billing/internal/domain/model"
)

func init() {
	register(
		lifecycleOpsTotal,
		subscriptionsTotal,
		notificationsTotal,
	)
}

var (
	lifecycleOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lifecycle_operations_total",
			Help: "Lifecycle operations executed, by adjustment type and outcome.",
		},
		[]string{"type", "outcome"}, // outcome: 'ok' | 'error'
	)

	subscriptionsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "subscriptions_total",
			Help: "Current number of subscriptions by status.",
		},
		[]string{"status"}, // 'active', 'paused', 'cancelled', 'replaced'
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "session_notifications_total",
			Help: "Events pushed to live user sessions, by delivery result.",
		},
		[]string{"event", "result"}, // result: 'delivered' | 'dropped' | 'failed'
	)
)

func IncLifecycleOp(t model.AdjustmentType, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	lifecycleOpsTotal.WithLabelValues(string(t), outcome).Inc()
}

func SetSubscriptionsTotal(counts map[model.SubscriptionStatus]int) {
	statuses := []model.SubscriptionStatus{
		model.SubscriptionStatusActive,
		model.SubscriptionStatusPaused,
		model.SubscriptionStatusCancelled,
		model.SubscriptionStatusReplaced,
	}
	for _, status := range statuses {
		if count, ok := counts[status]; ok {
			subscriptionsTotal.WithLabelValues(string(status)).Set(float64(count))
		}
	}
}

func IncNotification(event, result string) {
	notificationsTotal.WithLabelValues(norm(event), norm(result)).Inc()
}
