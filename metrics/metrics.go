package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookNotifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "webhook_notifications_total",
		Help:      "Processor notifications by event type and handling result.",
	}, []string{"event_type", "result"})

	TransactionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "transaction_transitions_total",
		Help:      "Transaction state transitions by target status.",
	}, []string{"status"})

	PayoutTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "payout_transitions_total",
		Help:      "Payout state transitions by target status.",
	}, []string{"status"})

	InvalidState = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "invalid_state_total",
		Help:      "Rejected state transitions; any increase should page.",
	}, []string{"entity"})

	SettledAmount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "marketplace",
		Name:      "settled_minor_units_total",
		Help:      "Settled money in minor units by share.",
	}, []string{"share"})
)
