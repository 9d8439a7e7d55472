package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Action outcomes.
const (
	outcomeOK          = "ok"
	outcomeRemoteError = "remote_error"
	outcomeRejected    = "rejected"
)

var (
	actionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redcart_checkout_actions_total",
			Help: "Checkout orchestrator actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	actionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redcart_checkout_action_duration_seconds",
			Help:    "Duration of checkout orchestrator actions including remote calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
		[]string{"action"},
	)

	paymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redcart_payment_status_observed_total",
			Help: "Payment statuses observed by status checks",
		},
		[]string{"status"},
	)
)
