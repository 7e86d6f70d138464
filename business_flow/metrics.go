package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Fee transitions partitioned by target status
	feeTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_fee_transitions_total",
			Help: "Agent commission fee transitions applied",
		},
		[]string{"status"},
	)

	// Checkout requests partitioned by outcome
	checkoutRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_checkout_requests_total",
			Help: "Payment gateway checkout requests",
		},
		[]string{"outcome"},
	)

	// Webhooks partitioned by outcome
	webhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_webhooks_total",
			Help: "Payment gateway webhooks received",
		},
		[]string{"outcome"},
	)

	// Confirmations whose property completion did not succeed inline
	partialFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_partial_failures_total",
			Help: "Fee confirmations left with a pending property completion",
		},
	)

	// Relay attempts partitioned by outcome
	completionRelayTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_completion_relay_total",
			Help: "Pending property completion retries",
		},
		[]string{"outcome"},
	)

	settlementsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "settlement_records_created_total",
			Help: "Monthly settlement records created",
		},
	)
)
