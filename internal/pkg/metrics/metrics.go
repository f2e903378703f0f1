// Package metrics defines and registers the Prometheus metrics of the freight
// core. It is the single source of truth for metric names, labels and help
// strings. Metrics are registered with the default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "freight"

// ── Shipment metrics ──────────────────────────────────────────────────────────

// ShipmentsRegisteredTotal counts shipment notes accepted at intake.
// Label:
//   - payment_mode: CASH_UPFRONT, CASH_ON_DELIVERY or CASH_AFTER_DELIVERY
var ShipmentsRegisteredTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "shipments_registered_total",
		Help:      "Total number of shipment notes registered, by payment mode.",
	},
	[]string{"payment_mode"},
)

// TransitionsTotal counts applied status transitions, single or batched.
// Labels:
//   - from, to: the status edge
//   - source: "api", "batch", or the reporting channel of an ingested event
var TransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transitions_total",
		Help:      "Total number of applied shipment status transitions.",
	},
	[]string{"from", "to", "source"},
)

// TransitionRejectionsTotal counts rejected transitions.
// Label:
//   - reason: invalid_transition, terminal_state, missing_forwarding_agent, contention, other
var TransitionRejectionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transition_rejections_total",
		Help:      "Total number of rejected shipment status transitions.",
	},
	[]string{"reason"},
)

// ── Batch metrics ─────────────────────────────────────────────────────────────

// BatchMovementsTotal counts batch runs by kind and outcome.
// Labels:
//   - kind: LOADING, DEPARTURE, LOCAL_DELIVERY, RETURN or CUSTOM
//   - result: "applied" or "aborted"
var BatchMovementsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "batch_movements_total",
		Help:      "Total number of batch movements, by kind and result.",
	},
	[]string{"kind", "result"},
)

// BatchSize observes the member count of applied batches.
var BatchSize = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "batch_size",
		Help:      "Number of shipment notes moved per applied batch.",
		Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500},
	},
	[]string{"kind"},
)

// ── Billing metrics ───────────────────────────────────────────────────────────

// InvoicesCreatedTotal counts opened invoices.
// Label:
//   - customer_role: SENDER or RECIPIENT
var InvoicesCreatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_created_total",
		Help:      "Total number of invoices created, by customer role.",
	},
	[]string{"customer_role"},
)

// PaymentsTotal counts termin attempts.
// Label:
//   - result: recorded, overpayment, future_dated, already_settled, invalid_amount, voided, contention, other
var PaymentsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "payments_total",
		Help:      "Total number of installment payment attempts, by result.",
	},
	[]string{"result"},
)

// InvoicesSettledTotal counts invoices reaching LUNAS.
var InvoicesSettledTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_settled_total",
		Help:      "Total number of invoices fully settled.",
	},
)

// InvoicesMarkedOverdueTotal counts overdue flag changes made by MarkOverdue.
var InvoicesMarkedOverdueTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "invoices_marked_overdue_total",
		Help:      "Total number of invoices whose overdue flag was raised.",
	},
)

// ── Event ingestion metrics ───────────────────────────────────────────────────

// EventsDedupTotal counts deduplication decisions.
// Labels:
//   - scope: "transition" for request tokens, "event" for scanner events
//   - result: "hit" (duplicate, skipped) or "miss"
var EventsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "dedup_total",
		Help:      "Total number of deduplication checks, by scope and result.",
	},
	[]string{"scope", "result"},
)

// EventsQueueDepth tracks the number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index
var EventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// EventProcessingDuration measures one ingested event end-to-end.
// Label:
//   - status: the applied shipment status, or "error"
var EventProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "event_processing_duration_seconds",
		Help:      "Duration of event processing from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"status"},
)

// ── Coordination metrics ──────────────────────────────────────────────────────

// ContentionTotal counts operations that gave up after the retry budget.
// Label:
//   - operation: transition, batch, payment, invoice, return
var ContentionTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "contention_total",
		Help:      "Total number of operations abandoned due to lock or version contention.",
	},
	[]string{"operation"},
)
