package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "aicavalli",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern and status class.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	OrdersCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicavalli",
		Name:      "orders_created_total",
		Help:      "Orders accepted by intake, by kind (items or staff_meal).",
	}, []string{"kind"})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicavalli",
		Name:      "order_status_transitions_total",
		Help:      "Kitchen status changes by target status and whether a step was skipped.",
	}, []string{"to", "skipped"})

	BillsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicavalli",
		Name:      "bills_generated_total",
		Help:      "Billing calls by outcome (created, existing, nothing_to_bill).",
	}, []string{"outcome"})

	BillFinalTotal = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "aicavalli",
		Name:      "bill_final_total",
		Help:      "Final totals of generated bills in the restaurant currency.",
		Buckets:   []float64{100, 250, 500, 1000, 2000, 5000, 10000},
	})

	SideEffectFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "aicavalli",
		Name:      "side_effect_failures_total",
		Help:      "Best-effort work after commit that failed and was swallowed.",
	}, []string{"effect"})

	RealtimeSubscribers = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aicavalli",
		Name:      "realtime_subscribers",
		Help:      "Open change-feed subscriptions by entity.",
	}, []string{"entity"})
)
