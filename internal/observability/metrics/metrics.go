// Package metrics registers the Prometheus collectors shared across
// services.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LedgerTransactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "ledger",
		Name:      "transactions_total",
		Help:      "Committed ledger transactions by type.",
	}, []string{"type"})

	LedgerConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "ledger",
		Name:      "conflicts_total",
		Help:      "Balance updates abandoned after exhausting optimistic retries.",
	})

	InvoicesCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "invoice",
		Name:      "created_total",
		Help:      "Invoices created by payment method.",
	}, []string{"payment_method"})

	InvoicesExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "invoice",
		Name:      "expired_total",
		Help:      "Invoices expired by the background sweep.",
	})

	PaymentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "payment",
		Name:      "processed_total",
		Help:      "Payment webhook outcomes by provider and result.",
	}, []string{"provider", "result"})

	PaymentAmount = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billing",
		Subsystem: "payment",
		Name:      "amount_rub",
		Help:      "Distribution of successful payment amounts in RUB.",
		Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"provider"})

	SubscriptionRenewalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "subscription",
		Name:      "renewals_total",
		Help:      "Subscription renewals by kind (auto, manual).",
	}, []string{"kind", "result"})

	TaskBillingFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "taskbill",
		Name:      "billing_failures_total",
		Help:      "Completed streaming tasks whose final debit failed.",
	})

	TaskStreamsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "taskbill",
		Name:      "streams_total",
		Help:      "Streaming task outcomes.",
	}, []string{"outcome"})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "notifier",
		Name:      "sent_total",
		Help:      "Notifications sent by kind and result.",
	}, []string{"kind", "result"})

	SchedulerJobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "billing",
		Subsystem: "scheduler",
		Name:      "job_runs_total",
		Help:      "Scheduler job executions by job and result.",
	}, []string{"job", "result"})

	SchedulerJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billing",
		Subsystem: "scheduler",
		Name:      "job_duration_seconds",
		Help:      "Scheduler job execution time.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "billing",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency by route, method and status.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method", "status"})
)
