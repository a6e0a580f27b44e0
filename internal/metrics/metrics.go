// Package metrics holds the Prometheus collectors for restore, reconcile,
// the outbox and the operator HTTP API. Collectors are registered with the
// default registry on import.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "rentsync"

// Reconcile status gauge values.
const (
	StatusValueOK      = 0
	StatusValueWarning = 1
	StatusValueError   = 2
)

var (
	RestoreRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restore_runs_total",
		Help:      "Restore runs by result (clean, partial, rejected).",
	}, []string{"result"})

	RestoreRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "restore_records_total",
		Help:      "Documents processed by restore per collection and outcome.",
	}, []string{"collection", "outcome"})

	RestoreDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "restore_duration_seconds",
		Help:      "Wall time of a restore run.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})

	ReconcileStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "reconcile_status",
		Help:      "Last reconciliation status per tenant and collection (0 OK, 1 WARNING, 2 ERROR).",
	}, []string{"tenant_id", "collection"})

	ReconcilePermissionErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_permission_errors_total",
		Help:      "Remote counts rejected for lack of permission.",
	}, []string{"collection"})

	OutboxMarksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_marks_total",
		Help:      "Dirty marks by path (queued, inline) and failures.",
	}, []string{"result"})

	OutboxPushesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_pushes_total",
		Help:      "Outbox entries pushed per entity type and result.",
	}, []string{"entity_type", "result"})

	OutboxBacklog = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "outbox_backlog",
		Help:      "Dirty entries per entity type at the start of the last drain.",
	}, []string{"entity_type"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Operator API requests.",
	}, []string{"method", "route", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Operator API latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
)

func init() {
	prometheus.MustRegister(
		RestoreRunsTotal,
		RestoreRecordsTotal,
		RestoreDuration,
		ReconcileStatus,
		ReconcilePermissionErrors,
		OutboxMarksTotal,
		OutboxPushesTotal,
		OutboxBacklog,
		HTTPRequestsTotal,
		HTTPRequestDuration,
	)
}
