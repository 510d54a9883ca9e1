// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	// HTTPRequestsTotal counts total HTTP requests by method, action, and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "action", "status"},
	)

	// HTTPRequestDuration measures HTTP request duration in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "action", "status"},
	)
)

// Sync engine metrics track the storage engine's business operations
var (
	// SyncWritesTotal counts document writes by outcome (accepted/conflict/rejected)
	SyncWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_writes_total",
			Help: "Total number of sync document writes by outcome",
		},
		[]string{"outcome"},
	)

	// SyncDocumentVersion exposes the current document version
	SyncDocumentVersion = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_document_version",
			Help: "Version of the current main sync document",
		},
	)

	// BackupOperationsTotal counts backup lifecycle operations by kind and outcome
	BackupOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backup_operations_total",
			Help: "Total number of backup operations by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	// HistoryIndexRebuildsTotal counts history index rebuilds
	HistoryIndexRebuildsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "history_index_rebuilds_total",
			Help: "Total number of history index rebuilds",
		},
	)

	// AuthAttemptsTotal counts credential checks by identity tier and outcome
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_attempts_total",
			Help: "Total number of credential checks by tier and outcome",
		},
		[]string{"tier", "outcome"},
	)

	// LockoutsTotal counts lockout transitions by identity tier
	LockoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_lockouts_total",
			Help: "Total number of identity lockouts by tier",
		},
		[]string{"tier"},
	)

	// StorageOperationDuration measures backend operation latency
	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storage_operation_duration_seconds",
			Help:    "Storage backend operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// StorageErrorsTotal counts backend failures
	StorageErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_errors_total",
			Help: "Total number of storage backend failures",
		},
		[]string{"backend", "operation"},
	)

	// SweepDeletedTotal counts keys reclaimed by worker sweeps
	SweepDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweep_deleted_total",
			Help: "Total number of keys reclaimed by retention sweeps",
		},
		[]string{"sweep"},
	)
)

// ObserveStorageOperation records one backend call's latency.
func ObserveStorageOperation(backend, operation string, duration time.Duration) {
	StorageOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}
