package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks sweep worker execution.
type Metrics struct {
	SweepRunsTotal     *prometheus.CounterVec
	SweepDuration      *prometheus.HistogramVec
	SweepLastSuccess   *prometheus.GaugeVec
	SweepItemsReclaimed *prometheus.CounterVec
}

// NewMetrics creates and registers the worker metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		SweepRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_sweep_runs_total",
				Help: "Total number of sweep runs by job and status",
			},
			[]string{"job", "status"},
		),
		SweepDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_sweep_duration_seconds",
				Help:    "Duration of sweep runs in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
			},
			[]string{"job"},
		),
		SweepLastSuccess: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "worker_sweep_last_success_timestamp_seconds",
				Help: "Unix timestamp of the last successful sweep run",
			},
			[]string{"job"},
		),
		SweepItemsReclaimed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_sweep_items_reclaimed_total",
				Help: "Total number of items reclaimed by sweep runs",
			},
			[]string{"job"},
		),
	}
}

// RecordRun records a completed sweep run.
func (m *Metrics) RecordRun(job string, durationSeconds float64, success bool, reclaimed int) {
	status := "success"
	if !success {
		status = "error"
	}
	m.SweepRunsTotal.WithLabelValues(job, status).Inc()
	m.SweepDuration.WithLabelValues(job).Observe(durationSeconds)
	if success {
		m.SweepLastSuccess.WithLabelValues(job).SetToCurrentTime()
		if reclaimed > 0 {
			m.SweepItemsReclaimed.WithLabelValues(job).Add(float64(reclaimed))
		}
	}
}
