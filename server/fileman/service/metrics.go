package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileman_uploads_total",
		Help: "Uploads by outcome",
	}, []string{"status"})

	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileman_compensations_total",
		Help: "Compensating object deletes after a failed metadata write",
	}, []string{"status"})

	orphansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fileman_orphaned_objects_total",
		Help: "Objects recorded for reconciliation, by the operation that left them behind",
	}, []string{"source"})

	reconcileRunsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fileman_reconcile_runs_total",
		Help: "Reconciliation sweeps started",
	})

	reconcileDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fileman_reconcile_deleted_total",
		Help: "Orphaned objects removed by reconciliation",
	})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fileman_operation_duration_seconds",
		Help:    "Duration of file operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})
)

func observe(op string, start time.Time) {
	operationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
