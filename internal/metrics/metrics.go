package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicom_operations_total",
		Help: "DIMSE operations by type and outcome",
	}, []string{"operation", "outcome"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dicom_operation_duration_seconds",
		Help:    "DIMSE operation duration",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"operation"})

	transfersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dicom_transfers_total",
		Help: "Completed transfer tasks by final status",
	}, []string{"status"})
)

// ObserveOperation records one DIMSE operation.
func ObserveOperation(operation string, ok bool, duration time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObserveTransfer records the final status of a transfer task.
func ObserveTransfer(status string) {
	transfersTotal.WithLabelValues(status).Inc()
}
