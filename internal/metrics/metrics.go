package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_readings_total",
			Help: "Total number of sensor readings received",
		},
		[]string{"source", "status"}, // source: http, nats; status: accepted, rejected
	)

	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sensoralert_ingest_batch_size",
			Help:    "Size of reading batches received",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Evaluation metrics
	ObservationsEvaluated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_observations_evaluated_total",
			Help: "Total number of observations checked against thresholds",
		},
		[]string{"sensor_type"},
	)

	ViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_violations_total",
			Help: "Total number of threshold violations detected",
		},
		[]string{"sensor_type", "bound", "severity"},
	)

	EvaluationErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralert_evaluation_errors_total",
			Help: "Total number of failed threshold lookups",
		},
	)

	// Persistence metrics
	AlertsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_alerts_persisted_total",
			Help: "Total number of alert records written to the store",
		},
		[]string{"severity"},
	)

	PersistRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralert_persist_retries_total",
			Help: "Total number of retried alert persistence attempts",
		},
	)

	PersistFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sensoralert_persist_failures_total",
			Help: "Total number of alerts dropped after exhausting persistence retries",
		},
	)

	// Notification metrics
	NotificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_notifications_sent_total",
			Help: "Total number of notifications delivered per channel",
		},
		[]string{"channel"},
	)

	NotificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sensoralert_notification_failures_total",
			Help: "Total number of notification deliveries that failed after retries",
		},
		[]string{"channel"},
	)
)
