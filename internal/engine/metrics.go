package engine

import "github.com/prometheus/client_golang/prometheus"

var (
	executionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_executions_total",
			Help: "Total number of finished pipeline executions.",
		},
		[]string{"pipeline", "status"},
	)

	executionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "taskflow_execution_duration_seconds",
			Help:    "Pipeline execution duration in seconds.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"pipeline"},
	)

	stepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_steps_total",
			Help: "Total number of pipeline steps by outcome.",
		},
		[]string{"outcome"},
	)

	extractionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "taskflow_extraction_failures_total",
			Help: "Step responses that could not be parsed for extraction.",
		},
	)
)

func init() {
	prometheus.MustRegister(executionsTotal)
	prometheus.MustRegister(executionDuration)
	prometheus.MustRegister(stepsTotal)
	prometheus.MustRegister(extractionFailuresTotal)
}
