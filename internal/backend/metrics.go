package backend

import "github.com/prometheus/client_golang/prometheus"

var (
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_backend_submissions_total",
			Help: "Tasks submitted to the backend.",
		},
		[]string{"capability"},
	)

	pollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "taskflow_backend_polls_total",
			Help: "Task polls by outcome.",
		},
		[]string{"outcome"},
	)

	taskWaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "taskflow_backend_task_wait_seconds",
			Help:    "Time from the first poll to a terminal status.",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
)

func init() {
	prometheus.MustRegister(submissionsTotal, pollsTotal, taskWaitSeconds)
}
