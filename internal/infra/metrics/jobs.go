package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsProcessedTotal, jobRetriesTotal, jobsActive)
}

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_jobs_processed_total",
		Help: "Total number of generation jobs reaching a terminal state, labeled by type and status.",
	},
	[]string{"type", "status"}, // 'completed', 'failed'
)

var jobRetriesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "generation_job_retries_total",
		Help: "Total number of retries scheduled, labeled by job type.",
	},
	[]string{"type"},
)

var jobsActive = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "generation_jobs_active",
		Help: "Jobs currently being processed by this worker.",
	},
)

func IncJobProcessed(jobType, status string) {
	jobsProcessedTotal.WithLabelValues(norm(jobType), norm(status)).Inc()
}

func IncJobRetry(jobType string) {
	jobRetriesTotal.WithLabelValues(norm(jobType)).Inc()
}

func SetActiveJobs(n int) {
	jobsActive.Set(float64(n))
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
