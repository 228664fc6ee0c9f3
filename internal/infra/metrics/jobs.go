package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsEnqueuedTotal, jobsProcessedTotal, jobsPurgedTotal, jobsRequeuedTotal) }

var (
	jobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshdesk_jobs_enqueued_total",
			Help: "Jobs added to the queue, labeled by kind.",
		},
		[]string{"kind"},
	)

	jobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshdesk_jobs_processed_total",
			Help: "Job attempts by kind and outcome.",
		},
		[]string{"kind", "status"}, // 'completed', 'retried', 'dropped'
	)

	jobsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freshdesk_jobs_purged_total",
			Help: "Queued jobs removed because their company was deleted.",
		},
	)

	jobsRequeuedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freshdesk_jobs_stalled_requeued_total",
			Help: "Claimed jobs returned to the schedule after their lease expired.",
		},
	)
)

func IncJobEnqueued(kind string) {
	jobsEnqueuedTotal.WithLabelValues(norm(kind)).Inc()
}

func IncJobProcessed(kind, status string) {
	jobsProcessedTotal.WithLabelValues(norm(kind), norm(status)).Inc()
}

func AddJobsPurged(n int) {
	jobsPurgedTotal.Add(float64(n))
}

func AddJobsRequeued(n int) {
	jobsRequeuedTotal.Add(float64(n))
}
