package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(scanEligible, scanDuration, scanErrorsTotal, quotaResetsTotal) }

var (
	scanEligible = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "freshdesk_scan_eligible_companies",
			Help: "Companies found eligible by the most recent scan.",
		},
	)

	scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "freshdesk_scan_duration_seconds",
			Help:    "Wall time of one eligibility scan.",
			Buckets: prometheus.DefBuckets,
		},
	)

	scanErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "freshdesk_scan_errors_total",
			Help: "Scan failures by stage.",
		},
		[]string{"stage"}, // 'query', 'stamp', 'enqueue'
	)

	quotaResetsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freshdesk_quota_resets_total",
			Help: "Completed daily quota resets.",
		},
	)
)

func ObserveScan(eligible int, took time.Duration) {
	scanEligible.Set(float64(eligible))
	scanDuration.Observe(took.Seconds())
}

func IncScanError(stage string) {
	scanErrorsTotal.WithLabelValues(norm(stage)).Inc()
}

func IncQuotaReset() {
	quotaResetsTotal.Inc()
}
