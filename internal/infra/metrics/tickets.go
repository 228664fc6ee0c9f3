package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		ticketsCreatedTotal,
		repliesSentTotal,
		generationLatencyMs,
		generationPromptTokens,
	)
}

var (
	ticketsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freshdesk_tickets_created_total",
			Help: "Tickets accepted by Freshdesk.",
		},
	)

	repliesSentTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "freshdesk_replies_sent_total",
			Help: "Replies accepted by Freshdesk.",
		},
	)

	generationLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "freshdesk_generation_latency_ms",
			Help:    "Text generation latency distribution in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		},
		[]string{"provider", "success"},
	)

	generationPromptTokens = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "freshdesk_generation_prompt_tokens",
			Help:    "Estimated prompt size in tokens.",
			Buckets: prometheus.ExponentialBuckets(64, 2, 8),
		},
		[]string{"provider"},
	)
)

func IncTicketCreated() { ticketsCreatedTotal.Inc() }

func IncReplySent() { repliesSentTotal.Inc() }

func ObserveGeneration(provider string, latencyMs int64, success bool) {
	generationLatencyMs.WithLabelValues(norm(provider), strconv.FormatBool(success)).
		Observe(float64(latencyMs))
}

func ObservePromptTokens(provider string, tokens int) {
	generationPromptTokens.WithLabelValues(norm(provider)).Observe(float64(tokens))
}
