package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lm_requests_total",
		Help: "The total number of protocol requests by operation and status",
	}, []string{"operation", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lm_request_duration_seconds",
		Help:    "Duration of protocol requests by operation",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	GeneratedCharsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_generated_chars_total",
		Help: "The total number of characters drawn by random generation",
	})

	HubQueriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_hub_queries_total",
		Help: "The total number of distribution queries against the model hub",
	})

	HubAdvancesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lm_hub_advances_total",
		Help: "The total number of observations forwarded to adaptive backends",
	})

	ContextLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lm_context_length_chars",
		Help:    "Distribution of request context lengths in characters",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
	})

	BitsPerChar = promauto.NewSummary(prometheus.SummaryOpts{
		Name: "lm_bits_per_char",
		Help: "Bits-per-character results of corpus entropy requests",
	})

	HandshakeFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lm_handshake_failures_total",
		Help: "Channel negotiation failures by credential mode and stage",
	}, []string{"mode", "stage"})
)
