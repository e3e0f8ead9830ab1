package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	UpstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "upstream_requests_total", Help: "Requests sent to the flow/auth APIs by method and outcome."},
		[]string{"method", "outcome"},
	)
	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Namespace: "docflow", Name: "upstream_request_seconds", Help: "Latency of upstream API requests.", Buckets: prometheus.DefBuckets},
		[]string{"method"},
	)
	RealmFetchFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "realm_fetch_failures_total", Help: "Per-realm document fetches that failed and contributed no documents."},
		[]string{"realm"},
	)
	ForcedLogouts = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "docflow", Name: "forced_logouts_total", Help: "Tokens cleared after an upstream 401."},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "docflow", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(UpstreamRequests)
	reg.MustRegister(UpstreamLatency)
	reg.MustRegister(RealmFetchFailures)
	reg.MustRegister(ForcedLogouts)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
