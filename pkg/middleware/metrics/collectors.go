package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tbmux"

var (
	responseTime = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "response_time",
			Help:      "http response time.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		},
	)

	totalHttpRequestsFromRole = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "total_http_requests_from_role", Help: "http requests from role"},
		[]string{"role"},
	)

	totalHttpRequestsToUri = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "total_http_requests_to_uri", Help: "http requests to uri"},
		[]string{"code", "uri", "method"},
	)

	totalHttpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "total_http_requests", Help: "http requests by code, and method"},
		[]string{"code", "method"},
	)

	// DispatchTotal counts dispatcher outcomes per instance name.
	DispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "dispatch_total", Help: "dispatcher outcomes by instance"},
		[]string{"instance", "outcome"},
	)

	// XSRFRelaxed counts writes admitted by the Referer fallback.
	XSRFRelaxed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "xsrf_relaxed_total", Help: "writes admitted by referer fallback"},
		[]string{"instance"},
	)

	adapterSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adapter_seconds",
			Help:      "time spent inside sub-application entry points.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"instance"},
	)

	// AdapterInflight is the number of entry points currently running.
	AdapterInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{Namespace: namespace, Name: "adapter_inflight", Help: "sub-application calls in flight"},
	)
)

// Dispatch outcomes.
const (
	OutcomeForwarded = "forwarded"
	OutcomeRedirect  = "redirect"
	OutcomeNotFound  = "not_found"
	OutcomeForbidden = "forbidden"
	OutcomeFailed    = "failed"
	OutcomeAborted   = "aborted"
)

// UnknownInstance labels dispatches whose instance name did not resolve.
const UnknownInstance = "_unknown"

func init() {
	prometheus.MustRegister(
		responseTime,
		totalHttpRequestsFromRole,
		totalHttpRequestsToUri,
		totalHttpRequests,
		DispatchTotal,
		XSRFRelaxed,
		adapterSeconds,
		AdapterInflight,
	)
}

// RecordDispatch increments the dispatch counter.
func RecordDispatch(instance, outcome string) {
	DispatchTotal.WithLabelValues(instance, outcome).Inc()
}

// ObserveAdapter records one sub-application invocation.
func ObserveAdapter(instance string, d time.Duration) {
	adapterSeconds.WithLabelValues(instance).Observe(d.Seconds())
}
