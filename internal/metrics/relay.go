// SPDX-License-Identifier: MIT

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RelayRequests counts relayed requests by upstream status class.
	RelayRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pupcam_relay_requests_total",
		Help: "Requests forwarded to the media origin by method and status class",
	}, []string{"method", "status_class"})

	// RelayUpstreamErrors counts requests that never got an upstream response.
	RelayUpstreamErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pupcam_relay_upstream_errors_total",
		Help: "Relayed requests that failed before the origin responded",
	})

	// RelayUpstreamLatency tracks time to upstream response headers.
	RelayUpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pupcam_relay_upstream_latency_seconds",
		Help:    "Time from relay request to origin response headers",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"kind"})
)

// StatusClass buckets an HTTP status code into "2xx", "3xx", ...
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}

// ObserveRelayResponse records a relayed upstream response.
func ObserveRelayResponse(method string, status int, kind string, d time.Duration) {
	RelayRequests.WithLabelValues(method, StatusClass(status)).Inc()
	RelayUpstreamLatency.WithLabelValues(kind).Observe(d.Seconds())
}

// IncRelayUpstreamError records a relay transport failure.
func IncRelayUpstreamError() {
	RelayUpstreamErrors.Inc()
}
