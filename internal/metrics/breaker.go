// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BreakerState is 1 for the active state of each named breaker.
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pupcam_breaker_state",
		Help: "Circuit breaker state by name (1 for the active state, 0 otherwise)",
	}, []string{"name", "state"})

	// BreakerTrips counts transitions to open.
	BreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pupcam_breaker_trips_total",
		Help: "Circuit breaker transitions to the open state",
	}, []string{"name", "reason"})
)

var breakerStates = []string{"closed", "half-open", "open"}

// SetBreakerState marks state as the active one for name.
func SetBreakerState(name, state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		BreakerState.WithLabelValues(name, s).Set(v)
	}
}

// IncBreakerTrip records a breaker opening.
func IncBreakerTrip(name, reason string) {
	BreakerTrips.WithLabelValues(name, reason).Inc()
}
