// SPDX-License-Identifier: MIT

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StreamLive is 1 while the last availability probe saw the manifest.
	StreamLive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pupcam_stream_live",
		Help: "1 if the last availability check found the stream live, 0 otherwise",
	})

	// StreamChecks counts availability probes by result.
	StreamChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pupcam_stream_checks_total",
		Help: "Stream availability checks by result",
	}, []string{"result"})
)

// RecordStreamCheck records a probe outcome and updates the live gauge.
func RecordStreamCheck(live bool) {
	if live {
		StreamLive.Set(1)
		StreamChecks.WithLabelValues("live").Inc()
		return
	}
	StreamLive.Set(0)
	StreamChecks.WithLabelValues("offline").Inc()
}
