// SPDX-License-Identifier: MIT

// Package metrics holds the Prometheus collectors shared across components.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// PlaybackTransitions counts controller state changes.
	PlaybackTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pupcam_playback_transitions_total",
		Help: "Playback controller state transitions",
	}, []string{"from", "to"})

	// PlaybackCommands counts commands issued to the playback engine.
	PlaybackCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pupcam_playback_commands_total",
		Help: "Commands issued to the playback engine by type",
	}, []string{"command"})

	// PlaybackErrors counts engine error events by category and fatality.
	PlaybackErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pupcam_playback_errors_total",
		Help: "Engine error events observed by the playback controller",
	}, []string{"category", "fatal"})

	// PlaybackSessionsActive tracks controllers currently holding an engine handle.
	PlaybackSessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pupcam_playback_sessions_active",
		Help: "Playback sessions currently holding an engine handle",
	})
)

// IncPlaybackTransition records a state change.
func IncPlaybackTransition(from, to string) {
	PlaybackTransitions.WithLabelValues(from, to).Inc()
}

// IncPlaybackCommand records a command sent to the engine.
func IncPlaybackCommand(command string) {
	PlaybackCommands.WithLabelValues(command).Inc()
}

// IncPlaybackError records an engine error event.
func IncPlaybackError(category string, fatal bool) {
	PlaybackErrors.WithLabelValues(category, strconv.FormatBool(fatal)).Inc()
}
