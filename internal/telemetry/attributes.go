// SPDX-License-Identifier: MIT

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys shared by pupcam spans.
const (
	StreamURLKey     = "stream.url"
	StreamLiveKey    = "stream.live"
	StreamCameraKey  = "stream.camera"
	StreamEnabledKey = "stream.enabled"

	PlaybackSessionKey  = "playback.session_id"
	PlaybackStrategyKey = "playback.strategy"
	PlaybackStateKey    = "playback.state"

	ErrorTypeKey = "error.type"
)

// StreamAttributes describes a monitored stream.
func StreamAttributes(url, camera string, live bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if url != "" {
		attrs = append(attrs, attribute.String(StreamURLKey, url))
	}
	if camera != "" {
		attrs = append(attrs, attribute.String(StreamCameraKey, camera))
	}
	return append(attrs, attribute.Bool(StreamLiveKey, live))
}

// PlaybackAttributes describes a playback session.
func PlaybackAttributes(sessionID, strategy, state string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackSessionKey, sessionID),
		attribute.String(PlaybackStrategyKey, strategy),
		attribute.String(PlaybackStateKey, state),
	}
}

// ErrorAttributes tags a span with an error class.
func ErrorAttributes(errType string) []attribute.KeyValue {
	return []attribute.KeyValue{attribute.String(ErrorTypeKey, errType)}
}
