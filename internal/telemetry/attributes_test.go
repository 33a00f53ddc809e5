// SPDX-License-Identifier: MIT

package telemetry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStreamAttributes(t *testing.T) {
	assert.Equal(t, []attribute.KeyValue{
		attribute.String(StreamURLKey, "https://aprilslilpugs.com/hls/test.m3u8"),
		attribute.String(StreamCameraKey, "Puppy Cam"),
		attribute.Bool(StreamLiveKey, false),
	}, StreamAttributes("https://aprilslilpugs.com/hls/test.m3u8", "Puppy Cam", false))

	assert.Equal(t, []attribute.KeyValue{attribute.Bool(StreamLiveKey, true)}, StreamAttributes("", "", true))
}

func TestPlaybackAttributes(t *testing.T) {
	attrs := PlaybackAttributes("s-1", "adaptive_engine", "attached")
	assert.Len(t, attrs, 3)
	assert.Equal(t, "s-1", attrs[0].Value.AsString())
}

func TestErrorAttributes(t *testing.T) {
	assert.Equal(t, "upstream", ErrorAttributes("upstream")[0].Value.AsString())
}
