// SPDX-License-Identifier: MIT

package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

func TestConfigure_ServiceAndComponent(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Level: "debug", Output: &buf, Service: "pupcam-test", Version: "v0.0.1"})
	t.Cleanup(func() { Configure(Config{}) })

	l := WithComponent("relay")
	l.Debug().Msg("visible at debug")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "pupcam-test", lines[0]["service"])
	assert.Equal(t, "v0.0.1", lines[0]["version"])
	assert.Equal(t, "relay", lines[0][FieldComponent])
}

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	assert.True(t, SetLevel("warn"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	assert.False(t, SetLevel("shouting"))
	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())

	assert.False(t, SetLevel(""))
}

func TestDerive(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	l := Derive(func(c *zerolog.Context) {
		*c = c.Str(FieldSessionID, "abc")
	})
	l.Info().Msg("derived")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "abc", lines[0][FieldSessionID])
}

func TestMiddleware_LogsStatusAndBytes(t *testing.T) {
	var buf bytes.Buffer
	Configure(Config{Output: &buf})
	t.Cleanup(func() { Configure(Config{}) })

	h := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/hls/test.m3u8", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-9"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "request.handled", lines[0][FieldEvent])
	assert.Equal(t, "/hls/test.m3u8", lines[0][FieldPath])
	assert.EqualValues(t, http.StatusTeapot, lines[0]["status"])
	assert.EqualValues(t, len("short and stout"), lines[0]["bytes"])
	assert.Equal(t, "req-9", lines[0][FieldRequestID])
}

func TestConfigure_WritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pupcam.log")
	var buf bytes.Buffer
	Configure(Config{Level: "info", Output: &buf, File: &FileConfig{Path: path, MaxSizeMB: 1}})
	t.Cleanup(func() {
		Configure(Config{})
	})

	l := WithComponent("monitor")
	l.Info().Str(FieldEvent, "stream.online").Msg("stream is live")
	require.NoError(t, Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	fileLines := decodeLines(t, bytes.NewBuffer(data))
	require.Len(t, fileLines, 1)
	assert.Equal(t, "stream.online", fileLines[0][FieldEvent])
	assert.Len(t, decodeLines(t, &buf), 1)
}
