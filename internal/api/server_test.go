// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/health"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/metrics"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/monitor"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/relay"
)

type fakeStream struct {
	mu   sync.Mutex
	snap monitor.Snapshot
}

func (f *fakeStream) Status() monitor.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeStream) SetEnabled(enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap.Enabled = enabled
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGetLive(t *testing.T) {
	checked := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	stream := &fakeStream{snap: monitor.Snapshot{Live: true, Enabled: true, LastChecked: checked}}
	h := NewRouter(Deps{Stream: stream})

	rec := do(t, h, http.MethodGet, "/api/live", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, true, got["isLive"])
	assert.Equal(t, true, got["enabled"])
	assert.Equal(t, "2026-10-19T12:00:00Z", got["lastChecked"])
}

func TestSetLive(t *testing.T) {
	stream := &fakeStream{snap: monitor.Snapshot{Enabled: true}}
	h := NewRouter(Deps{Stream: stream})

	rec := do(t, h, http.MethodPost, "/api/live", `{"enabled":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, stream.Status().Enabled)

	var got monitor.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.False(t, got.Enabled)
}

func TestSetLive_BadRequest(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"not json":      "enabled",
		"missing field": `{}`,
		"unknown field": `{"enabled":true,"isLive":true}`,
		"wrong type":    `{"enabled":"yes"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			stream := &fakeStream{snap: monitor.Snapshot{Enabled: true}}
			h := NewRouter(Deps{Stream: stream})

			rec := do(t, h, http.MethodPost, "/api/live", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.True(t, stream.Status().Enabled)
			assert.Contains(t, rec.Body.String(), "invalid request body")
		})
	}
}

func TestHealthAndReady(t *testing.T) {
	mgr := health.NewManager("test")
	mgr.RegisterChecker(health.NewFuncChecker("relay", func(context.Context) health.CheckResult {
		return health.CheckResult{Status: health.StatusUnhealthy, Error: "down"}
	}))
	h := NewRouter(Deps{Health: mgr})

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/healthz", "").Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/readyz", "").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := NewRouter(Deps{})
	_ = do(t, h, http.MethodGet, "/nowhere", "")

	rec := do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pupcam_http_requests_in_flight")
}

func TestNotFound_JSONWithRequestID(t *testing.T) {
	h := NewRouter(Deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
	assert.JSONEq(t, `{"error":"not found","requestId":"req-123"}`, rec.Body.String())
}

func TestRequestID_Generated(t *testing.T) {
	rec := do(t, NewRouter(Deps{}), http.MethodGet, "/metrics", "")
	assert.Len(t, rec.Header().Get(HeaderRequestID), 36)
}

func TestRecoverer(t *testing.T) {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(Recoverer)
	r.Get("/boom", func(http.ResponseWriter, *http.Request) { panic("boom") })

	rec := do(t, r, http.MethodGet, "/boom", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "internal server error", body.Error)
	assert.Equal(t, rec.Header().Get(HeaderRequestID), body.RequestID)
}

func TestMetrics_UsesRoutePattern(t *testing.T) {
	stream := &fakeStream{}
	h := NewRouter(Deps{Stream: stream})

	before := testutil.CollectAndCount(metrics.HTTPRequestDuration)
	_ = do(t, h, http.MethodGet, "/api/live", "")
	_ = do(t, h, http.MethodGet, "/api/live?x=1", "")
	after := testutil.CollectAndCount(metrics.HTTPRequestDuration)

	// Both requests share one series.
	assert.LessOrEqual(t, after-before, 1)
}

func TestShouldTrace(t *testing.T) {
	for path, want := range map[string]bool{
		"/healthz":       false,
		"/readyz":        false,
		"/metrics":       false,
		"/api/live":      true,
		"/hls/test.m3u8": true,
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		assert.Equal(t, want, shouldTrace(req), path)
	}
}

func TestRelayMounted(t *testing.T) {
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-URI", r.URL.RequestURI())
		_, _ = io.WriteString(w, "#EXTM3U\n")
	}))
	defer origin.Close()

	quiet := zerolog.New(io.Discard)
	rl, err := relay.New(relay.Config{Target: origin.URL, VerifyTLS: true, Logger: &quiet})
	require.NoError(t, err)

	h := NewRouter(Deps{Relay: rl, Stream: &fakeStream{}})

	rec := do(t, h, http.MethodGet, "/hls/test.m3u8", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/hls/test.m3u8", rec.Header().Get("X-Seen-URI"))
	assert.Equal(t, "#EXTM3U\n", rec.Body.String())

	// API routes are not shadowed by the relay.
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/api/live", "").Code)
}
