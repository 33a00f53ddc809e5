// SPDX-License-Identifier: MIT

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/config"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/monitor"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/playback"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/version"
)

const playlist = "#EXTM3U\n#EXT-X-TARGETDURATION:2\n#EXTINF:2.0,\nseg0.ts\n"

// origin serves the manifest with a switchable status.
type origin struct {
	srv    *httptest.Server
	status atomic.Int32
}

func newOrigin(t *testing.T, status int) *origin {
	t.Helper()
	o := &origin{}
	o.status.Store(int32(status))
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		code := int(o.status.Load())
		w.WriteHeader(code)
		if code == http.StatusOK && r.Method == http.MethodGet {
			_, _ = io.WriteString(w, playlist)
		}
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

func TestConfigValidateCmd(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("logLevel: debug\n"), 0o600))
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("relay:\n  verifyTLS: false\n"), 0o600))
	unknown := filepath.Join(dir, "unknown.yaml")
	require.NoError(t, os.WriteFile(unknown, []byte("nope: 1\n"), 0o600))

	out, err := execute(t, "config", "validate", "-f", good)
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid")

	_, err = execute(t, "config", "validate", "-f", bad)
	assert.ErrorContains(t, err, "relay.verifyTLS")

	_, err = execute(t, "config", "validate", "-f", unknown)
	assert.ErrorIs(t, err, config.ErrUnknownConfigField)

	_, err = execute(t, "config", "validate")
	assert.Error(t, err, "--file is required")
}

func TestConfigShowCmd_MasksToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"stream:\n  webhook:\n    url: https://hooks.example.com/pupcam\n    token: s3cret\n"), 0o600))

	out, err := execute(t, "config", "show", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, out, "https://hooks.example.com/pupcam")
	assert.Contains(t, out, "token: '***'")
	assert.NotContains(t, out, "s3cret")
	assert.Contains(t, out, "interval: 10s")
}

func TestHealthcheckCmd(t *testing.T) {
	var ready atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/readyz" && !ready.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, err := execute(t, "healthcheck", "--url", srv.URL)
	assert.ErrorContains(t, err, "503")

	out, err := execute(t, "healthcheck", "--url", srv.URL, "--mode", "live")
	require.NoError(t, err)
	assert.Contains(t, out, "(live)")

	ready.Store(true)
	_, err = execute(t, "healthcheck", "--url", srv.URL)
	assert.NoError(t, err)

	_, err = execute(t, "healthcheck", "--url", srv.URL, "--mode", "bogus")
	assert.ErrorContains(t, err, "unknown mode")
}

func testServerConfig(o *origin) config.AppConfig {
	cfg := config.Defaults()
	cfg.LogLevel = "error"
	cfg.Relay.Target = o.srv.URL
	cfg.Stream.Monitor.URL = o.srv.URL + playback.DefaultSourceURL
	cfg.Stream.Monitor.Interval = 20 * time.Millisecond
	cfg.Stream.Monitor.Timeout = time.Second
	cfg.Server.ShutdownTimeout = 2 * time.Second
	cfg.Telemetry.ServiceName = ""
	return cfg
}

func TestServer_EndToEnd(t *testing.T) {
	o := newOrigin(t, http.StatusOK)
	srv, err := newServer(testServerConfig(o))
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	base := "http://" + ln.Addr().String()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.serve(ctx, ln, nil) }()

	client := &http.Client{Timeout: 2 * time.Second}
	getLive := func() monitor.Snapshot {
		resp, err := client.Get(base + "/api/live")
		if err != nil {
			return monitor.Snapshot{}
		}
		defer resp.Body.Close()
		var snap monitor.Snapshot
		_ = json.NewDecoder(resp.Body).Decode(&snap)
		return snap
	}
	require.Eventually(t, func() bool { return getLive().Live }, 2*time.Second, 10*time.Millisecond)

	resp, err := client.Get(base + playback.DefaultSourceURL)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, playlist, string(body))

	resp, err = client.Get(base + "/readyz?verbose=true")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "relaying /hls to "+o.srv.URL)

	o.status.Store(http.StatusNotFound)
	require.Eventually(t, func() bool { return !getLive().Live }, 2*time.Second, 10*time.Millisecond)

	resp, err = client.Post(base+"/api/live", "application/json", strings.NewReader(`{"enabled":false}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.False(t, srv.monitor.Status().Enabled)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServer_RelayDisabled(t *testing.T) {
	o := newOrigin(t, http.StatusOK)
	cfg := testServerConfig(o)
	cfg.Relay.Enabled = false

	srv, err := newServer(cfg)
	require.NoError(t, err)
	assert.Nil(t, srv.relay)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, playback.DefaultSourceURL, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_BadCAFile(t *testing.T) {
	o := newOrigin(t, http.StatusOK)
	cfg := testServerConfig(o)
	cfg.Relay.CAFile = filepath.Join(t.TempDir(), "missing.pem")

	_, err := newServer(cfg)
	assert.ErrorContains(t, err, "relay")
}

func TestServer_ApplyReload(t *testing.T) {
	o := newOrigin(t, http.StatusOK)
	srv, err := newServer(testServerConfig(o))
	require.NoError(t, err)

	next := srv.cfg
	next.Stream.Monitor.Enabled = false
	srv.apply(next)
	assert.False(t, srv.monitor.Status().Enabled)

	next.Stream.Monitor.Enabled = true
	srv.apply(next)
	assert.True(t, srv.monitor.Status().Enabled)
}

func TestServer_ApplyKeepsAPIToggleOnUnrelatedReload(t *testing.T) {
	o := newOrigin(t, http.StatusOK)
	srv, err := newServer(testServerConfig(o))
	require.NoError(t, err)
	require.True(t, srv.monitor.Status().Enabled)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/live", strings.NewReader(`{"enabled":false}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	next := srv.cfg
	next.LogLevel = "warn"
	srv.apply(next)
	assert.False(t, srv.monitor.Status().Enabled)
	assert.Equal(t, "warn", srv.cfg.LogLevel)

	next.Stream.Monitor.Enabled = false
	srv.apply(next)
	next.Stream.Monitor.Enabled = true
	srv.apply(next)
	assert.True(t, srv.monitor.Status().Enabled)
}

func watchConfig(o *origin) config.AppConfig {
	cfg := config.Defaults()
	cfg.Playback.BaseURL = o.srv.URL
	cfg.Playback.RefreshInterval = 10 * time.Millisecond
	cfg.Playback.MaxLoadRetries = 0
	return cfg
}

func TestRunWatch_EndsOffline(t *testing.T) {
	o := newOrigin(t, http.StatusNotFound)

	var out bytes.Buffer
	err := runWatch(context.Background(), watchConfig(o), &watchOptions{}, &out)
	require.ErrorIs(t, err, errPlaybackEnded)
	assert.Contains(t, err.Error(), playback.MessageOffline)
	assert.Contains(t, out.String(), string(playback.StateOffline))
	assert.Contains(t, out.String(), playback.MessageOffline)
}

func TestRunWatch_JSONUntilDuration(t *testing.T) {
	o := newOrigin(t, http.StatusOK)

	var out bytes.Buffer
	err := runWatch(context.Background(), watchConfig(o), &watchOptions{duration: 300 * time.Millisecond, json: true}, &out)
	require.NoError(t, err)

	var sawLive bool
	for _, line := range strings.Split(strings.TrimSpace(out.String()), "\n") {
		var st struct {
			State string `json:"state"`
			View  string `json:"view"`
			Live  bool   `json:"live"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &st), line)
		if st.State == string(playback.StateAttached) && st.View == string(playback.ViewLive) {
			sawLive = true
		}
	}
	assert.True(t, sawLive, out.String())
}
