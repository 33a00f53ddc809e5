// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func newTestHolder(t *testing.T, content string) (*Holder, string) {
	t.Helper()
	path := writeFile(t, t.TempDir(), "pupcam.yaml", content)
	loader := NewLoader(path, "test")
	initial, err := loader.Load()
	require.NoError(t, err)
	h := NewHolder(initial, loader)
	h.debounce = 20 * time.Millisecond
	return h, path
}

func TestHolder_ReloadSwapsAndNotifies(t *testing.T) {
	h, path := newTestHolder(t, "logLevel: info\n")
	updates := make(chan AppConfig, 1)
	h.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: debug\nstream:\n  monitor:\n    enabled: false\n"), 0o600))
	require.NoError(t, h.Reload(context.Background()))

	assert.Equal(t, "debug", h.Get().LogLevel)
	select {
	case cfg := <-updates:
		assert.False(t, cfg.Stream.Monitor.Enabled)
	default:
		t.Fatal("listener not notified")
	}
}

func TestHolder_InvalidReloadKeepsPrevious(t *testing.T) {
	h, path := newTestHolder(t, "logLevel: warn\n")
	updates := make(chan AppConfig, 1)
	h.Subscribe(updates)

	require.NoError(t, os.WriteFile(path, []byte("logLevel: shouting\n"), 0o600))
	require.Error(t, h.Reload(context.Background()))

	assert.Equal(t, "warn", h.Get().LogLevel)
	assert.Empty(t, updates)
}

func TestHolder_FullListenerDoesNotBlock(t *testing.T) {
	h, _ := newTestHolder(t, "")
	full := make(chan AppConfig)
	h.Subscribe(full)
	done := make(chan struct{})
	go func() {
		_ = h.Reload(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("reload blocked on a full listener")
	}
}

func TestHolder_WatchReloadsOnFileChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	h, path := newTestHolder(t, "logLevel: info\n")
	updates := make(chan AppConfig, 4)
	h.Subscribe(updates)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.Watch(ctx) }()

	// Give the watcher time to register before editing.
	time.Sleep(50 * time.Millisecond)

	// Replace via rename as editors do.
	tmp := filepath.Join(filepath.Dir(path), ".pupcam.yaml.tmp")
	require.NoError(t, os.WriteFile(tmp, []byte("logLevel: error\n"), 0o600))
	require.NoError(t, os.Rename(tmp, path))

	select {
	case cfg := <-updates:
		assert.Equal(t, "error", cfg.LogLevel)
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not reload")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestHolder_WatchWithoutFile(t *testing.T) {
	h := NewHolder(Defaults(), NewLoader("", "test"))
	assert.NoError(t, h.Watch(context.Background()))
}
