// SPDX-License-Identifier: MIT

// Package monitor polls the live manifest and tracks whether the camera
// stream is up.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/metrics"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/httpx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/urlx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/telemetry"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 5 * time.Second
	DefaultCamera   = "Puppy Cam"

	// DefaultNotifyTimeout bounds one notification, retries included.
	DefaultNotifyTimeout = 30 * time.Second
)

var ErrInvalidURL = errors.New("monitor: stream URL must be an absolute http or https URL")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Config tunes the monitor.
type Config struct {
	// URL is the manifest probed with HEAD.
	URL    string
	Camera string
	// Interval between checks.
	Interval time.Duration
	// Timeout bounds a single check.
	Timeout time.Duration
	// Enabled is the initial polling switch.
	Enabled  bool
	Client   *http.Client
	Notifier Notifier
	Clock    Clock
	Logger   *zerolog.Logger

	// NotifyTimeout bounds one Notifier call. It is separate from Timeout
	// so a notifier can retry within it.
	NotifyTimeout time.Duration
}

// Snapshot is the externally visible stream status.
type Snapshot struct {
	Live        bool      `json:"isLive"`
	Enabled     bool      `json:"enabled"`
	LastChecked time.Time `json:"lastChecked"`
}

// Monitor periodically checks the stream and reports transitions.
type Monitor struct {
	url      string
	camera   string
	interval time.Duration
	timeout  time.Duration
	notifyTO time.Duration
	client   *http.Client
	notifier Notifier
	clock    Clock
	logger   zerolog.Logger

	mu          sync.RWMutex
	live        bool
	enabled     bool
	lastChecked time.Time

	busy    atomic.Bool
	pending sync.WaitGroup
	wake    chan struct{}
}

// New validates cfg and returns an idle monitor.
func New(cfg Config) (*Monitor, error) {
	u, err := urlx.ParseHTTP(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	m := &Monitor{
		url:      u.String(),
		camera:   cfg.Camera,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		notifyTO: cfg.NotifyTimeout,
		client:   cfg.Client,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		enabled:  cfg.Enabled,
		wake:     make(chan struct{}, 1),
	}
	if m.camera == "" {
		m.camera = DefaultCamera
	}
	if m.interval <= 0 {
		m.interval = DefaultInterval
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.notifyTO <= 0 {
		m.notifyTO = DefaultNotifyTimeout
	}
	if m.client == nil {
		m.client = httpx.Instrument(httpx.NewClient(m.timeout))
	}
	if m.clock == nil {
		m.clock = realClock{}
	}
	m.logger = xglog.WithComponent("monitor")
	if cfg.Logger != nil {
		m.logger = *cfg.Logger
	}
	if m.notifier == nil {
		m.notifier = LogNotifier{Logger: m.logger}
	}
	return m, nil
}

// Run checks immediately when enabled, then on every interval tick, until
// ctx is done. It waits for in-flight notifications before returning.
func (m *Monitor) Run(ctx context.Context) error {
	defer m.pending.Wait()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.logger.Info().
		Str(xglog.FieldEvent, "monitor.started").
		Str(xglog.FieldUpstream, urlx.Redact(m.url)).
		Dur("interval", m.interval).
		Bool("enabled", m.Status().Enabled).
		Msg("stream monitor started")

	if m.Status().Enabled {
		m.tryCheck(ctx)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-m.wake:
			m.tryCheck(ctx)
		case <-ticker.C:
			if m.Status().Enabled {
				m.tryCheck(ctx)
			}
		}
	}
}

// SetEnabled switches polling. Enabling triggers a prompt check in Run.
func (m *Monitor) SetEnabled(enabled bool) {
	m.mu.Lock()
	changed := m.enabled != enabled
	m.enabled = enabled
	m.mu.Unlock()

	if !changed {
		return
	}
	m.logger.Info().
		Str(xglog.FieldEvent, "monitor.enabled_changed").
		Bool("enabled", enabled).
		Msg("stream monitoring toggled")
	if enabled {
		select {
		case m.wake <- struct{}{}:
		default:
		}
	}
}

// Status returns the latest snapshot.
func (m *Monitor) Status() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Live: m.live, Enabled: m.enabled, LastChecked: m.lastChecked}
}

// Check probes the stream once and records the result.
func (m *Monitor) Check(ctx context.Context) bool {
	ctx, span := telemetry.Tracer("pupcam/monitor").Start(ctx, "monitor.check")
	defer span.End()

	live := m.probe(ctx)
	metrics.RecordStreamCheck(live)
	span.SetAttributes(telemetry.StreamAttributes(m.url, m.camera, live)...)

	m.mu.Lock()
	previous := m.live
	// An unchecked stream counts as live so a first offline result is reported.
	if m.lastChecked.IsZero() {
		previous = true
	}
	m.live = live
	m.lastChecked = m.clock.Now()
	m.mu.Unlock()

	if previous != live {
		m.notify(ctx, live)
	}
	return live
}

// Wait blocks until all pending notifications have been delivered.
func (m *Monitor) Wait() { m.pending.Wait() }

func (m *Monitor) tryCheck(ctx context.Context) {
	if !m.busy.CompareAndSwap(false, true) {
		return
	}
	defer m.busy.Store(false)
	m.Check(ctx)
}

func (m *Monitor) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.url, nil)
	if err != nil {
		return false
	}
	resp, err := m.client.Do(req)
	if err != nil {
		m.logger.Debug().
			Err(err).
			Str(xglog.FieldEvent, "monitor.check_failed").
			Msg("stream check failed")
		return false
	}
	_ = resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (m *Monitor) notify(ctx context.Context, live bool) {
	if live {
		m.logger.Info().Str(xglog.FieldEvent, "monitor.status_changed").Bool("live", true).Msg("stream is back online")
	} else {
		m.logger.Warn().Str(xglog.FieldEvent, "monitor.status_changed").Bool("live", false).Msg("stream went offline")
	}

	// Every attempt of one delivery shares a correlation ID.
	nctx := xglog.ContextWithCorrelationID(context.WithoutCancel(ctx), uuid.New().String())
	nctx, cancel := context.WithTimeout(nctx, m.notifyTO)
	logger := xglog.WithContext(nctx, m.logger)
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		defer cancel()
		if err := m.notifier.NotifyStreamStatus(nctx, m.camera, live); err != nil {
			logger.Error().
				Err(err).
				Str(xglog.FieldEvent, "monitor.notify_failed").
				Msg("stream status notification failed")
		}
	}()
}
