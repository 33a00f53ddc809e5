// SPDX-License-Identifier: MIT

// Package health serves liveness and readiness probes with per-component status.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
)

// Status of one component or of the whole process.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

func (s Status) rank() int {
	switch s {
	case StatusUnhealthy:
		return 2
	case StatusDegraded:
		return 1
	}
	return 0
}

// DefaultCheckTimeout bounds a single checker.
const DefaultCheckTimeout = 2 * time.Second

type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Report is the body of /healthz and /readyz. Ready is only set by Ready.
type Report struct {
	Status    Status                 `json:"status"`
	Ready     *bool                  `json:"ready,omitempty"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version  string
	timeout  time.Duration
	mu       sync.RWMutex
	checkers []Checker
}

func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: DefaultCheckTimeout}
}

func (m *Manager) RegisterChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// run executes every checker concurrently. A checker that overruns the
// timeout is reported unhealthy.
func (m *Manager) run(ctx context.Context) (Status, map[string]CheckResult) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	results := make([]CheckResult, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			done := make(chan CheckResult, 1)
			go func() { done <- c.Check(cctx) }()
			select {
			case results[i] = <-done:
			case <-cctx.Done():
				results[i] = CheckResult{Status: StatusUnhealthy, Error: "check timed out"}
			}
			return nil
		})
	}
	_ = g.Wait()

	overall := StatusHealthy
	checks := make(map[string]CheckResult, len(checkers))
	for i, c := range checkers {
		checks[c.Name()] = results[i]
		if results[i].Status.rank() > overall.rank() {
			overall = results[i].Status
		}
	}
	return overall, checks
}

// Health is the liveness report. The process is alive whenever it can answer;
// component checks only run when verbose is set.
func (m *Manager) Health(ctx context.Context, verbose bool) Report {
	r := Report{Status: StatusHealthy, Version: m.version, Timestamp: time.Now()}
	if verbose {
		status, checks := m.run(ctx)
		r.Status = status
		if len(checks) > 0 {
			r.Checks = checks
		}
	}
	return r
}

// Ready is the readiness report. Degraded components keep the server ready;
// any unhealthy component does not.
func (m *Manager) Ready(ctx context.Context) Report {
	status, checks := m.run(ctx)
	ready := status != StatusUnhealthy
	r := Report{Status: status, Ready: &ready, Version: m.version, Timestamp: time.Now()}
	if len(checks) > 0 {
		r.Checks = checks
	}
	return r
}

// ServeHealth always answers 200.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"
	m.write(w, r, "health", http.StatusOK, m.Health(r.Context(), verbose))
}

// ServeReady answers 503 while not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	rep := m.Ready(r.Context())
	code := http.StatusOK
	if !*rep.Ready {
		code = http.StatusServiceUnavailable
	}
	m.write(w, r, "readiness", code, rep)
}

func (m *Manager) write(w http.ResponseWriter, r *http.Request, probe string, code int, rep Report) {
	logger := log.WithComponentFromContext(r.Context(), probe)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(rep); err != nil {
		logger.Error().Err(err).Str(log.FieldEvent, probe+".encode_error").Msg("failed to encode probe response")
		return
	}
	logger.Debug().
		Str(log.FieldEvent, probe+".checked").
		Str("status", string(rep.Status)).
		Int("code", code).
		Msg("probe answered")
}

// FuncChecker adapts a function to Checker.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }

// StreamStatus is the monitor state a StreamChecker reads.
type StreamStatus struct {
	Live        bool
	Enabled     bool
	LastChecked time.Time
}

// StreamChecker reports the camera stream. An offline stream degrades
// health but never fails readiness: the server still relays and reports it.
type StreamChecker struct {
	status   func() StreamStatus
	maxStale time.Duration
	now      func() time.Time
}

// NewStreamChecker creates a checker; results older than maxStale degrade.
func NewStreamChecker(status func() StreamStatus, maxStale time.Duration) *StreamChecker {
	return &StreamChecker{status: status, maxStale: maxStale, now: time.Now}
}

func (c *StreamChecker) Name() string { return "stream" }

func (c *StreamChecker) Check(context.Context) CheckResult {
	st := c.status()
	switch {
	case !st.Enabled:
		return CheckResult{Status: StatusHealthy, Message: "monitoring disabled"}
	case st.LastChecked.IsZero():
		return CheckResult{Status: StatusDegraded, Message: "no check completed yet"}
	case c.maxStale > 0 && c.now().Sub(st.LastChecked) > c.maxStale:
		return CheckResult{Status: StatusDegraded, Message: "last check is stale"}
	case !st.Live:
		return CheckResult{Status: StatusDegraded, Message: "stream offline"}
	}
	return CheckResult{Status: StatusHealthy, Message: "stream live"}
}
