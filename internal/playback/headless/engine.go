// SPDX-License-Identifier: MIT

// Package headless implements the adaptive engine capability without a
// browser. It polls the live manifest over HTTP and reports the outcome as
// playback events; it never parses the playlist beyond its signature.
package headless

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/httpx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/playback"
)

const (
	DefaultRefreshInterval = 2 * time.Second
	DefaultRetryDelay      = 1 * time.Second
	DefaultMaxLoadRetries  = 2

	manifestSignature = "#EXTM3U"
	maxSignatureBytes = 4 << 10
)

// Config tunes the engine.
type Config struct {
	// Client fetches the manifest. A hardened client is created when nil.
	Client *http.Client
	// BaseURL resolves path-only sources such as /hls/test.m3u8.
	BaseURL string
	// RefreshInterval is the live manifest reload period.
	RefreshInterval time.Duration
	// RetryDelay separates retries after a recoverable failure.
	RetryDelay time.Duration
	// MaxLoadRetries is the number of retries before a load failure is fatal.
	// Negative values disable retries.
	MaxLoadRetries int
	Logger         *zerolog.Logger
}

func (c Config) withDefaults() Config {
	if c.Client == nil {
		c.Client = httpx.Instrument(httpx.NewClient(0))
	}
	if c.RefreshInterval <= 0 {
		c.RefreshInterval = DefaultRefreshInterval
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	if c.MaxLoadRetries < 0 {
		c.MaxLoadRetries = 0
	}
	return c
}

// Engine polls one manifest. Loading starts once both a source and a media
// element are attached; the element's src then points at the manifest until
// Destroy clears it. After a fatal error polling pauses until StartLoad or
// RecoverMediaError.
type Engine struct {
	cfg    Config
	logger zerolog.Logger

	events chan playback.Event
	resume chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	source    string
	media     playback.MediaElement
	started   bool
	destroyed bool
}

// NewEngine returns an idle engine.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	logger := xglog.WithComponent("headless")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		cfg:    cfg,
		logger: logger,
		events: make(chan playback.Event, 16),
		resume: make(chan struct{}, 1),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Factory returns a playback.EngineFactory producing engines configured with cfg.
func Factory(cfg Config) playback.EngineFactory {
	return func() playback.Engine { return NewEngine(cfg) }
}

func (e *Engine) LoadSource(src playback.StreamSource) {
	e.mu.Lock()
	e.source = e.resolve(src.URL)
	e.mu.Unlock()
	e.maybeStart()
}

func (e *Engine) AttachMedia(media playback.MediaElement) {
	e.mu.Lock()
	e.media = media
	e.mu.Unlock()
	e.maybeStart()
}

func (e *Engine) Events() <-chan playback.Event { return e.events }

// StartLoad resumes loading after a fatal network error.
func (e *Engine) StartLoad() { e.kick() }

// RecoverMediaError reloads the manifest after a fatal media error.
func (e *Engine) RecoverMediaError() { e.kick() }

// Destroy stops polling, waits for the loop and closes Events.
func (e *Engine) Destroy() {
	e.mu.Lock()
	if e.destroyed {
		e.mu.Unlock()
		return
	}
	e.destroyed = true
	media := e.media
	e.mu.Unlock()

	e.cancel()
	e.wg.Wait()
	if media != nil {
		media.SetSrc("")
	}
	close(e.events)
}

// Source returns the resolved manifest URL.
func (e *Engine) Source() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *Engine) resolve(raw string) string {
	if e.cfg.BaseURL == "" {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil || ref.IsAbs() {
		return raw
	}
	base, err := url.Parse(e.cfg.BaseURL)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func (e *Engine) maybeStart() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started || e.destroyed || e.source == "" || e.media == nil {
		return
	}
	e.started = true
	e.media.SetSrc(e.source)
	e.wg.Add(1)
	go e.loop(e.source)
}

func (e *Engine) kick() {
	select {
	case e.resume <- struct{}{}:
	default:
	}
}

func (e *Engine) loop(source string) {
	defer e.wg.Done()

	announced := false
	failures := 0
	for {
		err := e.fetch(e.ctx, source, failures+1)
		if e.ctx.Err() != nil {
			return
		}

		delay := e.cfg.RefreshInterval
		paused := false
		switch {
		case err == nil:
			failures = 0
			if !announced {
				announced = true
				e.emit(playback.ManifestReady())
			}
		case retryable(err):
			failures++
			if failures > e.cfg.MaxLoadRetries {
				e.emit(playback.ErrorEvent(playback.CategoryNetwork, true, err))
				paused = true
			} else {
				e.emit(playback.ErrorEvent(playback.CategoryNetwork, false, err))
				delay = e.cfg.RetryDelay
			}
		case errors.Is(err, ErrBadManifest):
			e.emit(playback.ErrorEvent(playback.CategoryMedia, true, err))
			paused = true
		default:
			e.emit(playback.ErrorEvent(playback.CategoryOther, true, err))
			paused = true
		}

		if paused {
			e.logger.Debug().
				Err(err).
				Str(xglog.FieldEvent, "headless.paused").
				Msg("polling paused until recovery")
			select {
			case <-e.ctx.Done():
				return
			case <-e.resume:
				announced = false
				failures = 0
				continue
			}
		}

		timer := time.NewTimer(delay)
		select {
		case <-e.ctx.Done():
			timer.Stop()
			return
		case <-e.resume:
			timer.Stop()
			announced = false
			failures = 0
		case <-timer.C:
		}
	}
}

func (e *Engine) emit(ev playback.Event) {
	select {
	case e.events <- ev:
	case <-e.ctx.Done():
	}
}

func (e *Engine) fetch(ctx context.Context, source string, attempt int) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return &FetchError{Sentinel: ErrRejected, URL: source, Attempt: attempt, Err: err}
	}
	req.Header.Set("Accept", playback.ManifestMIME)

	resp, err := e.cfg.Client.Do(req)
	if err != nil {
		return &FetchError{Sentinel: ErrUpstreamUnavailable, URL: source, Attempt: attempt, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxSignatureBytes))
		_ = resp.Body.Close()
	}()

	if sentinel := classifyStatus(resp.StatusCode); sentinel != nil {
		return &FetchError{Sentinel: sentinel, URL: source, Status: resp.StatusCode, Attempt: attempt}
	}
	if !hasSignature(resp.Body) {
		return &FetchError{Sentinel: ErrBadManifest, URL: source, Status: resp.StatusCode, Attempt: attempt}
	}
	return nil
}

func classifyStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound, code == http.StatusGone:
		return ErrNotFound
	case code == http.StatusForbidden, code == http.StatusUnauthorized:
		return ErrForbidden
	case code == http.StatusTooManyRequests, code >= 500:
		return ErrUpstreamError
	default:
		return ErrRejected
	}
}

func retryable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable) || errors.Is(err, ErrUpstreamError)
}

// hasSignature reports whether the first non-blank line is the playlist tag.
func hasSignature(r io.Reader) bool {
	sc := bufio.NewScanner(io.LimitReader(r, maxSignatureBytes))
	for sc.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(sc.Text(), "\ufeff"))
		if line == "" {
			continue
		}
		return strings.HasPrefix(line, manifestSignature)
	}
	return false
}
