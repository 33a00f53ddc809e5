// SPDX-License-Identifier: MIT

// Package relay forwards live manifest and segment requests to the media
// origin so a development front end can use same-origin paths.
package relay

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/metrics"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/httpx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/urlx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/telemetry"
)

const DefaultPathPrefix = "/hls"

// forwardedHeaders are stripped by httputil before Rewrite runs.
var forwardedHeaders = []string{"Forwarded", "X-Forwarded-For", "X-Forwarded-Host", "X-Forwarded-Proto"}

var (
	// ErrTLSBypass is returned when certificate verification is switched off.
	ErrTLSBypass = errors.New("relay: certificate verification cannot be disabled")
	// ErrInvalidTarget is returned for a target that is not an absolute http(s) URL.
	ErrInvalidTarget = errors.New("relay: target must be an absolute http or https URL")
	// ErrInvalidPrefix is returned for a prefix that is not an absolute path.
	ErrInvalidPrefix = errors.New("relay: path prefix must start with /")
)

// RateLimit bounds relayed requests per client IP. Zero Requests disables it.
type RateLimit struct {
	Requests int
	Window   time.Duration
}

// Config describes one relay rule.
type Config struct {
	// PathPrefix selects the requests to relay. Defaults to /hls.
	PathPrefix string
	// Target is the origin base URL, e.g. https://aprilslilpugs.com.
	Target string
	// ChangeOrigin rewrites the Host header to the target host.
	ChangeOrigin bool
	// VerifyTLS must stay true; it exists so configuration can state it.
	VerifyTLS bool
	// RootCAs overrides the system trust store.
	RootCAs *x509.CertPool
	// Transport overrides the upstream round tripper.
	Transport http.RoundTripper
	RateLimit RateLimit
	Logger    *zerolog.Logger
}

// Relay is an http.Handler for one prefix.
type Relay struct {
	prefix string
	target *url.URL
	proxy  *httputil.ReverseProxy
	limit  RateLimit
	logger zerolog.Logger
}

type startKey struct{}

// New validates cfg and builds the relay.
func New(cfg Config) (*Relay, error) {
	if !cfg.VerifyTLS {
		return nil, ErrTLSBypass
	}

	prefix := cfg.PathPrefix
	if prefix == "" {
		prefix = DefaultPathPrefix
	}
	if !strings.HasPrefix(prefix, "/") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, prefix)
	}
	if prefix != "/" {
		prefix = strings.TrimRight(prefix, "/")
	}

	target, err := urlx.ParseHTTP(cfg.Target)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}

	logger := xglog.WithComponent("relay")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().Str(xglog.FieldTarget, target.String()).Logger()

	transport := cfg.Transport
	if transport == nil {
		transport = httpx.NewStreamTransport(cfg.RootCAs)
	}

	r := &Relay{
		prefix: prefix,
		target: target,
		limit:  cfg.RateLimit,
		logger: logger,
	}

	changeOrigin := cfg.ChangeOrigin
	r.proxy = &httputil.ReverseProxy{
		// Requests go upstream as received: no X-Forwarded-* headers are added
		// and the client's own are kept.
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			if !changeOrigin {
				pr.Out.Host = pr.In.Host
			}
			for _, h := range forwardedHeaders {
				if v, ok := pr.In.Header[h]; ok {
					pr.Out.Header[h] = v
				}
			}
		},
		Transport: transport,
		// Segments are flushed as they arrive.
		FlushInterval:  -1,
		ModifyResponse: r.observe,
		ErrorHandler:   r.upstreamError,
	}

	return r, nil
}

// Prefix returns the normalized path prefix.
func (r *Relay) Prefix() string { return r.prefix }

// Matches reports whether path falls under the prefix on a segment boundary:
// /hls and /hls/x match, /hlsx does not.
func (r *Relay) Matches(path string) bool {
	if r.prefix == "/" {
		return strings.HasPrefix(path, "/")
	}
	if !strings.HasPrefix(path, r.prefix) {
		return false
	}
	rest := path[len(r.prefix):]
	return rest == "" || rest[0] == '/'
}

// ServeHTTP relays matching requests and answers 404 for anything else.
func (r *Relay) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if !r.Matches(req.URL.Path) {
		http.NotFound(w, req)
		return
	}
	ctx := context.WithValue(req.Context(), startKey{}, time.Now())
	r.proxy.ServeHTTP(w, req.WithContext(ctx))
}

// Handler returns the relay behind its optional rate limiter.
func (r *Relay) Handler() http.Handler {
	if r.limit.Requests <= 0 {
		return r
	}
	window := r.limit.Window
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(r.limit.Requests, window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			w.WriteHeader(http.StatusTooManyRequests)
		}),
	)(r)
}

// Mount registers the relay for the prefix and everything beneath it.
func (r *Relay) Mount(router chi.Router) {
	h := r.Handler()
	if r.prefix == "/" {
		router.Handle("/*", h)
		return
	}
	router.Handle(r.prefix, h)
	router.Handle(r.prefix+"/*", h)
}

func (r *Relay) observe(resp *http.Response) error {
	req := resp.Request
	metrics.ObserveRelayResponse(req.Method, resp.StatusCode, kindOf(req.URL.Path), since(req.Context()))
	if resp.StatusCode >= http.StatusBadRequest {
		r.logger.Debug().
			Str(xglog.FieldEvent, "relay.upstream_status").
			Str(xglog.FieldPath, req.URL.Path).
			Int("status", resp.StatusCode).
			Msg("origin returned error status")
	}
	return nil
}

// upstreamError answers 502 with no body; there is no upstream response to pass on.
func (r *Relay) upstreamError(w http.ResponseWriter, req *http.Request, err error) {
	if errors.Is(err, context.Canceled) {
		r.logger.Debug().
			Str(xglog.FieldEvent, "relay.client_gone").
			Str(xglog.FieldPath, req.URL.Path).
			Msg("client went away")
		return
	}
	metrics.IncRelayUpstreamError()
	trace.SpanFromContext(req.Context()).SetAttributes(telemetry.ErrorAttributes("upstream_unreachable")...)
	logger := xglog.WithContext(req.Context(), r.logger)
	logger.Warn().
		Err(err).
		Str(xglog.FieldEvent, "relay.upstream_error").
		Str(xglog.FieldPath, req.URL.Path).
		Dur("elapsed", since(req.Context())).
		Msg("origin unreachable")
	w.WriteHeader(http.StatusBadGateway)
}

func since(ctx context.Context) time.Duration {
	start, ok := ctx.Value(startKey{}).(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

func kindOf(path string) string {
	switch {
	case strings.HasSuffix(path, ".m3u8"):
		return "manifest"
	case strings.HasSuffix(path, ".ts"), strings.HasSuffix(path, ".m4s"), strings.HasSuffix(path, ".mp4"):
		return "segment"
	default:
		return "other"
	}
}
