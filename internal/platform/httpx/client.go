// SPDX-License-Identifier: MIT

// Package httpx builds the outbound HTTP clients and transports used to reach
// the media origin. Certificates are always verified.
package httpx

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	defaultClientTimeout         = 5 * time.Second
	defaultDialTimeout           = 3 * time.Second
	defaultResponseHeaderTimeout = 3 * time.Second
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
	defaultMaxIdleConns          = 16
	defaultMaxIdleConnsPerHost   = 4

	// Relayed segments stream for as long as the viewer watches.
	streamResponseHeaderTimeout = 10 * time.Second
)

// TransportOptions tunes NewTransport.
type TransportOptions struct {
	// RootCAs overrides the system pool (tests, private dev CAs).
	RootCAs *x509.CertPool
	// DialTimeout bounds TCP connect and TLS handshake. Zero uses the default.
	DialTimeout time.Duration
	// ResponseHeaderTimeout bounds the wait for upstream headers. Zero uses the default.
	ResponseHeaderTimeout time.Duration
}

// NewTransport returns a hardened transport with certificate verification on.
func NewTransport(opts TransportOptions) *http.Transport {
	dialTimeout := opts.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	headerTimeout := opts.ResponseHeaderTimeout
	if headerTimeout <= 0 {
		headerTimeout = defaultResponseHeaderTimeout
	}

	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          defaultMaxIdleConns,
		MaxIdleConnsPerHost:   defaultMaxIdleConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		TLSHandshakeTimeout:   dialTimeout,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
		TLSClientConfig: &tls.Config{
			MinVersion: tls.VersionTLS12,
			RootCAs:    opts.RootCAs,
		},
	}
}

// NewStreamTransport returns a transport for long-lived relayed responses,
// instrumented with OpenTelemetry client spans.
func NewStreamTransport(rootCAs *x509.CertPool) http.RoundTripper {
	return otelhttp.NewTransport(NewTransport(TransportOptions{
		RootCAs:               rootCAs,
		ResponseHeaderTimeout: streamResponseHeaderTimeout,
	}))
}

// NewClient returns a hardened HTTP client for manifest polls and probes.
func NewClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := timeout
	if dialTimeout > defaultDialTimeout {
		dialTimeout = defaultDialTimeout
	}

	responseHeaderTimeout := timeout
	if responseHeaderTimeout > defaultResponseHeaderTimeout {
		responseHeaderTimeout = defaultResponseHeaderTimeout
	}

	return &http.Client{
		Timeout: timeout,
		Transport: NewTransport(TransportOptions{
			DialTimeout:           dialTimeout,
			ResponseHeaderTimeout: responseHeaderTimeout,
		}),
	}
}

// Instrument wraps the client's transport with OpenTelemetry client spans.
func Instrument(c *http.Client) *http.Client {
	base := c.Transport
	if base == nil {
		base = NewTransport(TransportOptions{})
	}
	clone := *c
	clone.Transport = otelhttp.NewTransport(base)
	return &clone
}

// ErrNoCertificates is returned when a CA file holds no PEM certificates.
var ErrNoCertificates = errors.New("no PEM certificates found")

// LoadRootCAs reads a PEM bundle into a pool. An empty path yields nil, which
// selects the system trust store.
func LoadRootCAs(path string) (*x509.CertPool, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read CA file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(data) {
		return nil, fmt.Errorf("%w in %s", ErrNoCertificates, path)
	}
	return pool, nil
}
