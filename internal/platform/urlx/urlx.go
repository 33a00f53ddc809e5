// SPDX-License-Identifier: MIT

// Package urlx parses and normalizes the origin URLs pupcam talks to.
package urlx

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	ErrScheme      = errors.New("url scheme must be http or https")
	ErrNoHost      = errors.New("url host is empty")
	ErrCredentials = errors.New("url must not embed credentials")
	ErrFragment    = errors.New("url must not carry a fragment")
)

// ParseHTTP parses an absolute http(s) URL and normalizes its host to
// lower-case ASCII, so internationalized origin names compare and appear in
// Host headers consistently.
func ParseHTTP(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return nil, fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
	}
	if u.User != nil {
		return nil, ErrCredentials
	}
	if u.Fragment != "" {
		return nil, ErrFragment
	}
	if u.Hostname() == "" {
		return nil, ErrNoHost
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port := u.Port(); port != "" {
		host = net.JoinHostPort(strings.Trim(host, "[]"), port)
	}
	u.Scheme = scheme
	u.Host = host
	return u, nil
}

// NormalizeHost lower-cases an IP literal or converts a domain name to its
// IDNA ASCII form. A trailing dot is dropped.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSuffix(strings.TrimSpace(raw), ".")
	host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	if host == "" {
		return "", ErrNoHost
	}
	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// Redact drops credentials and the query string for logging.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url-redacted"
	}
	u.User = nil
	u.RawQuery = ""
	return u.String()
}
