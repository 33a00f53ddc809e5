// SPDX-License-Identifier: MIT

// Package validate accumulates configuration validation failures so a bad
// config file reports every broken field at once.
package validate

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/urlx"
)

// Error is one failed field.
type Error struct {
	Field   string
	Value   any
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

// ValidationError is the error returned by Validator.Err.
type ValidationError struct {
	errs []Error
}

// Errors returns the failures in the order they were found.
func (e ValidationError) Errors() []Error { return e.errs }

// Fields lists the failing field names in order.
func (e ValidationError) Fields() []string {
	out := make([]string, 0, len(e.errs))
	for _, fe := range e.errs {
		out = append(out, fe.Field)
	}
	return out
}

func (e ValidationError) Error() string {
	var b strings.Builder
	for i, fe := range e.errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(fe.Error())
	}
	return b.String()
}

// Validator collects failures. The zero value is not usable; call New.
type Validator struct {
	errs []Error
}

func New() *Validator {
	return &Validator{errs: []Error{}}
}

func (v *Validator) AddError(field, message string, value any) {
	v.errs = append(v.errs, Error{Field: field, Value: value, Message: message})
}

func (v *Validator) addf(field string, value any, format string, args ...any) {
	v.AddError(field, fmt.Sprintf(format, args...), value)
}

func (v *Validator) IsValid() bool { return len(v.errs) == 0 }

func (v *Validator) Errors() []Error { return v.errs }

// Err snapshots the failures found so far, or returns nil.
func (v *Validator) Err() error {
	if v.IsValid() {
		return nil
	}
	return ValidationError{errs: append([]Error(nil), v.errs...)}
}

// URL checks an absolute http(s) origin URL.
func (v *Validator) URL(field, value string) {
	if value == "" {
		v.AddError(field, "URL cannot be empty", value)
		return
	}
	if _, err := urlx.ParseHTTP(value); err != nil {
		v.AddError(field, err.Error(), value)
	}
}

// StreamURL checks a manifest URL: an http(s) origin plus a resource path.
func (v *Validator) StreamURL(field, value string) {
	if value == "" {
		v.AddError(field, "stream URL cannot be empty", value)
		return
	}
	u, err := urlx.ParseHTTP(value)
	if err != nil {
		v.AddError(field, err.Error(), value)
		return
	}
	if strings.Trim(u.Path, "/") == "" {
		v.AddError(field, "stream URL must have a path component", value)
	}
}

// PathPrefix checks a mount prefix such as /hls.
func (v *Validator) PathPrefix(field, prefix string) {
	switch {
	case !strings.HasPrefix(prefix, "/"):
		v.AddError(field, "path prefix must start with /", prefix)
	case strings.ContainsAny(prefix, "?#*"):
		v.AddError(field, "path prefix must not contain query, fragment or wildcard", prefix)
	}
}

// ListenAddr checks a host:port listen address. The host may be empty.
func (v *Validator) ListenAddr(field, addr string) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		v.addf(field, addr, "invalid listen address: %v", err)
		return
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		v.addf(field, addr, "port must be a number between 1 and 65535, got %q", port)
	}
}

type number interface {
	~int | ~float64
}

func inRange[T number](v *Validator, field string, value, lo, hi T) {
	if value < lo || value > hi {
		v.addf(field, value, "value must be between %v and %v, got %v", lo, hi, value)
	}
}

// Range checks lo <= value <= hi.
func (v *Validator) Range(field string, value, lo, hi int) { inRange(v, field, value, lo, hi) }

// FloatRange checks lo <= value <= hi.
func (v *Validator) FloatRange(field string, value, lo, hi float64) {
	inRange(v, field, value, lo, hi)
}

func (v *Validator) NonNegative(field string, value int) {
	if value < 0 {
		v.addf(field, value, "value cannot be negative, got %d", value)
	}
}

func (v *Validator) PositiveDuration(field string, d time.Duration) {
	if d <= 0 {
		v.addf(field, d, "duration must be positive, got %s", d)
	}
}

func (v *Validator) NotEmpty(field, value string) {
	if strings.TrimSpace(value) == "" {
		v.AddError(field, "value cannot be empty", value)
	}
}

func (v *Validator) OneOf(field, value string, allowed []string) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	v.addf(field, value, "value must be one of %v, got %q", allowed, value)
}

// File checks that an optional path names a regular file, such as a CA bundle.
func (v *Validator) File(field, path string) {
	if path == "" {
		return
	}
	info, err := os.Stat(path)
	switch {
	case err != nil:
		v.addf(field, path, "cannot access file: %v", err)
	case info.IsDir():
		v.AddError(field, "path is a directory, expected file", path)
	}
}

// Check records err, if any, against field.
func (v *Validator) Check(field string, value any, err error) {
	if err != nil {
		v.AddError(field, err.Error(), value)
	}
}
