// SPDX-License-Identifier: MIT

package headless

import (
	"errors"
	"fmt"
)

var (
	// ErrAutoplayBlocked is returned by PlayMuted when autoplay is disabled.
	ErrAutoplayBlocked = errors.New("autoplay blocked by policy")

	ErrUpstreamUnavailable = errors.New("manifest: host unreachable or transport failure")
	ErrUpstreamError       = errors.New("manifest: upstream error")
	ErrNotFound            = errors.New("manifest: not found")
	ErrForbidden           = errors.New("manifest: access forbidden")
	ErrBadManifest         = errors.New("manifest: missing #EXTM3U signature")
	ErrRejected            = errors.New("manifest: request rejected")
)

// FetchError describes one failed manifest fetch. It travels as the event
// diagnostic and is only ever logged.
type FetchError struct {
	Sentinel error
	URL      string
	Status   int
	Attempt  int
	Err      error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s: %v", e.URL, e.Sentinel)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Sentinel }
