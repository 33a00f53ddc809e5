// SPDX-License-Identifier: MIT

// Package playback attaches a live HLS source to a playback surface and
// recovers from delivery and decoding failures reported by the engine.
package playback

import (
	"errors"
	"net/url"
	"strings"
)

// ManifestMIME is the MIME type probed on the native media element.
const ManifestMIME = "application/vnd.apple.mpegurl"

// DefaultSourceURL is the manifest served by the camera origin.
const DefaultSourceURL = "/hls/test.m3u8"

// User-facing messages. No diagnostic detail is ever shown beside them.
const (
	MessageOffline     = "Stream is currently offline."
	MessageUnsupported = "Your browser does not support playback."
)

var (
	ErrInvalidSource   = errors.New("stream source must be an absolute path or URL")
	ErrNoSurface       = errors.New("playback surface is required")
	ErrNoEngine        = errors.New("adaptive engine factory is required")
	ErrUnknownStrategy = errors.New("unknown playback strategy")
	ErrAlreadyStarted  = errors.New("controller already started")
)

// StreamSource identifies the manifest for one playback attempt.
type StreamSource struct {
	URL string `json:"url"`
}

// Validate checks that the source is an absolute path or an absolute URL.
func (s StreamSource) Validate() error {
	raw := strings.TrimSpace(s.URL)
	if raw == "" {
		return ErrInvalidSource
	}
	if strings.HasPrefix(raw, "/") && !strings.HasPrefix(raw, "//") {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ErrInvalidSource
	}
	return nil
}

// Strategy is the playback path chosen once per attach.
type Strategy string

const (
	StrategyAdaptiveEngine Strategy = "adaptive_engine"
	StrategyNativePlayback Strategy = "native_playback"
	StrategyUnsupported    Strategy = "unsupported"
)

func (s Strategy) valid() bool {
	switch s {
	case StrategyAdaptiveEngine, StrategyNativePlayback, StrategyUnsupported:
		return true
	}
	return false
}

// State is the controller's lifecycle state.
type State string

const (
	StateInitializing      State = "initializing"
	StateAttached          State = "attached"
	StateRecoveringNetwork State = "recovering_network"
	StateRecoveringMedia   State = "recovering_media"
	StateOffline           State = "offline"
	StateUnsupported       State = "unsupported"
)

// Terminal reports whether no further transitions can occur.
func (s State) Terminal() bool {
	return s == StateOffline || s == StateUnsupported
}

// EventKind distinguishes engine and media element notifications.
type EventKind string

const (
	// KindManifestReady is emitted by the adaptive engine once the manifest is parsed.
	KindManifestReady EventKind = "manifest_ready"
	// KindMetadataLoaded is emitted by a native media element (loadedmetadata).
	KindMetadataLoaded EventKind = "metadata_loaded"
	// KindError carries an ErrorCategory and fatality.
	KindError EventKind = "error"
)

// ErrorCategory classifies engine errors.
type ErrorCategory string

const (
	CategoryNetwork ErrorCategory = "network"
	CategoryMedia   ErrorCategory = "media"
	CategoryOther   ErrorCategory = "other"
)

// Event is one notification from the active engine.
// Diagnostic is logged only; control flow looks at Kind, Category and Fatal.
type Event struct {
	Kind       EventKind
	Category   ErrorCategory
	Fatal      bool
	Diagnostic any
}

// ManifestReady builds a manifest-ready event.
func ManifestReady() Event { return Event{Kind: KindManifestReady} }

// MetadataLoaded builds a native loadedmetadata event.
func MetadataLoaded() Event { return Event{Kind: KindMetadataLoaded} }

// ErrorEvent builds an engine error event.
func ErrorEvent(category ErrorCategory, fatal bool, diagnostic any) Event {
	return Event{Kind: KindError, Category: category, Fatal: fatal, Diagnostic: diagnostic}
}

// Command is the single engine instruction a transition issues.
type Command string

const (
	CommandNone         Command = "none"
	CommandAttach       Command = "attach"
	CommandAutoplay     Command = "autoplay"
	CommandStartLoad    Command = "start_load"
	CommandRecoverMedia Command = "recover_media"
	CommandRelease      Command = "release"
)
