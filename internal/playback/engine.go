// SPDX-License-Identifier: MIT

package playback

import "context"

// Engine is the adaptive streaming engine consumed by the controller.
// Failures are reported through Events, never as return values.
type Engine interface {
	LoadSource(src StreamSource)
	AttachMedia(media MediaElement)
	// Events is the engine's notification stream. It may be closed after Destroy.
	Events() <-chan Event
	StartLoad()
	RecoverMediaError()
	// Destroy releases the engine. Repeated calls are no-ops.
	Destroy()
}

// EngineFactory creates one Engine per attach.
type EngineFactory func() Engine

// MediaElement is the playback surface.
type MediaElement interface {
	CanPlayType(mime string) bool
	SetSrc(url string)
	// PlayMuted starts muted playback. A rejection is an autoplay policy
	// decision, not a stream failure.
	PlayMuted(ctx context.Context) error
	// Events carries loadedmetadata and error notifications for native playback.
	Events() <-chan Event
}

// nativeEngine drives a media element that plays HLS on its own.
// The element has no in-place recovery, so both recovery commands reassign src.
type nativeEngine struct {
	media MediaElement
	src   StreamSource
}

func newNativeEngine(media MediaElement) *nativeEngine {
	return &nativeEngine{media: media}
}

func (e *nativeEngine) LoadSource(src StreamSource) { e.src = src }

func (e *nativeEngine) AttachMedia(media MediaElement) {
	e.media = media
	e.media.SetSrc(e.src.URL)
}

func (e *nativeEngine) Events() <-chan Event { return e.media.Events() }

func (e *nativeEngine) StartLoad() { e.media.SetSrc(e.src.URL) }

func (e *nativeEngine) RecoverMediaError() { e.media.SetSrc(e.src.URL) }

func (e *nativeEngine) Destroy() { e.media.SetSrc("") }
