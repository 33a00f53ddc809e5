// SPDX-License-Identifier: MIT

package headless

import (
	"context"
	"sync"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/playback"
)

// MediaElement is a terminal playback surface. It cannot play HLS natively,
// so the probe always prefers the adaptive engine.
type MediaElement struct {
	mu       sync.Mutex
	autoplay bool
	src      string
	playing  bool
	events   chan playback.Event
}

// NewMediaElement returns a surface whose PlayMuted succeeds only when
// autoplay is allowed.
func NewMediaElement(autoplay bool) *MediaElement {
	return &MediaElement{autoplay: autoplay, events: make(chan playback.Event)}
}

func (m *MediaElement) CanPlayType(string) bool { return false }

func (m *MediaElement) SetSrc(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.src = url
	if url == "" {
		m.playing = false
	}
}

func (m *MediaElement) PlayMuted(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.autoplay {
		logger := xglog.WithComponentFromContext(ctx, "headless")
		logger.Debug().Str(xglog.FieldEvent, "headless.autoplay_blocked").Msg("terminal refused muted playback")
		return ErrAutoplayBlocked
	}
	m.playing = true
	return nil
}

// Events never delivers; a terminal has no native decoder.
func (m *MediaElement) Events() <-chan playback.Event { return m.events }

// Src returns the current source URL.
func (m *MediaElement) Src() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.src
}

// Playing reports whether muted playback was started and not cleared.
func (m *MediaElement) Playing() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playing
}

// Environment is the capability set of a terminal session.
func Environment() playback.Environment {
	return playback.Capabilities{Adaptive: true}
}
