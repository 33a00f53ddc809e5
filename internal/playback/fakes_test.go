// SPDX-License-Identifier: MIT

package playback

import (
	"context"
	"errors"
	"sync"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
)

var errAutoplayBlocked = errors.New("play() failed because the user didn't interact with the document first")

type fakeEngine struct {
	mu sync.Mutex

	events chan Event

	source       StreamSource
	attached     MediaElement
	startLoads   int
	recoverMedia int
	destroys     int
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{events: make(chan Event, 16)}
}

func (e *fakeEngine) LoadSource(src StreamSource) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.source = src
}

func (e *fakeEngine) AttachMedia(media MediaElement) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attached = media
}

func (e *fakeEngine) Events() <-chan Event { return e.events }

func (e *fakeEngine) StartLoad() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startLoads++
}

func (e *fakeEngine) RecoverMediaError() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recoverMedia++
}

func (e *fakeEngine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.destroys++
}

func (e *fakeEngine) counts() (startLoads, recoverMedia, destroys int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLoads, e.recoverMedia, e.destroys
}

type fakeMedia struct {
	mu sync.Mutex

	events    chan Event
	canPlay   map[string]bool
	playErr   error
	srcs      []string
	playCalls int
	sessions  []string
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{events: make(chan Event, 16), canPlay: map[string]bool{}}
}

func (m *fakeMedia) CanPlayType(mime string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canPlay[mime]
}

func (m *fakeMedia) SetSrc(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.srcs = append(m.srcs, url)
}

func (m *fakeMedia) PlayMuted(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	m.sessions = append(m.sessions, xglog.SessionIDFromContext(ctx))
	return m.playErr
}

func (m *fakeMedia) Events() <-chan Event { return m.events }

func (m *fakeMedia) playSessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sessions...)
}

func (m *fakeMedia) plays() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

func (m *fakeMedia) srcHistory() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.srcs))
	copy(out, m.srcs)
	return out
}
