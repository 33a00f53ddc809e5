// SPDX-License-Identifier: MIT

package playback

import (
	"sync"
	"time"
)

// View is what presentation renders for a Status.
type View string

const (
	ViewLoading View = "loading"
	ViewLive    View = "live"
	ViewMessage View = "message"
)

// Status is the read-only projection of the controller state.
type Status struct {
	State     State     `json:"state"`
	Strategy  Strategy  `json:"strategy,omitempty"`
	Message   string    `json:"message,omitempty"`
	Live      bool      `json:"live"`
	SessionID string    `json:"session_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// View maps the status onto exactly one presentation.
func (s Status) View() View {
	switch s.State {
	case StateOffline, StateUnsupported:
		return ViewMessage
	case StateRecoveringNetwork, StateRecoveringMedia:
		return ViewLive
	case StateAttached:
		if s.Live {
			return ViewLive
		}
	}
	return ViewLoading
}

// ShowLiveBadge reports whether the "Live" badge accompanies the video surface.
func (s Status) ShowLiveBadge() bool {
	return s.View() == ViewLive
}

// StatusSurface publishes Status values written by a single Controller.
// Watchers receive the latest value; intermediate values may be skipped
// by slow readers.
type StatusSurface struct {
	mu       sync.Mutex
	current  Status
	watchers map[int]chan Status
	nextID   int
	now      func() time.Time
}

// NewStatusSurface returns a surface in the Initializing state.
func NewStatusSurface() *StatusSurface {
	s := &StatusSurface{
		watchers: make(map[int]chan Status),
		now:      time.Now,
	}
	s.current = Status{State: StateInitializing, UpdatedAt: s.now()}
	return s
}

// Snapshot returns the current status.
func (s *StatusSurface) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Watch subscribes to status updates. The current value is delivered first.
// The returned cancel func closes the channel and is safe to call twice.
func (s *StatusSurface) Watch() (<-chan Status, func()) {
	ch := make(chan Status, 1)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.watchers[id] = ch
	ch <- s.current
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// update applies fn and publishes the result. Only the controller calls it.
func (s *StatusSurface) update(fn func(*Status)) Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	s.current.UpdatedAt = s.now()
	for _, ch := range s.watchers {
		publishLatest(ch, s.current)
	}
	return s.current
}

func publishLatest(ch chan Status, st Status) {
	select {
	case ch <- st:
		return
	default:
	}
	// Drop the stale value so the newest one is always observable.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- st:
	default:
	}
}
