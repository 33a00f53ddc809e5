// SPDX-License-Identifier: MIT

package playback

import (
	"sync"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/metrics"
)

// engineHandle owns an Engine until release. Commands and release are
// serialized so a command racing teardown becomes a no-op.
type engineHandle struct {
	mu       sync.Mutex
	engine   Engine
	released bool
}

func newEngineHandle(engine Engine) *engineHandle {
	metrics.PlaybackSessionsActive.Inc()
	return &engineHandle{engine: engine}
}

// do runs fn against the engine unless the handle was released.
func (h *engineHandle) do(fn func(Engine)) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	fn(h.engine)
	return true
}

// release destroys the engine exactly once and reports whether this call did it.
func (h *engineHandle) release() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return false
	}
	h.released = true
	h.engine.Destroy()
	metrics.PlaybackSessionsActive.Dec()
	return true
}
