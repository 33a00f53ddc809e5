// SPDX-License-Identifier: MIT

package playback

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/fsm"
	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/metrics"
)

// Config holds the inputs for one playback surface lifetime.
type Config struct {
	Source   StreamSource
	Strategy Strategy

	// Engine creates the adaptive engine. Required for StrategyAdaptiveEngine.
	Engine EngineFactory

	// Media is the playback surface. Required unless the strategy is unsupported.
	Media MediaElement

	// Status receives every transition. A new surface is created when nil.
	Status *StatusSurface

	// Logger overrides the component logger.
	Logger *zerolog.Logger

	// SessionID tags logs and the status; generated when empty.
	SessionID string
}

// Controller owns the engine handle and drives the recovery state machine.
//
// Attach and Step must be called from one goroutine (Run does both).
// Teardown may be called from any goroutine at any time.
type Controller struct {
	source    StreamSource
	strategy  Strategy
	factory   EngineFactory
	media     MediaElement
	status    *StatusSurface
	sessionID string
	logger    zerolog.Logger

	machine *fsm.Machine[State, Trigger]
	handle  atomic.Pointer[engineHandle]
	events  <-chan Event

	started  atomic.Bool
	stop     chan struct{}
	stopOnce sync.Once

	// Recurring recoverable errors are retried forever; keep their logs bounded.
	recoveryLog rate.Sometimes
}

// New validates cfg and returns a controller in the Initializing state.
func New(cfg Config) (*Controller, error) {
	if !cfg.Strategy.valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, cfg.Strategy)
	}
	if cfg.Strategy != StrategyUnsupported {
		if err := cfg.Source.Validate(); err != nil {
			return nil, err
		}
		if cfg.Media == nil {
			return nil, ErrNoSurface
		}
	}
	if cfg.Strategy == StrategyAdaptiveEngine && cfg.Engine == nil {
		return nil, ErrNoEngine
	}

	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	logger := xglog.WithComponent("playback")
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	logger = logger.With().
		Str(xglog.FieldSessionID, sessionID).
		Str(xglog.FieldStrategy, string(cfg.Strategy)).
		Logger()

	status := cfg.Status
	if status == nil {
		status = NewStatusSurface()
	}
	status.update(func(s *Status) {
		s.State = StateInitializing
		s.Strategy = cfg.Strategy
		s.SessionID = sessionID
		s.Message = ""
		s.Live = false
	})

	return &Controller{
		source:      cfg.Source,
		strategy:    cfg.Strategy,
		factory:     cfg.Engine,
		media:       cfg.Media,
		status:      status,
		sessionID:   sessionID,
		logger:      logger,
		machine:     fsm.New(StateInitializing, transitions),
		stop:        make(chan struct{}),
		recoveryLog: rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}, nil
}

// Status returns the surface this controller writes.
func (c *Controller) Status() *StatusSurface { return c.status }

// State returns the current state.
func (c *Controller) State() State { return c.machine.State() }

// SessionID returns the session identifier used in logs.
func (c *Controller) SessionID() string { return c.sessionID }

// Run attaches the source and processes engine events in arrival order until
// the controller reaches a terminal state, the engine closes its event stream,
// ctx is cancelled or Teardown is called. Cancellation tears the session down.
func (c *Controller) Run(ctx context.Context) error {
	if !c.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	c.attach()

	for {
		if c.State().Terminal() || c.stopped() {
			return nil
		}
		select {
		case <-ctx.Done():
			c.Teardown()
			return nil
		case <-c.stop:
			return nil
		case ev, ok := <-c.events:
			if !ok {
				c.logger.Debug().Str(xglog.FieldEvent, "playback.events_closed").Msg("engine event stream closed")
				c.Teardown()
				return nil
			}
			c.Step(ctx, ev)
		}
	}
}

// Attach performs the Initializing transition for callers that drive the
// event loop themselves. Run calls it implicitly.
func (c *Controller) Attach(ctx context.Context) (State, error) {
	if !c.started.CompareAndSwap(false, true) {
		return c.State(), ErrAlreadyStarted
	}
	c.attach()
	return c.State(), nil
}

// Events returns the active engine's event stream, or nil before attach.
func (c *Controller) Events() <-chan Event { return c.events }

func (c *Controller) attach() {
	if c.stopped() {
		return
	}

	if c.strategy == StrategyUnsupported {
		c.transition(TriggerUnsupported, func(s *Status) {
			s.Message = MessageUnsupported
		})
		c.logger.Info().Str(xglog.FieldEvent, "playback.unsupported").Msg("no playback strategy available")
		return
	}

	var engine Engine
	if c.strategy == StrategyAdaptiveEngine {
		engine = c.factory()
	} else {
		engine = newNativeEngine(c.media)
	}
	h := newEngineHandle(engine)
	c.handle.Store(h)
	// Teardown may have raced the store above; it only releases a handle it can see.
	if c.stopped() {
		h.release()
		return
	}

	if !c.attachTo(h) {
		return
	}
	c.logger.Info().
		Str(xglog.FieldEvent, "playback.attached").
		Str(xglog.FieldSource, c.source.URL).
		Msg("source attached")
}

// attachTo loads the source through h and enters Attached while holding the
// handle, so a concurrent Teardown either sees an attached session or wins
// and leaves the controller in Initializing.
func (c *Controller) attachTo(h *engineHandle) bool {
	return h.do(func(e Engine) {
		e.LoadSource(c.source)
		e.AttachMedia(c.media)
		c.events = e.Events()
		metrics.IncPlaybackCommand(string(CommandAttach))
		c.transition(TriggerAttach, nil)
	})
}

// Step handles one engine event to completion. Events after teardown or in a
// terminal state are ignored.
func (c *Controller) Step(ctx context.Context, ev Event) State {
	from := c.State()
	if c.stopped() || from.Terminal() {
		return from
	}

	if ev.Kind == KindError {
		metrics.IncPlaybackError(string(ev.Category), ev.Fatal)
		if !ev.Fatal {
			c.logger.Debug().
				Str(xglog.FieldEvent, "playback.error_nonfatal").
				Str(xglog.FieldCategory, string(ev.Category)).
				Interface("diagnostic", ev.Diagnostic).
				Msg("non-fatal engine error ignored")
		}
	}

	trigger := TriggerFor(ev)
	_, cmd, ok := Next(from, trigger)
	if !ok {
		return from
	}

	switch cmd {
	case CommandAutoplay:
		c.autoplay(ctx)
		return c.transition(trigger, func(s *Status) { s.Live = true })

	case CommandStartLoad:
		c.logRecovery(ev, cmd)
		c.issue(cmd, Engine.StartLoad)
		return c.transition(trigger, nil)

	case CommandRecoverMedia:
		c.logRecovery(ev, cmd)
		c.issue(cmd, Engine.RecoverMediaError)
		return c.transition(trigger, nil)

	case CommandRelease:
		c.logger.Error().
			Str(xglog.FieldEvent, "playback.fatal").
			Str(xglog.FieldCategory, string(ev.Category)).
			Interface("diagnostic", ev.Diagnostic).
			Msg("fatal engine error, cannot recover")
		c.release()
		return c.transition(trigger, func(s *Status) {
			s.Message = MessageOffline
			s.Live = false
		})
	}

	return c.transition(trigger, nil)
}

// Teardown stops event processing and releases the engine handle if held.
// It never moves the controller to Offline and is safe to call repeatedly.
func (c *Controller) Teardown() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.logger.Debug().Str(xglog.FieldEvent, "playback.teardown").Msg("playback surface torn down")
	})
	c.release()
}

func (c *Controller) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Controller) release() {
	h := c.handle.Load()
	if h == nil {
		return
	}
	if h.release() {
		metrics.IncPlaybackCommand(string(CommandRelease))
		c.logger.Debug().Str(xglog.FieldEvent, "playback.released").Msg("engine handle released")
	}
}

func (c *Controller) issue(cmd Command, fn func(Engine)) {
	h := c.handle.Load()
	if h == nil {
		return
	}
	if h.do(fn) {
		metrics.IncPlaybackCommand(string(cmd))
	}
}

func (c *Controller) autoplay(ctx context.Context) {
	metrics.IncPlaybackCommand(string(CommandAutoplay))
	ctx = xglog.ContextWithSessionID(ctx, c.sessionID)
	if err := c.media.PlayMuted(ctx); err != nil {
		c.logger.Info().
			Err(err).
			Str(xglog.FieldEvent, "playback.autoplay_prevented").
			Msg("autoplay prevented")
	}
}

func (c *Controller) logRecovery(ev Event, cmd Command) {
	c.recoveryLog.Do(func() {
		c.logger.Warn().
			Str(xglog.FieldEvent, "playback.recovering").
			Str(xglog.FieldCategory, string(ev.Category)).
			Str(xglog.FieldCommand, string(cmd)).
			Interface("diagnostic", ev.Diagnostic).
			Msg("fatal engine error, issuing recovery command")
	})
}

func (c *Controller) transition(trigger Trigger, mutate func(*Status)) State {
	from := c.machine.State()
	to, err := c.machine.Fire(trigger)
	if err != nil {
		c.logger.Debug().Err(err).Msg("transition rejected")
		return from
	}
	if from == to && mutate == nil {
		return to
	}

	c.status.update(func(s *Status) {
		s.State = to
		if mutate != nil {
			mutate(s)
		}
	})

	if from != to {
		metrics.IncPlaybackTransition(string(from), string(to))
		c.logger.Info().
			Str(xglog.FieldEvent, "playback.transition").
			Str(xglog.FieldOldState, string(from)).
			Str(xglog.FieldNewState, string(to)).
			Msg("playback state changed")
	}
	return to
}
