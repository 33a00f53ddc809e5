// SPDX-License-Identifier: MIT

// Package resilience guards calls to flaky outbound endpoints.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/metrics"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

const (
	DefaultThreshold    = 3
	DefaultResetTimeout = 30 * time.Second
)

// ErrOpen is returned without calling the guarded function while open.
var ErrOpen = errors.New("circuit breaker is open")

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Breaker opens after Threshold consecutive failures and lets one trial
// call through once ResetTimeout has passed. Cancellation is not counted
// as a failure; a timeout is.
type Breaker struct {
	name         string
	threshold    int
	resetTimeout time.Duration
	clock        Clock

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// Option configures a Breaker.
type Option func(*Breaker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(b *Breaker) { b.clock = c }
}

// New returns a closed breaker. Non-positive arguments select the defaults.
func New(name string, threshold int, resetTimeout time.Duration, opts ...Option) *Breaker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if resetTimeout <= 0 {
		resetTimeout = DefaultResetTimeout
	}
	b := &Breaker{
		name:         name,
		threshold:    threshold,
		resetTimeout: resetTimeout,
		clock:        realClock{},
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(b)
	}
	metrics.SetBreakerState(name, string(b.state))
	return b
}

// Do calls fn unless the breaker is open.
func (b *Breaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if !b.allow() {
		return ErrOpen
	}
	err := fn(ctx)
	switch {
	case err == nil:
		b.succeed()
	case errors.Is(err, context.Canceled):
		b.release()
	default:
		b.fail()
	}
	return err
}

// State returns the current position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return true
	case StateOpen:
		if b.clock.Now().Sub(b.openedAt) < b.resetTimeout {
			return false
		}
		b.moveTo(StateHalfOpen)
	}
	// Half-open admits a single trial call at a time.
	if b.trial {
		return false
	}
	b.trial = true
	return true
}

func (b *Breaker) succeed() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.trial = false
	b.moveTo(StateClosed)
}

func (b *Breaker) fail() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++
	switch {
	case b.state == StateHalfOpen:
		b.trial = false
		metrics.IncBreakerTrip(b.name, "trial_failed")
		b.moveTo(StateOpen)
	case b.state == StateClosed && b.failures >= b.threshold:
		metrics.IncBreakerTrip(b.name, "threshold_exceeded")
		b.moveTo(StateOpen)
	}
}

// release frees a half-open trial slot without judging the endpoint.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.trial = false
}

// moveTo must be called with mu held.
func (b *Breaker) moveTo(next State) {
	if b.state == next {
		return
	}
	b.state = next
	if next == StateOpen {
		b.openedAt = b.clock.Now()
	}
	metrics.SetBreakerState(b.name, string(next))
}
