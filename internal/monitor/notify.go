// SPDX-License-Identifier: MIT

package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/rs/zerolog"

	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/httpx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/resilience"
)

// Notifier receives online/offline transitions. Calls happen off the polling
// goroutine.
type Notifier interface {
	NotifyStreamStatus(ctx context.Context, camera string, live bool) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, camera string, live bool) error

func (f NotifierFunc) NotifyStreamStatus(ctx context.Context, camera string, live bool) error {
	return f(ctx, camera, live)
}

// LogNotifier records transitions in the log only.
type LogNotifier struct {
	Logger zerolog.Logger
}

func (n LogNotifier) NotifyStreamStatus(ctx context.Context, camera string, live bool) error {
	logger := xglog.WithContext(ctx, n.Logger)
	logger.Info().
		Str(xglog.FieldEvent, "monitor.notified").
		Str("camera", camera).
		Str("status", statusWord(live)).
		Msg("stream status event")
	return nil
}

// EventName is the event type posted by WebhookNotifier.
const EventName = "stream_status"

// CorrelationHeader carries the delivery's correlation ID on every attempt.
const CorrelationHeader = "X-Correlation-ID"

var ErrWebhookRejected = errors.New("monitor: webhook rejected event")

// Webhook delivery defaults.
const (
	DefaultWebhookAttempts       = 3
	DefaultWebhookDelay          = 500 * time.Millisecond
	DefaultWebhookAttemptTimeout = 5 * time.Second
)

// WebhookNotifier posts a JSON event to an automation endpoint. Network
// errors, 429 and 5xx responses are retried with exponential backoff; other
// rejections are final.
type WebhookNotifier struct {
	URL      string
	Token    string
	Source   string
	Client   *http.Client
	Now      func() time.Time
	Attempts uint          // 0 means DefaultWebhookAttempts
	Delay    time.Duration // 0 means DefaultWebhookDelay
	// AttemptTimeout bounds one POST; 0 means DefaultWebhookAttemptTimeout.
	AttemptTimeout time.Duration
}

func (n WebhookNotifier) settings() (attempts uint, delay, perAttempt time.Duration) {
	attempts, delay, perAttempt = n.Attempts, n.Delay, n.AttemptTimeout
	if attempts == 0 {
		attempts = DefaultWebhookAttempts
	}
	if delay <= 0 {
		delay = DefaultWebhookDelay
	}
	if perAttempt <= 0 {
		perAttempt = DefaultWebhookAttemptTimeout
	}
	return attempts, delay, perAttempt
}

// Budget is the longest one delivery can take: every attempt timing out plus
// the backoff between them. Callers size the notification deadline with it.
func (n WebhookNotifier) Budget() time.Duration {
	attempts, delay, perAttempt := n.settings()
	total := time.Duration(attempts) * perAttempt
	for k := uint(0); k+1 < attempts; k++ {
		total += delay << k
	}
	return total
}

// webhookStatusError carries the HTTP status of a rejected delivery.
type webhookStatusError struct {
	code int
}

func (e *webhookStatusError) Error() string {
	return fmt.Sprintf("%s: HTTP %d", ErrWebhookRejected, e.code)
}

func (e *webhookStatusError) Unwrap() error { return ErrWebhookRejected }

// retryableDelivery reports whether a failed attempt is worth repeating.
// Caller cancellation is handled by retry.Context.
func retryableDelivery(err error) bool {
	if !retry.IsRecoverable(err) {
		return false
	}
	var se *webhookStatusError
	if errors.As(err, &se) {
		return se.code == http.StatusTooManyRequests || se.code >= http.StatusInternalServerError
	}
	return true
}

type webhookEvent struct {
	Type       string `json:"type"`
	CameraName string `json:"camera_name"`
	Status     string `json:"status"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
}

func (n WebhookNotifier) NotifyStreamStatus(ctx context.Context, camera string, live bool) error {
	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	body, err := json.Marshal(webhookEvent{
		Type:       EventName,
		CameraName: camera,
		Status:     statusWord(live),
		Timestamp:  now().Format(time.RFC3339),
		Source:     n.Source,
	})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	attempts, delay, perAttempt := n.settings()
	return retry.Do(
		func() error {
			actx, cancel := context.WithTimeout(ctx, perAttempt)
			defer cancel()
			return n.post(actx, body)
		},
		retry.Context(ctx),
		retry.Attempts(attempts),
		retry.Delay(delay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(retryableDelivery),
	)
}

func (n WebhookNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.URL, bytes.NewReader(body))
	if err != nil {
		return retry.Unrecoverable(fmt.Errorf("build webhook request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if cid := xglog.CorrelationIDFromContext(ctx); cid != "" {
		req.Header.Set(CorrelationHeader, cid)
	}
	if n.Token != "" {
		req.Header.Set("Authorization", "Bearer "+n.Token)
	}

	client := n.Client
	if client == nil {
		client = httpx.NewClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post event: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= http.StatusBadRequest {
		return &webhookStatusError{code: resp.StatusCode}
	}
	return nil
}

// GuardedNotifier stops calling an endpoint that keeps failing until the
// breaker lets a trial through. Dropped events return resilience.ErrOpen.
type GuardedNotifier struct {
	Next    Notifier
	Breaker *resilience.Breaker
}

func (n GuardedNotifier) NotifyStreamStatus(ctx context.Context, camera string, live bool) error {
	return n.Breaker.Do(ctx, func(ctx context.Context) error {
		return n.Next.NotifyStreamStatus(ctx, camera, live)
	})
}

func statusWord(live bool) string {
	if live {
		return "online"
	}
	return "offline"
}
