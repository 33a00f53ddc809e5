// SPDX-License-Identifier: MIT

package config

import (
	"errors"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/playback"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/validate"
)

var errInsecureTLS = errors.New("certificate verification cannot be disabled")

// Validate checks a fully merged configuration.
func Validate(cfg AppConfig) error {
	v := validate.New()

	_, err := validate.ParseLogLevel(cfg.LogLevel)
	v.Check("logLevel", cfg.LogLevel, err)

	if cfg.LogFile.Path != "" {
		v.Range("logFile.maxSizeMB", cfg.LogFile.MaxSizeMB, 1, 10240)
		v.NonNegative("logFile.maxBackups", cfg.LogFile.MaxBackups)
		v.NonNegative("logFile.maxAgeDays", cfg.LogFile.MaxAgeDays)
	}

	v.ListenAddr("server.listenAddr", cfg.Server.ListenAddr)
	v.PositiveDuration("server.shutdownTimeout", cfg.Server.ShutdownTimeout)

	if cfg.Relay.Enabled {
		v.PathPrefix("relay.pathPrefix", cfg.Relay.PathPrefix)
		v.URL("relay.target", cfg.Relay.Target)
		if !cfg.Relay.VerifyTLS {
			v.Check("relay.verifyTLS", cfg.Relay.VerifyTLS, errInsecureTLS)
		}
		v.File("relay.caFile", cfg.Relay.CAFile)
		v.NonNegative("relay.rateLimit.requests", cfg.Relay.RateLimit.Requests)
		if cfg.Relay.RateLimit.Requests > 0 {
			v.PositiveDuration("relay.rateLimit.window", cfg.Relay.RateLimit.Window)
		}
	}

	v.Check("stream.sourceURL", cfg.Stream.SourceURL, playback.StreamSource{URL: cfg.Stream.SourceURL}.Validate())
	v.NotEmpty("stream.camera", cfg.Stream.Camera)

	// The monitor can be switched on at runtime, so its settings are always checked.
	v.StreamURL("stream.monitor.url", cfg.Stream.Monitor.URL)
	v.PositiveDuration("stream.monitor.interval", cfg.Stream.Monitor.Interval)
	v.PositiveDuration("stream.monitor.timeout", cfg.Stream.Monitor.Timeout)
	if cfg.Stream.Webhook.URL != "" {
		v.URL("stream.webhook.url", cfg.Stream.Webhook.URL)
	}

	v.URL("playback.baseURL", cfg.Playback.BaseURL)
	v.PositiveDuration("playback.refreshInterval", cfg.Playback.RefreshInterval)
	v.Range("playback.maxLoadRetries", cfg.Playback.MaxLoadRetries, 0, 20)

	if cfg.Telemetry.Enabled {
		v.OneOf("telemetry.exporter", cfg.Telemetry.Exporter, []string{"grpc", "http"})
		v.NotEmpty("telemetry.endpoint", cfg.Telemetry.Endpoint)
		v.FloatRange("telemetry.sampleRate", cfg.Telemetry.SampleRate, 0, 1)
	}

	return v.Err()
}
