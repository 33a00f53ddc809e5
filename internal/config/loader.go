// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment key read by the loader.
const EnvPrefix = "PUPCAM_"

// Loader handles configuration loading with precedence.
type Loader struct {
	configPath      string
	version         string
	ConsumedEnvKeys map[string]struct{}
}

// NewLoader creates a loader. An empty configPath skips the file layer.
func NewLoader(configPath, version string) *Loader {
	return &Loader{
		configPath:      configPath,
		version:         version,
		ConsumedEnvKeys: make(map[string]struct{}),
	}
}

// Path returns the config file path, or "" when running from ENV only.
func (l *Loader) Path() string { return l.configPath }

func (l *Loader) envString(key, def string) string {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseString(key, def)
}

func (l *Loader) envBool(key string, def bool) bool {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseBool(key, def)
}

func (l *Loader) envInt(key string, def int) int {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseInt(key, def)
}

func (l *Loader) envDuration(key string, def time.Duration) time.Duration {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseDuration(key, def)
}

func (l *Loader) envFloat(key string, def float64) float64 {
	l.ConsumedEnvKeys[key] = struct{}{}
	return ParseFloat(key, def)
}

// Load applies defaults, the YAML file, then environment overrides, and
// validates the result.
func (l *Loader) Load() (AppConfig, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := l.loadFile(l.configPath, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	l.mergeEnv(&cfg)
	cfg.Version = l.version

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// UnknownEnvKeys lists PUPCAM_* variables that no setting consumed, sorted.
// Call after Load.
func (l *Loader) UnknownEnvKeys() []string {
	var out []string
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		if _, ok := l.ConsumedEnvKeys[key]; !ok {
			out = append(out, key)
		}
	}
	sort.Strings(out)
	return out
}

// loadFile decodes a YAML file onto cfg. Unknown fields are rejected.
func (l *Loader) loadFile(path string, cfg *AppConfig) error {
	path = filepath.Clean(path)

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}

	// #nosec G304 -- configuration file paths are provided by the operator via CLI/ENV
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	dec := yaml.NewDecoder(strings.NewReader(os.ExpandEnv(string(data))))
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		if strings.Contains(err.Error(), "field") && strings.Contains(err.Error(), "not found") {
			return fmt.Errorf("%w: %v", ErrUnknownConfigField, err)
		}
		return fmt.Errorf("strict config parse error: %w", err)
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return ErrMultipleDocuments
	}
	return nil
}

func (l *Loader) mergeEnv(cfg *AppConfig) {
	cfg.LogLevel = l.envString("PUPCAM_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile.Path = l.envString("PUPCAM_LOG_FILE", cfg.LogFile.Path)

	cfg.Server.ListenAddr = l.envString("PUPCAM_LISTEN_ADDR", cfg.Server.ListenAddr)
	cfg.Server.ShutdownTimeout = l.envDuration("PUPCAM_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)

	cfg.Relay.Enabled = l.envBool("PUPCAM_RELAY_ENABLED", cfg.Relay.Enabled)
	cfg.Relay.PathPrefix = l.envString("PUPCAM_RELAY_PATH_PREFIX", cfg.Relay.PathPrefix)
	cfg.Relay.Target = l.envString("PUPCAM_RELAY_TARGET", cfg.Relay.Target)
	cfg.Relay.ChangeOrigin = l.envBool("PUPCAM_RELAY_CHANGE_ORIGIN", cfg.Relay.ChangeOrigin)
	cfg.Relay.VerifyTLS = l.envBool("PUPCAM_RELAY_VERIFY_TLS", cfg.Relay.VerifyTLS)
	cfg.Relay.CAFile = l.envString("PUPCAM_RELAY_CA_FILE", cfg.Relay.CAFile)
	cfg.Relay.RateLimit.Requests = l.envInt("PUPCAM_RELAY_RATE_LIMIT", cfg.Relay.RateLimit.Requests)
	cfg.Relay.RateLimit.Window = l.envDuration("PUPCAM_RELAY_RATE_WINDOW", cfg.Relay.RateLimit.Window)

	cfg.Stream.SourceURL = l.envString("PUPCAM_STREAM_SOURCE", cfg.Stream.SourceURL)
	cfg.Stream.Camera = l.envString("PUPCAM_CAMERA_NAME", cfg.Stream.Camera)
	cfg.Stream.Monitor.Enabled = l.envBool("PUPCAM_MONITOR_ENABLED", cfg.Stream.Monitor.Enabled)
	cfg.Stream.Monitor.URL = l.envString("PUPCAM_MONITOR_URL", cfg.Stream.Monitor.URL)
	cfg.Stream.Monitor.Interval = l.envDuration("PUPCAM_MONITOR_INTERVAL", cfg.Stream.Monitor.Interval)
	cfg.Stream.Monitor.Timeout = l.envDuration("PUPCAM_MONITOR_TIMEOUT", cfg.Stream.Monitor.Timeout)
	cfg.Stream.Webhook.URL = l.envString("PUPCAM_WEBHOOK_URL", cfg.Stream.Webhook.URL)
	cfg.Stream.Webhook.Token = l.envString("PUPCAM_WEBHOOK_TOKEN", cfg.Stream.Webhook.Token)

	cfg.Playback.BaseURL = l.envString("PUPCAM_PLAYBACK_BASE_URL", cfg.Playback.BaseURL)
	cfg.Playback.RefreshInterval = l.envDuration("PUPCAM_PLAYBACK_REFRESH", cfg.Playback.RefreshInterval)
	cfg.Playback.MaxLoadRetries = l.envInt("PUPCAM_PLAYBACK_MAX_RETRIES", cfg.Playback.MaxLoadRetries)
	cfg.Playback.Autoplay = l.envBool("PUPCAM_PLAYBACK_AUTOPLAY", cfg.Playback.Autoplay)

	cfg.Telemetry.Enabled = l.envBool("PUPCAM_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = l.envString("PUPCAM_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = l.envString("PUPCAM_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SampleRate = l.envFloat("PUPCAM_OTEL_SAMPLE_RATE", cfg.Telemetry.SampleRate)
}
