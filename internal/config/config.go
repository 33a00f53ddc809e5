// SPDX-License-Identifier: MIT

// Package config loads pupcam configuration with precedence
// ENV > file > defaults and hot-reloads the file.
package config

import "time"

// AppConfig is the full runtime configuration.
type AppConfig struct {
	Version   string          `yaml:"-"`
	LogLevel  string          `yaml:"logLevel"`
	LogFile   LogFileConfig   `yaml:"logFile"`
	Server    ServerConfig    `yaml:"server"`
	Relay     RelayConfig     `yaml:"relay"`
	Stream    StreamConfig    `yaml:"stream"`
	Playback  PlaybackConfig  `yaml:"playback"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// LogFileConfig enables a rotated log file in addition to stdout.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"maxSizeMB"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// ServerConfig configures the HTTP listener of `pupcam serve`.
type ServerConfig struct {
	ListenAddr        string        `yaml:"listenAddr"`
	ReadHeaderTimeout time.Duration `yaml:"readHeaderTimeout"`
	IdleTimeout       time.Duration `yaml:"idleTimeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdownTimeout"`
}

// RelayConfig configures the /hls development relay.
type RelayConfig struct {
	Enabled      bool            `yaml:"enabled"`
	PathPrefix   string          `yaml:"pathPrefix"`
	Target       string          `yaml:"target"`
	ChangeOrigin bool            `yaml:"changeOrigin"`
	VerifyTLS    bool            `yaml:"verifyTLS"`
	CAFile       string          `yaml:"caFile"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig bounds relayed requests per client IP. Zero disables it.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// StreamConfig names the live source and its availability monitor.
type StreamConfig struct {
	SourceURL string        `yaml:"sourceURL"`
	Camera    string        `yaml:"camera"`
	Monitor   MonitorConfig `yaml:"monitor"`
	Webhook   WebhookConfig `yaml:"webhook"`
}

// MonitorConfig configures the availability poller.
type MonitorConfig struct {
	Enabled  bool          `yaml:"enabled"`
	URL      string        `yaml:"url"`
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// WebhookConfig is the optional transition event endpoint.
type WebhookConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

// PlaybackConfig tunes the terminal player of `pupcam watch`.
type PlaybackConfig struct {
	BaseURL         string        `yaml:"baseURL"`
	RefreshInterval time.Duration `yaml:"refreshInterval"`
	MaxLoadRetries  int           `yaml:"maxLoadRetries"`
	Autoplay        bool          `yaml:"autoplay"`
}

// TelemetryConfig configures OpenTelemetry tracing.
type TelemetryConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Exporter    string  `yaml:"exporter"`
	Endpoint    string  `yaml:"endpoint"`
	ServiceName string  `yaml:"serviceName"`
	SampleRate  float64 `yaml:"sampleRate"`
}

// Defaults returns the built-in configuration.
func Defaults() AppConfig {
	return AppConfig{
		LogLevel: "info",
		LogFile:  LogFileConfig{MaxSizeMB: 50, MaxBackups: 3, MaxAgeDays: 14},
		Server: ServerConfig{
			ListenAddr:        ":3000",
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
			ShutdownTimeout:   10 * time.Second,
		},
		Relay: RelayConfig{
			Enabled:      true,
			PathPrefix:   "/hls",
			Target:       "https://aprilslilpugs.com",
			ChangeOrigin: true,
			VerifyTLS:    true,
			RateLimit:    RateLimitConfig{Window: time.Minute},
		},
		Stream: StreamConfig{
			SourceURL: "/hls/test.m3u8",
			Camera:    "Puppy Cam",
			Monitor: MonitorConfig{
				Enabled:  true,
				URL:      "https://aprilslilpugs.com/hls/test.m3u8",
				Interval: 10 * time.Second,
				Timeout:  5 * time.Second,
			},
		},
		Playback: PlaybackConfig{
			BaseURL:         "http://127.0.0.1:3000",
			RefreshInterval: 2 * time.Second,
			MaxLoadRetries:  2,
			Autoplay:        true,
		},
		Telemetry: TelemetryConfig{
			Exporter:    "grpc",
			Endpoint:    "localhost:4317",
			ServiceName: "pupcam",
			SampleRate:  1.0,
		},
	}
}

// Redacted returns a copy safe to print: secrets are masked.
func (c AppConfig) Redacted() AppConfig {
	c.Stream.Webhook.Token = masked("token", c.Stream.Webhook.Token)
	return c
}
