// SPDX-License-Identifier: MIT

// pupcam relays and watches the puppy-cam live stream.
//
// Usage:
//
//	pupcam serve --config config.yaml
//	pupcam watch --source /hls/test.m3u8
//	pupcam config validate -f config.yaml
//	pupcam healthcheck --url http://localhost:3000/readyz
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/config"
	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/telemetry"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/version"
)

const serviceName = "pupcam"

type rootOptions struct {
	configPath string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := newRootCmd().ExecuteContext(ctx)
	_ = xglog.Close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "pupcam",
		Short:         "Relay and watch the puppy-cam live stream",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to config file (YAML)")

	root.AddCommand(
		newServeCmd(opts),
		newWatchCmd(opts),
		newConfigCmd(),
		newHealthcheckCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}

// loadConfig loads configuration and reconfigures the global logger from it.
func loadConfig(path string) (*config.Loader, config.AppConfig, error) {
	xglog.Configure(xglog.Config{Level: "info", Service: serviceName, Version: version.Version})

	loader := config.NewLoader(path, version.Version)
	cfg, err := loader.Load()
	if err != nil {
		return nil, config.AppConfig{}, fmt.Errorf("load config: %w", err)
	}

	logCfg := xglog.Config{Level: cfg.LogLevel, Service: serviceName, Version: cfg.Version}
	if f := cfg.LogFile; f.Path != "" {
		logCfg.File = &xglog.FileConfig{
			Path:       f.Path,
			MaxSizeMB:  f.MaxSizeMB,
			MaxBackups: f.MaxBackups,
			MaxAgeDays: f.MaxAgeDays,
			Compress:   f.Compress,
		}
	}
	xglog.Configure(logCfg)

	logger := xglog.WithComponent("cli")
	for _, key := range loader.UnknownEnvKeys() {
		logger.Warn().
			Str(xglog.FieldEvent, "config.unknown_env").
			Str("key", key).
			Msg("ignoring unknown environment variable")
	}
	return loader, cfg, nil
}

// startTelemetry installs the tracer provider and returns its shutdown func.
func startTelemetry(ctx context.Context, cfg config.TelemetryConfig) (func(), error) {
	tp, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Enabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: version.Version,
		ExporterType:   cfg.Exporter,
		Endpoint:       cfg.Endpoint,
		SamplingRate:   cfg.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	return func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			logger := xglog.WithComponent("cli")
			logger.Warn().Err(err).Str(xglog.FieldEvent, "telemetry.shutdown_failed").Msg("tracer shutdown failed")
		}
	}, nil
}
