// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/config"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/playback"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/playback/headless"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/telemetry"
)

// errPlaybackEnded is returned when the session stops in a terminal state.
var errPlaybackEnded = errors.New("playback ended")

type watchOptions struct {
	source   string
	baseURL  string
	duration time.Duration
	json     bool
}

func newWatchCmd(root *rootOptions) *cobra.Command {
	opts := &watchOptions{}
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Attach a headless player to the live stream and print its status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if opts.source != "" {
				cfg.Stream.SourceURL = opts.source
			}
			if opts.baseURL != "" {
				cfg.Playback.BaseURL = opts.baseURL
			}

			shutdownTracing, err := startTelemetry(cmd.Context(), cfg.Telemetry)
			if err != nil {
				return err
			}
			defer shutdownTracing()

			return runWatch(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.source, "source", "", "manifest path or URL (overrides stream.sourceURL)")
	cmd.Flags().StringVar(&opts.baseURL, "base-url", "", "origin for path-only sources (overrides playback.baseURL)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "stop after this long; 0 watches until the stream ends")
	cmd.Flags().BoolVar(&opts.json, "json", false, "print one JSON status object per line")
	return cmd
}

// runWatch drives one playback session and writes every status it publishes.
func runWatch(ctx context.Context, cfg config.AppConfig, opts *watchOptions, out io.Writer) error {
	strategy := playback.Probe(headless.Environment())
	ctrl, err := playback.New(playback.Config{
		Source:   playback.StreamSource{URL: cfg.Stream.SourceURL},
		Strategy: strategy,
		Engine: headless.Factory(headless.Config{
			BaseURL:         cfg.Playback.BaseURL,
			RefreshInterval: cfg.Playback.RefreshInterval,
			MaxLoadRetries:  cfg.Playback.MaxLoadRetries,
		}),
		Media: headless.NewMediaElement(cfg.Playback.Autoplay),
	})
	if err != nil {
		return fmt.Errorf("playback: %w", err)
	}

	ctx, span := telemetry.Tracer("pupcam/watch").Start(ctx, "playback.watch",
		trace.WithAttributes(telemetry.PlaybackAttributes(ctrl.SessionID(), string(strategy), string(playback.StateInitializing))...))
	defer span.End()

	if opts.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.duration)
		defer cancel()
	}

	updates, stopWatching := ctrl.Status().Watch()
	printed := make(chan error, 1)
	go func() {
		var werr error
		for st := range updates {
			if werr == nil {
				werr = printStatus(out, st, opts.json)
			}
		}
		printed <- werr
	}()

	runErr := ctrl.Run(ctx)
	stopWatching()
	printErr := <-printed

	final := ctrl.Status().Snapshot()
	span.SetAttributes(telemetry.PlaybackAttributes(ctrl.SessionID(), string(strategy), string(final.State))...)

	switch {
	case runErr != nil:
		return runErr
	case printErr != nil:
		return fmt.Errorf("write status: %w", printErr)
	case final.State.Terminal():
		return fmt.Errorf("%w: %s", errPlaybackEnded, final.Message)
	}
	return nil
}

type statusLine struct {
	playback.Status
	View playback.View `json:"view"`
}

func printStatus(out io.Writer, st playback.Status, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(statusLine{Status: st, View: st.View()})
	}
	line := fmt.Sprintf("%s  %-20s %-8s", st.UpdatedAt.Format(time.TimeOnly), st.State, st.View())
	if st.ShowLiveBadge() {
		line += " [LIVE]"
	}
	if st.Message != "" {
		line += " " + st.Message
	}
	_, err := fmt.Fprintln(out, line)
	return err
}
