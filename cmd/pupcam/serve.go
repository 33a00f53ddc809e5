// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/api"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/config"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/health"
	xglog "github.com/jonahgcarpenter/aprilslilpugs/live/internal/log"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/monitor"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/platform/httpx"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/relay"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/resilience"
	"github.com/jonahgcarpenter/aprilslilpugs/live/internal/version"
)

// staleChecks is how many missed monitor intervals degrade the stream check.
const staleChecks = 3

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the /hls relay, live status and health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), loader, cfg)
		},
	}
}

// server is the assembled `serve` process.
type server struct {
	cfg     config.AppConfig
	http    *http.Server
	monitor *monitor.Monitor
	relay   *relay.Relay
	health  *health.Manager
	logger  zerolog.Logger
}

func newServer(cfg config.AppConfig) (*server, error) {
	mon, err := newMonitor(cfg)
	if err != nil {
		return nil, err
	}

	var rl *relay.Relay
	if cfg.Relay.Enabled {
		if rl, err = newRelay(cfg.Relay); err != nil {
			return nil, err
		}
	}

	mgr := health.NewManager(version.Version)
	mgr.RegisterChecker(health.NewStreamChecker(func() health.StreamStatus {
		s := mon.Status()
		return health.StreamStatus{Live: s.Live, Enabled: s.Enabled, LastChecked: s.LastChecked}
	}, staleChecks*cfg.Stream.Monitor.Interval))
	mgr.RegisterChecker(relayChecker(rl, cfg.Relay))

	router := api.NewRouter(api.Deps{
		Relay:       rl,
		Stream:      mon,
		Health:      mgr,
		ServiceName: cfg.Telemetry.ServiceName,
	})

	return &server{
		cfg: cfg,
		http: &http.Server{
			Addr:              cfg.Server.ListenAddr,
			Handler:           router,
			ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
			IdleTimeout:       cfg.Server.IdleTimeout,
		},
		monitor: mon,
		relay:   rl,
		health:  mgr,
		logger:  xglog.WithComponent("serve"),
	}, nil
}

func newMonitor(cfg config.AppConfig) (*monitor.Monitor, error) {
	mcfg := monitor.Config{
		URL:      cfg.Stream.Monitor.URL,
		Camera:   cfg.Stream.Camera,
		Interval: cfg.Stream.Monitor.Interval,
		Timeout:  cfg.Stream.Monitor.Timeout,
		Enabled:  cfg.Stream.Monitor.Enabled,
	}
	if hook := cfg.Stream.Webhook; hook.URL != "" {
		wh := monitor.WebhookNotifier{
			URL:            hook.URL,
			Token:          hook.Token,
			Source:         serviceName,
			Client:         httpx.Instrument(httpx.NewClient(cfg.Stream.Monitor.Timeout)),
			AttemptTimeout: cfg.Stream.Monitor.Timeout,
		}
		mcfg.Notifier = monitor.GuardedNotifier{
			Next:    wh,
			Breaker: resilience.New("webhook", resilience.DefaultThreshold, resilience.DefaultResetTimeout),
		}
		mcfg.NotifyTimeout = wh.Budget()
	}
	mon, err := monitor.New(mcfg)
	if err != nil {
		return nil, fmt.Errorf("stream monitor: %w", err)
	}
	return mon, nil
}

func newRelay(cfg config.RelayConfig) (*relay.Relay, error) {
	pool, err := httpx.LoadRootCAs(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	rl, err := relay.New(relay.Config{
		PathPrefix:   cfg.PathPrefix,
		Target:       cfg.Target,
		ChangeOrigin: cfg.ChangeOrigin,
		VerifyTLS:    cfg.VerifyTLS,
		RootCAs:      pool,
		RateLimit:    relay.RateLimit{Requests: cfg.RateLimit.Requests, Window: cfg.RateLimit.Window},
	})
	if err != nil {
		return nil, fmt.Errorf("relay: %w", err)
	}
	return rl, nil
}

func relayChecker(rl *relay.Relay, cfg config.RelayConfig) health.Checker {
	return health.NewFuncChecker("relay", func(context.Context) health.CheckResult {
		if rl == nil {
			return health.CheckResult{Status: health.StatusHealthy, Message: "relay disabled"}
		}
		return health.CheckResult{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("relaying %s to %s", rl.Prefix(), cfg.Target),
		}
	})
}

// serve runs the listener, the monitor and the config watcher until ctx is
// done or one of them fails, then shuts the listener down gracefully.
func (s *server) serve(ctx context.Context, ln net.Listener, holder *config.Holder) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return s.monitor.Run(gctx) })

	if holder != nil {
		updates := make(chan config.AppConfig, 1)
		holder.Subscribe(updates)
		g.Go(func() error { return holder.Watch(gctx) })
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case next := <-updates:
					s.apply(next)
				}
			}
		})
	}

	g.Go(func() error {
		s.logger.Info().
			Str(xglog.FieldEvent, "server.listening").
			Str("addr", ln.Addr().String()).
			Bool("relay", s.relay != nil).
			Msg("http server listening")
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), s.cfg.Server.ShutdownTimeout)
		defer cancel()
		s.logger.Info().Str(xglog.FieldEvent, "server.shutdown").Msg("shutting down http server")
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

// apply carries the hot-reloadable settings over to running components.
func (s *server) apply(next config.AppConfig) {
	if next.LogLevel != s.cfg.LogLevel && xglog.SetLevel(next.LogLevel) {
		s.logger.Info().
			Str(xglog.FieldEvent, "config.applied").
			Str("logLevel", next.LogLevel).
			Msg("log level updated")
	}
	// Only a changed file value overrides a toggle made through POST /api/live.
	if next.Stream.Monitor.Enabled != s.cfg.Stream.Monitor.Enabled {
		s.monitor.SetEnabled(next.Stream.Monitor.Enabled)
	}
	s.cfg.LogLevel = next.LogLevel
	s.cfg.Stream.Monitor.Enabled = next.Stream.Monitor.Enabled
}

func runServe(ctx context.Context, loader *config.Loader, cfg config.AppConfig) error {
	logger := xglog.WithComponent("serve")

	shutdownTracing, err := startTelemetry(ctx, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer shutdownTracing()

	srv, err := newServer(cfg)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ListenAddr, err)
	}

	start := time.Now()
	err = srv.serve(ctx, ln, config.NewHolder(cfg, loader))
	logger.Info().
		Str(xglog.FieldEvent, "server.stopped").
		Dur("uptime", time.Since(start)).
		Msg("pupcam stopped")
	return err
}
