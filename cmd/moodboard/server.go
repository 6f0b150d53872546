package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/moodboard/internal/chart"
	"github.com/goodtune/moodboard/internal/config"
	"github.com/goodtune/moodboard/internal/events"
	"github.com/goodtune/moodboard/internal/metrics"
	"github.com/goodtune/moodboard/internal/session"
	"github.com/goodtune/moodboard/internal/systemd"
	"github.com/goodtune/moodboard/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the moodboard server",
	Long:  `Start the moodboard web server and, when configured, the metrics endpoint.`,
	RunE:  runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := chart.NewHub()
	a, err := openApp(ctx, hub)
	if err != nil {
		return err
	}
	defer a.Close()

	cfg := a.cfg
	logger := a.logger
	log.Logger = logger

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting moodboard")

	sdListeners, err := systemd.GetListeners()
	if err != nil {
		return fmt.Errorf("failed to get systemd listeners: %w", err)
	}
	if sdListeners.Activated {
		logger.Info().Msg("Running with systemd socket activation")
	}

	a.store.OnChange(metrics.StoreObserver(a.store))
	metrics.SetCurrent(a.store.LatestByCategory())
	a.projector.Refresh(ctx)

	if cfg.Events.Enabled {
		publisher, err := events.Dial(cfg.Events.URL, cfg.Events.Exchange, cfg.Events.Queue, cfg.Events.RoutingKey, logger)
		if err != nil {
			return fmt.Errorf("failed to connect event publisher: %w", err)
		}
		defer func() {
			if err := publisher.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close event publisher")
			}
		}()
		a.store.OnChange(events.Observer(publisher, logger))

		logger.Info().
			Str("exchange", cfg.Events.Exchange).
			Str("routing_key", cfg.Events.RoutingKey).
			Msg("Event publisher connected")
	}

	sessions := session.NewManager(session.Options{
		Secret:       cfg.Admin.JWTSecret,
		PasswordHash: cfg.Admin.PasswordHash,
		IdleTimeout:  parseDuration(cfg.Admin.SessionTimeout, session.DefaultIdleTimeout),
		Logger:       logger,
	})
	sessions.StartCleanup(ctx, parseDuration(cfg.Admin.CleanupInterval, 15*time.Minute))

	webServer := web.NewServer(web.Config{
		ListenAddr:      fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.HTTPPort),
		ReadTimeout:     parseDuration(cfg.Server.ReadTimeout, 15*time.Second),
		RateLimit:       cfg.Server.RateLimit,
		RateLimitWindow: parseDuration(cfg.Server.RateLimitWindow, time.Minute),
		AllowedOrigins:  cfg.Server.CORSOrigins,
		Timeline:        timelineItems(cfg.Timeline),
	}, a.store, a.projector, hub, sessions, logger)

	if sdListeners.HTTP != nil {
		webServer.SetListener(sdListeners.HTTP)
	}
	if err := webServer.Start(); err != nil {
		return fmt.Errorf("failed to start web server: %w", err)
	}

	var metricsServer *metrics.Server
	if cfg.Server.MetricsPort > 0 || sdListeners.Metrics != nil {
		metricsServer = metrics.NewServer(fmt.Sprintf("%s:%d", cfg.Server.BindAddress, cfg.Server.MetricsPort), logger)
		if sdListeners.Metrics != nil {
			metricsServer.SetListener(sdListeners.Metrics)
		}
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	if err := systemd.NotifyReady(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd ready notification")
	}
	systemd.RunWatchdog(ctx, logger)

	logger.Info().
		Bool("admin_password", sessions.PasswordRequired()).
		Bool("events", cfg.Events.Enabled).
		Msg("Moodboard startup complete")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan

		if sig == syscall.SIGHUP {
			logger.Info().Msg("SIGHUP received, reloading policy...")
			_ = systemd.NotifyReloading()
			if err := a.policy.Reload(); err != nil {
				logger.Error().Err(err).Msg("Failed to reload policy")
			} else {
				logger.Info().Msg("Policy reloaded successfully")
			}
			_ = systemd.NotifyReady()
			continue
		}

		logger.Info().Msg("Shutdown signal received, gracefully stopping...")
		break
	}

	if err := systemd.NotifyStopping(); err != nil {
		logger.Warn().Err(err).Msg("Failed to send systemd stopping notification")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer shutdownCancel()

	if err := webServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error stopping web server")
	}

	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("Moodboard stopped")
	return nil
}

func timelineItems(items []config.TimelineItem) []web.TimelineItem {
	out := make([]web.TimelineItem, len(items))
	for i, item := range items {
		out[i] = web.TimelineItem{Label: item.Label, Details: item.Details}
	}
	return out
}
