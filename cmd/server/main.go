// DropScout - Twitch Drops Tracking and Notification Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dropscout

// Package main is the DropScout daemon.
//
// DropScout polls the Twitch Drops catalog, diffs it against the previous
// poll and posts Discord notifications for new campaigns, favorite-game
// matches and a weekly digest.
//
// # Startup
//
//  1. Configuration: koanf layers (defaults, config.yaml, environment)
//  2. Storage: badger holds the guild registry and the last snapshot
//  3. Delivery: Discord REST sender (or a log sender with DRY_RUN=true)
//  4. Engine: restores the persisted snapshot so the first poll diffs against it
//  5. Supervisor: storage GC, the poll/digest scheduler, the optional admin API
//
// # Example Usage
//
//	export TWITCH_ACCESS_TOKEN=...
//	export DISCORD_BOT_TOKEN=...
//	export DATA_DIR=/var/lib/dropscout
//	./dropscout
//
// Dry run with an in-memory store and console logs:
//
//	DRY_RUN=true STORAGE_IN_MEMORY=true LOG_FORMAT=console ./dropscout
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the supervisor tree. The scheduler waits for a
// running cycle; in-flight sends complete before storage closes.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/dropscout/internal/api"
	"github.com/tomtom215/dropscout/internal/cache"
	"github.com/tomtom215/dropscout/internal/config"
	"github.com/tomtom215/dropscout/internal/delivery"
	"github.com/tomtom215/dropscout/internal/engine"
	"github.com/tomtom215/dropscout/internal/events"
	"github.com/tomtom215/dropscout/internal/logging"
	"github.com/tomtom215/dropscout/internal/scheduler"
	"github.com/tomtom215/dropscout/internal/snapshot"
	"github.com/tomtom215/dropscout/internal/storage"
	"github.com/tomtom215/dropscout/internal/supervisor"
	"github.com/tomtom215/dropscout/internal/supervisor/services"
	"github.com/tomtom215/dropscout/internal/twitch"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logging.Init(cfg.LoggerConfig())

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("DropScout stopped with an error")
	}
	logging.Info().Msg("DropScout stopped gracefully")
}

func run(cfg *config.Config) error {
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logging.Info().
		Dur("poll_interval", cfg.Poll.Interval).
		Bool("notify_on_boot", cfg.Poll.NotifyOnBoot).
		Bool("digest", cfg.Digest.Enabled).
		Bool("dry_run", cfg.Discord.DryRun).
		Bool("nats", cfg.NATS.Enabled).
		Bool("api", cfg.API.Enabled).
		Msg("Starting DropScout")

	db, err := storage.Open(cfg.StorageDBConfig())
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing storage")
		}
	}()

	var publisher *events.Publisher
	if cfg.NATS.Enabled {
		publisher, err = events.Connect(cfg.EventsConfig(), &logger)
		if err != nil {
			return err
		}
		defer publisher.Close()
	}

	eng := buildEngine(cfg, db, publisher, &logger)
	if err := eng.Restore(ctx); err != nil {
		// A corrupt snapshot only costs one silent baseline poll.
		logging.Warn().Err(err).Msg("Failed to restore persisted snapshot")
	}

	sched, err := scheduler.New(eng, cfg.SchedulerConfig(), &logger)
	if err != nil {
		return err
	}

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})
	tree.AddDataService(services.NewLifecycleService("storage-gc", db))
	tree.AddEngineService(services.NewLifecycleService("scheduler", sched))

	if cfg.API.Enabled {
		server := &http.Server{
			Addr:              cfg.API.Addr,
			Handler:           api.NewRouter(eng, cfg.APIRouterConfig()),
			ReadHeaderTimeout: cfg.API.ReadTimeout,
			ReadTimeout:       cfg.API.ReadTimeout,
			WriteTimeout:      cfg.API.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService("admin-api", server, cfg.API.ShutdownTimeout))
		logging.Info().Str("addr", server.Addr).Msg("Admin API enabled")
	}

	watchLogLevel()

	errCh := tree.ServeBackground(ctx)
	logging.Info().Msg("Supervisor tree started")

	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received, waiting for services")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}

// buildEngine wires fetcher, store, registry and dispatcher around one badger DB.
func buildEngine(cfg *config.Config, db *storage.DB, publisher *events.Publisher, logger *zerolog.Logger) *engine.Engine {
	var sender delivery.Sender
	if cfg.Discord.DryRun {
		sender = delivery.NewLogSender(logger)
		logging.Warn().Msg("DRY_RUN enabled: notifications are logged, not posted")
	} else {
		sender = delivery.NewDiscordSender(cfg.DiscordSenderConfig(), nil, logger)
	}

	managerOpts := []delivery.Option{
		delivery.WithLedger(cache.NewLedger(cfg.Dispatch.SuppressCapacity, cfg.Dispatch.SuppressTTL)),
	}
	var engineOpts []engine.Option
	if publisher != nil {
		managerOpts = append(managerOpts, delivery.WithDropHook(publisher.DispatchDropped))
		engineOpts = append(engineOpts, engine.WithEvents(publisher))
	}
	manager := delivery.NewManager(sender, delivery.NewEmbedRenderer(), logger, cfg.DeliveryConfig(), managerOpts...)

	return engine.New(
		twitch.NewFetcher(cfg.TwitchFetcherConfig(), logger),
		snapshot.NewStore(storage.NewSnapshotStore(db), logger),
		storage.NewRegistry(db),
		manager,
		logger,
		cfg.EngineConfig(),
		engineOpts...,
	)
}

// watchLogLevel applies LOG_LEVEL changes from the config file without a restart.
func watchLogLevel() {
	path := config.FindConfigFile()
	if path == "" {
		return
	}
	err := config.WatchConfigFile(path, func() {
		next, err := config.Load()
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Config reload rejected")
			return
		}
		logging.SetLevelString(next.Logging.Level)
		logging.Info().Str("level", next.Logging.Level).Msg("Log level reloaded")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config file watch unavailable")
	}
}

