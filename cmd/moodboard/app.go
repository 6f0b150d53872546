package main

import (
	"context"
	"fmt"
	"time"

	"github.com/goodtune/moodboard/internal/authz"
	"github.com/goodtune/moodboard/internal/chart"
	"github.com/goodtune/moodboard/internal/config"
	"github.com/goodtune/moodboard/internal/moodstore"
	"github.com/goodtune/moodboard/internal/storage"
	"github.com/rs/zerolog"
)

// app bundles the pieces shared by the server and the mood commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	kv        storage.Store
	policy    *authz.Engine
	store     *moodstore.Store
	projector *chart.Projector
}

// openApp loads configuration and opens storage, policy and the mood store.
// sink may be nil.
func openApp(ctx context.Context, sink chart.Sink) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	kv, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	logger.Info().
		Str("type", cfg.Storage.Type).
		Str("key", cfg.Storage.Key).
		Msg("Storage initialized")

	policy, err := authz.NewEngine(cfg.Policy.File, logger)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	store := moodstore.New(ctx, kv, moodstore.Options{
		Key:        cfg.Storage.Key,
		Authorizer: policy,
		ConfirmTTL: parseDuration(cfg.Admin.ClearConfirmTTL, moodstore.DefaultConfirmTTL),
		Logger:     logger,
	})

	loc, err := cfg.Chart.Location()
	if err != nil {
		_ = kv.Close()
		return nil, err
	}

	projector := chart.NewProjector(store, sink, chart.Options{
		Reverse:    cfg.Chart.Reverse,
		FillAlpha:  cfg.Chart.FillAlpha,
		DateFormat: cfg.Chart.DateFormat,
		Location:   loc,
		Logger:     logger,
	})
	store.OnChange(projector.Observe())

	return &app{
		cfg:       cfg,
		logger:    logger,
		kv:        kv,
		policy:    policy,
		store:     store,
		projector: projector,
	}, nil
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Error().Err(err).Msg("Failed to close storage")
	}
}

func (a *app) shutdownTimeout() time.Duration {
	return parseDuration(a.cfg.Server.ShutdownTimeout, 10*time.Second)
}
