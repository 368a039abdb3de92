package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/yallaspeak/syncd/internal/config"
	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/storage/boltdb"
	"github.com/yallaspeak/syncd/internal/storage/sqlite"
	"github.com/yallaspeak/syncd/internal/syncer"
)

// app собирает все зависимости движка из конфигурации
type app struct {
	store  *sqlite.Storage
	queue  *boltdb.Storage
	engine *syncer.Engine
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	store, err := sqlite.New(ctx, cfg.Storage.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite storage: %w", err)
	}

	queue, err := boltdb.New(ctx, cfg.Storage.BoltPath)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open queue storage: %w", err)
	}

	reg := registry.New()
	adapters := map[string]registry.Adapter{
		models.EntityProfiles: sqlite.NewProfileAdapter(store),
		models.EntityProgress: sqlite.NewProgressAdapter(store),
		models.EntityAttempts: sqlite.NewAttemptAdapter(store),
		models.EntityErrors:   sqlite.NewErrorLogAdapter(store),
	}
	for entityType, adapter := range adapters {
		if err := reg.Register(entityType, adapter); err != nil {
			store.Close()
			queue.Close()
			return nil, fmt.Errorf("failed to register adapter: %w", err)
		}
	}

	strategy, err := models.ParseStrategy(cfg.Sync.DefaultStrategy)
	if err != nil {
		store.Close()
		queue.Close()
		return nil, err
	}

	engine := syncer.New(reg, store, queue, logger, syncer.Options{
		ConflictWindow:  cfg.Sync.ConflictWindow,
		MaxSyncAge:      cfg.MaxSyncAge(),
		RetryLimit:      cfg.Sync.RetryLimit,
		DefaultStrategy: strategy,
		Enabled:         cfg.Sync.Enabled,
	})

	return &app{
		store:  store,
		queue:  queue,
		engine: engine,
	}, nil
}

func (a *app) Close() {
	if err := a.queue.Close(); err != nil {
		slog.Warn("Failed to close queue storage", "error", err)
	}
	if err := a.store.Close(); err != nil {
		slog.Warn("Failed to close sqlite storage", "error", err)
	}
}
