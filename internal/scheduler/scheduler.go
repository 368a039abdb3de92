// Package scheduler периодически прогоняет офлайн-очереди всех
// владельцев через sync engine по cron-расписанию.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/yallaspeak/syncd/internal/storage"
	"github.com/yallaspeak/syncd/internal/syncer"
)

// Scheduler запускает фоновый sweep офлайн-очередей
type Scheduler struct {
	engine  *syncer.Engine
	queue   storage.QueueStorage
	logger  *slog.Logger
	cron    *cron.Cron
	spec    string
	entryID cron.EntryID
}

// New создает scheduler с cron-расписанием в формате robfig/cron
// (поддерживаются и @every выражения)
func New(logger *slog.Logger, engine *syncer.Engine, queue storage.QueueStorage, spec string) *Scheduler {
	return &Scheduler{
		engine: engine,
		queue:  queue,
		logger: logger,
		cron:   cron.New(),
		spec:   spec,
	}
}

// Start регистрирует job и запускает cron
func (s *Scheduler) Start() error {
	id, err := s.cron.AddFunc(s.spec, s.sweep)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()

	s.logger.Info("Queue sweep scheduler started", "schedule", s.spec)
	return nil
}

// Stop останавливает cron и дожидается завершения текущего job
func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
	s.logger.Info("Queue sweep scheduler stopped")
}

// sweep прогоняет очередь каждого владельца с pending-записями.
// Владельцы с активной синхронизацией пропускаются до следующего тика.
func (s *Scheduler) sweep() {
	ctx := context.Background()

	owners, err := s.queue.Owners(ctx)
	if err != nil {
		s.logger.Error("Failed to list queue owners", "error", err)
		return
	}

	for _, owner := range owners {
		if s.engine.IsSyncing(owner) {
			s.logger.Debug("Sync in progress, skipping queue sweep", "owner_id", owner)
			continue
		}

		result, err := s.engine.DrainQueue(ctx, owner)
		if err != nil {
			s.logger.Error("Queue sweep failed", "owner_id", owner, "error", err)
			continue
		}

		if result.Processed > 0 || result.Failed > 0 {
			s.logger.Info("Queue sweep finished",
				"owner_id", owner,
				"processed", result.Processed,
				"failed", result.Failed,
			)
		}
	}
}
