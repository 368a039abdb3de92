package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/yallaspeak/syncd/internal/models"
)

// DrainResult итог обработки offline очереди владельца.
type DrainResult struct {
	Processed int // применено и удалено из очереди
	Failed    int // осталось в очереди (retry) или запарковано (poison)
}

// Enqueue ставит отложенное изменение в durable очередь владельца.
// Тип сущности проверяется сразу: изменение с незарегистрированным
// типом не сможет примениться никогда и отклоняется здесь, а не
// травит очередь.
func (e *Engine) Enqueue(ctx context.Context, ownerID string, entry *models.QueueEntry) (*models.QueueEntry, error) {
	if _, ok := e.registry.Get(entry.EntityType); !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entry.EntityType)
	}

	entry.OwnerID = ownerID
	if entry.QueueID == "" {
		entry.QueueID = uuid.New().String()
	}
	if entry.EnqueuedAt.IsZero() {
		entry.EnqueuedAt = time.Now().UTC()
	}

	queued, err := e.queue.Enqueue(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue offline change: %w", err)
	}

	e.logger.Info("offline change enqueued",
		"owner_id", ownerID,
		"queue_id", queued.QueueID,
		"entity_type", queued.EntityType,
		"record_id", queued.RecordID)

	return queued, nil
}

// DrainQueue применяет отложенные изменения владельца в порядке FIFO.
// Каждый элемент обрабатывается независимо (all-or-nothing per entry):
// сбой одного элемента увеличивает его retry_count и не блокирует
// последующие. Элемент, превысивший потолок повторов, помечается
// poison и исключается из дальнейших автоматических повторов.
func (e *Engine) DrainQueue(ctx context.Context, ownerID string) (*DrainResult, error) {
	entries, err := e.queue.Pending(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}

	result := &DrainResult{}
	for _, entry := range entries {
		applyErr := e.applyChange(ctx, ownerID, entry.ToChangeSet())
		if applyErr == nil {
			if err := e.queue.Delete(ctx, ownerID, entry.Seq); err != nil {
				// Запись применена, но осталась в очереди: повторное
				// применение идемпотентно, поэтому просто сообщаем
				e.logger.Error("failed to delete applied queue entry",
					"owner_id", ownerID,
					"queue_id", entry.QueueID,
					"error", err)
				result.Failed++
				continue
			}
			result.Processed++
			continue
		}

		entry.RetryCount++
		entry.LastError = applyErr.Error()
		if entry.RetryCount >= e.retryLimit {
			entry.Poisoned = true
			e.logger.Warn("queue entry parked as poison",
				"owner_id", ownerID,
				"queue_id", entry.QueueID,
				"retry_count", entry.RetryCount,
				"error", applyErr)
		} else {
			e.logger.Warn("queue entry apply failed, will retry",
				"owner_id", ownerID,
				"queue_id", entry.QueueID,
				"retry_count", entry.RetryCount,
				"error", applyErr)
		}

		if err := e.queue.Update(ctx, entry); err != nil {
			e.logger.Error("failed to update queue entry",
				"owner_id", ownerID,
				"queue_id", entry.QueueID,
				"error", err)
		}
		result.Failed++
	}

	e.logger.Info("offline queue drained",
		"owner_id", ownerID,
		"processed", result.Processed,
		"failed", result.Failed)

	return result, nil
}
