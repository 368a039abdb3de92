package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/syncer"
	"github.com/yallaspeak/syncd/pkg/api"
)

// QueueEngine определяет интерфейс движка для queue handler
type QueueEngine interface {
	// Enqueue ставит отложенное изменение в offline очередь владельца
	Enqueue(ctx context.Context, ownerID string, entry *models.QueueEntry) (*models.QueueEntry, error)

	// DrainQueue применяет отложенные изменения владельца в порядке FIFO
	DrainQueue(ctx context.Context, ownerID string) (*syncer.DrainResult, error)
}

// QueueHandler handles offline queue requests
type QueueHandler struct {
	logger *slog.Logger
	engine QueueEngine
}

// NewQueueHandler creates a new offline queue handler
func NewQueueHandler(logger *slog.Logger, engine QueueEngine) *QueueHandler {
	return &QueueHandler{
		logger: logger,
		engine: engine,
	}
}

// Enqueue обрабатывает POST /api/v1/sync/queue
// Принимает одно отложенное изменение и возвращает его queue_id.
func (h *QueueHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	var item api.QueueItem
	if err := decodeJSON(r, &item); err != nil {
		h.logger.Warn("failed to decode queue item", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	entry := &models.QueueEntry{
		UpdatedAt:  item.UpdatedAt,
		EntityType: item.Table,
		RecordID:   item.RecordID,
		Operation:  item.Operation,
		Payload:    item.Payload,
	}

	queued, err := h.engine.Enqueue(r.Context(), owner, entry)
	if err != nil {
		if errors.Is(err, syncer.ErrUnknownEntityType) {
			h.logger.Warn("enqueue rejected: unknown entity type",
				"owner_id", owner, "table", item.Table)
			http.Error(w, "Unknown table", http.StatusBadRequest)
			return
		}

		h.logger.Error("failed to enqueue offline change", "owner_id", owner, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(h.logger, w, http.StatusAccepted, api.EnqueueResponse{
		QueueID: queued.QueueID,
	})
}

// Process обрабатывает POST /api/v1/sync/queue/process
// Выгружает все ожидающие элементы очереди вызывающего владельца.
func (h *QueueHandler) Process(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	result, err := h.engine.DrainQueue(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to drain offline queue", "owner_id", owner, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, api.ProcessQueueResponse{
		Processed: result.Processed,
		Failed:    result.Failed,
	})
}
