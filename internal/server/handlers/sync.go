package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/syncer"
	"github.com/yallaspeak/syncd/pkg/api"
)

// SyncEngine определяет интерфейс движка для sync handler
type SyncEngine interface {
	// Sync выполняет полный цикл синхронизации владельца
	Sync(ctx context.Context, ownerID string, clientChanges []*models.ChangeSet, lastSync *time.Time, strategy models.Strategy) (*syncer.SyncResult, error)

	// Changes возвращает инкрементальные серверные изменения владельца
	Changes(ctx context.Context, ownerID string, since *time.Time) ([]*models.ChangeSet, error)
}

// SyncHandler handles synchronization requests
type SyncHandler struct {
	logger *slog.Logger
	engine SyncEngine
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, engine SyncEngine) *SyncHandler {
	return &SyncHandler{
		logger: logger,
		engine: engine,
	}
}

// Sync обрабатывает POST /api/v1/sync
// Принимает изменения клиента, прогоняет цикл синхронизации
// и возвращает изменения сервера вместе с отчетом о конфликтах.
func (h *SyncHandler) Sync(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	var req api.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to decode sync request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	strategy, err := models.ParseStrategy(req.ConflictResolution)
	if err != nil {
		h.logger.Warn("invalid conflict resolution strategy",
			"strategy", req.ConflictResolution)
		http.Error(w, "Invalid conflict_resolution", http.StatusBadRequest)
		return
	}

	h.logger.Info("sync request",
		"owner_id", owner,
		"client_changes", len(req.ClientData),
		"strategy", string(strategy))

	result, err := h.engine.Sync(r.Context(), owner, toModelChanges(owner, req.ClientData), req.LastSync, strategy)
	if err != nil {
		// Фатальный сбой цикла (checkpoint не продвинут). Клиент все
		// равно получает результат: что успело примениться, видно из него.
		h.logger.Error("sync cycle failed", "owner_id", owner, "error", err)
		respondJSON(h.logger, w, http.StatusInternalServerError, toSyncResponse(result))
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toSyncResponse(result))
}

// Changes обрабатывает GET /api/v1/sync?since=RFC3339
// Возвращает серверные изменения без приема изменений клиента.
func (h *SyncHandler) Changes(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	var since *time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			h.logger.Warn("invalid since parameter", "since", raw, "error", err)
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		since = &t
	}

	changes, err := h.engine.Changes(r.Context(), owner, since)
	if err != nil {
		h.logger.Error("failed to get changes", "owner_id", owner, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, api.SyncResponse{
		ServerChanges: toAPIChanges(changes),
		Conflicts:     []api.Conflict{},
		SyncedCount:   len(changes),
		Success:       true,
	})
}

func toSyncResponse(result *syncer.SyncResult) api.SyncResponse {
	if result == nil {
		return api.SyncResponse{Conflicts: []api.Conflict{}}
	}

	return api.SyncResponse{
		LastSync:      result.LastSync,
		ServerChanges: toAPIChanges(result.ServerChanges),
		Conflicts:     toAPIConflicts(result.Conflicts),
		Errors:        result.Errors,
		SyncedCount:   result.SyncedCount,
		ConflictCount: result.ConflictCount,
		Success:       result.Success,
	}
}
