package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yallaspeak/syncd/internal/syncer"
	"github.com/yallaspeak/syncd/pkg/api"
)

// StatusEngine определяет интерфейс движка для status handler
type StatusEngine interface {
	Status(ctx context.Context, ownerID string) (*syncer.Status, error)
}

// StatusHandler handles sync status queries
type StatusHandler struct {
	logger *slog.Logger
	engine StatusEngine
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(logger *slog.Logger, engine StatusEngine) *StatusHandler {
	return &StatusHandler{
		logger: logger,
		engine: engine,
	}
}

// Status обрабатывает GET /api/v1/sync/status
func (h *StatusHandler) Status(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	status, err := h.engine.Status(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to get sync status", "owner_id", owner, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	resp := api.SyncStatus{
		LastSync:     status.LastSync,
		PendingItems: status.PendingItems,
		IsSyncing:    status.IsSyncing,
		SyncEnabled:  status.SyncEnabled,
	}
	if status.LastError != "" {
		lastError := status.LastError
		resp.LastError = &lastError
	}

	respondJSON(h.logger, w, http.StatusOK, resp)
}
