package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/syncer"
	"github.com/yallaspeak/syncd/pkg/api"
)

// TransferEngine определяет интерфейс движка для export/import handler
type TransferEngine interface {
	Export(ctx context.Context, ownerID string) (*syncer.Snapshot, error)
	Import(ctx context.Context, ownerID string, snapshot *syncer.Snapshot, strategy registry.ImportStrategy) (*syncer.SyncResult, error)
}

// TransferHandler handles full-snapshot export and import
type TransferHandler struct {
	logger *slog.Logger
	engine TransferEngine
}

// NewTransferHandler creates a new export/import handler
func NewTransferHandler(logger *slog.Logger, engine TransferEngine) *TransferHandler {
	return &TransferHandler{
		logger: logger,
		engine: engine,
	}
}

// Export обрабатывает GET /api/v1/sync/export
// Возвращает полный snapshot данных владельца.
func (h *TransferHandler) Export(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	snapshot, err := h.engine.Export(r.Context(), owner)
	if err != nil {
		h.logger.Error("failed to export data", "owner_id", owner, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, api.Snapshot{
		ExportedAt: snapshot.ExportedAt,
		OwnerID:    snapshot.OwnerID,
		Data:       snapshot.Data,
	})
}

// Import обрабатывает POST /api/v1/sync/import
// Восстанавливает данные владельца из snapshot стратегией replace или merge.
func (h *TransferHandler) Import(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerID(h.logger, w, r)
	if !ok {
		return
	}

	var req api.ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to decode import request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	strategy := registry.ImportStrategy(req.Strategy)
	if strategy != registry.ImportReplace && strategy != registry.ImportMerge {
		http.Error(w, "Invalid strategy", http.StatusBadRequest)
		return
	}

	// Snapshot может быть экспортирован на другом устройстве;
	// владелец принудительно берется из токена
	snapshot := &syncer.Snapshot{
		ExportedAt: req.Snapshot.ExportedAt,
		OwnerID:    owner,
		Data:       req.Snapshot.Data,
	}

	result, err := h.engine.Import(r.Context(), owner, snapshot, strategy)
	if err != nil {
		h.logger.Error("failed to import data", "owner_id", owner, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	respondJSON(h.logger, w, http.StatusOK, toSyncResponse(result))
}
