package syncer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yallaspeak/syncd/internal/storage"
)

// Status представляет состояние синхронизации владельца.
type Status struct {
	LastSync     *time.Time // nil, если владелец ни разу не синхронизировался
	LastError    string     // последняя ошибка цикла, пусто если не было
	PendingItems int        // элементов в offline очереди (без poison)
	IsSyncing    bool
	SyncEnabled  bool
}

// Status возвращает состояние синхронизации владельца: durable
// checkpoint, размер offline очереди и in-memory флаги текущего цикла.
func (e *Engine) Status(ctx context.Context, ownerID string) (*Status, error) {
	status := &Status{
		IsSyncing:   e.IsSyncing(ownerID),
		LastError:   e.getLastError(ownerID),
		SyncEnabled: e.enabled,
	}

	checkpoint, err := e.checkpoints.GetCheckpoint(ctx, ownerID)
	if err != nil && !errors.Is(err, storage.ErrCheckpointNotFound) {
		return nil, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	if err == nil {
		status.LastSync = &checkpoint
	}

	pending, err := e.queue.Pending(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to read pending queue: %w", err)
	}
	status.PendingItems = len(pending)

	return status, nil
}
