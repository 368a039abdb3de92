package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yallaspeak/syncd/internal/storage"
)

// GetCheckpoint возвращает durable checkpoint владельца.
// Returns ErrCheckpointNotFound if the owner has never synced.
func (s *Storage) GetCheckpoint(ctx context.Context, ownerID string) (time.Time, error) {
	query := `SELECT last_sync FROM sync_checkpoints WHERE owner_id = ?`

	var lastSync int64
	err := s.db.QueryRowContext(ctx, query, ownerID).Scan(&lastSync)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, storage.ErrCheckpointNotFound
		}
		return time.Time{}, fmt.Errorf("failed to get checkpoint: %w", err)
	}

	return millisToTime(lastSync), nil
}

// SaveCheckpoint durably продвигает checkpoint владельца.
// Upsert: первый sync владельца создает строку.
func (s *Storage) SaveCheckpoint(ctx context.Context, ownerID string, lastSync time.Time) error {
	query := `
		INSERT INTO sync_checkpoints (owner_id, last_sync)
		VALUES (?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET last_sync = excluded.last_sync
	`

	if _, err := s.db.ExecContext(ctx, query, ownerID, timeToMillis(lastSync)); err != nil {
		return fmt.Errorf("failed to save checkpoint: %w", err)
	}

	return nil
}
