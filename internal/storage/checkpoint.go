package storage

import (
	"context"
	"time"
)

// CheckpointStorage defines interface for durable per-owner sync checkpoints.
// The checkpoint marks the boundary of the owner's last successful sync
// cycle and must survive process restarts: a crash mid-cycle is retried
// from the old checkpoint (at-least-once, application is idempotent).
type CheckpointStorage interface {
	// GetCheckpoint returns the owner's last successful sync timestamp.
	// Returns ErrCheckpointNotFound if the owner has never synced.
	GetCheckpoint(ctx context.Context, ownerID string) (time.Time, error)

	// SaveCheckpoint durably advances the owner's checkpoint.
	// Called only after every change of the cycle has been applied;
	// a failure here is fatal for the cycle and must leave the old
	// checkpoint in place.
	SaveCheckpoint(ctx context.Context, ownerID string, lastSync time.Time) error
}
