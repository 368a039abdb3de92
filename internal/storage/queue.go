package storage

import (
	"context"

	"github.com/yallaspeak/syncd/internal/models"
)

// QueueStorage defines interface for the durable offline queue.
// Entries are strictly FIFO per owner; the implementation must preserve
// enqueue order across process restarts.
type QueueStorage interface {
	// Enqueue appends an entry to the owner's queue and returns it
	// with QueueID and Seq assigned.
	Enqueue(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error)

	// Pending returns the owner's non-poisoned entries in enqueue order.
	Pending(ctx context.Context, ownerID string) ([]*models.QueueEntry, error)

	// Poisoned returns the owner's parked entries (retry ceiling exceeded).
	// They are excluded from automatic drains but remain queryable.
	Poisoned(ctx context.Context, ownerID string) ([]*models.QueueEntry, error)

	// Delete removes a successfully applied entry.
	// Returns ErrQueueEntryNotFound if the entry does not exist.
	Delete(ctx context.Context, ownerID string, seq uint64) error

	// Update persists a modified entry in place (retry count, poison flag,
	// last error). The Seq key never changes.
	Update(ctx context.Context, entry *models.QueueEntry) error

	// Owners returns all owner IDs that currently have pending entries.
	// Used by the queue sweep scheduler.
	Owners(ctx context.Context) ([]string, error)
}
