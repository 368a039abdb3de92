package storage

import "errors"

// Common storage errors
var (
	// ErrRecordNotFound indicates that a synchronized record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrQueueEntryNotFound indicates that an offline queue entry was not found
	ErrQueueEntryNotFound = errors.New("queue entry not found")

	// ErrCheckpointNotFound indicates that the owner has never completed a sync
	ErrCheckpointNotFound = errors.New("sync checkpoint not found")

	// ErrOwnerMismatch indicates that a record with the same id already
	// belongs to another owner
	ErrOwnerMismatch = errors.New("record belongs to another owner")
)
