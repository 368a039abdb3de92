package syncer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/storage"
)

// fakeAdapter — in-memory реализация registry.Adapter для тестов движка.
type fakeAdapter struct {
	entityType string

	// серверное состояние: record_id -> последний ChangeSet
	state map[string]*models.ChangeSet

	// журнал применений
	applied []*models.ChangeSet

	applyErr   error
	changesErr error
	exportErr  error

	// записи, удаленные ImportReplace
	replaced bool
}

func newFakeAdapter(entityType string) *fakeAdapter {
	return &fakeAdapter{
		entityType: entityType,
		state:      make(map[string]*models.ChangeSet),
	}
}

func (f *fakeAdapter) seed(change *models.ChangeSet) {
	f.state[change.RecordID] = change
}

func (f *fakeAdapter) ChangesSince(_ context.Context, ownerID string, since time.Time) ([]*models.ChangeSet, error) {
	if f.changesErr != nil {
		return nil, f.changesErr
	}

	ids := make([]string, 0, len(f.state))
	for id := range f.state {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var changes []*models.ChangeSet
	for _, id := range ids {
		c := f.state[id]
		if c.OwnerID == ownerID && c.UpdatedAt.After(since) {
			changes = append(changes, c)
		}
	}
	return changes, nil
}

func (f *fakeAdapter) Apply(_ context.Context, change *models.ChangeSet) error {
	if f.applyErr != nil {
		return f.applyErr
	}

	f.applied = append(f.applied, change)

	if change.Operation == models.OpDelete {
		delete(f.state, change.RecordID)
		return nil
	}

	stored := change.Clone()
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = time.Now().UTC()
	}
	f.state[change.RecordID] = stored
	return nil
}

func (f *fakeAdapter) ExportAll(_ context.Context, ownerID string) ([]map[string]any, error) {
	if f.exportErr != nil {
		return nil, f.exportErr
	}

	ids := make([]string, 0, len(f.state))
	for id := range f.state {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var records []map[string]any
	for _, id := range ids {
		c := f.state[id]
		if c.OwnerID != ownerID {
			continue
		}
		record := make(map[string]any, len(c.Payload)+1)
		for k, v := range c.Payload {
			record[k] = v
		}
		record[f.entityType+"_pk"] = id
		records = append(records, record)
	}
	return records, nil
}

func (f *fakeAdapter) ImportAll(ctx context.Context, ownerID string, records []map[string]any, strategy registry.ImportStrategy) error {
	if strategy == registry.ImportReplace {
		f.replaced = true
		for id, c := range f.state {
			if c.OwnerID == ownerID {
				delete(f.state, id)
			}
		}
	}

	for _, record := range records {
		id, ok := f.RecordKey(record)
		if !ok {
			return fmt.Errorf("record without primary key")
		}
		if err := f.Apply(ctx, &models.ChangeSet{
			UpdatedAt:  time.Now().UTC(),
			EntityType: f.entityType,
			RecordID:   id,
			OwnerID:    ownerID,
			Operation:  models.OpUpdate,
			Payload:    record,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeAdapter) RecordKey(payload map[string]any) (string, bool) {
	id, ok := payload[f.entityType+"_pk"].(string)
	return id, ok && id != ""
}

// fakeCheckpoints — in-memory реализация storage.CheckpointStorage.
type fakeCheckpoints struct {
	checkpoints map[string]time.Time
	getErr      error
	saveErr     error
}

func newFakeCheckpoints() *fakeCheckpoints {
	return &fakeCheckpoints{checkpoints: make(map[string]time.Time)}
}

func (f *fakeCheckpoints) GetCheckpoint(_ context.Context, ownerID string) (time.Time, error) {
	if f.getErr != nil {
		return time.Time{}, f.getErr
	}
	cp, ok := f.checkpoints[ownerID]
	if !ok {
		return time.Time{}, storage.ErrCheckpointNotFound
	}
	return cp, nil
}

func (f *fakeCheckpoints) SaveCheckpoint(_ context.Context, ownerID string, lastSync time.Time) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.checkpoints[ownerID] = lastSync
	return nil
}

// fakeQueue — in-memory реализация storage.QueueStorage (FIFO по Seq).
type fakeQueue struct {
	entries    []*models.QueueEntry
	nextSeq    uint64
	enqueueErr error
	pendingErr error
	deleteErr  error
	updateErr  error
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{nextSeq: 1}
}

func (f *fakeQueue) Enqueue(_ context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	if f.enqueueErr != nil {
		return nil, f.enqueueErr
	}
	entry.Seq = f.nextSeq
	f.nextSeq++
	f.entries = append(f.entries, entry)
	return entry, nil
}

func (f *fakeQueue) Pending(_ context.Context, ownerID string) ([]*models.QueueEntry, error) {
	if f.pendingErr != nil {
		return nil, f.pendingErr
	}
	var pending []*models.QueueEntry
	for _, e := range f.entries {
		if e.OwnerID == ownerID && !e.Poisoned {
			pending = append(pending, e)
		}
	}
	return pending, nil
}

func (f *fakeQueue) Poisoned(_ context.Context, ownerID string) ([]*models.QueueEntry, error) {
	var poisoned []*models.QueueEntry
	for _, e := range f.entries {
		if e.OwnerID == ownerID && e.Poisoned {
			poisoned = append(poisoned, e)
		}
	}
	return poisoned, nil
}

func (f *fakeQueue) Delete(_ context.Context, ownerID string, seq uint64) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, e := range f.entries {
		if e.OwnerID == ownerID && e.Seq == seq {
			f.entries = append(f.entries[:i], f.entries[i+1:]...)
			return nil
		}
	}
	return storage.ErrQueueEntryNotFound
}

func (f *fakeQueue) Update(_ context.Context, entry *models.QueueEntry) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	for i, e := range f.entries {
		if e.OwnerID == entry.OwnerID && e.Seq == entry.Seq {
			f.entries[i] = entry
			return nil
		}
	}
	return storage.ErrQueueEntryNotFound
}

func (f *fakeQueue) Owners(_ context.Context) ([]string, error) {
	seen := make(map[string]bool)
	var owners []string
	for _, e := range f.entries {
		if e.Poisoned || seen[e.OwnerID] {
			continue
		}
		seen[e.OwnerID] = true
		owners = append(owners, e.OwnerID)
	}
	sort.Strings(owners)
	return owners, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
