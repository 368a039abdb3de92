package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/syncer"
)

const testOwner = "owner-1"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// authedRequest создает запрос с owner_id в контексте,
// как это делает Auth middleware после валидации токена
func authedRequest(method, target string, body io.Reader) *http.Request {
	r := httptest.NewRequest(method, target, body)
	ctx := context.WithValue(r.Context(), OwnerIDKey, testOwner)
	return r.WithContext(ctx)
}

// fakeSyncEngine реализует SyncEngine для тестов handler'ов
type fakeSyncEngine struct {
	syncResult *syncer.SyncResult
	syncErr    error
	changes    []*models.ChangeSet
	changesErr error

	gotOwner    string
	gotChanges  []*models.ChangeSet
	gotLastSync *time.Time
	gotStrategy models.Strategy
	gotSince    *time.Time
}

func (f *fakeSyncEngine) Sync(ctx context.Context, ownerID string, clientChanges []*models.ChangeSet, lastSync *time.Time, strategy models.Strategy) (*syncer.SyncResult, error) {
	f.gotOwner = ownerID
	f.gotChanges = clientChanges
	f.gotLastSync = lastSync
	f.gotStrategy = strategy
	return f.syncResult, f.syncErr
}

func (f *fakeSyncEngine) Changes(ctx context.Context, ownerID string, since *time.Time) ([]*models.ChangeSet, error) {
	f.gotOwner = ownerID
	f.gotSince = since
	return f.changes, f.changesErr
}

// fakeQueueEngine реализует QueueEngine для тестов handler'ов
type fakeQueueEngine struct {
	enqueued    *models.QueueEntry
	enqueueErr  error
	drainResult *syncer.DrainResult
	drainErr    error

	gotOwner string
	gotEntry *models.QueueEntry
}

func (f *fakeQueueEngine) Enqueue(ctx context.Context, ownerID string, entry *models.QueueEntry) (*models.QueueEntry, error) {
	f.gotOwner = ownerID
	f.gotEntry = entry
	return f.enqueued, f.enqueueErr
}

func (f *fakeQueueEngine) DrainQueue(ctx context.Context, ownerID string) (*syncer.DrainResult, error) {
	f.gotOwner = ownerID
	return f.drainResult, f.drainErr
}

// fakeStatusEngine реализует StatusEngine для тестов handler'ов
type fakeStatusEngine struct {
	status    *syncer.Status
	statusErr error
	gotOwner  string
}

func (f *fakeStatusEngine) Status(ctx context.Context, ownerID string) (*syncer.Status, error) {
	f.gotOwner = ownerID
	return f.status, f.statusErr
}

// fakeTransferEngine реализует TransferEngine для тестов handler'ов
type fakeTransferEngine struct {
	snapshot     *syncer.Snapshot
	exportErr    error
	importResult *syncer.SyncResult
	importErr    error

	gotOwner    string
	gotSnapshot *syncer.Snapshot
	gotStrategy registry.ImportStrategy
}

func (f *fakeTransferEngine) Export(ctx context.Context, ownerID string) (*syncer.Snapshot, error) {
	f.gotOwner = ownerID
	return f.snapshot, f.exportErr
}

func (f *fakeTransferEngine) Import(ctx context.Context, ownerID string, snapshot *syncer.Snapshot, strategy registry.ImportStrategy) (*syncer.SyncResult, error) {
	f.gotOwner = ownerID
	f.gotSnapshot = snapshot
	f.gotStrategy = strategy
	return f.importResult, f.importErr
}
