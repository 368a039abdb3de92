package scheduler

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/storage/boltdb"
	"github.com/yallaspeak/syncd/internal/storage/sqlite"
	"github.com/yallaspeak/syncd/internal/syncer"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func setupScheduler(t *testing.T, spec string) (*Scheduler, *boltdb.Storage, *sqlite.Storage) {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	queue, err := boltdb.New(ctx, filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	reg := registry.New()
	require.NoError(t, reg.Register(models.EntityProgress, sqlite.NewProgressAdapter(store)))

	engine := syncer.New(reg, store, queue, testLogger(), syncer.Options{Enabled: true})

	return New(testLogger(), engine, queue, spec), queue, store
}

func TestScheduler_StartStop(t *testing.T) {
	s, _, _ := setupScheduler(t, "@every 1h")

	require.NoError(t, s.Start())
	s.Stop()
}

func TestScheduler_Start_InvalidSpec(t *testing.T) {
	s, _, _ := setupScheduler(t, "not a schedule")

	assert.Error(t, s.Start())
}

func TestScheduler_SweepDrainsQueues(t *testing.T) {
	s, queue, _ := setupScheduler(t, "@every 1h")
	ctx := context.Background()

	for _, owner := range []string{"owner-1", "owner-2"} {
		_, err := queue.Enqueue(ctx, &models.QueueEntry{
			EnqueuedAt: time.Now().UTC(),
			UpdatedAt:  time.Now().UTC(),
			QueueID:    "q-" + owner,
			OwnerID:    owner,
			EntityType: models.EntityProgress,
			RecordID:   "p-" + owner,
			Operation:  models.OpUpdate,
			Payload:    map[string]any{"lesson_id": "lesson-1", "status": "completed"},
		})
		require.NoError(t, err)
	}

	s.sweep()

	for _, owner := range []string{"owner-1", "owner-2"} {
		pending, err := queue.Pending(ctx, owner)
		require.NoError(t, err)
		assert.Empty(t, pending, "queue of %s should be drained", owner)
	}

	owners, err := queue.Owners(ctx)
	require.NoError(t, err)
	assert.Empty(t, owners)
}

func TestScheduler_SweepNoOwners(t *testing.T) {
	s, _, _ := setupScheduler(t, "@every 1h")

	// Пустая очередь: sweep просто ничего не делает
	s.sweep()
}
