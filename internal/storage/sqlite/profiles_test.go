package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
)

func profileChange(ownerID string, updatedAt time.Time, payload map[string]any) *models.ChangeSet {
	return &models.ChangeSet{
		UpdatedAt:  updatedAt,
		EntityType: models.EntityProfiles,
		RecordID:   ownerID,
		OwnerID:    ownerID,
		Operation:  models.OpUpdate,
		Payload:    payload,
	}
}

func TestProfileAdapter_ApplyAndChangesSince(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-1", updatedAt, map[string]any{
		"display_name":    "Amina",
		"preferred_level": "b1",
		"settings":        map[string]any{"audio_speed": 0.75},
	})))

	changes, err := adapter.ChangesSince(ctx, "owner-1", updatedAt.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, changes, 1)

	c := changes[0]
	assert.Equal(t, models.EntityProfiles, c.EntityType)
	assert.Equal(t, "owner-1", c.RecordID, "profile record id equals owner id")
	assert.Equal(t, updatedAt, c.UpdatedAt)
	assert.Equal(t, "Amina", c.Payload["display_name"])
	assert.Equal(t, "b1", c.Payload["preferred_level"])
	assert.Equal(t, map[string]any{"audio_speed": 0.75}, c.Payload["settings"])
}

func TestProfileAdapter_ChangesSince_ExcludesOlder(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-1", updatedAt, map[string]any{
		"display_name": "Amina",
	})))

	// since строго после изменения: ничего не возвращается
	changes, err := adapter.ChangesSince(ctx, "owner-1", updatedAt)
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestProfileAdapter_Apply_Idempotent(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	change := profileChange("owner-1", updatedAt, map[string]any{"display_name": "Amina"})

	require.NoError(t, adapter.Apply(ctx, change))
	require.NoError(t, adapter.Apply(ctx, change))

	records, err := adapter.ExportAll(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, records, 1, "repeated apply keeps a single profile row")
	assert.Equal(t, "Amina", records[0]["display_name"])
}

func TestProfileAdapter_Apply_CreateOnExistingUpserts(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	first := profileChange("owner-1", base, map[string]any{"display_name": "Amina"})
	first.Operation = models.OpCreate
	require.NoError(t, adapter.Apply(ctx, first))

	second := profileChange("owner-1", base.Add(time.Minute), map[string]any{"display_name": "Layla"})
	second.Operation = models.OpCreate
	require.NoError(t, adapter.Apply(ctx, second), "create against existing row must not fail")

	records, err := adapter.ExportAll(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Layla", records[0]["display_name"])
}

func TestProfileAdapter_Apply_Delete(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-1", updatedAt, map[string]any{
		"display_name": "Amina",
	})))

	del := profileChange("owner-1", updatedAt.Add(time.Minute), map[string]any{})
	del.Operation = models.OpDelete
	require.NoError(t, adapter.Apply(ctx, del))

	records, err := adapter.ExportAll(ctx, "owner-1")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProfileAdapter_ExportImport_RoundTrip(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-1", updatedAt, map[string]any{
		"display_name":    "Amina",
		"preferred_level": "b1",
		"settings":        map[string]any{"audio_speed": 0.75},
	})))

	records, err := adapter.ExportAll(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Восстанавливаем в чистую базу
	s2, cleanup2 := setupTestStorage(t)
	defer cleanup2()
	adapter2 := NewProfileAdapter(s2)

	require.NoError(t, adapter2.ImportAll(ctx, "owner-1", records, registry.ImportReplace))

	restored, err := adapter2.ExportAll(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, restored, 1)
	assert.Equal(t, records[0], restored[0], "import preserves exported record exactly")
}

func TestProfileAdapter_ImportReplace_DropsExisting(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-1", updatedAt, map[string]any{
		"display_name": "Old Name",
	})))

	require.NoError(t, adapter.ImportAll(ctx, "owner-1", []map[string]any{
		{
			"owner_id":     "owner-1",
			"display_name": "New Name",
			"updated_at":   updatedAt.Add(time.Hour).Format(time.RFC3339Nano),
		},
	}, registry.ImportReplace))

	records, err := adapter.ExportAll(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "New Name", records[0]["display_name"])
}

func TestProfileAdapter_RecordKey(t *testing.T) {
	adapter := NewProfileAdapter(nil)

	id, ok := adapter.RecordKey(map[string]any{"owner_id": "owner-1"})
	assert.True(t, ok)
	assert.Equal(t, "owner-1", id)

	_, ok = adapter.RecordKey(map[string]any{"display_name": "Amina"})
	assert.False(t, ok)
}

func TestProfileAdapter_OwnerIsolation(t *testing.T) {
	s, cleanup := setupTestStorage(t)
	defer cleanup()
	ctx := context.Background()
	adapter := NewProfileAdapter(s)

	updatedAt := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-1", updatedAt, map[string]any{
		"display_name": "Amina",
	})))
	require.NoError(t, adapter.Apply(ctx, profileChange("owner-2", updatedAt, map[string]any{
		"display_name": "Omar",
	})))

	changes, err := adapter.ChangesSince(ctx, "owner-1", updatedAt.Add(-time.Minute))
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "Amina", changes[0].Payload["display_name"])
}
