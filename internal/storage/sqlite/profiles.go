package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
)

// ProfileAdapter синхронизирует таблицу user_profiles.
// У владельца ровно один профиль: record_id совпадает с owner_id.
type ProfileAdapter struct {
	storage *Storage
}

// NewProfileAdapter creates a sync adapter for user profiles
func NewProfileAdapter(s *Storage) *ProfileAdapter {
	return &ProfileAdapter{storage: s}
}

// ChangesSince возвращает изменение профиля владельца после since.
func (a *ProfileAdapter) ChangesSince(ctx context.Context, ownerID string, since time.Time) ([]*models.ChangeSet, error) {
	query := `
		SELECT owner_id, display_name, preferred_level, settings, created_at, updated_at
		FROM user_profiles
		WHERE owner_id = ? AND updated_at > ?
	`

	row := a.storage.db.QueryRowContext(ctx, query, ownerID, timeToMillis(since))

	payload, updatedAt, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read profile changes: %w", err)
	}

	return []*models.ChangeSet{{
		UpdatedAt:  updatedAt,
		EntityType: models.EntityProfiles,
		RecordID:   ownerID,
		OwnerID:    ownerID,
		Operation:  models.OpUpdate,
		Payload:    payload,
	}}, nil
}

// Apply применяет изменение профиля. Upsert: create против
// существующего профиля трактуется как update.
func (a *ProfileAdapter) Apply(ctx context.Context, change *models.ChangeSet) error {
	if change.Operation == models.OpDelete {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM user_profiles WHERE owner_id = ?`, change.OwnerID); err != nil {
			return fmt.Errorf("failed to delete profile: %w", err)
		}
		return nil
	}

	query := `
		INSERT INTO user_profiles (owner_id, display_name, preferred_level, settings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (owner_id) DO UPDATE SET
			display_name = excluded.display_name,
			preferred_level = excluded.preferred_level,
			settings = excluded.settings,
			updated_at = excluded.updated_at
	`

	_, err := a.storage.db.ExecContext(ctx, query,
		change.OwnerID,
		payloadNullString(change.Payload, "display_name"),
		payloadNullString(change.Payload, "preferred_level"),
		payloadJSON(change.Payload, "settings", "{}"),
		createdAtMillis(change.Payload, change.UpdatedAt),
		timeToMillis(change.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	return nil
}

// ExportAll возвращает профиль владельца (максимум одна запись).
func (a *ProfileAdapter) ExportAll(ctx context.Context, ownerID string) ([]map[string]any, error) {
	query := `
		SELECT owner_id, display_name, preferred_level, settings, created_at, updated_at
		FROM user_profiles
		WHERE owner_id = ?
	`

	row := a.storage.db.QueryRowContext(ctx, query, ownerID)

	payload, _, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to export profile: %w", err)
	}

	return []map[string]any{payload}, nil
}

// ImportAll загружает профиль из snapshot.
func (a *ProfileAdapter) ImportAll(ctx context.Context, ownerID string, records []map[string]any, strategy registry.ImportStrategy) error {
	if strategy == registry.ImportReplace {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM user_profiles WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("failed to clear profile: %w", err)
		}
	}

	for _, record := range records {
		change := &models.ChangeSet{
			UpdatedAt:  importTime(record),
			EntityType: models.EntityProfiles,
			RecordID:   ownerID,
			OwnerID:    ownerID,
			Operation:  models.OpUpdate,
			Payload:    record,
		}

		if err := a.Apply(ctx, change); err != nil {
			return err
		}
	}

	return nil
}

// RecordKey извлекает идентификатор профиля (owner_id) из payload.
func (a *ProfileAdapter) RecordKey(payload map[string]any) (string, bool) {
	id := payloadString(payload, "owner_id")
	return id, id != ""
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (map[string]any, time.Time, error) {
	var (
		ownerID        string
		displayName    sql.NullString
		preferredLevel sql.NullString
		settings       string
		createdAt      int64
		updatedAt      int64
	)

	if err := row.Scan(&ownerID, &displayName, &preferredLevel, &settings, &createdAt, &updatedAt); err != nil {
		return nil, time.Time{}, err
	}

	payload := map[string]any{
		"owner_id":   ownerID,
		"settings":   columnJSON(settings),
		"created_at": millisToTime(createdAt).Format(time.RFC3339Nano),
		"updated_at": millisToTime(updatedAt).Format(time.RFC3339Nano),
	}
	if displayName.Valid {
		payload["display_name"] = displayName.String
	}
	if preferredLevel.Valid {
		payload["preferred_level"] = preferredLevel.String
	}

	return payload, millisToTime(updatedAt), nil
}

// importTime достает updated_at из записи snapshot; записи без
// валидного времени получают текущее.
func importTime(record map[string]any) time.Time {
	if raw, ok := record["updated_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return t
		}
	}

	return time.Now().UTC()
}
