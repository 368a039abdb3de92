package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/storage"
)

// ErrorLogAdapter синхронизирует таблицу error_log:
// зафиксированные ошибки владельца по таксономии (EN_IN_AR, SPELL_T и т.д.).
type ErrorLogAdapter struct {
	storage *Storage
}

// NewErrorLogAdapter creates a sync adapter for the learner error log
func NewErrorLogAdapter(s *Storage) *ErrorLogAdapter {
	return &ErrorLogAdapter{storage: s}
}

// ChangesSince возвращает записи журнала владельца, измененные после since.
func (a *ErrorLogAdapter) ChangesSince(ctx context.Context, ownerID string, since time.Time) ([]*models.ChangeSet, error) {
	query := `
		SELECT error_id, owner_id, lesson_id, quiz_id, error_type, token,
		       details, created_at, updated_at
		FROM error_log
		WHERE owner_id = ? AND updated_at > ?
		ORDER BY updated_at
	`

	rows, err := a.storage.db.QueryContext(ctx, query, ownerID, timeToMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to read error log changes: %w", err)
	}
	defer rows.Close()

	var changes []*models.ChangeSet
	for rows.Next() {
		payload, recordID, updatedAt, err := scanErrorLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error log row: %w", err)
		}

		changes = append(changes, &models.ChangeSet{
			UpdatedAt:  updatedAt,
			EntityType: models.EntityErrors,
			RecordID:   recordID,
			OwnerID:    ownerID,
			Operation:  models.OpUpdate,
			Payload:    payload,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error log rows: %w", err)
	}

	return changes, nil
}

// Apply применяет запись журнала ошибок (upsert по error_id).
func (a *ErrorLogAdapter) Apply(ctx context.Context, change *models.ChangeSet) error {
	if change.Operation == models.OpDelete {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM error_log WHERE error_id = ? AND owner_id = ?`,
			change.RecordID, change.OwnerID); err != nil {
			return fmt.Errorf("failed to delete error log entry: %w", err)
		}
		return nil
	}

	// DO UPDATE ограничен владельцем строки: чужой error_id
	// не перезаписывается
	query := `
		INSERT INTO error_log (error_id, owner_id, lesson_id, quiz_id,
			error_type, token, details, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (error_id) DO UPDATE SET
			lesson_id = excluded.lesson_id,
			quiz_id = excluded.quiz_id,
			error_type = excluded.error_type,
			token = excluded.token,
			details = excluded.details,
			updated_at = excluded.updated_at
		WHERE error_log.owner_id = excluded.owner_id
	`

	res, err := a.storage.db.ExecContext(ctx, query,
		change.RecordID,
		change.OwnerID,
		payloadNullString(change.Payload, "lesson_id"),
		payloadNullString(change.Payload, "quiz_id"),
		payloadString(change.Payload, "error_type"),
		payloadNullString(change.Payload, "token"),
		payloadJSON(change.Payload, "details", "{}"),
		createdAtMillis(change.Payload, change.UpdatedAt),
		timeToMillis(change.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert error log entry: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert error log entry: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("error log record %s: %w", change.RecordID, storage.ErrOwnerMismatch)
	}

	return nil
}

// ExportAll возвращает весь журнал ошибок владельца.
func (a *ErrorLogAdapter) ExportAll(ctx context.Context, ownerID string) ([]map[string]any, error) {
	query := `
		SELECT error_id, owner_id, lesson_id, quiz_id, error_type, token,
		       details, created_at, updated_at
		FROM error_log
		WHERE owner_id = ?
		ORDER BY created_at
	`

	rows, err := a.storage.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to export error log: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		payload, _, _, err := scanErrorLog(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan error log row: %w", err)
		}
		records = append(records, payload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate error log rows: %w", err)
	}

	return records, nil
}

// ImportAll загружает журнал ошибок из snapshot.
func (a *ErrorLogAdapter) ImportAll(ctx context.Context, ownerID string, records []map[string]any, strategy registry.ImportStrategy) error {
	if strategy == registry.ImportReplace {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM error_log WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("failed to clear error log: %w", err)
		}
	}

	for _, record := range records {
		recordID, ok := a.RecordKey(record)
		if !ok {
			return fmt.Errorf("error log record without error_id")
		}

		change := &models.ChangeSet{
			UpdatedAt:  importTime(record),
			EntityType: models.EntityErrors,
			RecordID:   recordID,
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

// RecordKey извлекает error_id из payload.
func (a *ErrorLogAdapter) RecordKey(payload map[string]any) (string, bool) {
	id := payloadString(payload, "error_id")
	return id, id != ""
}

func scanErrorLog(row rowScanner) (map[string]any, string, time.Time, error) {
	var (
		errorID   string
		ownerID   string
		lessonID  sql.NullString
		quizID    sql.NullString
		errorType string
		token     sql.NullString
		details   string
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&errorID, &ownerID, &lessonID, &quizID, &errorType,
		&token, &details, &createdAt, &updatedAt); err != nil {
		return nil, "", time.Time{}, err
	}

	payload := map[string]any{
		"error_id":   errorID,
		"owner_id":   ownerID,
		"error_type": errorType,
		"details":    columnJSON(details),
		"created_at": millisToTime(createdAt).Format(time.RFC3339Nano),
		"updated_at": millisToTime(updatedAt).Format(time.RFC3339Nano),
	}
	if lessonID.Valid {
		payload["lesson_id"] = lessonID.String
	}
	if quizID.Valid {
		payload["quiz_id"] = quizID.String
	}
	if token.Valid {
		payload["token"] = token.String
	}

	return payload, errorID, millisToTime(updatedAt), nil
}
