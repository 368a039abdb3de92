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

// ProgressAdapter синхронизирует таблицу user_progress:
// прогресс владельца по урокам (статус, время, результаты квизов).
type ProgressAdapter struct {
	storage *Storage
}

// NewProgressAdapter creates a sync adapter for lesson progress
func NewProgressAdapter(s *Storage) *ProgressAdapter {
	return &ProgressAdapter{storage: s}
}

// ChangesSince возвращает записи прогресса владельца, измененные после since.
func (a *ProgressAdapter) ChangesSince(ctx context.Context, ownerID string, since time.Time) ([]*models.ChangeSet, error) {
	query := `
		SELECT progress_id, owner_id, lesson_id, status, time_spent_minutes,
		       lesson_views, quiz_taken, quiz_score, best_quiz_score,
		       created_at, updated_at
		FROM user_progress
		WHERE owner_id = ? AND updated_at > ?
		ORDER BY updated_at
	`

	rows, err := a.storage.db.QueryContext(ctx, query, ownerID, timeToMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to read progress changes: %w", err)
	}
	defer rows.Close()

	var changes []*models.ChangeSet
	for rows.Next() {
		payload, recordID, updatedAt, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}

		changes = append(changes, &models.ChangeSet{
			UpdatedAt:  updatedAt,
			EntityType: models.EntityProgress,
			RecordID:   recordID,
			OwnerID:    ownerID,
			Operation:  models.OpUpdate,
			Payload:    payload,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress rows: %w", err)
	}

	return changes, nil
}

// Apply применяет изменение прогресса (upsert по progress_id).
func (a *ProgressAdapter) Apply(ctx context.Context, change *models.ChangeSet) error {
	if change.Operation == models.OpDelete {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM user_progress WHERE progress_id = ? AND owner_id = ?`,
			change.RecordID, change.OwnerID); err != nil {
			return fmt.Errorf("failed to delete progress: %w", err)
		}
		return nil
	}

	// DO UPDATE ограничен владельцем строки: чужой progress_id
	// не перезаписывается, upsert не затрагивает ни одной строки
	query := `
		INSERT INTO user_progress (progress_id, owner_id, lesson_id, status,
			time_spent_minutes, lesson_views, quiz_taken, quiz_score,
			best_quiz_score, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (progress_id) DO UPDATE SET
			lesson_id = excluded.lesson_id,
			status = excluded.status,
			time_spent_minutes = excluded.time_spent_minutes,
			lesson_views = excluded.lesson_views,
			quiz_taken = excluded.quiz_taken,
			quiz_score = excluded.quiz_score,
			best_quiz_score = excluded.best_quiz_score,
			updated_at = excluded.updated_at
		WHERE user_progress.owner_id = excluded.owner_id
	`

	status := payloadString(change.Payload, "status")
	if status == "" {
		status = "not_started"
	}

	res, err := a.storage.db.ExecContext(ctx, query,
		change.RecordID,
		change.OwnerID,
		payloadString(change.Payload, "lesson_id"),
		status,
		payloadInt(change.Payload, "time_spent_minutes"),
		payloadInt(change.Payload, "lesson_views"),
		boolToInt(payloadBool(change.Payload, "quiz_taken")),
		payloadFloat(change.Payload, "quiz_score"),
		payloadFloat(change.Payload, "best_quiz_score"),
		createdAtMillis(change.Payload, change.UpdatedAt),
		timeToMillis(change.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert progress: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("progress record %s: %w", change.RecordID, storage.ErrOwnerMismatch)
	}

	return nil
}

// ExportAll возвращает весь прогресс владельца.
func (a *ProgressAdapter) ExportAll(ctx context.Context, ownerID string) ([]map[string]any, error) {
	query := `
		SELECT progress_id, owner_id, lesson_id, status, time_spent_minutes,
		       lesson_views, quiz_taken, quiz_score, best_quiz_score,
		       created_at, updated_at
		FROM user_progress
		WHERE owner_id = ?
		ORDER BY created_at
	`

	rows, err := a.storage.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to export progress: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		payload, _, _, err := scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan progress row: %w", err)
		}
		records = append(records, payload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate progress rows: %w", err)
	}

	return records, nil
}

// ImportAll загружает прогресс из snapshot.
func (a *ProgressAdapter) ImportAll(ctx context.Context, ownerID string, records []map[string]any, strategy registry.ImportStrategy) error {
	if strategy == registry.ImportReplace {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM user_progress WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("failed to clear progress: %w", err)
		}
	}

	for _, record := range records {
		recordID, ok := a.RecordKey(record)
		if !ok {
			return fmt.Errorf("progress record without progress_id")
		}

		change := &models.ChangeSet{
			UpdatedAt:  importTime(record),
			EntityType: models.EntityProgress,
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

// RecordKey извлекает progress_id из payload.
func (a *ProgressAdapter) RecordKey(payload map[string]any) (string, bool) {
	id := payloadString(payload, "progress_id")
	return id, id != ""
}

func scanProgress(row rowScanner) (map[string]any, string, time.Time, error) {
	var (
		progressID       string
		ownerID          string
		lessonID         string
		status           string
		timeSpentMinutes int64
		lessonViews      int64
		quizTaken        int
		quizScore        sql.NullFloat64
		bestQuizScore    sql.NullFloat64
		createdAt        int64
		updatedAt        int64
	)

	if err := row.Scan(&progressID, &ownerID, &lessonID, &status, &timeSpentMinutes,
		&lessonViews, &quizTaken, &quizScore, &bestQuizScore, &createdAt, &updatedAt); err != nil {
		return nil, "", time.Time{}, err
	}

	payload := map[string]any{
		"progress_id":        progressID,
		"owner_id":           ownerID,
		"lesson_id":          lessonID,
		"status":             status,
		"time_spent_minutes": timeSpentMinutes,
		"lesson_views":       lessonViews,
		"quiz_taken":         quizTaken != 0,
		"created_at":         millisToTime(createdAt).Format(time.RFC3339Nano),
		"updated_at":         millisToTime(updatedAt).Format(time.RFC3339Nano),
	}
	if quizScore.Valid {
		payload["quiz_score"] = quizScore.Float64
	}
	if bestQuizScore.Valid {
		payload["best_quiz_score"] = bestQuizScore.Float64
	}

	return payload, progressID, millisToTime(updatedAt), nil
}
