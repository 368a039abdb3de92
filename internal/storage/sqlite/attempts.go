package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/storage"
)

// AttemptAdapter синхронизирует таблицу quiz_attempts:
// завершенные попытки квизов с ответами и результатом.
type AttemptAdapter struct {
	storage *Storage
}

// NewAttemptAdapter creates a sync adapter for quiz attempts
func NewAttemptAdapter(s *Storage) *AttemptAdapter {
	return &AttemptAdapter{storage: s}
}

// ChangesSince возвращает попытки владельца, измененные после since.
func (a *AttemptAdapter) ChangesSince(ctx context.Context, ownerID string, since time.Time) ([]*models.ChangeSet, error) {
	query := `
		SELECT attempt_id, owner_id, quiz_id, responses, score,
		       total_questions, correct_answers, time_taken_seconds,
		       created_at, updated_at
		FROM quiz_attempts
		WHERE owner_id = ? AND updated_at > ?
		ORDER BY updated_at
	`

	rows, err := a.storage.db.QueryContext(ctx, query, ownerID, timeToMillis(since))
	if err != nil {
		return nil, fmt.Errorf("failed to read attempt changes: %w", err)
	}
	defer rows.Close()

	var changes []*models.ChangeSet
	for rows.Next() {
		payload, recordID, updatedAt, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}

		changes = append(changes, &models.ChangeSet{
			UpdatedAt:  updatedAt,
			EntityType: models.EntityAttempts,
			RecordID:   recordID,
			OwnerID:    ownerID,
			Operation:  models.OpUpdate,
			Payload:    payload,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempt rows: %w", err)
	}

	return changes, nil
}

// Apply применяет изменение попытки (upsert по attempt_id).
func (a *AttemptAdapter) Apply(ctx context.Context, change *models.ChangeSet) error {
	if change.Operation == models.OpDelete {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM quiz_attempts WHERE attempt_id = ? AND owner_id = ?`,
			change.RecordID, change.OwnerID); err != nil {
			return fmt.Errorf("failed to delete attempt: %w", err)
		}
		return nil
	}

	// DO UPDATE ограничен владельцем строки: чужой attempt_id
	// не перезаписывается
	query := `
		INSERT INTO quiz_attempts (attempt_id, owner_id, quiz_id, responses,
			score, total_questions, correct_answers, time_taken_seconds,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (attempt_id) DO UPDATE SET
			quiz_id = excluded.quiz_id,
			responses = excluded.responses,
			score = excluded.score,
			total_questions = excluded.total_questions,
			correct_answers = excluded.correct_answers,
			time_taken_seconds = excluded.time_taken_seconds,
			updated_at = excluded.updated_at
		WHERE quiz_attempts.owner_id = excluded.owner_id
	`

	score := payloadFloat(change.Payload, "score")

	res, err := a.storage.db.ExecContext(ctx, query,
		change.RecordID,
		change.OwnerID,
		payloadString(change.Payload, "quiz_id"),
		payloadJSON(change.Payload, "responses", "[]"),
		score.Float64,
		payloadInt(change.Payload, "total_questions"),
		payloadInt(change.Payload, "correct_answers"),
		payloadInt(change.Payload, "time_taken_seconds"),
		createdAtMillis(change.Payload, change.UpdatedAt),
		timeToMillis(change.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert attempt: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to upsert attempt: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("attempt record %s: %w", change.RecordID, storage.ErrOwnerMismatch)
	}

	return nil
}

// ExportAll возвращает все попытки владельца.
func (a *AttemptAdapter) ExportAll(ctx context.Context, ownerID string) ([]map[string]any, error) {
	query := `
		SELECT attempt_id, owner_id, quiz_id, responses, score,
		       total_questions, correct_answers, time_taken_seconds,
		       created_at, updated_at
		FROM quiz_attempts
		WHERE owner_id = ?
		ORDER BY created_at
	`

	rows, err := a.storage.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to export attempts: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		payload, _, _, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt row: %w", err)
		}
		records = append(records, payload)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attempt rows: %w", err)
	}

	return records, nil
}

// ImportAll загружает попытки из snapshot.
func (a *AttemptAdapter) ImportAll(ctx context.Context, ownerID string, records []map[string]any, strategy registry.ImportStrategy) error {
	if strategy == registry.ImportReplace {
		if _, err := a.storage.db.ExecContext(ctx,
			`DELETE FROM quiz_attempts WHERE owner_id = ?`, ownerID); err != nil {
			return fmt.Errorf("failed to clear attempts: %w", err)
		}
	}

	for _, record := range records {
		recordID, ok := a.RecordKey(record)
		if !ok {
			return fmt.Errorf("attempt record without attempt_id")
		}

		change := &models.ChangeSet{
			UpdatedAt:  importTime(record),
			EntityType: models.EntityAttempts,
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

// RecordKey извлекает attempt_id из payload.
func (a *AttemptAdapter) RecordKey(payload map[string]any) (string, bool) {
	id := payloadString(payload, "attempt_id")
	return id, id != ""
}

func scanAttempt(row rowScanner) (map[string]any, string, time.Time, error) {
	var (
		attemptID        string
		ownerID          string
		quizID           string
		responses        string
		score            float64
		totalQuestions   int64
		correctAnswers   int64
		timeTakenSeconds int64
		createdAt        int64
		updatedAt        int64
	)

	if err := row.Scan(&attemptID, &ownerID, &quizID, &responses, &score,
		&totalQuestions, &correctAnswers, &timeTakenSeconds, &createdAt, &updatedAt); err != nil {
		return nil, "", time.Time{}, err
	}

	payload := map[string]any{
		"attempt_id":         attemptID,
		"owner_id":           ownerID,
		"quiz_id":            quizID,
		"responses":          columnJSON(responses),
		"score":              score,
		"total_questions":    totalQuestions,
		"correct_answers":    correctAnswers,
		"time_taken_seconds": timeTakenSeconds,
		"created_at":         millisToTime(createdAt).Format(time.RFC3339Nano),
		"updated_at":         millisToTime(updatedAt).Format(time.RFC3339Nano),
	}

	return payload, attemptID, millisToTime(updatedAt), nil
}
