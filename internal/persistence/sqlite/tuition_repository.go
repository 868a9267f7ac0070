package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/example/tuition-scheduler/internal/persistence"
)

// TuitionRepository implements persistence.TuitionRepository using SQLite.
type TuitionRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
}

// NewTuitionRepository creates a new SQLite tuition repository.
func NewTuitionRepository(pool *ConnectionPool) *TuitionRepository {
	return &TuitionRepository{pool: pool, retry: DefaultRetryConfig()}
}

var _ persistence.TuitionRepository = (*TuitionRepository)(nil)

// CreateTuition inserts a scheduled lesson. The subject must exist.
func (r *TuitionRepository) CreateTuition(ctx context.Context, tuition persistence.Tuition) error {
	if tuition.ID == "" || tuition.SubjectID == "" {
		return persistence.ErrConstraintViolation
	}
	if tuition.CreatedAt.IsZero() {
		tuition.CreatedAt = time.Now().UTC()
	}
	return r.retry.WithRetry(ctx, func() error {
		_, err := r.pool.DB().ExecContext(ctx, `
			INSERT INTO tuitions (id, subject_id, day, start_minute, end_minute, created_at)
			VALUES (?, ?, ?, ?, ?, ?)`,
			tuition.ID,
			tuition.SubjectID,
			tuition.Day,
			tuition.StartMinute,
			tuition.EndMinute,
			formatTime(tuition.CreatedAt),
		)
		return mapError(err)
	})
}

// ListTuitionsForSubject returns the subject's lessons in week order. An unknown subject
// yields ErrNotFound.
func (r *TuitionRepository) ListTuitionsForSubject(ctx context.Context, subjectID string) ([]persistence.Tuition, error) {
	db := r.pool.DB()

	var name string
	if err := db.QueryRowContext(ctx, `SELECT name FROM subjects WHERE id = ?`, subjectID).Scan(&name); err != nil {
		return nil, mapError(err)
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, day, start_minute, end_minute, created_at
		FROM tuitions
		WHERE subject_id = ?
		ORDER BY day, start_minute, id`, subjectID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	tuitions := []persistence.Tuition{}
	for rows.Next() {
		t := persistence.Tuition{SubjectID: subjectID, Subject: name}
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Day, &t.StartMinute, &t.EndMinute, &createdAt); err != nil {
			return nil, mapError(err)
		}
		t.CreatedAt = parseTime(createdAt)
		tuitions = append(tuitions, t)
	}
	return tuitions, mapError(rows.Err())
}

// DeleteTuition removes a scheduled lesson.
func (r *TuitionRepository) DeleteTuition(ctx context.Context, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM tuitions WHERE id = ?`, id)
		if err != nil {
			return mapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if affected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// SubjectOfTuition returns the subject id of a tuition.
func (r *TuitionRepository) SubjectOfTuition(ctx context.Context, id string) (string, error) {
	var subjectID string
	if err := r.pool.DB().QueryRowContext(ctx, `SELECT subject_id FROM tuitions WHERE id = ?`, id).Scan(&subjectID); err != nil {
		return "", mapError(err)
	}
	return subjectID, nil
}
