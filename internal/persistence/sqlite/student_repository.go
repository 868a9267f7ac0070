package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/tuition-scheduler/internal/persistence"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// StudentRepository implements persistence.StudentRepository using SQLite.
type StudentRepository struct {
	pool  *ConnectionPool
	retry RetryConfig
}

// NewStudentRepository creates a new SQLite student repository.
func NewStudentRepository(pool *ConnectionPool) *StudentRepository {
	return &StudentRepository{pool: pool, retry: DefaultRetryConfig()}
}

var _ persistence.StudentRepository = (*StudentRepository)(nil)

// UpsertStudent inserts the student or updates the stored one. Subjects are matched by id
// so tuitions attached to a kept subject survive; the availability is replaced.
func (r *StudentRepository) UpsertStudent(ctx context.Context, student persistence.Student) error {
	if student.ID == "" || student.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	if student.UpdatedAt.IsZero() {
		student.UpdatedAt = now
	}

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			var owner string
			err := tx.QueryRowContext(ctx, `SELECT user_id FROM students WHERE id = ?`, student.ID).Scan(&owner)
			switch {
			case errors.Is(err, sql.ErrNoRows):
			case err != nil:
				return mapError(err)
			case owner != student.UserID:
				return persistence.ErrNotFound
			}

			_, err = tx.ExecContext(ctx, `
				INSERT INTO students (id, user_id, first_name, last_name, grade, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
				ON CONFLICT(id) DO UPDATE SET
					first_name = excluded.first_name,
					last_name = excluded.last_name,
					grade = excluded.grade,
					updated_at = excluded.updated_at`,
				student.ID,
				student.UserID,
				student.FirstName,
				student.LastName,
				student.Grade,
				formatTime(student.CreatedAt),
				formatTime(student.UpdatedAt),
			)
			if err != nil {
				return mapError(err)
			}

			if err := replaceSubjectsTx(ctx, tx, student.ID, student.Subjects); err != nil {
				return err
			}
			return replaceActivitiesTx(ctx, tx, student.ID, student.Activities)
		})
	})
}

// GetStudent loads a student owned by userID.
func (r *StudentRepository) GetStudent(ctx context.Context, userID, id string) (persistence.Student, error) {
	if id == "" {
		return persistence.Student{}, persistence.ErrNotFound
	}
	db := r.pool.DB()
	row := db.QueryRowContext(ctx, `
		SELECT id, user_id, first_name, last_name, grade, created_at, updated_at
		FROM students
		WHERE id = ? AND user_id = ?`, id, userID)

	student, err := scanStudent(row)
	if err != nil {
		return persistence.Student{}, err
	}
	if err := loadChildren(ctx, db, &student); err != nil {
		return persistence.Student{}, err
	}
	return student, nil
}

// ListStudents returns the user's students ordered by name.
func (r *StudentRepository) ListStudents(ctx context.Context, userID string) ([]persistence.Student, error) {
	db := r.pool.DB()
	rows, err := db.QueryContext(ctx, `
		SELECT id, user_id, first_name, last_name, grade, created_at, updated_at
		FROM students
		WHERE user_id = ?
		ORDER BY last_name COLLATE NOCASE, first_name COLLATE NOCASE, id`, userID)
	if err != nil {
		return nil, mapError(err)
	}

	var students []persistence.Student
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, mapError(err)
	}
	rows.Close()

	for i := range students {
		if err := loadChildren(ctx, db, &students[i]); err != nil {
			return nil, err
		}
	}
	return students, nil
}

// DeleteStudent removes a student and, through cascades, its subjects, activities and tuitions.
func (r *StudentRepository) DeleteStudent(ctx context.Context, userID, id string) error {
	return r.retry.WithRetry(ctx, func() error {
		result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM students WHERE id = ? AND user_id = ?`, id, userID)
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

// ReplaceActivities swaps a student's availability in a single transaction.
func (r *StudentRepository) ReplaceActivities(ctx context.Context, userID, studentID string, activities []persistence.Activity) error {
	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			result, err := tx.ExecContext(ctx,
				`UPDATE students SET updated_at = ? WHERE id = ? AND user_id = ?`,
				formatTime(time.Now().UTC()), studentID, userID,
			)
			if err != nil {
				return mapError(err)
			}
			if affected, _ := result.RowsAffected(); affected == 0 {
				return persistence.ErrNotFound
			}
			return replaceActivitiesTx(ctx, tx, studentID, activities)
		})
	})
}

func replaceSubjectsTx(ctx context.Context, tx *sql.Tx, studentID string, subjects []persistence.Subject) error {
	keep := make([]any, 0, len(subjects)+1)
	keep = append(keep, studentID)
	for _, s := range subjects {
		if s.ID == "" {
			return persistence.ErrConstraintViolation
		}
		keep = append(keep, s.ID)
	}

	query := `DELETE FROM subjects WHERE student_id = ?`
	if len(subjects) > 0 {
		query += ` AND id NOT IN (` + placeholders(len(subjects)) + `)`
	}
	if _, err := tx.ExecContext(ctx, query, keep...); err != nil {
		return mapError(err)
	}

	for position, s := range subjects {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO subjects (id, student_id, name, lessons_per_week, position)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				name = excluded.name,
				lessons_per_week = excluded.lessons_per_week,
				position = excluded.position
			WHERE subjects.student_id = excluded.student_id`,
			s.ID, studentID, s.Name, s.LessonsPerWeek, position,
		)
		if err != nil {
			return mapError(err)
		}
		if affected, _ := result.RowsAffected(); affected == 0 {
			return fmt.Errorf("%w: subject %s belongs to another student", persistence.ErrDuplicate, s.ID)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM subject_shares WHERE subject_id = ?`, s.ID); err != nil {
			return mapError(err)
		}
		for i, other := range s.SharedWith {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO subject_shares (subject_id, student_id, position) VALUES (?, ?, ?)`,
				s.ID, other, i,
			); err != nil {
				return mapError(err)
			}
		}
	}
	return nil
}

func replaceActivitiesTx(ctx context.Context, tx *sql.Tx, studentID string, activities []persistence.Activity) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM activities WHERE student_id = ?`, studentID); err != nil {
		return mapError(err)
	}
	for _, a := range activities {
		if a.ID == "" {
			return persistence.ErrConstraintViolation
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO activities (id, student_id, day, type, start_minute, end_minute, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			a.ID, studentID, a.Day, a.Type, a.StartMinute, a.EndMinute, a.Position,
		); err != nil {
			return mapError(err)
		}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanStudent(row rowScanner) (persistence.Student, error) {
	var (
		student              persistence.Student
		createdAt, updatedAt string
	)
	if err := row.Scan(&student.ID, &student.UserID, &student.FirstName, &student.LastName, &student.Grade, &createdAt, &updatedAt); err != nil {
		return persistence.Student{}, mapError(err)
	}
	student.CreatedAt = parseTime(createdAt)
	student.UpdatedAt = parseTime(updatedAt)
	return student, nil
}

func loadChildren(ctx context.Context, q queryer, student *persistence.Student) error {
	subjects, err := loadSubjects(ctx, q, student.ID)
	if err != nil {
		return err
	}
	activities, err := loadActivities(ctx, q, student.ID)
	if err != nil {
		return err
	}
	student.Subjects = subjects
	student.Activities = activities
	return nil
}

func loadSubjects(ctx context.Context, q queryer, studentID string) ([]persistence.Subject, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT s.id, s.name, s.lessons_per_week, s.position, COALESCE(sh.student_id, '')
		FROM subjects s
		LEFT JOIN subject_shares sh ON sh.subject_id = s.id
		WHERE s.student_id = ?
		ORDER BY s.position, sh.position`, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	subjects := []persistence.Subject{}
	index := make(map[string]int)
	for rows.Next() {
		var (
			subject persistence.Subject
			shared  string
		)
		if err := rows.Scan(&subject.ID, &subject.Name, &subject.LessonsPerWeek, &subject.Position, &shared); err != nil {
			return nil, mapError(err)
		}
		i, ok := index[subject.ID]
		if !ok {
			subject.StudentID = studentID
			subject.SharedWith = []string{}
			subjects = append(subjects, subject)
			i = len(subjects) - 1
			index[subject.ID] = i
		}
		if shared != "" {
			subjects[i].SharedWith = append(subjects[i].SharedWith, shared)
		}
	}
	return subjects, mapError(rows.Err())
}

func loadActivities(ctx context.Context, q queryer, studentID string) ([]persistence.Activity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, day, type, start_minute, end_minute, position
		FROM activities
		WHERE student_id = ?
		ORDER BY day, position`, studentID)
	if err != nil {
		return nil, mapError(err)
	}
	defer rows.Close()

	var activities []persistence.Activity
	for rows.Next() {
		a := persistence.Activity{StudentID: studentID}
		if err := rows.Scan(&a.ID, &a.Day, &a.Type, &a.StartMinute, &a.EndMinute, &a.Position); err != nil {
			return nil, mapError(err)
		}
		activities = append(activities, a)
	}
	return activities, mapError(rows.Err())
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}
	}
	return t
}
