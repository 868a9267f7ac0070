package persistence

import "context"

// StudentRepository stores students together with their subjects and availability.
type StudentRepository interface {
	// UpsertStudent creates the student or replaces the stored one with the same id.
	UpsertStudent(ctx context.Context, student Student) error
	GetStudent(ctx context.Context, userID, id string) (Student, error)
	ListStudents(ctx context.Context, userID string) ([]Student, error)
	DeleteStudent(ctx context.Context, userID, id string) error
	// ReplaceActivities swaps the whole availability of a student in one transaction.
	ReplaceActivities(ctx context.Context, userID, studentID string, activities []Activity) error
}

// TuitionRepository stores scheduled lessons.
type TuitionRepository interface {
	CreateTuition(ctx context.Context, tuition Tuition) error
	ListTuitionsForSubject(ctx context.Context, subjectID string) ([]Tuition, error)
	DeleteTuition(ctx context.Context, id string) error
	SubjectOfTuition(ctx context.Context, id string) (string, error)
}
