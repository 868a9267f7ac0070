package application

import (
	"context"
	"fmt"
	"sort"

	"github.com/example/tuition-scheduler/internal/persistence"
)

type studentRepoStub struct {
	students map[string]persistence.Student

	upsertErr  error
	getErr     error
	listErr    error
	deleteErr  error
	replaceErr error

	upserted []persistence.Student
	replaced []persistence.Activity
}

func newStudentRepoStub() *studentRepoStub {
	return &studentRepoStub{students: make(map[string]persistence.Student)}
}

func (r *studentRepoStub) UpsertStudent(ctx context.Context, student persistence.Student) error {
	if r.upsertErr != nil {
		return r.upsertErr
	}
	if existing, ok := r.students[student.ID]; ok && existing.UserID != student.UserID {
		return persistence.ErrNotFound
	}
	r.upserted = append(r.upserted, student)
	r.students[student.ID] = student
	return nil
}

func (r *studentRepoStub) GetStudent(ctx context.Context, userID, id string) (persistence.Student, error) {
	if r.getErr != nil {
		return persistence.Student{}, r.getErr
	}
	student, ok := r.students[id]
	if !ok || student.UserID != userID {
		return persistence.Student{}, persistence.ErrNotFound
	}
	return student, nil
}

func (r *studentRepoStub) ListStudents(ctx context.Context, userID string) ([]persistence.Student, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []persistence.Student
	for _, student := range r.students {
		if student.UserID == userID {
			out = append(out, student)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (r *studentRepoStub) DeleteStudent(ctx context.Context, userID, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	student, ok := r.students[id]
	if !ok || student.UserID != userID {
		return persistence.ErrNotFound
	}
	delete(r.students, id)
	return nil
}

func (r *studentRepoStub) ReplaceActivities(ctx context.Context, userID, studentID string, activities []persistence.Activity) error {
	if r.replaceErr != nil {
		return r.replaceErr
	}
	student, ok := r.students[studentID]
	if !ok || student.UserID != userID {
		return persistence.ErrNotFound
	}
	r.replaced = activities
	student.Activities = activities
	r.students[studentID] = student
	return nil
}

type tuitionRepoStub struct {
	subjects map[string]string
	tuitions []persistence.Tuition

	createErr error
	listErr   error
	listCalls int
}

func newTuitionRepoStub(subjects map[string]string) *tuitionRepoStub {
	return &tuitionRepoStub{subjects: subjects}
}

func (r *tuitionRepoStub) CreateTuition(ctx context.Context, tuition persistence.Tuition) error {
	if r.createErr != nil {
		return r.createErr
	}
	if _, ok := r.subjects[tuition.SubjectID]; !ok {
		return fmt.Errorf("%w: FOREIGN KEY constraint failed", persistence.ErrConstraintViolation)
	}
	r.tuitions = append(r.tuitions, tuition)
	return nil
}

func (r *tuitionRepoStub) ListTuitionsForSubject(ctx context.Context, subjectID string) ([]persistence.Tuition, error) {
	r.listCalls++
	if r.listErr != nil {
		return nil, r.listErr
	}
	name, ok := r.subjects[subjectID]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	out := []persistence.Tuition{}
	for _, t := range r.tuitions {
		if t.SubjectID == subjectID {
			t.Subject = name
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *tuitionRepoStub) DeleteTuition(ctx context.Context, id string) error {
	for i, t := range r.tuitions {
		if t.ID == id {
			r.tuitions = append(r.tuitions[:i], r.tuitions[i+1:]...)
			return nil
		}
	}
	return persistence.ErrNotFound
}

func (r *tuitionRepoStub) SubjectOfTuition(ctx context.Context, id string) (string, error) {
	for _, t := range r.tuitions {
		if t.ID == id {
			return t.SubjectID, nil
		}
	}
	return "", persistence.ErrNotFound
}

func sequence(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
