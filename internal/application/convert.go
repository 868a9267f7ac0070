package application

import (
	"log/slog"

	"github.com/example/tuition-scheduler/internal/persistence"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

func toPersistenceStudent(userID string, student profile.Student) persistence.Student {
	stored := persistence.Student{
		ID:         student.ID,
		UserID:     userID,
		FirstName:  student.FirstName,
		LastName:   student.LastName,
		Grade:      student.Grade,
		Subjects:   make([]persistence.Subject, 0, len(student.Subjects)),
		Activities: toPersistenceActivities(student.ID, student.Availability),
	}
	for i, subject := range student.Subjects {
		shared := make([]string, len(subject.SharedWith))
		copy(shared, subject.SharedWith)
		stored.Subjects = append(stored.Subjects, persistence.Subject{
			ID:             subject.ID,
			StudentID:      student.ID,
			Name:           subject.Name,
			LessonsPerWeek: subject.LessonsPerWeek,
			SharedWith:     shared,
			Position:       i,
		})
	}
	return stored
}

func toPersistenceActivities(studentID string, week timetable.Week) []persistence.Activity {
	activities := make([]persistence.Activity, 0, week.Len())
	for _, d := range timetable.Days() {
		for i, a := range week[d] {
			activities = append(activities, persistence.Activity{
				ID:          a.ID,
				StudentID:   studentID,
				Day:         int(d),
				Type:        string(a.Type),
				StartMinute: a.Start.Minutes(),
				EndMinute:   a.End.Minutes(),
				Position:    i,
			})
		}
	}
	return activities
}

// toProfileStudent rebuilds the domain student. Stored rows that no longer describe a valid
// activity are skipped and logged.
func toProfileStudent(stored persistence.Student, logger *slog.Logger) profile.Student {
	student := profile.Student{
		ID:        stored.ID,
		FirstName: stored.FirstName,
		LastName:  stored.LastName,
		Grade:     stored.Grade,
		Subjects:  make([]profile.Subject, 0, len(stored.Subjects)),
	}
	for _, subject := range stored.Subjects {
		shared := make([]string, len(subject.SharedWith))
		copy(shared, subject.SharedWith)
		student.Subjects = append(student.Subjects, profile.Subject{
			ID:             subject.ID,
			Name:           subject.Name,
			LessonsPerWeek: subject.LessonsPerWeek,
			SharedWith:     shared,
		})
	}
	for _, row := range stored.Activities {
		activity, err := timetable.NewActivity(
			timetable.Day(row.Day),
			timetable.ActivityType(row.Type),
			timetable.Clock(row.StartMinute),
			timetable.Clock(row.EndMinute),
		)
		if err != nil {
			if logger != nil {
				logger.Warn("skipping stored activity", "student_id", stored.ID, "activity_id", row.ID, "error", err)
			}
			continue
		}
		activity.ID = row.ID
		student.Availability[activity.Day] = append(student.Availability[activity.Day], activity)
	}
	return student
}

func toRawLesson(t persistence.Tuition) timetable.RawLesson {
	return timetable.RawLesson{
		ID:        t.ID,
		SubjectID: t.SubjectID,
		Day:       timetable.Day(t.Day).String(),
		Start:     timetable.Clock(t.StartMinute).String(),
		End:       timetable.Clock(t.EndMinute).String(),
		Subject:   t.Subject,
	}
}
