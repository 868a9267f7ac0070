package apiclient

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/example/tuition-scheduler/internal/logging"
	"github.com/example/tuition-scheduler/internal/profile"
	"github.com/example/tuition-scheduler/internal/timetable"
)

// maxTimetableFetches bounds the concurrent timetable requests of LoadDayView.
const maxTimetableFetches = 4

// DayView is one student's day ready for rendering.
type DayView struct {
	Student profile.Student
	Day     timetable.Day
	Lessons []timetable.Lesson
	Bubbles []timetable.Bubble
}

// LoadDayView fetches a student and the timetables of all their subjects, then lays out
// the given day. Malformed timetable entries are skipped and logged.
func (c *Client) LoadDayView(ctx context.Context, studentID string, day timetable.Day, grid timetable.Grid) (DayView, error) {
	if !day.Valid() {
		return DayView{}, fmt.Errorf("%w: %d", timetable.ErrInvalidDay, int(day))
	}
	if err := grid.Validate(); err != nil {
		return DayView{}, err
	}

	student, err := c.FetchStudent(ctx, studentID)
	if err != nil {
		return DayView{}, err
	}

	logger := logging.Resolve(ctx, c.logger).With("student_id", studentID, "day", day.String())

	results := make([][]timetable.Lesson, len(student.Subjects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxTimetableFetches)
	for i, subject := range student.Subjects {
		if subject.ID == "" {
			continue
		}
		g.Go(func() error {
			raw, err := c.FetchTimetable(gctx, subject.ID)
			if err != nil {
				return fmt.Errorf("timetable of subject %s: %w", subject.ID, err)
			}
			for j := range raw {
				if raw[j].Subject == "" {
					raw[j].Subject = subject.Name
				}
			}
			lessons, _ := timetable.NormalizeTimetable(raw, logger)
			results[i] = lessons
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return DayView{}, err
	}

	var lessons []timetable.Lesson
	for _, subjectLessons := range results {
		lessons = append(lessons, subjectLessons...)
	}

	blocks := timetable.MergeDay(student.Availability, day, lessons)
	return DayView{
		Student: student,
		Day:     day,
		Lessons: timetable.LessonsOn(day, lessons),
		Bubbles: grid.LayoutDay(blocks, logger),
	}, nil
}
