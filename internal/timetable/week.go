package timetable

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

var errMissingBounds = errors.New("missing start or end")

// Week maps each day to its availability activities in insertion order.
type Week [DaysInWeek][]Activity

// RawActivity is an availability fragment as exchanged with the backend, keyed by day name
// in the surrounding map.
type RawActivity struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// RawLesson is a scheduled tuition occurrence as returned by the timetable endpoint.
type RawLesson struct {
	ID        string `json:"id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Day       string `json:"day"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Subject   string `json:"subject"`
}

// Activities returns a copy of the activities recorded for d.
func (w Week) Activities(d Day) []Activity {
	if !d.Valid() {
		return nil
	}
	return cloneActivities(w[d])
}

// Clone returns a deep copy of the week.
func (w Week) Clone() Week {
	var out Week
	for i := range w {
		out[i] = cloneActivities(w[i])
	}
	return out
}

// All flattens the week in day order.
func (w Week) All() []Activity {
	var out []Activity
	for i := range w {
		out = append(out, w[i]...)
	}
	return out
}

// Count returns how many activities of type t are recorded on d.
func (w Week) Count(d Day, t ActivityType) int {
	if !d.Valid() {
		return 0
	}
	n := 0
	for _, a := range w[d] {
		if a.Type == t {
			n++
		}
	}
	return n
}

// Len returns the total number of activities in the week.
func (w Week) Len() int {
	n := 0
	for i := range w {
		n += len(w[i])
	}
	return n
}

// Raw converts the week into the day-keyed wire representation.
func (w Week) Raw() map[string][]RawActivity {
	out := make(map[string][]RawActivity, DaysInWeek)
	for _, d := range Days() {
		entries := make([]RawActivity, 0, len(w[d]))
		for _, a := range w[d] {
			entries = append(entries, RawActivity{
				ID:    a.ID,
				Type:  string(a.Type),
				Start: a.Start.String(),
				End:   a.End.String(),
			})
		}
		out[d.String()] = entries
	}
	return out
}

// MarshalJSON encodes the week as an object keyed by lowercase day name.
func (w Week) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.Raw())
}

// UnmarshalJSON decodes the day-keyed representation. Unlike NormalizeAvailability it
// rejects malformed entries.
func (w *Week) UnmarshalJSON(data []byte) error {
	var raw map[string][]RawActivity
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	week, problems := NormalizeAvailability(raw, nil)
	if len(problems) > 0 {
		return problems[0]
	}
	*w = week
	return nil
}

// NormalizeAvailability converts day-keyed raw fragments into a Week, tagging every activity
// with its day. Malformed fragments are skipped, logged and returned; the remainder of the
// data is still processed.
func NormalizeAvailability(raw map[string][]RawActivity, logger *slog.Logger) (Week, []error) {
	var (
		week     Week
		problems []error
	)
	report := func(err *MalformedDataError) {
		problems = append(problems, err)
		if logger != nil {
			logger.Warn("skipping malformed availability entry",
				"day", err.Day, "index", err.Index, "reason", err.Reason)
		}
	}

	// Walk in week order so results do not depend on map iteration.
	seen := make(map[string]struct{}, len(raw))
	for _, d := range Days() {
		for key, fragments := range raw {
			if strings.ToLower(strings.TrimSpace(key)) != d.String() {
				continue
			}
			seen[key] = struct{}{}
			for i, fragment := range fragments {
				activity, err := fragmentToActivity(d, fragment)
				if err != nil {
					report(&MalformedDataError{Day: key, Index: i, Reason: err.Error()})
					continue
				}
				week[d] = append(week[d], activity)
			}
		}
	}
	for key, fragments := range raw {
		if _, ok := seen[key]; ok {
			continue
		}
		report(&MalformedDataError{Day: key, Index: -1, Reason: fmt.Sprintf("unknown day with %d entries", len(fragments))})
	}

	return week, problems
}

func fragmentToActivity(d Day, fragment RawActivity) (Activity, error) {
	if strings.TrimSpace(fragment.Start) == "" || strings.TrimSpace(fragment.End) == "" {
		return Activity{}, errMissingBounds
	}
	t, err := ParseActivityType(fragment.Type)
	if err != nil {
		return Activity{}, err
	}
	span, err := ParseSpan(fragment.Start, fragment.End)
	if err != nil {
		return Activity{}, err
	}
	activity, err := NewActivity(d, t, span.Start, span.End)
	if err != nil {
		return Activity{}, err
	}
	activity.ID = fragment.ID
	return activity, nil
}

// NormalizeTimetable converts raw tuition occurrences into lessons, skipping and reporting
// malformed entries.
func NormalizeTimetable(raw []RawLesson, logger *slog.Logger) ([]Lesson, []error) {
	var (
		lessons  []Lesson
		problems []error
	)
	for i, entry := range raw {
		lesson, err := rawToLesson(entry)
		if err != nil {
			problem := &MalformedDataError{Day: entry.Day, Index: i, Reason: err.Error()}
			problems = append(problems, problem)
			if logger != nil {
				logger.Warn("skipping malformed timetable entry",
					"day", entry.Day, "index", i, "subject", entry.Subject, "reason", problem.Reason)
			}
			continue
		}
		lessons = append(lessons, lesson)
	}
	return lessons, problems
}

func rawToLesson(entry RawLesson) (Lesson, error) {
	d, err := ParseDay(entry.Day)
	if err != nil {
		return Lesson{}, err
	}
	if strings.TrimSpace(entry.Start) == "" || strings.TrimSpace(entry.End) == "" {
		return Lesson{}, errMissingBounds
	}
	span, err := ParseSpan(entry.Start, entry.End)
	if err != nil {
		return Lesson{}, err
	}
	return Lesson{
		ID:        entry.ID,
		SubjectID: entry.SubjectID,
		Subject:   entry.Subject,
		Day:       d,
		Span:      span,
	}, nil
}

// LessonsOn filters lessons to those held on d, preserving order.
func LessonsOn(d Day, lessons []Lesson) []Lesson {
	var out []Lesson
	for _, l := range lessons {
		if l.Day == d {
			out = append(out, l)
		}
	}
	return out
}

// MergeDay returns the blocks displayed for d: availability first, then that day's lessons.
func MergeDay(w Week, d Day, lessons []Lesson) []Block {
	if !d.Valid() {
		return nil
	}
	blocks := make([]Block, 0, len(w[d])+len(lessons))
	for _, a := range w[d] {
		blocks = append(blocks, a)
	}
	for _, l := range LessonsOn(d, lessons) {
		blocks = append(blocks, l)
	}
	return blocks
}

func cloneActivities(in []Activity) []Activity {
	if in == nil {
		return nil
	}
	out := make([]Activity, len(in))
	copy(out, in)
	return out
}
