package timetable

import (
	"errors"
	"fmt"
	"strings"
)

// ActivityType classifies a block of time on the grid.
type ActivityType string

const (
	School  ActivityType = "school"
	Sleep   ActivityType = "sleep"
	Sport   ActivityType = "sport"
	Tuition ActivityType = "tuition"
	Other   ActivityType = "other"
)

// ErrInvalidActivityType is returned for unknown activity types or when a tuition is
// offered where only availability activities are accepted.
var ErrInvalidActivityType = errors.New("timetable: invalid activity type")

var activityTypes = []ActivityType{School, Sleep, Sport, Tuition, Other}

// ActivityTypes returns every known type.
func ActivityTypes() []ActivityType {
	out := make([]ActivityType, len(activityTypes))
	copy(out, activityTypes)
	return out
}

// ParseActivityType resolves a type name, ignoring case and surrounding whitespace.
func ParseActivityType(name string) (ActivityType, error) {
	key := ActivityType(strings.ToLower(strings.TrimSpace(name)))
	for _, t := range activityTypes {
		if t == key {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidActivityType, name)
}

// Valid reports whether t is a known type.
func (t ActivityType) Valid() bool {
	for _, candidate := range activityTypes {
		if candidate == t {
			return true
		}
	}
	return false
}

// Editable reports whether the type belongs to user-maintained availability.
// Tuitions come from scheduled lessons and are read-only.
func (t ActivityType) Editable() bool {
	return t.Valid() && t != Tuition
}

// BulkOnly reports whether the type may only be changed through a week-wide "set all".
func (t ActivityType) BulkOnly() bool {
	return t == School || t == Sleep
}

// Label returns the capitalized display label.
func (t ActivityType) Label() string {
	if t == "" {
		return ""
	}
	s := string(t)
	return strings.ToUpper(s[:1]) + s[1:]
}

// Block is a positioned item of a day: either an availability Activity or a scheduled
// Lesson. The interface is sealed to those two variants.
type Block interface {
	Kind() ActivityType
	Interval() Span
	On() Day
	block()
}

// Activity is an editable availability entry (school, sleep, sport or other).
// ID is only populated for activities fetched from the backend.
type Activity struct {
	ID   string       `json:"id,omitempty"`
	Type ActivityType `json:"type"`
	Day  Day          `json:"day"`
	Span
}

// NewActivity validates its arguments and returns an availability activity.
func NewActivity(day Day, t ActivityType, start, end Clock) (Activity, error) {
	if !day.Valid() {
		return Activity{}, fmt.Errorf("%w: %d", ErrInvalidDay, int(day))
	}
	if !t.Editable() {
		return Activity{}, fmt.Errorf("%w: %q is not an availability type", ErrInvalidActivityType, t)
	}
	span, err := NewSpan(start, end)
	if err != nil {
		return Activity{}, err
	}
	return Activity{Type: t, Day: day, Span: span}, nil
}

func (a Activity) Kind() ActivityType { return a.Type }
func (a Activity) Interval() Span     { return a.Span }
func (a Activity) On() Day            { return a.Day }
func (Activity) block()               {}

// Lesson is a scheduled tuition occurrence. It is shown on the grid but never edited there.
type Lesson struct {
	ID        string `json:"id,omitempty"`
	SubjectID string `json:"subject_id,omitempty"`
	Subject   string `json:"subject"`
	Day       Day    `json:"day"`
	Span
}

func (l Lesson) Kind() ActivityType { return Tuition }
func (l Lesson) Interval() Span     { return l.Span }
func (l Lesson) On() Day            { return l.Day }
func (Lesson) block()               {}

// Policy lists the days on which an activity type is never placed by a week-wide "set all".
type Policy struct {
	excluded map[ActivityType]map[Day]struct{}
}

// DefaultWeekend holds the two non-school days of the Saturday-first week.
var DefaultWeekend = []Day{Friday, Saturday}

// DefaultPolicy excludes School on DefaultWeekend.
func DefaultPolicy() Policy {
	return NewPolicy(map[ActivityType][]Day{School: DefaultWeekend})
}

// NewPolicy builds a policy from per-type exclusions.
func NewPolicy(exclusions map[ActivityType][]Day) Policy {
	p := Policy{excluded: make(map[ActivityType]map[Day]struct{}, len(exclusions))}
	for t, days := range exclusions {
		set := make(map[Day]struct{}, len(days))
		for _, d := range days {
			set[d] = struct{}{}
		}
		p.excluded[t] = set
	}
	return p
}

// Allows reports whether type t may be placed on day d.
func (p Policy) Allows(t ActivityType, d Day) bool {
	days, ok := p.excluded[t]
	if !ok {
		return true
	}
	_, excluded := days[d]
	return !excluded
}

// Excluded returns the days on which t is not placed, in week order.
func (p Policy) Excluded(t ActivityType) []Day {
	var out []Day
	for _, d := range Days() {
		if !p.Allows(t, d) {
			out = append(out, d)
		}
	}
	return out
}
