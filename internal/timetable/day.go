package timetable

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Day identifies a weekday in the Saturday-first week used throughout the timetable.
type Day int

const (
	Saturday Day = iota
	Sunday
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
)

// DaysInWeek is the number of entries in a Week.
const DaysInWeek = 7

// ErrInvalidDay is returned when a day index or name is not one of the seven weekdays.
var ErrInvalidDay = errors.New("timetable: invalid day")

// dayNames is the single ordering table for the week; index 0 is Saturday.
var dayNames = [DaysInWeek]string{
	"saturday",
	"sunday",
	"monday",
	"tuesday",
	"wednesday",
	"thursday",
	"friday",
}

var dayWeekdays = [DaysInWeek]time.Weekday{
	time.Saturday,
	time.Sunday,
	time.Monday,
	time.Tuesday,
	time.Wednesday,
	time.Thursday,
	time.Friday,
}

// Days returns the seven days in week order.
func Days() []Day {
	days := make([]Day, 0, DaysInWeek)
	for i := range DaysInWeek {
		days = append(days, Day(i))
	}
	return days
}

// Valid reports whether d is one of the seven weekdays.
func (d Day) Valid() bool {
	return d >= Saturday && d <= Friday
}

// String returns the lowercase identifier used on the wire ("saturday".."friday").
func (d Day) String() string {
	if !d.Valid() {
		return fmt.Sprintf("day(%d)", int(d))
	}
	return dayNames[d]
}

// Label returns the capitalized display label.
func (d Day) Label() string {
	name := d.String()
	if !d.Valid() {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// Weekday converts d to the standard library weekday.
func (d Day) Weekday() time.Weekday {
	if !d.Valid() {
		return time.Sunday
	}
	return dayWeekdays[d]
}

// Rotate moves d by direction days, wrapping around the week.
func (d Day) Rotate(direction int) Day {
	return Day(RotateDay(int(d), direction))
}

// RotateDay returns the day index reached by moving direction days from index.
// Any integer offset is accepted; the result is always within 0..6.
func RotateDay(index, direction int) int {
	return ((index+direction)%DaysInWeek + DaysInWeek) % DaysInWeek
}

// ParseDay resolves a lowercase day identifier. Surrounding whitespace and case are ignored.
func ParseDay(name string) (Day, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for i, candidate := range dayNames {
		if candidate == key {
			return Day(i), nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidDay, name)
}

// DayOf returns the Day for a standard library weekday.
func DayOf(weekday time.Weekday) Day {
	for i, candidate := range dayWeekdays {
		if candidate == weekday {
			return Day(i)
		}
	}
	return Saturday
}

// MarshalText encodes the day as its lowercase identifier.
func (d Day) MarshalText() ([]byte, error) {
	if !d.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidDay, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a lowercase day identifier.
func (d *Day) UnmarshalText(text []byte) error {
	parsed, err := ParseDay(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
