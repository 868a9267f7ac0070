package timetable

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MinutesPerDay is the length of the 24h cycle the grid is drawn on.
const MinutesPerDay = 24 * 60

// ErrInvalidClock is returned for time-of-day values outside 00:00..23:59.
var ErrInvalidClock = errors.New("timetable: invalid time of day")

// Clock is a wall-clock time of day expressed in minutes since midnight.
type Clock int

// At builds a Clock from an hour and minute.
func At(hour, minute int) (Clock, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%w: %02d:%02d", ErrInvalidClock, hour, minute)
	}
	return Clock(hour*60 + minute), nil
}

// MustClock parses value and panics on failure. Intended for fixtures and constants.
func MustClock(value string) Clock {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseClock parses a 24h "HH:MM" value. A single digit hour ("8:30") is accepted.
func ParseClock(value string) (Clock, error) {
	trimmed := strings.TrimSpace(value)
	hourPart, minutePart, ok := strings.Cut(trimmed, ":")
	if !ok || len(minutePart) != 2 || hourPart == "" || len(hourPart) > 2 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	hour, err := strconv.Atoi(hourPart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	minute, err := strconv.Atoi(minutePart)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, value)
	}
	return At(hour, minute)
}

// Valid reports whether c lies within a single day.
func (c Clock) Valid() bool {
	return c >= 0 && c < MinutesPerDay
}

// Minutes returns the minutes elapsed since midnight.
func (c Clock) Minutes() int {
	return int(c)
}

// Hour returns the hour component.
func (c Clock) Hour() int {
	return int(c) / 60
}

// Minute returns the minute component.
func (c Clock) Minute() int {
	return int(c) % 60
}

// String formats the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour(), c.Minute())
}

// MarshalText encodes the clock as "HH:MM".
func (c Clock) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d minutes", ErrInvalidClock, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText decodes an "HH:MM" value.
func (c *Clock) UnmarshalText(text []byte) error {
	parsed, err := ParseClock(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Span is a start/end pair of wall-clock times. When End is not after Start the span
// crosses midnight; Start == End therefore covers a full 24h day.
type Span struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}

// NewSpan validates both ends and returns the span.
func NewSpan(start, end Clock) (Span, error) {
	if !start.Valid() {
		return Span{}, fmt.Errorf("start: %w", ErrInvalidClock)
	}
	if !end.Valid() {
		return Span{}, fmt.Errorf("end: %w", ErrInvalidClock)
	}
	return Span{Start: start, End: end}, nil
}

// ParseSpan parses two "HH:MM" values.
func ParseSpan(start, end string) (Span, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Span{}, fmt.Errorf("start: %w", err)
	}
	e, err := ParseClock(end)
	if err != nil {
		return Span{}, fmt.Errorf("end: %w", err)
	}
	return Span{Start: s, End: e}, nil
}

// CrossesMidnight reports whether the span wraps into the next day.
func (s Span) CrossesMidnight() bool {
	return s.End <= s.Start
}

// FullDay reports whether the span covers the whole 24h cycle.
func (s Span) FullDay() bool {
	return s.End == s.Start
}

// Duration returns the span length in minutes.
func (s Span) Duration() int {
	end := s.End.Minutes()
	if s.CrossesMidnight() {
		end += MinutesPerDay
	}
	return end - s.Start.Minutes()
}

// String formats the span as "HH:MM-HH:MM".
func (s Span) String() string {
	return s.Start.String() + "-" + s.End.String()
}
