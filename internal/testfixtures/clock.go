package testfixtures

import (
	"sync"
	"time"

	"github.com/example/tuition-scheduler/internal/timetable"
)

// referenceTime is Saturday 7 September 2024, 08:00 UTC: the first day of a Saturday-first week.
var referenceTime = time.Date(2024, time.September, 7, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// Clock is a controllable time source for services under test.
type Clock struct {
	mu      sync.Mutex
	current time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{current: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// NowFunc exposes Now for injection into service constructors.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
	return c.current
}

// SetWeekTime moves the clock to day and time of day within the reference week.
func (c *Clock) SetWeekTime(day timetable.Day, at timetable.Clock) time.Time {
	base := ReferenceTime()
	midnight := time.Date(base.Year(), base.Month(), base.Day(), 0, 0, 0, 0, base.Location())
	target := midnight.AddDate(0, 0, int(day)).Add(time.Duration(at.Minutes()) * time.Minute)
	c.Set(target)
	return target
}
