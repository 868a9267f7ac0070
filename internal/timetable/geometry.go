package timetable

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

// DefaultGridStartHour is the wall-clock hour drawn at the top of the day grid.
const DefaultGridStartHour = 5

// ErrInvalidGrid is returned for grids with an out-of-range start hour or scale.
var ErrInvalidGrid = errors.New("timetable: invalid grid")

// Grid describes the vertical day grid: the hour shown at its top and its vertical scale.
// The grid always spans 24 hours starting at StartHour.
type Grid struct {
	StartHour       int
	PixelsPerMinute float64
}

// DefaultGrid starts at 05:00 with one pixel per minute.
func DefaultGrid() Grid {
	return Grid{StartHour: DefaultGridStartHour, PixelsPerMinute: 1}
}

// GridFromHourHeight builds a grid from a pixels-per-hour scale.
func GridFromHourHeight(startHour int, pixelsPerHour float64) Grid {
	return Grid{StartHour: startHour, PixelsPerMinute: pixelsPerHour / 60}
}

// Validate checks the start hour and scale.
func (g Grid) Validate() error {
	if g.StartHour < 0 || g.StartHour > 23 {
		return fmt.Errorf("%w: start hour %d", ErrInvalidGrid, g.StartHour)
	}
	if g.PixelsPerMinute <= 0 {
		return fmt.Errorf("%w: pixels per minute %v", ErrInvalidGrid, g.PixelsPerMinute)
	}
	return nil
}

// Height returns the pixel height of the full 24h grid.
func (g Grid) Height() float64 {
	return MinutesPerDay * g.PixelsPerMinute
}

// Layout is the vertical placement of a span before it is split at the grid end.
// Height covers the whole duration and may run past the bottom of the grid.
type Layout struct {
	Top             float64
	Height          float64
	CrossesMidnight bool
}

// Compute places a span on the grid.
func (g Grid) Compute(span Span) Layout {
	top := g.offsetMinutes(span.Start)
	return Layout{
		Top:             float64(top) * g.PixelsPerMinute,
		Height:          float64(span.Duration()) * g.PixelsPerMinute,
		CrossesMidnight: span.CrossesMidnight(),
	}
}

// offsetMinutes is the distance in minutes from the grid top to c.
func (g Grid) offsetMinutes(c Clock) int {
	return (c.Minutes() - g.StartHour*60 + MinutesPerDay) % MinutesPerDay
}

// Segment is one drawable piece of a span. A span that runs past the grid end is split
// into a head segment and a Continued tail drawn from the top of the grid.
type Segment struct {
	Top       float64
	Height    float64
	Continued bool
}

// Segments splits a span at the grid end. The heights always add up to the span duration.
func (g Grid) Segments(span Span) []Segment {
	top := g.offsetMinutes(span.Start)
	duration := span.Duration()

	head := min(duration, MinutesPerDay-top)
	segments := []Segment{{
		Top:    float64(top) * g.PixelsPerMinute,
		Height: float64(head) * g.PixelsPerMinute,
	}}
	if overflow := duration - head; overflow > 0 {
		segments = append(segments, Segment{
			Top:       0,
			Height:    float64(overflow) * g.PixelsPerMinute,
			Continued: true,
		})
	}
	return segments
}

// Bubble is a rendered segment together with the block it belongs to.
type Bubble struct {
	Block Block
	Segment
}

// Kind is a shortcut for the block's activity type.
func (b Bubble) Kind() ActivityType {
	return b.Block.Kind()
}

// Locked reports whether the bubble cannot be opened for single editing.
func (b Bubble) Locked() bool {
	k := b.Block.Kind()
	return !k.Editable() || k.BulkOnly()
}

// LayoutDay converts a day's blocks into bubbles ordered by their top offset. Blocks with
// invalid times are skipped and logged; zero-height segments are dropped.
func (g Grid) LayoutDay(blocks []Block, logger *slog.Logger) []Bubble {
	bubbles := make([]Bubble, 0, len(blocks))
	for i, b := range blocks {
		if b == nil {
			continue
		}
		span := b.Interval()
		if !span.Start.Valid() || !span.End.Valid() {
			if logger != nil {
				logger.Warn("skipping block with invalid times",
					"index", i, "kind", string(b.Kind()), "start", int(span.Start), "end", int(span.End))
			}
			continue
		}
		for _, seg := range g.Segments(span) {
			if seg.Height <= 0 {
				continue
			}
			bubbles = append(bubbles, Bubble{Block: b, Segment: seg})
		}
	}
	sort.SliceStable(bubbles, func(i, j int) bool {
		return bubbles[i].Top < bubbles[j].Top
	})
	return bubbles
}
