package model

import (
	"sort"
	"time"
)

// CalendarEvent is a single concrete occurrence after recurrence expansion
// and timezone normalization. It is immutable once built; layout and
// rendering only read it.
type CalendarEvent struct {
	SourceID string // feed source ID (e.g., its URL)
	UID      string // iCalendar UID

	Title string

	AllDay bool

	// Start / End are in the configured display timezone. For all-day
	// events they cover [00:00, next 00:00) of each covered day.
	Start time.Time
	End   time.Time
}

// Duration returns the event length; zero for degenerate events.
func (e CalendarEvent) Duration() time.Duration {
	if e.End.Before(e.Start) {
		return 0
	}
	return e.End.Sub(e.Start)
}

// DayPlan is one planner day: the date plus its events partitioned into
// the all-day banner row and the timed grid.
type DayPlan struct {
	// Date is midnight of the day in the display timezone.
	Date time.Time

	AllDay []CalendarEvent
	Timed  []CalendarEvent
}

// SortTimed orders timed events by start ascending; on equal starts the
// longer event comes first, which fixes column assignment order.
func (p *DayPlan) SortTimed() {
	sort.SliceStable(p.Timed, func(i, j int) bool {
		a, b := p.Timed[i], p.Timed[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		return a.End.After(b.End)
	})
}
