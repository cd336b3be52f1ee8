// Package layout maps a day's events onto a fixed vertical time axis.
// It decides geometry only; drawing happens in internal/pdf.
package layout

import (
	"fmt"
	"time"

	"inkplan/internal/model"
)

// Page geometry in device pixels for the target e-ink tablet
// (reMarkable Pro Move, 954x1696 @ 264 PPI).
const (
	PageWidthPx  = 954
	PageHeightPx = 1696
	PPI          = 264

	MarginPx    = 66  // page margin (18 pt)
	HeaderPx    = 44  // date header row
	HeaderGapPx = 31  // divider + breathing room under the header
	HourPx      = 95  // one grid hour
	TimeColPx   = 183 // hour-label column
	MinSlotPx   = 28  // floor so tiny events stay tappable with a pen

	// AllDayRowPx is the height of the conditional all-day banner row.
	AllDayRowPx = HourPx
)

// Window span limits, in hours.
const (
	MinWindowHours = 8
	MaxWindowHours = 12
)

// PageConfig is the per-request page setup. It is never persisted.
type PageConfig struct {
	StartHour int
	EndHour   int
	ShowTodos bool
	TodoLines int
}

// Validate enforces the 8-12 hour window constraint.
func (pc PageConfig) Validate() error {
	if pc.StartHour < 0 || pc.EndHour > 24 {
		return fmt.Errorf("invalid time window: hours %d-%d out of range", pc.StartHour, pc.EndHour)
	}
	span := pc.EndHour - pc.StartHour
	if span <= 0 {
		return fmt.Errorf("invalid time window: end hour %d is not after start hour %d", pc.EndHour, pc.StartHour)
	}
	if span < MinWindowHours {
		return fmt.Errorf("invalid time window: %d hours, must span at least %d", span, MinWindowHours)
	}
	if span > MaxWindowHours {
		return fmt.Errorf("invalid time window: %d hours, must span at most %d", span, MaxWindowHours)
	}
	return nil
}

// WindowHours returns the number of grid hours.
func (pc PageConfig) WindowHours() int {
	return pc.EndHour - pc.StartHour
}

// GridHeightPx returns the pixel height of the timed grid.
func (pc PageConfig) GridHeightPx() float64 {
	return float64(pc.WindowHours()) * HourPx
}

// Slot is one timed event placed on the grid: a column assignment within
// its overlap cluster plus a vertical pixel range relative to the grid top.
// Slots are derived per request and discarded after rendering.
type Slot struct {
	Event model.CalendarEvent

	// Col / Cols position the event horizontally: the cluster is split
	// into Cols equal columns and this event occupies column Col.
	Col  int
	Cols int

	TopPx    float64
	BottomPx float64
}

// BuildDayPlans partitions occurrences into one DayPlan per calendar day in
// the inclusive [from, to] date range (midnights in loc).
//
// A timed event belongs to the day its local start falls on; if it crosses
// midnight it is later clipped at that day's window end rather than carried
// into the next day. A multi-day all-day event appears on every day it
// covers.
func BuildDayPlans(events []model.CalendarEvent, from, to time.Time, loc *time.Location) []model.DayPlan {
	var plans []model.DayPlan

	for day := dateOf(from, loc); !day.After(dateOf(to, loc)); day = day.AddDate(0, 0, 1) {
		plan := model.DayPlan{Date: day}
		next := day.AddDate(0, 0, 1)

		for _, ev := range events {
			if ev.AllDay {
				// Banner shows on every covered day.
				if ev.Start.Before(next) && ev.End.After(day) {
					plan.AllDay = append(plan.AllDay, ev)
				}
				continue
			}
			start := ev.Start.In(loc)
			if !start.Before(day) && start.Before(next) {
				plan.Timed = append(plan.Timed, ev)
			}
		}

		plan.SortTimed()
		plans = append(plans, plan)
	}

	return plans
}

// LayoutDay places a day's timed events on the grid. It is a pure function:
// the plan is not mutated and the result depends only on its inputs.
//
// Events are clipped to [StartHour, EndHour]; events entirely outside the
// window are dropped. Overlap is decided on the drawn pixel ranges, after
// the MinSlotPx floor, so a short event inflated to the minimum height
// still claims the rows it covers. Transitively overlapping events form a
// cluster whose members share a column count, and no two overlapping
// events ever share a column (greedy interval coloring over the sorted
// list).
func LayoutDay(plan model.DayPlan, pc PageConfig) []Slot {
	loc := plan.Date.Location()
	y, m, d := plan.Date.Date()
	windowStart := time.Date(y, m, d, pc.StartHour, 0, 0, 0, loc)
	windowEnd := time.Date(y, m, d, pc.EndHour, 0, 0, 0, loc)

	clipped := clipToWindow(plan.Timed, windowStart, windowEnd, pc.GridHeightPx())
	if len(clipped) == 0 {
		return nil
	}

	var slots []Slot
	for _, cluster := range clusters(clipped) {
		slots = append(slots, assignColumns(cluster)...)
	}
	return slots
}

// span is an event with its drawn pixel range: window-clipped, floored to
// MinSlotPx, and kept inside the grid.
type span struct {
	ev          model.CalendarEvent
	top, bottom float64
}

func clipToWindow(events []model.CalendarEvent, windowStart, windowEnd time.Time, gridHeight float64) []span {
	out := make([]span, 0, len(events))
	for _, ev := range events {
		s, e := ev.Start, ev.End
		if s.Before(windowStart) {
			s = windowStart
		}
		if e.After(windowEnd) {
			e = windowEnd
		}
		if !e.After(s) {
			// Entirely outside the window (or degenerate after clipping).
			continue
		}
		top := pxFromWindowStart(s, windowStart)
		bottom := pxFromWindowStart(e, windowStart)
		if bottom-top < MinSlotPx {
			bottom = top + MinSlotPx
		}
		if bottom > gridHeight {
			bottom = gridHeight
			if top > bottom-MinSlotPx {
				top = bottom - MinSlotPx
			}
		}
		out = append(out, span{ev: ev, top: top, bottom: bottom})
	}
	return out
}

// clusters groups the sorted spans into maximal transitively-overlapping
// runs. Touching edges do not overlap: a 9-10 event and a 10-11 event
// stack vertically, not side by side.
func clusters(spans []span) [][]span {
	var out [][]span

	var current []span
	var maxBottom float64
	for _, sp := range spans {
		if len(current) > 0 && sp.top < maxBottom {
			current = append(current, sp)
		} else {
			if len(current) > 0 {
				out = append(out, current)
			}
			current = []span{sp}
			maxBottom = sp.bottom
		}
		if sp.bottom > maxBottom {
			maxBottom = sp.bottom
		}
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

// assignColumns gives each span in a cluster the lowest column whose last
// occupant ends at or above the span's top. The input order (start asc,
// longer first on ties) makes the result deterministic.
func assignColumns(cluster []span) []Slot {
	var colBottoms []float64 // last occupied bottom per column
	cols := make([]int, len(cluster))

	for i, sp := range cluster {
		assigned := -1
		for c, bottom := range colBottoms {
			if sp.top >= bottom {
				assigned = c
				break
			}
		}
		if assigned == -1 {
			assigned = len(colBottoms)
			colBottoms = append(colBottoms, sp.bottom)
		} else {
			colBottoms[assigned] = sp.bottom
		}
		cols[i] = assigned
	}

	slots := make([]Slot, len(cluster))
	for i, sp := range cluster {
		slots[i] = Slot{
			Event:    sp.ev,
			Col:      cols[i],
			Cols:     len(colBottoms),
			TopPx:    sp.top,
			BottomPx: sp.bottom,
		}
	}
	return slots
}

func pxFromWindowStart(t, windowStart time.Time) float64 {
	return t.Sub(windowStart).Minutes() / 60 * HourPx
}

func dateOf(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
