package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "inkplan/internal/log"
	"inkplan/internal/model"
)

const defaultMaxOccurrencesPerEvent = 5000

// ExpandConfig controls recurrence expansion.
type ExpandConfig struct {
	// DisplayLocation is the timezone all occurrences are converted to.
	// It must be passed explicitly; nil falls back to time.Local.
	DisplayLocation *time.Location

	// RangeStart / RangeEnd bound the inclusive occurrence window.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent caps runaway rules. Zero means the default.
	MaxOccurrencesPerEvent int
}

// ExpandResult holds the expanded occurrences plus truncation info.
type ExpandResult struct {
	Occurrences []model.CalendarEvent
	// TruncatedEvents records UIDs that hit MaxOccurrencesPerEvent.
	TruncatedEvents []string
}

// ExpandOccurrences turns ParsedEvents into concrete CalendarEvents within
// the configured window. It handles single events, RRULE recurrence, EXDATE
// exceptions, RECURRENCE-ID overrides, and all-day normalization. Every
// occurrence comes out in the display timezone.
func ExpandOccurrences(events []ParsedEvent, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.DisplayLocation == nil {
		cfg.DisplayLocation = time.Local
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Group base events and their instance overrides by UID.
	baseByUID := make(map[string][]ParsedEvent)
	overridesByUID := make(map[string][]ParsedEvent)
	for _, ev := range events {
		if ev.IsOverride && ev.Recurrence != nil {
			overridesByUID[ev.UID] = append(overridesByUID[ev.UID], ev)
		} else {
			baseByUID[ev.UID] = append(baseByUID[ev.UID], ev)
		}
	}

	out := make([]model.CalendarEvent, 0)
	for uid, baseEvents := range baseByUID {
		ov := overridesByUID[uid]
		truncated := false

		for _, ev := range baseEvents {
			occ, hitCap := expandEvent(ev, ov, cfg)
			if hitCap {
				truncated = true
			}
			out = append(out, occ...)
		}

		if truncated {
			result.TruncatedEvents = append(result.TruncatedEvents, uid)
			appLog.Error("expand: occurrence cap hit", errors.New("max occurrences reached"),
				"uid", uid, "cap", cfg.MaxOccurrencesPerEvent)
		}
	}

	result.Occurrences = out
	return result, nil
}

func expandEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	if ev.RawRRule == "" {
		return expandSingleEvent(ev, overrides, cfg), false
	}
	return expandRecurringEvent(ev, overrides, cfg)
}

func expandSingleEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) []model.CalendarEvent {
	start, end := ev.Start, eventEnd(ev)

	if !timeRangesOverlap(start, end, cfg.RangeStart, cfg.RangeEnd) {
		return nil
	}

	if o, ok := findOverrideForStart(overrides, start); ok {
		ev = o
		start, end = o.Start, eventEnd(o)
	}

	return []model.CalendarEvent{makeOccurrence(ev, start, end, cfg.DisplayLocation)}
}

func expandRecurringEvent(ev ParsedEvent, overrides []ParsedEvent, cfg ExpandConfig) ([]model.CalendarEvent, bool) {
	out := make([]model.CalendarEvent, 0)
	hitCap := false

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		appLog.Error("expand: bad RRULE", err, "uid", ev.UID, "rrule", ev.RawRRule)
		return out, false
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	// Between works in the event's own location; convert the window there.
	rangeStart := cfg.RangeStart.In(ev.Start.Location())
	rangeEnd := cfg.RangeEnd.In(ev.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	dur := eventEnd(ev).Sub(ev.Start)
	for _, occStart := range occTimes {
		occEnd := occStart.Add(dur)

		srcEv := ev
		if o, ok := findOverrideForStart(overrides, occStart); ok {
			srcEv = o
			occStart, occEnd = o.Start, eventEnd(o)
		}

		out = append(out, makeOccurrence(srcEv, occStart, occEnd, cfg.DisplayLocation))
	}

	return out, hitCap
}

// eventEnd returns the event's DTEND, defaulting to one hour (or one day
// for all-day events) when the feed omits it.
func eventEnd(ev ParsedEvent) time.Time {
	if !ev.End.IsZero() && ev.End.After(ev.Start) {
		return ev.End
	}
	if ev.AllDay {
		return ev.Start.Add(24 * time.Hour)
	}
	return ev.Start.Add(time.Hour)
}

// findOverrideForStart matches an override whose RECURRENCE-ID equals the
// occurrence start, compared in the occurrence's location.
func findOverrideForStart(overrides []ParsedEvent, start time.Time) (ParsedEvent, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.In(start.Location()).Equal(start) {
			return ov, true
		}
	}
	return ParsedEvent{}, false
}

// makeOccurrence converts one concrete start/end into a CalendarEvent in
// the display timezone.
//
// All-day occurrences carry a calendar date, not an instant, so conversion
// preserves the date: midnight in the display location for however many
// days the event covers. Running them through In() instead would shift the
// date for any feed that encodes DATE values as UTC midnight.
func makeOccurrence(ev ParsedEvent, start, end time.Time, displayLoc *time.Location) model.CalendarEvent {
	var startLocal, endLocal time.Time
	if ev.AllDay {
		y, m, d := start.Date()
		startLocal = time.Date(y, m, d, 0, 0, 0, 0, displayLoc)
		days := int(end.Sub(start).Hours()+12) / 24 // tolerate DST-sized drift
		if days < 1 {
			days = 1
		}
		endLocal = startLocal.AddDate(0, 0, days)
	} else {
		startLocal = start.In(displayLoc)
		endLocal = end.In(displayLoc)
	}

	return model.CalendarEvent{
		SourceID: ev.Source.ID,
		UID:      ev.UID,
		Title:    ev.Summary,
		AllDay:   ev.AllDay,
		Start:    startLocal,
		End:      endLocal,
	}
}

func timeRangesOverlap(aStart, aEnd, bStart, bEnd time.Time) bool {
	return !aEnd.Before(bStart) && !bEnd.Before(aStart)
}
