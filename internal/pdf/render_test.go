package pdf

import (
	"bytes"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/go-pdf/fpdf"

	"inkplan/internal/layout"
	"inkplan/internal/model"
)

func testPage() layout.PageConfig {
	return layout.PageConfig{StartHour: 6, EndHour: 18, ShowTodos: true, TodoLines: 4}
}

func dayWithEvents(date time.Time) model.DayPlan {
	plan := model.DayPlan{
		Date: date,
		AllDay: []model.CalendarEvent{
			{Title: "Company holiday", AllDay: true, Start: date, End: date.AddDate(0, 0, 1)},
		},
		Timed: []model.CalendarEvent{
			{Title: "Morning standup with a fairly long descriptive title",
				Start: date.Add(9 * time.Hour), End: date.Add(10 * time.Hour)},
			{Title: "Design review",
				Start: date.Add(9*time.Hour + 30*time.Minute), End: date.Add(10*time.Hour + 30*time.Minute)},
		},
	}
	plan.SortTimed()
	return plan
}

func TestRenderOnePagePerDay(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	plans := []model.DayPlan{
		dayWithEvents(day),
		{Date: day.AddDate(0, 0, 1)},
		{Date: day.AddDate(0, 0, 2)},
	}

	out, err := Render(plans, testPage())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:8])
	}
	if !bytes.Contains(out, []byte("/Count 3")) {
		t.Error("document does not contain three pages")
	}
}

func TestRenderEmptyDay(t *testing.T) {
	// A day with zero events still renders the grid and to-do section.
	plans := []model.DayPlan{{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}}

	out, err := Render(plans, testPage())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if len(out) < 500 {
		t.Errorf("suspiciously small PDF: %d bytes", len(out))
	}

	// Without the to-do section the page has strictly less content.
	pc := testPage()
	pc.ShowTodos = false
	leaner, err := Render(plans, pc)
	if err != nil {
		t.Fatalf("Render without todos: %v", err)
	}
	if len(leaner) >= len(out) {
		t.Errorf("to-do section did not add content: %d vs %d bytes", len(leaner), len(out))
	}
}

// testDoc builds a bare document with the event font selected, for
// exercising the text helpers directly.
func testDoc() (*fpdf.Fpdf, func(string) string) {
	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: px(layout.PageWidthPx), Ht: px(layout.PageHeightPx)},
	})
	doc.SetFont(fontFamily, "B", eventFontSize)
	return doc, doc.UnicodeTranslatorFromDescriptor("")
}

func TestAccentedTitleMeasuresLikeASCII(t *testing.T) {
	doc, tr := testDoc()

	// In the core fonts an accented letter has the width of its base
	// letter, so the transliterated title must measure the same as its
	// ASCII twin. Measuring the raw UTF-8 bytes would not.
	got := doc.GetStringWidth(tr("Réunion café"))
	want := doc.GetStringWidth("Reunion cafe")
	if math.Abs(got-want) > 0.01 {
		t.Errorf("accented title width %v, ASCII twin %v", got, want)
	}
}

func TestShrinkKeepsCharactersWhole(t *testing.T) {
	doc, tr := testDoc()

	full := tr(strings.Repeat("é", 20))
	out := shrinkToWidth(doc, full, 20)

	if out == "" || out == full {
		t.Fatalf("shrinkToWidth returned %q from %q", out, full)
	}
	if doc.GetStringWidth(out) > 20 {
		t.Errorf("shrunk string still %v wide", doc.GetStringWidth(out))
	}
	// Every remaining byte is the same single-byte glyph; a stray partial
	// character would show up as a different trailing byte.
	for i := 0; i < len(out); i++ {
		if out[i] != full[0] {
			t.Errorf("byte %d is %#x, want %#x", i, out[i], full[0])
		}
	}
}

func TestRenderAccentedTitles(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	plan := model.DayPlan{
		Date: day,
		AllDay: []model.CalendarEvent{
			{Title: "Fête nationale", AllDay: true, Start: day, End: day.AddDate(0, 0, 1)},
		},
		Timed: []model.CalendarEvent{
			{Title: "Réunion café", Start: day.Add(9 * time.Hour), End: day.Add(10 * time.Hour)},
		},
	}

	out, err := Render([]model.DayPlan{plan}, testPage())
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF-")) {
		t.Fatalf("output does not start with a PDF header: %q", out[:8])
	}
}

func TestRenderAllDayRowOnlyWhenPresent(t *testing.T) {
	day := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	pc := testPage()
	pc.ShowTodos = false

	bare := model.DayPlan{Date: day}
	withBanner := model.DayPlan{
		Date: day,
		AllDay: []model.CalendarEvent{
			{Title: "Offsite", AllDay: true, Start: day, End: day.AddDate(0, 0, 1)},
		},
	}

	plain, err := Render([]model.DayPlan{bare}, pc)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	banner, err := Render([]model.DayPlan{withBanner}, pc)
	if err != nil {
		t.Fatalf("Render with all-day event: %v", err)
	}
	// The banner row only exists when the day carries an all-day event.
	if len(banner) <= len(plain) {
		t.Errorf("all-day row did not add content: %d vs %d bytes", len(banner), len(plain))
	}
}

func TestRenderValidatesInput(t *testing.T) {
	if _, err := Render(nil, testPage()); err == nil {
		t.Error("no days accepted")
	}

	plans := []model.DayPlan{{Date: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}}
	bad := layout.PageConfig{StartHour: 9, EndHour: 12}
	if _, err := Render(plans, bad); err == nil {
		t.Error("invalid time window accepted")
	}
}

func TestFormatHour(t *testing.T) {
	tests := []struct {
		h    int
		want string
	}{
		{0, "12 AM"}, {6, "6 AM"}, {11, "11 AM"}, {12, "12 PM"}, {13, "1 PM"}, {23, "11 PM"},
	}
	for _, tt := range tests {
		if got := formatHour(tt.h); got != tt.want {
			t.Errorf("formatHour(%d) = %q, want %q", tt.h, got, tt.want)
		}
	}
}
