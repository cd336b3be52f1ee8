// Package pdf draws planner pages from layout geometry. It makes no layout
// decisions of its own: event placement arrives as layout.Slot values and
// is only converted from device pixels into PDF points here.
package pdf

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"

	"inkplan/internal/layout"
	appLog "inkplan/internal/log"
	"inkplan/internal/model"
)

// ptPerPx converts device pixels (264 PPI) into PDF points (72 per inch).
const ptPerPx = 72.0 / float64(layout.PPI)

const (
	fontFamily = "Helvetica"

	headerFontSize = 12
	labelFontSize  = 9
	eventFontSize  = 8

	eventLineHeightPt = 9
	eventPadPt        = 5

	checkboxPt = 10
)

func px(v float64) float64 { return v * ptPerPx }

// Render produces one fixed-size planner page per DayPlan and returns the
// concatenated document. Nothing is written to disk.
func Render(plans []model.DayPlan, pc layout.PageConfig) ([]byte, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("render: no days to render")
	}
	if err := pc.Validate(); err != nil {
		return nil, err
	}

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size: fpdf.SizeType{
			Wd: px(layout.PageWidthPx),
			Ht: px(layout.PageHeightPx),
		},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)

	// Core fonts are cp1252; titles arrive as UTF-8 and must be
	// transliterated before measuring or drawing.
	tr := doc.UnicodeTranslatorFromDescriptor("")

	for _, plan := range plans {
		doc.AddPage()
		drawDay(doc, tr, plan, pc)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}

	appLog.Info("pdf rendered", "pages", len(plans), "bytes", buf.Len())
	return buf.Bytes(), nil
}

func drawDay(doc *fpdf.Fpdf, tr func(string) string, plan model.DayPlan, pc layout.PageConfig) {
	margin := px(layout.MarginPx)
	pageW := px(layout.PageWidthPx)
	pageH := px(layout.PageHeightPx)

	// Date header, right-aligned, with a faint divider underneath.
	doc.SetFont(fontFamily, "B", headerFontSize)
	doc.SetTextColor(0, 0, 0)
	dateText := plan.Date.Format("Monday, January 2, 2006")
	doc.Text(pageW-margin-doc.GetStringWidth(dateText), margin+headerFontSize, dateText)

	headerBottom := margin + px(layout.HeaderPx)
	doc.SetDrawColor(211, 211, 211)
	doc.SetLineWidth(0.5)
	doc.Line(margin, headerBottom, pageW-margin, headerBottom)

	gridTop := headerBottom + px(layout.HeaderGapPx)
	eventAreaX := margin + px(layout.TimeColPx)
	eventAreaW := pageW - margin - eventAreaX

	// Conditional all-day banner: the row exists only when the day has at
	// least one all-day event.
	timedTop := gridTop
	if len(plan.AllDay) > 0 {
		drawAllDayRow(doc, tr, plan.AllDay, gridTop, eventAreaX, eventAreaW, margin, pageW)
		timedTop = gridTop + px(layout.AllDayRowPx)
	}

	drawHourGrid(doc, pc, timedTop, eventAreaX, margin, pageW)

	for _, slot := range layout.LayoutDay(plan, pc) {
		drawSlot(doc, tr, slot, timedTop, eventAreaX, eventAreaW)
	}

	gridBottom := timedTop + px(pc.GridHeightPx())
	if pc.ShowTodos {
		drawTodoSection(doc, pc.TodoLines, gridBottom, margin, pageW, pageH)
	}
}

func drawHourGrid(doc *fpdf.Fpdf, pc layout.PageConfig, top, eventAreaX, margin, pageW float64) {
	hourPt := px(layout.HourPx)

	doc.SetFont(fontFamily, "B", labelFontSize)
	doc.SetTextColor(0, 0, 0)

	for i := 0; i < pc.WindowHours(); i++ {
		rowTop := top + float64(i)*hourPt

		doc.Text(margin, rowTop+labelFontSize+3, formatHour(pc.StartHour+i))

		// Faint half-hour line across the event area only.
		doc.SetDrawColor(211, 211, 211)
		doc.SetLineWidth(0.25)
		doc.Line(eventAreaX, rowTop+hourPt/2, pageW-margin, rowTop+hourPt/2)

		// Full-width hour line at the row bottom.
		doc.SetDrawColor(128, 128, 128)
		doc.SetLineWidth(0.5)
		doc.Line(margin, rowTop+hourPt, pageW-margin, rowTop+hourPt)
	}
}

func drawAllDayRow(doc *fpdf.Fpdf, tr func(string) string, events []model.CalendarEvent, top, eventAreaX, eventAreaW, margin, pageW float64) {
	rowH := px(layout.AllDayRowPx)

	doc.SetFont(fontFamily, "B", labelFontSize)
	doc.SetTextColor(0, 0, 0)
	doc.Text(margin, top+labelFontSize+3, "All Day")

	// Banner boxes share the row width evenly.
	const gap = 3.0
	n := len(events)
	boxW := (eventAreaW - gap*float64(n-1)) / float64(n)
	for i, ev := range events {
		x := eventAreaX + float64(i)*(boxW+gap)
		drawEventBox(doc, tr, ev.Title, x, top+3, boxW, rowH-9)
	}

	doc.SetDrawColor(128, 128, 128)
	doc.SetLineWidth(0.5)
	doc.Line(margin, top+rowH, pageW-margin, top+rowH)
}

func drawSlot(doc *fpdf.Fpdf, tr func(string) string, slot layout.Slot, gridTop, eventAreaX, eventAreaW float64) {
	const gap = 3.0

	colW := (eventAreaW - gap*float64(slot.Cols-1)) / float64(slot.Cols)
	x := eventAreaX + float64(slot.Col)*(colW+gap)
	y := gridTop + px(slot.TopPx)
	h := px(slot.BottomPx-slot.TopPx) - 1 // hairline gap between stacked events

	drawEventBox(doc, tr, slot.Event.Title, x, y, colW, h)
}

// drawEventBox draws the rounded dark box with the title wrapped in white
// bold text, clipped to the box with a trailing ellipsis. The title is
// transliterated with tr up front so GetStringWidth and Text see the same
// single-byte codepage text.
func drawEventBox(doc *fpdf.Fpdf, tr func(string) string, title string, x, y, w, h float64) {
	doc.SetFillColor(74, 74, 74)
	doc.RoundedRect(x, y, w, h, 2, "1234", "F")

	doc.SetFont(fontFamily, "B", eventFontSize)
	doc.SetTextColor(255, 255, 255)

	maxLines := int((h - 4) / eventLineHeightPt)
	if maxLines < 1 {
		maxLines = 1
	}
	lines := wrapText(doc, tr(title), w-2*eventPadPt, maxLines)

	// Center the block of lines vertically in the box.
	blockH := float64(len(lines)) * eventLineHeightPt
	baseline := y + (h-blockH)/2 + eventFontSize
	for _, line := range lines {
		doc.Text(x+eventPadPt, baseline, line)
		baseline += eventLineHeightPt
	}

	doc.SetTextColor(0, 0, 0)
}

func drawTodoSection(doc *fpdf.Fpdf, lines int, top, margin, pageW, pageH float64) {
	if lines <= 0 {
		lines = 4
	}

	// Distribute the checkbox lines evenly over the remaining page space.
	yPos := top + 14
	available := pageH - margin - yPos + checkboxPt
	if available < float64(lines)*checkboxPt {
		return
	}
	step := available / float64(lines)

	doc.SetDrawColor(0, 0, 0)
	for i := 0; i < lines; i++ {
		doc.SetLineWidth(0.5)
		doc.Rect(margin, yPos, checkboxPt, checkboxPt, "D")

		lineY := yPos + checkboxPt
		doc.SetLineWidth(0.3)
		doc.Line(margin+checkboxPt+6, lineY, pageW-margin, lineY)

		yPos += step
	}
}

// wrapText greedily wraps s into at most maxLines lines of width maxW,
// measured with the current font. Overflow is ellipsized. The input must
// already be in the font's codepage (one byte per glyph), so byte-wise
// truncation never splits a character.
func wrapText(doc *fpdf.Fpdf, s string, maxW float64, maxLines int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := ""
	truncated := false

	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if doc.GetStringWidth(candidate) <= maxW {
			current = candidate
			continue
		}
		if current == "" {
			// Single word wider than the box; hard-truncate it.
			current = shrinkToWidth(doc, word, maxW)
			truncated = true
			continue
		}
		lines = append(lines, current)
		current = word
		if len(lines) == maxLines {
			truncated = true
			current = ""
			break
		}
	}
	if current != "" && len(lines) < maxLines {
		lines = append(lines, current)
	}

	if truncated && len(lines) > 0 {
		last := lines[len(lines)-1]
		lines[len(lines)-1] = shrinkToWidth(doc, last+"...", maxW)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func shrinkToWidth(doc *fpdf.Fpdf, s string, maxW float64) string {
	for len(s) > 1 && doc.GetStringWidth(s) > maxW {
		s = s[:len(s)-1]
	}
	return s
}

func formatHour(h int) string {
	switch {
	case h == 0 || h == 24:
		return "12 AM"
	case h < 12:
		return fmt.Sprintf("%d AM", h)
	case h == 12:
		return "12 PM"
	default:
		return fmt.Sprintf("%d PM", h-12)
	}
}
