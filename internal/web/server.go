// Package web exposes the single-purpose HTTP surface: a form page and the
// POST /generate endpoint that streams back the planner PDF. No request
// leaves any state behind.
package web

import (
	"embed"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"inkplan/internal/config"
	"inkplan/internal/ics"
	"inkplan/internal/layout"
	appLog "inkplan/internal/log"
	"inkplan/internal/model"
	"inkplan/internal/pdf"
)

//go:embed static
var embeddedStatic embed.FS

// Server wires the fetch, layout, and render pipeline behind a gin router.
type Server struct {
	cfg     *config.Config
	fetcher *ics.Fetcher
	engine  *gin.Engine
}

// NewServer constructs the router. The caller controls gin's mode.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg:     cfg,
		fetcher: ics.NewFetcher(time.Duration(cfg.FetchTimeoutSeconds) * time.Second),
		engine:  gin.New(),
	}
	s.engine.Use(gin.Recovery())
	s.engine.Use(cors.Default())
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for mounting or tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/health", s.handleHealth)
	s.engine.POST("/generate", s.handleGenerate)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.String(http.StatusOK, "OK")
}

func (s *Server) handleIndex(c *gin.Context) {
	page, err := embeddedStatic.ReadFile("static/index.html")
	if err != nil {
		appLog.Error("embedded form page missing", err)
		c.String(http.StatusServiceUnavailable, "form page not available")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}

// generateRequest is the raw form submission. Fields stay strings so
// defaults and error messages are decided here, not by the binder.
type generateRequest struct {
	ICalURLs  string `form:"ical_urls"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	StartHour string `form:"start_hour"`
	EndHour   string `form:"end_hour"`
	ShowTodos string `form:"show_todos"` // checkbox sends "on" when checked
}

// handleGenerate runs one full fetch, parse, expand, layout, and render
// cycle and streams the PDF back as a download. All validation happens
// before the first network call.
func (s *Server) handleGenerate(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sources := ics.SplitURLs(req.ICalURLs)
	if len(sources) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please provide at least one iCal URL"})
		return
	}

	startHour, err := parseHour("start hour", req.StartHour, s.cfg.DefaultStartHour)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	endHour, err := parseHour("end hour", req.EndHour, s.cfg.DefaultEndHour)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pageCfg := layout.PageConfig{
		StartHour: startHour,
		EndHour:   endHour,
		ShowTodos: req.ShowTodos == "on",
		TodoLines: s.cfg.TodoLines,
	}
	if err := pageCfg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	loc := resolveLocationOrLocal(s.cfg.Timezone)

	startDate, endDate, err := resolveDates(req.StartDate, req.EndDate, time.Now().In(loc), loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	appLog.Info("generate request",
		"sources", len(sources),
		"start_date", startDate.Format("2006-01-02"),
		"end_date", endDate.Format("2006-01-02"),
		"window", fmt.Sprintf("%d-%d", pageCfg.StartHour, pageCfg.EndHour),
		"show_todos", pageCfg.ShowTodos,
	)

	events := s.collectEvents(c, sources, startDate, endDate, loc)

	plans := layout.BuildDayPlans(events, startDate, endDate, loc)

	out, err := pdf.Render(plans, pageCfg)
	if err != nil {
		appLog.Error("pdf render failed", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "an error occurred generating the calendar"})
		return
	}

	filename := downloadName(startDate, endDate)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", out)
}

// collectEvents fetches, parses, and expands all feeds. Per-feed failures
// degrade the result instead of failing the request.
func (s *Server) collectEvents(c *gin.Context, sources []ics.Source, startDate, endDate time.Time, loc *time.Location) []model.CalendarEvent {
	results, fetchErrs := s.fetcher.FetchAll(c.Request.Context(), sources)
	if len(fetchErrs) > 0 {
		appLog.Error("one or more feed fetches failed", errorsAggregate(fetchErrs), "error_count", len(fetchErrs))
	}

	parsed := make([]ics.ParsedEvent, 0)
	for _, res := range results {
		events, err := ics.ParseICS(res.Source, res.Body)
		if err != nil {
			// Malformed feed: skip it, keep the rest.
			appLog.Error("feed parse failed", err, "id", res.Source.ID)
			continue
		}
		parsed = append(parsed, events...)
	}

	expandResult, err := ics.ExpandOccurrences(parsed, ics.ExpandConfig{
		DisplayLocation: loc,
		RangeStart:      startDate,
		RangeEnd:        endDate.AddDate(0, 0, 1),
	})
	if err != nil {
		appLog.Error("recurrence expansion failed", err)
		return nil
	}
	return expandResult.Occurrences
}

// resolveDates applies the form's date fields with the historical defaults:
// start falls back to the next Monday, end to six days after start
// (a seven-day inclusive week).
func resolveDates(startStr, endStr string, now time.Time, loc *time.Location) (time.Time, time.Time, error) {
	var startDate time.Time
	if startStr != "" {
		d, err := time.ParseInLocation("2006-01-02", startStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q", startStr)
		}
		startDate = d
	} else {
		startDate = nextMonday(now, loc)
	}

	var endDate time.Time
	if endStr != "" {
		d, err := time.ParseInLocation("2006-01-02", endStr, loc)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q", endStr)
		}
		endDate = d
	} else {
		endDate = startDate.AddDate(0, 0, 6)
	}

	if endDate.Before(startDate) {
		return time.Time{}, time.Time{}, errors.New("end date must be on or after start date")
	}
	return startDate, endDate, nil
}

func nextMonday(now time.Time, loc *time.Location) time.Time {
	y, m, d := now.In(loc).Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, loc)

	ahead := (int(time.Monday) - int(today.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return today.AddDate(0, 0, ahead)
}

// downloadName mirrors the historical "M-D.pdf" / "M-D-to-M-D.pdf" naming.
func downloadName(start, end time.Time) string {
	if start.Equal(end) {
		return fmt.Sprintf("%d-%d.pdf", int(start.Month()), start.Day())
	}
	return fmt.Sprintf("%d-%d-to-%d-%d.pdf",
		int(start.Month()), start.Day(), int(end.Month()), end.Day())
}

// parseHour reads an hour form field. An empty field means the configured
// default; anything non-numeric is the caller's mistake and is rejected
// rather than silently replaced.
func parseHour(field, s string, def int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: must be a whole number", field, s)
	}
	return n, nil
}

func resolveLocationOrLocal(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func errorsAggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
