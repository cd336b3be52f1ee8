package ics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSplitURLs(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int
	}{
		{"empty", "", 0},
		{"whitespace only", "  ,  , ", 0},
		{"single", "https://a.example/cal.ics", 1},
		{"two with spaces", " https://a.example/cal.ics , https://b.example/cal.ics ", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SplitURLs(tt.raw); len(got) != tt.want {
				t.Errorf("SplitURLs(%q) = %v, want %d sources", tt.raw, got, tt.want)
			}
		})
	}
}

func TestFetchOneSendsCacheBuster(t *testing.T) {
	var gotQuery, gotCacheControl string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("_cb")
		gotCacheControl = r.Header.Get("Cache-Control")
		w.Write(icsBody())
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.FetchOne(context.Background(), Source{ID: "t", URL: srv.URL})
	if err != nil {
		t.Fatalf("FetchOne: %v", err)
	}
	if len(res.Body) == 0 {
		t.Error("empty body")
	}
	if gotQuery == "" {
		t.Error("no cache-busting query parameter sent")
	}
	if gotCacheControl != "no-cache" {
		t.Errorf("Cache-Control = %q, want no-cache", gotCacheControl)
	}
}

func TestFetchAllDegradesOnFailure(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(icsBody(
			"BEGIN:VEVENT",
			"UID:ok@example.com",
			"SUMMARY:Still here",
			"DTSTART:20260105T150000Z",
			"DTEND:20260105T160000Z",
			"END:VEVENT",
		))
	}))
	defer good.Close()

	missing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer missing.Close()

	f := NewFetcher(5 * time.Second)
	results, errs := f.FetchAll(context.Background(), []Source{
		{ID: "gone", URL: missing.URL},
		{ID: "good", URL: good.URL},
	})

	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	if results[0].Source.ID != "good" {
		t.Errorf("surviving source = %q, want good", results[0].Source.ID)
	}
	if len(errs) != 1 {
		t.Fatalf("got %d errors, want 1", len(errs))
	}
	if !errors.Is(errs[0], ErrFeedUnreachable) {
		t.Errorf("err = %v, want ErrFeedUnreachable", errs[0])
	}
}

func TestFetchOneUnreachableHost(t *testing.T) {
	f := NewFetcher(500 * time.Millisecond)
	_, err := f.FetchOne(context.Background(), Source{ID: "nohost", URL: "http://127.0.0.1:1/feed.ics"})
	if !errors.Is(err, ErrFeedUnreachable) {
		t.Errorf("err = %v, want ErrFeedUnreachable", err)
	}
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"https://example.com/private/token-abc.ics?key=secret", "https://example.com/...(redacted)"},
		{"https://example.com", "https://example.com/...(redacted)"},
		{"garbage", "ics://...(redacted)"},
	}
	for _, tt := range tests {
		if got := redactURL(tt.in); got != tt.want {
			t.Errorf("redactURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if strings.Contains(redactURL("https://example.com/cal?token=hunter2"), "hunter2") {
		t.Error("redactURL leaked a query secret")
	}
}
