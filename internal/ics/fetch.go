package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	appLog "inkplan/internal/log"
)

// Error kinds for per-feed failures. Callers use errors.Is to distinguish
// transport problems from bad ICS payloads; neither aborts the request.
var (
	ErrFeedUnreachable = errors.New("feed unreachable")
	ErrFeedMalformed   = errors.New("feed malformed")
)

// Source represents a single ICS feed.
type Source struct {
	// ID is an identifier used in logs; defaults to the URL.
	ID string
	// URL is the ICS endpoint.
	URL string
}

// FetchResult contains the payload of one successfully fetched feed.
type FetchResult struct {
	Source Source
	Body   []byte
}

// Fetcher downloads ICS feeds. It holds no state between requests beyond
// the HTTP client; identical concurrent downloads of the same URL are
// collapsed into one round trip.
type Fetcher struct {
	client *http.Client
	group  singleflight.Group
}

// NewFetcher creates a Fetcher whose individual downloads are bounded by
// timeout at the HTTP-client level.
func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// SplitURLs turns the form's comma-separated URL field into trimmed,
// non-empty sources.
func SplitURLs(raw string) []Source {
	parts := strings.Split(raw, ",")
	sources := make([]Source, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		sources = append(sources, Source{ID: p, URL: p})
	}
	return sources
}

// FetchAll fetches every source and returns the successful results plus the
// per-source errors. A failed feed never aborts the rest; the caller gets a
// degraded (possibly empty) result set.
func (f *Fetcher) FetchAll(ctx context.Context, sources []Source) ([]FetchResult, []error) {
	results := make([]FetchResult, 0, len(sources))
	var errs []error

	for _, src := range sources {
		res, err := f.FetchOne(ctx, src)
		if err != nil {
			errs = append(errs, err)
			appLog.Error("ics fetch failed", err, "id", src.ID, "url", redactURL(src.URL))
			continue
		}
		results = append(results, res)
	}
	return results, errs
}

// FetchOne downloads a single feed. Concurrent calls for the same URL share
// one in-flight request (and its caller's context).
func (f *Fetcher) FetchOne(ctx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("%w: source URL is empty", ErrFeedUnreachable)
	}

	v, err, shared := f.group.Do(src.URL, func() (any, error) {
		return f.download(ctx, src)
	})
	if err != nil {
		return FetchResult{}, err
	}
	if shared {
		appLog.Debug("ics fetch deduplicated", "id", src.ID, "url", redactURL(src.URL))
	}
	return FetchResult{Source: src, Body: v.([]byte)}, nil
}

func (f *Fetcher) download(ctx context.Context, src Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, bustCache(src.URL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	// Some feed providers serve stale snapshots aggressively; ask for a
	// fresh copy.
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	appLog.Info("ics fetch start", "id", src.ID, "url", redactURL(src.URL))

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %s", ErrFeedUnreachable, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnreachable, err)
	}

	appLog.Info("ics fetch success", "id", src.ID, "url", redactURL(src.URL), "status", resp.StatusCode, "bytes", len(body))
	return body, nil
}

// bustCache appends a timestamp query parameter so shared caches between us
// and the provider do not return stale feed bodies.
func bustCache(u string) string {
	cb := strconv.FormatInt(time.Now().Unix(), 10)
	if strings.Contains(u, "?") {
		return u + "&_cb=" + cb
	}
	return u + "?_cb=" + cb
}

// redactURL hides path and query of a feed URL for logging; private feed
// URLs routinely embed access tokens.
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := strings.Index(u, "://")
	if i == -1 {
		return "ics://...(redacted)"
	}
	rest := u[i+3:]
	if j := strings.IndexByte(rest, '/'); j != -1 {
		rest = rest[:j]
	}
	return u[:i+3] + rest + redactedSuffix
}
