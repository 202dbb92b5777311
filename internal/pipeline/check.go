package pipeline

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/ppiankov/casecrawl/internal/session"
)

// CheckResult describes one reachability probe of a portal page
type CheckResult struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Encoding    string
	Title       string
	Bytes       int
	Elapsed     time.Duration
	Headers     map[string]string
}

// Check fetches rawURL once through the session and reports what came back.
// Any HTTP status is a result; only network failures are errors.
func Check(ctx context.Context, s *session.Session, rawURL string) (*CheckResult, error) {
	start := time.Now()
	resp, err := s.Fetch(ctx, session.Request{URL: rawURL})
	if err != nil {
		var te *session.TransportError
		if !errors.As(err, &te) || te.StatusCode == 0 {
			return nil, err
		}
		return &CheckResult{
			URL:        rawURL,
			FinalURL:   rawURL,
			StatusCode: te.StatusCode,
			Elapsed:    time.Since(start),
			Title:      pageSubject(rawURL),
		}, nil
	}

	result := &CheckResult{
		URL:         rawURL,
		FinalURL:    resp.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.ContentType,
		Encoding:    resp.Encoding(),
		Bytes:       len(resp.Body),
		Elapsed:     time.Since(start),
		Headers:     make(map[string]string),
	}

	// Store selected headers
	for _, key := range []string{"Server", "Cache-Control", "Set-Cookie"} {
		if val := resp.Header.Get(key); val != "" {
			result.Headers[key] = val
		}
	}

	if doc, err := resp.Document(); err == nil {
		result.Title = strings.TrimSpace(doc.Find("title").First().Text())
	}
	if result.Title == "" {
		result.Title = pageSubject(result.FinalURL)
	}

	return result, nil
}

// pageSubject names a page after its last path segment
func pageSubject(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	path := strings.Trim(parsed.Path, "/")
	if path == "" {
		return parsed.Host
	}

	segments := strings.Split(path, "/")
	last := segments[len(segments)-1]

	// Remove file extensions
	if idx := strings.LastIndex(last, "."); idx > 0 {
		last = last[:idx]
	}

	return last
}
