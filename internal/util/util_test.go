package util

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/ppiankov/casecrawl/internal/model"
)

func TestNewProxyFunc(t *testing.T) {
	proxy := NewProxyFunc("http://proxy:8080", "http://secure-proxy:8443")

	req := &http.Request{URL: &url.URL{Scheme: "https", Host: "portal"}}
	got, err := proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if got.Host != "secure-proxy:8443" {
		t.Errorf("expected https proxy, got %s", got.Host)
	}

	req = &http.Request{URL: &url.URL{Scheme: "http", Host: "portal"}}
	got, err = proxy(req)
	if err != nil {
		t.Fatal(err)
	}
	if got.Host != "proxy:8080" {
		t.Errorf("expected http proxy, got %s", got.Host)
	}
}

func TestNewTransport_InsecureTLS(t *testing.T) {
	transport := NewTransport(model.HTTPConfig{InsecureTLS: true})
	if transport.TLSClientConfig == nil || !transport.TLSClientConfig.InsecureSkipVerify {
		t.Error("expected certificate verification to be disabled")
	}
	if NewTransport(model.HTTPConfig{}).TLSClientConfig != nil &&
		NewTransport(model.HTTPConfig{}).TLSClientConfig.InsecureSkipVerify {
		t.Error("verification should stay on by default")
	}
}

func TestRobotsChecker(t *testing.T) {
	fetches := 0
	fetch := func(ctx context.Context, robotsURL string) (int, []byte, error) {
		fetches++
		if robotsURL != "http://portal/robots.txt" {
			t.Errorf("unexpected robots url %s", robotsURL)
		}
		return 200, []byte("User-agent: *\nDisallow: /admin\nCrawl-delay: 3\n"), nil
	}

	checker := NewRobotsChecker("Mozilla/5.0 (X11)", fetch)

	allowed, delay, err := checker.CanFetch(context.Background(), "http://portal/case/1")
	if err != nil {
		t.Fatal(err)
	}
	if !allowed {
		t.Error("expected /case/1 to be allowed")
	}
	if delay != 3*time.Second {
		t.Errorf("expected crawl delay 3s, got %v", delay)
	}

	allowed, _, _ = checker.CanFetch(context.Background(), "http://portal/admin/users")
	if allowed {
		t.Error("expected /admin to be disallowed")
	}
	if fetches != 1 {
		t.Errorf("robots.txt should be fetched once per host, got %d", fetches)
	}
}

func TestRobotsChecker_FetchError(t *testing.T) {
	checker := NewRobotsChecker("casecrawl", func(ctx context.Context, robotsURL string) (int, []byte, error) {
		return 0, nil, errors.New("connection refused")
	})

	allowed, delay, err := checker.CanFetch(context.Background(), "http://portal/case/1")
	if err != nil || !allowed || delay != 0 {
		t.Errorf("unreachable robots.txt should allow, got %v %v %v", allowed, delay, err)
	}
}

func TestNormalizeUserAgent(t *testing.T) {
	if got := NormalizeUserAgent("Mozilla/5.0 (Windows NT 10.0)"); got != "Mozilla" {
		t.Errorf("unexpected product token %q", got)
	}
	if got := NormalizeUserAgent(""); got != "" {
		t.Errorf("expected empty, got %q", got)
	}
}
