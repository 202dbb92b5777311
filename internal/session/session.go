package session

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/phuslu/log"

	"github.com/ppiankov/casecrawl/internal/cache"
	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/util"
	"github.com/ppiankov/casecrawl/internal/worker"
)

const (
	defaultTimeout      = 15 * time.Second
	defaultMaxRedirects = 10
	defaultMaxBodyBytes = 10 << 20
)

// Session is the authenticated HTTP context shared by every stage of a run.
// It owns the cookie jar, the default headers and the access token.
type Session struct {
	http    *resty.Client
	limiter *worker.Limiter
	cache   cache.Cache
	maxBody int64
}

// Option configures a Session
type Option func(*Session)

// WithLimiter paces requests per host
func WithLimiter(l *worker.Limiter) Option {
	return func(s *Session) { s.limiter = l }
}

// WithCache stores cacheable GET responses
func WithCache(c cache.Cache) Option {
	return func(s *Session) { s.cache = c }
}

// WithHeaders adds default headers sent with every request
func WithHeaders(headers map[string]string) Option {
	return func(s *Session) {
		for k, v := range headers {
			s.http.SetHeader(k, v)
		}
	}
}

// New creates a session from the HTTP configuration
func New(cfg model.HTTPConfig, opts ...Option) (*Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxRedirects := cfg.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = defaultMaxRedirects
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(maxRedirects))
	client.SetTransport(util.NewTransport(cfg))

	client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if cfg.UserAgent != "" {
		client.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.AcceptLanguage != "" {
		client.SetHeader("Accept-Language", cfg.AcceptLanguage)
	}
	for k, v := range cfg.Headers {
		client.SetHeader(k, v)
	}

	s := &Session{
		http:    client,
		maxBody: maxBody,
	}
	for _, opt := range opts {
		opt(s)
	}

	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return s.limiter.Wait(req.Context(), req.URL)
	})

	return s, nil
}

// SetToken attaches an access token header to every later request
func (s *Session) SetToken(header, value string) {
	s.http.SetHeader(header, value)
}

// Header returns the current value of a default header
func (s *Session) Header(name string) string {
	return s.http.Header.Get(name)
}

// Cookies returns the cookies the jar would send to rawURL
func (s *Session) Cookies(rawURL string) []*http.Cookie {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}
	return s.http.GetClient().Jar.Cookies(u)
}

// Request describes one HTTP exchange
type Request struct {
	Method string
	URL    string
	Query  map[string]string
	Form   map[string]string
	JSON   any
	Header map[string]string

	// Cacheable responses are served from the document cache when present.
	// List pages carry nonces and must not set it.
	Cacheable bool
}

// Response is a fully read response body
type Response struct {
	URL         string // final URL after redirects
	StatusCode  int
	Header      http.Header
	Body        []byte
	ContentType string
	FromCache   bool

	text     string
	decoded  bool
	encoding string
}

// Text returns the body decoded to UTF-8
func (r *Response) Text() string {
	if !r.decoded {
		r.text, r.encoding = DecodeBody(r.Body, r.ContentType)
		r.decoded = true
	}
	return r.text
}

// Encoding returns the name of the charset the body was decoded from
func (r *Response) Encoding() string {
	r.Text()
	return r.encoding
}

// Document parses the decoded body as HTML
func (r *Response) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(r.Text()))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if base, err := url.Parse(r.URL); err == nil {
		doc.Url = base
	}
	return doc, nil
}

// Fetch performs req. A network failure or a non-2xx status is a *TransportError.
func (s *Session) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var key string
	if req.Cacheable && method == http.MethodGet && s.cache != nil {
		key = cache.Key(requestKey(req.URL, req.Query))
		if data, ok := s.cache.Get(key); ok {
			log.Debug().Str("url", req.URL).Msg("document cache hit")
			return &Response{
				URL:         req.URL,
				StatusCode:  http.StatusOK,
				Body:        data,
				ContentType: "text/html; charset=utf-8",
				FromCache:   true,
			}, nil
		}
	}

	resp, err := s.do(ctx, method, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{Method: method, URL: req.URL, StatusCode: resp.StatusCode}
	}

	if key != "" {
		if err := s.cache.Set(key, []byte(resp.Text()), 0); err != nil {
			log.Warn().Err(err).Str("url", req.URL).Msg("document cache write failed")
		}
	}

	return resp, nil
}

// Evict drops the cached copy of a GET of rawURL.
// A document that turned out to be unusable must not be served again.
func (s *Session) Evict(rawURL string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(cache.Key(requestKey(rawURL, nil))); err != nil {
		log.Warn().Err(err).Str("url", rawURL).Msg("document cache evict failed")
	}
}

// Probe performs a GET and returns the status and body whatever the status is.
// Only network failures are errors.
func (s *Session) Probe(ctx context.Context, rawURL string) (int, []byte, error) {
	resp, err := s.do(ctx, http.MethodGet, Request{URL: rawURL})
	if err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, resp.Body, nil
}

// Get fetches rawURL and returns the response
func (s *Session) Get(ctx context.Context, rawURL string) (*Response, error) {
	return s.Fetch(ctx, Request{Method: http.MethodGet, URL: rawURL})
}

// Document fetches rawURL and parses it as HTML
func (s *Session) Document(ctx context.Context, rawURL string) (*goquery.Document, *Response, error) {
	resp, err := s.Get(ctx, rawURL)
	if err != nil {
		return nil, nil, err
	}
	doc, err := resp.Document()
	if err != nil {
		return nil, resp, err
	}
	return doc, resp, nil
}

func (s *Session) do(ctx context.Context, method string, req Request) (*Response, error) {
	r := s.http.R().SetContext(ctx).SetDoNotParseResponse(true)
	if len(req.Query) > 0 {
		r.SetQueryParams(req.Query)
	}
	if req.Form != nil {
		r.SetFormData(req.Form)
	}
	if req.JSON != nil {
		r.SetHeader("Content-Type", "application/json;charset=UTF-8")
		r.SetBody(req.JSON)
	}
	for k, v := range req.Header {
		r.SetHeader(k, v)
	}

	start := time.Now()
	res, err := r.Execute(method, req.URL)
	if err != nil {
		if res != nil && res.RawBody() != nil {
			_ = res.RawBody().Close()
		}
		return nil, &TransportError{Method: method, URL: req.URL, Err: err}
	}

	raw := res.RawBody()
	defer func() { _ = raw.Close() }()

	body, err := io.ReadAll(io.LimitReader(raw, s.maxBody))
	if err != nil {
		return nil, &TransportError{Method: method, URL: req.URL, Err: fmt.Errorf("read body: %w", err)}
	}

	finalURL := req.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}

	log.Debug().
		Str("method", method).
		Str("url", finalURL).
		Int("status", res.StatusCode()).
		Int("bytes", len(body)).
		Dur("elapsed", time.Since(start)).
		Msg("http exchange")

	return &Response{
		URL:         finalURL,
		StatusCode:  res.StatusCode(),
		Header:      res.Header(),
		Body:        body,
		ContentType: res.Header().Get("Content-Type"),
	}, nil
}

func requestKey(rawURL string, query map[string]string) string {
	if len(query) == 0 {
		return rawURL
	}
	keys := make([]string, 0, len(query))
	for k := range query {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteString(rawURL)
	for _, k := range keys {
		buf.WriteString("&" + k + "=" + query[k])
	}
	return buf.String()
}
