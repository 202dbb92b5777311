package auth

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/tidwall/gjson"

	"github.com/ppiankov/casecrawl/internal/model"
	"github.com/ppiankov/casecrawl/internal/session"
)

const defaultTokenHeader = "X-Access-Token"

// Verdict is the outcome of inspecting a login response
type Verdict struct {
	OK     bool
	Reason string
	Token  string
}

// Discriminator decides whether a login response means the session is authenticated.
// Anything it cannot positively recognize as success is a rejection.
type Discriminator interface {
	Evaluate(resp *session.Response) Verdict
}

// NewDiscriminator builds the discriminator described by cfg
func NewDiscriminator(cfg model.SuccessConfig) (Discriminator, error) {
	switch cfg.Kind {
	case model.SuccessJSONFlag:
		if cfg.Path == "" {
			return nil, fmt.Errorf("json-flag discriminator needs a path")
		}
		return &JSONFlag{Path: cfg.Path, MessagePath: cfg.MessagePath, TokenPath: cfg.TokenPath}, nil
	case model.SuccessJSONEquals:
		if cfg.Path == "" || cfg.Equals == "" {
			return nil, fmt.Errorf("json-equals discriminator needs a path and an expected value")
		}
		return &JSONEquals{Path: cfg.Path, Equals: cfg.Equals, MessagePath: cfg.MessagePath, TokenPath: cfg.TokenPath}, nil
	case model.SuccessHTMLMarkers:
		if len(cfg.SuccessMarkers) == 0 && len(cfg.LoginMarkers) == 0 {
			return nil, fmt.Errorf("html-markers discriminator needs success or login markers")
		}
		return &HTMLMarkers{
			Success: cfg.SuccessMarkers,
			Failure: cfg.FailureMarkers,
			Login:   cfg.LoginMarkers,
		}, nil
	default:
		return nil, fmt.Errorf("unknown login success kind %q", cfg.Kind)
	}
}

// JSONFlag accepts a response whose boolean at Path is true
type JSONFlag struct {
	Path        string
	MessagePath string
	TokenPath   string
}

func (d *JSONFlag) Evaluate(resp *session.Response) Verdict {
	if !gjson.ValidBytes(resp.Body) {
		return Verdict{Reason: "login response is not JSON"}
	}
	flag := gjson.GetBytes(resp.Body, d.Path)
	if flag.Type != gjson.True {
		return Verdict{Reason: message(resp.Body, d.MessagePath, "login rejected")}
	}
	return Verdict{OK: true, Token: token(resp.Body, d.TokenPath)}
}

// JSONEquals accepts a response whose string at Path equals Equals
type JSONEquals struct {
	Path        string
	Equals      string
	MessagePath string
	TokenPath   string
}

func (d *JSONEquals) Evaluate(resp *session.Response) Verdict {
	if !gjson.ValidBytes(resp.Body) {
		return Verdict{Reason: "login response is not JSON"}
	}
	value := gjson.GetBytes(resp.Body, d.Path)
	if !value.Exists() || value.String() != d.Equals {
		msgPath := d.MessagePath
		if msgPath == "" {
			msgPath = d.Path
		}
		return Verdict{Reason: message(resp.Body, msgPath, "login rejected")}
	}
	return Verdict{OK: true, Token: token(resp.Body, d.TokenPath)}
}

// HTMLMarkers inspects the text of the page the login landed on.
// Failure markers win, then a password field means the login form came back, then success markers.
// A page carrying none of the markers is rejected.
type HTMLMarkers struct {
	Success []string
	Failure []string
	Login   []string // login form text; its absence means the form was left behind
}

func (d *HTMLMarkers) Evaluate(resp *session.Response) Verdict {
	text := resp.Text()
	passwordField := false
	if doc, err := resp.Document(); err == nil {
		text = doc.Text()
		passwordField = hasPasswordInput(doc)
	}

	for _, marker := range d.Failure {
		if strings.Contains(text, marker) {
			return Verdict{Reason: marker}
		}
	}
	if passwordField {
		return Verdict{Reason: "login form still present"}
	}
	for _, marker := range d.Success {
		if strings.Contains(text, marker) {
			return Verdict{OK: true}
		}
	}
	if len(d.Login) > 0 {
		if !containsAny(text, d.Login) {
			return Verdict{OK: true}
		}
		return Verdict{Reason: "login form still present"}
	}
	return Verdict{Reason: "ambiguous login response"}
}

func message(body []byte, path, fallback string) string {
	if path == "" {
		return fallback
	}
	if msg := gjson.GetBytes(body, path).String(); msg != "" {
		return msg
	}
	return fallback
}

func token(body []byte, path string) string {
	if path == "" {
		return ""
	}
	return gjson.GetBytes(body, path).String()
}

func containsAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func hasPasswordInput(doc *goquery.Document) bool {
	found := false
	doc.Find("input[type]").EachWithBreak(func(_ int, input *goquery.Selection) bool {
		kind, _ := input.Attr("type")
		found = strings.EqualFold(strings.TrimSpace(kind), "password")
		return !found
	})
	return found
}
