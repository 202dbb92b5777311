package auth

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	usernameNamePattern = regexp.MustCompile(`(?i)user|name`)
	passwordNamePattern = regexp.MustCompile(`(?i)pass|pwd`)
)

// loginForm is a login form found on a portal page
type loginForm struct {
	Action        string
	UsernameField string
	PasswordField string
	Hidden        map[string]string
	SubmitName    string
	SubmitValue   string
}

// discoverForm reads the first form on the page: its action, credential inputs and hidden fields
func discoverForm(doc *goquery.Document, pageURL string) (*loginForm, error) {
	form := doc.Find("form").First()
	if form.Length() == 0 {
		return nil, fmt.Errorf("no login form on %s", pageURL)
	}

	lf := &loginForm{Hidden: make(map[string]string)}

	if action, ok := form.Attr("action"); ok && strings.TrimSpace(action) != "" {
		resolved, err := resolve(pageURL, strings.TrimSpace(action))
		if err != nil {
			return nil, fmt.Errorf("resolve form action: %w", err)
		}
		lf.Action = resolved
	}

	lf.UsernameField = inputName(form, `input[type="text"]`, usernameNamePattern)
	lf.PasswordField = inputName(form, `input[type="password"]`, passwordNamePattern)

	form.Find(`input[type="hidden"]`).Each(func(_ int, s *goquery.Selection) {
		name, _ := s.Attr("name")
		value, _ := s.Attr("value")
		if name != "" && value != "" {
			lf.Hidden[name] = value
		}
	})

	submit := form.Find(`input[type="submit"], button[type="submit"]`).First()
	if name, ok := submit.Attr("name"); ok && name != "" {
		lf.SubmitName = name
		lf.SubmitValue, _ = submit.Attr("value")
		if lf.SubmitValue == "" {
			lf.SubmitValue = strings.TrimSpace(submit.Text())
		}
	}

	return lf, nil
}

// inputName finds an input by selector, falling back to the first input whose name matches
func inputName(form *goquery.Selection, selector string, fallback *regexp.Regexp) string {
	if name, ok := form.Find(selector).First().Attr("name"); ok && name != "" {
		return name
	}

	var found string
	form.Find("input[name]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		name, _ := s.Attr("name")
		if fallback.MatchString(name) {
			found = name
			return false
		}
		return true
	})
	return found
}

func resolve(base, ref string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return "", err
	}
	return baseURL.ResolveReference(refURL).String(), nil
}
